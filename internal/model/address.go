package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Address validation errors.
var (
	// ErrEmptyStreet is returned when an address has no street.
	ErrEmptyStreet = errors.New("invalid address: street is required")

	// ErrEmptyHouseNumber is returned when an address has no house number.
	ErrEmptyHouseNumber = errors.New("invalid address: house number is required")

	// ErrEmptyCity is returned when an address has no city.
	ErrEmptyCity = errors.New("invalid address: city is required")
)

// Address is a target address from the address book.
// Street, HouseNumber and City are required; PostalCode and Notes are optional.
type Address struct {
	// ID is the stable identifier assigned by the address book.
	ID int64 `json:"id"`

	// Street is the street name as entered by the user, e.g. "Hauptstraße".
	Street string `json:"street"`

	// HouseNumber may carry a letter suffix ("12a") or a range ("12-14").
	HouseNumber string `json:"house_number"`

	// PostalCode is the five digit German postal code, if known.
	PostalCode string `json:"postal_code,omitempty"`

	// City is the city the address is located in. It also selects the
	// city that listing sites are searched for.
	City string `json:"city"`

	// Notes is free text for the user.
	Notes string `json:"notes,omitempty"`

	// CreatedAt is when the address was added to the address book.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that the required fields are present.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Street) == "" {
		return ErrEmptyStreet
	}
	if strings.TrimSpace(a.HouseNumber) == "" {
		return ErrEmptyHouseNumber
	}
	if strings.TrimSpace(a.City) == "" {
		return ErrEmptyCity
	}
	return nil
}

// Display returns the address in the "street nr, postal city" form
// used in match records and exports. The postal code is omitted when unknown.
func (a Address) Display() string {
	loc := strings.TrimSpace(a.City)
	if pc := strings.TrimSpace(a.PostalCode); pc != "" {
		loc = pc + " " + loc
	}
	return fmt.Sprintf("%s %s, %s", strings.TrimSpace(a.Street), strings.TrimSpace(a.HouseNumber), loc)
}

// Stats summarises the contents of an address book and its report archive.
type Stats struct {
	Addresses    int `json:"addresses"`
	Reports      int `json:"reports"`
	TotalMatches int `json:"total_matches"`
}
