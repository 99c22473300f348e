package model

import "time"

// RawListing is one listing as emitted by a site scraper.
// Only the fields needed for matching and reporting are kept.
type RawListing struct {
	// Title is the listing headline.
	Title string `json:"title"`

	// URL is the absolute link to the listing detail page.
	URL string `json:"url"`

	// Address is the displayed address text. Sites usually show only a
	// fragment ("Hauptstr. 12, 10115 Berlin Mitte" or just a district).
	Address string `json:"address"`

	// Website is the site id the listing was found on.
	Website string `json:"website"`

	// WebsiteName is the human readable site name.
	WebsiteName string `json:"website_name"`

	// City is the city whose search returned the listing. Empty when the
	// listing was not produced by a city search.
	City string `json:"city,omitempty"`
}

// MatchType classifies how well a listing matched an address.
type MatchType string

const (
	// MatchTypeExact means street and house number matched.
	MatchTypeExact MatchType = "exact"

	// MatchTypeExtended means the street matched in the right area but the
	// house number was missing or different.
	MatchTypeExtended MatchType = "extended"
)

// Label returns the upper-case label used in text exports.
func (t MatchType) Label() string {
	switch t {
	case MatchTypeExact:
		return "EXACT"
	case MatchTypeExtended:
		return "EXTENDED"
	default:
		return "UNKNOWN"
	}
}

// Match is a listing that matched one target address.
type Match struct {
	AddressID      int64     `json:"address_id"`
	AddressDisplay string    `json:"address_display"`
	ListingTitle   string    `json:"listing_title"`
	ListingURL     string    `json:"listing_url"`
	Website        string    `json:"website"`
	WebsiteName    string    `json:"website_name"`
	MatchType      MatchType `json:"match_type"`
	FoundAt        time.Time `json:"found_at"`
}

// MaxTitleLength is the number of runes kept from a listing title.
const MaxTitleLength = 120

// NewMatch builds the match record for a listing and an address.
func NewMatch(l RawListing, a Address, t MatchType, foundAt time.Time) Match {
	title := []rune(l.Title)
	if len(title) > MaxTitleLength {
		title = title[:MaxTitleLength]
	}
	return Match{
		AddressID:      a.ID,
		AddressDisplay: a.Display(),
		ListingTitle:   string(title),
		ListingURL:     l.URL,
		Website:        l.Website,
		WebsiteName:    l.WebsiteName,
		MatchType:      t,
		FoundAt:        foundAt,
	}
}

// Key identifies a match within one session. Two matches with the same
// key describe the same listing for the same address.
type MatchKey struct {
	URL       string
	AddressID int64
}

// Key returns the deduplication key of m.
func (m Match) Key() MatchKey {
	return MatchKey{URL: m.ListingURL, AddressID: m.AddressID}
}
