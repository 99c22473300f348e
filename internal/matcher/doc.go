// Package matcher classifies listings against the address book.
//
// A listing matches an address when the address's street appears in the
// listing's address text or title. The match is exact when the street is
// followed by the address's house number and the listing's postal code does
// not contradict the address. It is extended when the house number is
// missing, ranged or different but the listing is confirmed to be in the same
// postal code area or city.
//
// The street and house number must appear together in either the address
// text or the title. A listing returned by a search for another city than
// the address's is treated as being elsewhere unless its text names the
// address's postal code or city.
//
// All functions are pure: they perform no I/O and never modify their inputs.
package matcher
