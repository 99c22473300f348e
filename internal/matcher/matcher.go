package matcher

import (
	"slices"

	"github.com/flatscout/flatscout/internal/model"
)

// Result is the classification of one listing against one address.
// A zero Type means no match.
type Result struct {
	Type    model.MatchType
	Address model.Address
}

// Matched reports whether r is a positive classification.
func (r Result) Matched() bool {
	return r.Type != ""
}

// location describes whether a listing is in the address's area.
type location int

const (
	locationUnknown location = iota
	locationConfirmed
	locationConflicting
)

// preparedAddress holds the normalized forms of an address.
type preparedAddress struct {
	addr       model.Address
	street     string
	house      houseSet
	houseOK    bool
	postalCode string
	city       []string
}

func prepare(a model.Address) preparedAddress {
	house, ok := newHouseSet(a.HouseNumber)
	pa := preparedAddress{
		addr:    a,
		street:  joined(Tokenize(a.Street)),
		house:   house,
		houseOK: ok,
		city:    Tokenize(a.City),
	}
	if pc := Normalize(a.PostalCode); isPostalCode(pc) {
		pa.postalCode = pc
	}
	return pa
}

// Matcher classifies listings against a fixed address list.
// It is immutable after New and safe for concurrent use.
type Matcher struct {
	addresses []preparedAddress
}

// New prepares addrs for matching. The slice is copied.
func New(addrs []model.Address) *Matcher {
	m := &Matcher{addresses: make([]preparedAddress, 0, len(addrs))}
	for _, a := range addrs {
		m.addresses = append(m.addresses, prepare(a))
	}
	return m
}

// Classify returns the best classification of l against the addresses.
// Exact beats Extended; among equals the first address wins.
func (m *Matcher) Classify(l model.RawListing, mode model.MatchMode) Result {
	var best Result
	for _, r := range m.MatchAll(l, mode) {
		if r.Type == model.MatchTypeExact {
			return r
		}
		if !best.Matched() {
			best = r
		}
	}
	return best
}

// MatchAll returns one result per address that l matches, in address order.
func (m *Matcher) MatchAll(l model.RawListing, mode model.MatchMode) []Result {
	lt := newListingText(l)
	var results []Result
	for _, pa := range m.addresses {
		if t, ok := lt.classify(pa, mode); ok {
			results = append(results, Result{Type: t, Address: pa.addr})
		}
	}
	return results
}

// Classify is a convenience wrapper around New(addrs).Classify.
func Classify(l model.RawListing, addrs []model.Address, mode model.MatchMode) Result {
	return New(addrs).Classify(l, mode)
}

// MatchAll is a convenience wrapper around New(addrs).MatchAll.
func MatchAll(l model.RawListing, addrs []model.Address, mode model.MatchMode) []Result {
	return New(addrs).MatchAll(l, mode)
}

// listingText is the tokenized address text and title of a listing.
// The street and house number are searched in each field on its own.
// Location evidence is taken from both.
type listingText struct {
	fields     [][]string
	tokens     []string
	postals    []string
	searchCity string
}

func newListingText(l model.RawListing) listingText {
	address, title := Tokenize(l.Address), Tokenize(l.Title)
	tokens := slices.Concat(address, title)
	var postals []string
	for _, tok := range tokens {
		if isPostalCode(tok) {
			postals = append(postals, tok)
		}
	}
	return listingText{
		fields:     [][]string{address, title},
		tokens:     tokens,
		postals:    postals,
		searchCity: joined(Tokenize(l.City)),
	}
}

func (lt listingText) classify(pa preparedAddress, mode model.MatchMode) (model.MatchType, bool) {
	streetFound, exactHouse := lt.findStreet(pa)
	if !streetFound {
		return "", false
	}
	loc := lt.location(pa)

	exact := exactHouse && loc != locationConflicting
	extended := !exactHouse && loc == locationConfirmed

	switch mode {
	case model.MatchModeExact:
		if exact {
			return model.MatchTypeExact, true
		}
	case model.MatchModeBoth:
		if exact {
			return model.MatchTypeExact, true
		}
		if extended {
			return model.MatchTypeExtended, true
		}
	case model.MatchModeExtended:
		if exact || extended {
			return model.MatchTypeExtended, true
		}
	}
	return "", false
}

// findStreet looks for the address street as a contiguous token window of
// one field. exactHouse is true when some occurrence is followed, in the
// same field, by the address's house number.
func (lt listingText) findStreet(pa preparedAddress) (found, exactHouse bool) {
	if pa.street == "" {
		return false, false
	}
	for _, field := range lt.fields {
		for i := range field {
			end, ok := matchWindow(field[i:], pa.street)
			if !ok {
				continue
			}
			found = true
			if pa.houseOK && houseAt(field, i+end).matches(pa.house) {
				return true, true
			}
		}
	}
	return found, false
}

// matchWindow reports whether a prefix of tokens joins to target and returns
// the number of tokens used.
func matchWindow(tokens []string, target string) (int, bool) {
	rest := target
	for n, tok := range tokens {
		if len(tok) > len(rest) || rest[:len(tok)] != tok {
			return 0, false
		}
		rest = rest[len(tok):]
		if rest == "" {
			return n + 1, true
		}
	}
	return 0, false
}

type listingHouse struct {
	h  houseNumber
	ok bool
}

func (lh listingHouse) matches(s houseSet) bool {
	return lh.ok && s.contains(lh.h)
}

func houseAt(tokens []string, i int) listingHouse {
	if i >= len(tokens) {
		return listingHouse{}
	}
	next := ""
	if i+1 < len(tokens) {
		next = tokens[i+1]
	}
	h, ok := parseHouseNumber(tokens[i], next)
	// A postal code directly after the street is not a house number.
	if ok && isPostalCode(tokens[i]) {
		return listingHouse{}
	}
	return listingHouse{h: h, ok: ok}
}

func (lt listingText) location(pa preparedAddress) location {
	if pa.postalCode != "" {
		if slices.Contains(lt.postals, pa.postalCode) {
			return locationConfirmed
		}
		if len(lt.postals) > 0 {
			return locationConflicting
		}
	}
	if lt.containsCity(pa.city) {
		return locationConfirmed
	}
	// A listing found by searching another city is not at this address.
	if lt.searchCity != "" && len(pa.city) > 0 && lt.searchCity != joined(pa.city) {
		return locationConflicting
	}
	return locationUnknown
}

func (lt listingText) containsCity(city []string) bool {
	if len(city) == 0 {
		return false
	}
	target := joined(city)
	for i := range lt.tokens {
		if _, ok := matchWindow(lt.tokens[i:], target); ok {
			return true
		}
	}
	// "Frankfurt am Main" is often shown as just "Frankfurt".
	if len(city) > 1 && len(city[0]) >= 4 {
		return slices.Contains(lt.tokens, city[0])
	}
	return false
}
