package scraper

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sort"

	"github.com/flatscout/flatscout/internal/model"
)

var (
	// ErrSiteUnavailable wraps every failure to fetch or parse a site page.
	ErrSiteUnavailable = errors.New("site unavailable")

	// ErrUnsupportedCity is returned when a site has no URL for the requested city.
	ErrUnsupportedCity = errors.New("city not supported")

	// ErrUnknownSite is returned by Registry.Get for an unregistered site id.
	ErrUnknownSite = errors.New("unknown site")
)

// Request describes one fetch of a site's listings for a city.
type Request struct {
	// City is the city as entered in the address book.
	City string

	// MaxPages limits the number of result pages per category. Zero means
	// no limit; the site is searched until it runs out of results.
	MaxPages int

	// OnPage, if set, is called before each page request. maxPages is zero
	// when MaxPages is zero. It is called on the goroutine ranging over the
	// sequence.
	OnPage func(page, maxPages int)
}

// Scraper produces the listings of one website.
//
// Fetch returns a lazy sequence. Pages are requested only as the caller
// ranges over it, the context is checked before every page request and
// between yields, and breaking out of the range stops all further requests.
// A non-nil error is the last element of the sequence.
// A Scraper can be fetched again after a sequence ends.
type Scraper interface {
	ID() string
	Name() string
	Fetch(ctx context.Context, req Request) iter.Seq2[model.RawListing, error]
}

// Noter is implemented by scrapers that carry a note for the user, such as
// a reminder that the site's addresses need manual verification.
type Noter interface {
	Note() string
}

// Registry maps site ids to scrapers.
type Registry struct {
	scrapers map[string]Scraper
}

// NewRegistry returns a registry holding the given scrapers.
// A later scraper with the same id replaces an earlier one.
func NewRegistry(scrapers ...Scraper) *Registry {
	r := &Registry{scrapers: make(map[string]Scraper, len(scrapers))}
	for _, s := range scrapers {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scraper.
func (r *Registry) Register(s Scraper) {
	r.scrapers[s.ID()] = s
}

// Get returns the scraper for id.
func (r *Registry) Get(id string) (Scraper, error) {
	s, ok := r.scrapers[id]
	if !ok {
		return nil, ErrUnknownSite
	}
	return s, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.scrapers[id]
	return ok
}

// IDs returns the registered site ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.scrapers))
	for id := range r.scrapers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Name returns the display name of id, or id itself when unknown.
func (r *Registry) Name(id string) string {
	if s, ok := r.scrapers[id]; ok {
		return s.Name()
	}
	return id
}

// Note returns the user note of id, if any.
func (r *Registry) Note(id string) string {
	if n, ok := r.scrapers[id].(Noter); ok {
		return n.Note()
	}
	return ""
}

// Unknown returns the ids in ids that are not registered.
func (r *Registry) Unknown(ids []string) []string {
	var unknown []string
	for _, id := range ids {
		if !r.Has(id) && !slices.Contains(unknown, id) {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// Build creates an HTMLScraper for every enabled definition and registers it.
// Definitions are registered in the order given.
func Build(defs []SiteDef, opts ...Option) (*Registry, error) {
	r := NewRegistry()
	for _, def := range defs {
		if !def.IsEnabled() {
			continue
		}
		s, err := NewHTMLScraper(def, opts...)
		if err != nil {
			return nil, err
		}
		r.Register(s)
	}
	return r, nil
}
