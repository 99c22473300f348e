package scraper

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/flatscout/flatscout/internal/matcher"
)

// ProxyScrapeOps routes a site's page requests through the ScrapeOps proxy API.
const ProxyScrapeOps = "scrapeops"

// Category is one search result listing of a site, e.g. flats or shared rooms.
type Category struct {
	// Name is shown in progress logs.
	Name string `yaml:"name,omitempty"`

	// URL is the template of the first result page.
	URL string `yaml:"url"`

	// PageURL is the template of later result pages. If empty, URL is used
	// for every page.
	PageURL string `yaml:"pageUrl,omitempty"`
}

// SiteDef describes how to scrape one website.
//
// URL templates may contain {city} (the city slug, e.g. "muenchen"),
// {page} (1-based page number), {page0} (0-based page number) and any key
// of Params.
type SiteDef struct {
	ID      string `yaml:"id,omitempty"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled,omitempty"`

	// BaseURL resolves relative listing links and category URLs.
	BaseURL string `yaml:"baseUrl"`

	Categories []Category `yaml:"categories"`

	// Params maps a placeholder name to per-city values keyed by city slug.
	Params map[string]map[string]string `yaml:"params,omitempty"`

	// Required lists Params that must have a value for the requested city.
	// A missing optional parameter is replaced by the empty string.
	Required []string `yaml:"required,omitempty"`

	// Item selects one listing card.
	Item string `yaml:"item"`

	// Link selects the anchor inside a card. If empty the card itself is
	// used when it is an anchor, otherwise its first anchor.
	Link string `yaml:"link,omitempty"`

	// LinkContains filters listing links by substring.
	LinkContains string `yaml:"linkContains,omitempty"`

	// Title selects the headline inside a card. If empty the link text is used.
	Title string `yaml:"title,omitempty"`

	// Address selects the address text inside a card. If empty the whole
	// card text is used.
	Address string `yaml:"address,omitempty"`

	// StripQuery removes the query string from listing URLs.
	StripQuery bool `yaml:"stripQuery,omitempty"`

	// ExcludeKeywords drops cards whose title contains any keyword, unless
	// the title also contains one of AllowKeywords.
	ExcludeKeywords []string `yaml:"excludeKeywords,omitempty"`
	AllowKeywords   []string `yaml:"allowKeywords,omitempty"`

	// Proxy selects a proxy API for this site. Only ProxyScrapeOps is known.
	Proxy string `yaml:"proxy,omitempty"`

	// RenderJS asks the proxy API to render JavaScript.
	RenderJS bool `yaml:"renderJs,omitempty"`

	// Note is shown to the user when the site is searched.
	Note string `yaml:"note,omitempty"`
}

// IsEnabled reports whether the site is enabled. Sites are enabled unless
// explicitly disabled.
func (d SiteDef) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Validate checks that the definition can produce URLs and listings.
func (d SiteDef) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("site definition without id")
	}
	if len(d.Categories) == 0 {
		return fmt.Errorf("site %s: no categories", d.ID)
	}
	if d.Item == "" {
		return fmt.Errorf("site %s: no item selector", d.ID)
	}
	for _, c := range d.Categories {
		if c.URL == "" {
			return fmt.Errorf("site %s: category without url", d.ID)
		}
	}
	if _, err := url.Parse(d.BaseURL); err != nil {
		return fmt.Errorf("site %s: invalid base url: %w", d.ID, err)
	}
	return nil
}

// CitySlug converts a city name into the form used in site URLs:
// "München" becomes "muenchen" and "Frankfurt am Main" becomes
// "frankfurt-am-main".
func CitySlug(city string) string {
	return strings.Join(matcher.Tokenize(city), "-")
}

// pageURL builds the absolute URL of a result page.
func (d SiteDef) pageURL(c Category, city string, page int) (string, error) {
	tmpl := c.URL
	if page > 1 && c.PageURL != "" {
		tmpl = c.PageURL
	}

	slug := CitySlug(city)
	pairs := []string{
		"{city}", slug,
		"{page}", strconv.Itoa(page),
		"{page0}", strconv.Itoa(page - 1),
	}
	for name, values := range d.Params {
		v, ok := values[slug]
		if !ok && d.requires(name) {
			return "", fmt.Errorf("%w: %s has no %s for %q", ErrUnsupportedCity, d.Name, name, city)
		}
		pairs = append(pairs, "{"+name+"}", v)
	}
	for _, name := range d.Required {
		if _, ok := d.Params[name]; !ok {
			return "", fmt.Errorf("%w: %s has no %s for %q", ErrUnsupportedCity, d.Name, name, city)
		}
	}

	raw := strings.NewReplacer(pairs...).Replace(tmpl)
	return d.resolve(raw)
}

func (d SiteDef) requires(param string) bool {
	return slices.Contains(d.Required, param)
}

// resolve makes ref absolute against BaseURL.
func (d SiteDef) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if u.IsAbs() || d.BaseURL == "" {
		return u.String(), nil
	}
	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", d.BaseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}

// keepTitle applies ExcludeKeywords and AllowKeywords to a card title.
func (d SiteDef) keepTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, allow := range d.AllowKeywords {
		if strings.Contains(lower, strings.ToLower(allow)) {
			return true
		}
	}
	for _, ex := range d.ExcludeKeywords {
		if strings.Contains(lower, strings.ToLower(ex)) {
			return false
		}
	}
	return true
}
