package config

import (
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/flatscout/flatscout/internal/scraper"
)

//go:embed sites.yaml
var defaultSitesYAML []byte

// DefaultSites returns the built-in site catalogue.
func DefaultSites() []scraper.SiteDef {
	sites, err := parseSites(defaultSitesYAML)
	if err != nil {
		panic(fmt.Sprintf("config: invalid built-in site catalogue: %v", err))
	}
	return sites
}

func parseSites(data []byte) ([]scraper.SiteDef, error) {
	var sites []scraper.SiteDef
	if err := yaml.Unmarshal(data, &sites); err != nil {
		return nil, err
	}
	for _, s := range sites {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return sites, nil
}

// EnabledSiteIDs returns the ids of the enabled sites in catalogue order.
func EnabledSiteIDs(sites []scraper.SiteDef) []string {
	ids := make([]string, 0, len(sites))
	for _, s := range sites {
		if s.IsEnabled() {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// MergeSites applies per-site overrides from the config file to base.
// Fields set in an override replace the base value; params are merged per
// placeholder and city. Overrides for unknown ids add new sites, sorted by id
// after the base sites.
func MergeSites(base []scraper.SiteDef, overrides map[string]scraper.SiteDef) ([]scraper.SiteDef, error) {
	merged := make([]scraper.SiteDef, 0, len(base)+len(overrides))
	known := make(map[string]bool, len(base))
	for _, b := range base {
		known[b.ID] = true
		if o, ok := overrides[b.ID]; ok {
			b = mergeSite(b, o)
		}
		merged = append(merged, b)
	}

	added := make([]string, 0, len(overrides))
	for id := range overrides {
		if !known[id] {
			added = append(added, id)
		}
	}
	sort.Strings(added)
	for _, id := range added {
		s := overrides[id]
		s.ID = id
		if s.Name == "" {
			s.Name = id
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		merged = append(merged, s)
	}
	return merged, nil
}

func mergeSite(b, o scraper.SiteDef) scraper.SiteDef {
	if o.Name != "" {
		b.Name = o.Name
	}
	if o.Enabled != nil {
		b.Enabled = o.Enabled
	}
	if o.BaseURL != "" {
		b.BaseURL = o.BaseURL
	}
	if len(o.Categories) > 0 {
		b.Categories = slices.Clone(o.Categories)
	}
	if len(o.Params) > 0 {
		params := make(map[string]map[string]string, len(b.Params)+len(o.Params))
		for name, values := range b.Params {
			params[name] = maps.Clone(values)
		}
		for name, values := range o.Params {
			if params[name] == nil {
				params[name] = make(map[string]string, len(values))
			}
			maps.Copy(params[name], values)
		}
		b.Params = params
	}
	if len(o.Required) > 0 {
		b.Required = slices.Clone(o.Required)
	}
	if o.Item != "" {
		b.Item = o.Item
	}
	if o.Link != "" {
		b.Link = o.Link
	}
	if o.LinkContains != "" {
		b.LinkContains = o.LinkContains
	}
	if o.Title != "" {
		b.Title = o.Title
	}
	if o.Address != "" {
		b.Address = o.Address
	}
	if o.StripQuery {
		b.StripQuery = true
	}
	if len(o.ExcludeKeywords) > 0 {
		b.ExcludeKeywords = slices.Clone(o.ExcludeKeywords)
	}
	if len(o.AllowKeywords) > 0 {
		b.AllowKeywords = slices.Clone(o.AllowKeywords)
	}
	if o.Proxy != "" {
		b.Proxy = o.Proxy
	}
	if o.RenderJS {
		b.RenderJS = true
	}
	if o.Note != "" {
		b.Note = o.Note
	}
	return b
}
