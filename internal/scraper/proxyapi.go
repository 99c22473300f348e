package scraper

import (
	"errors"
	"net/url"
)

// DefaultProxyAPIEndpoint is the ScrapeOps proxy endpoint.
const DefaultProxyAPIEndpoint = "https://proxy.scrapeops.io/v1/"

// ErrMissingAPIKey is returned for sites that need the proxy API when no key is configured.
var ErrMissingAPIKey = errors.New("proxy API key not configured")

// ProxyAPI rewrites page URLs to go through a ScrapeOps style proxy API,
// which fetches the target on the caller's behalf and returns its HTML.
type ProxyAPI struct {
	Endpoint string
	APIKey   string
	Country  string
}

// Enabled reports whether the proxy has an API key.
func (p *ProxyAPI) Enabled() bool {
	return p != nil && p.APIKey != ""
}

// Wrap returns the proxy URL fetching target.
func (p *ProxyAPI) Wrap(target string, renderJS bool) string {
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = DefaultProxyAPIEndpoint
	}
	q := url.Values{}
	q.Set("api_key", p.APIKey)
	q.Set("url", target)
	if p.Country != "" {
		q.Set("country", p.Country)
	}
	if renderJS {
		q.Set("render_js", "true")
	}
	return endpoint + "?" + q.Encode()
}
