package scraper

import (
	"errors"
	"net/url"
	"testing"
)

func TestCitySlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		city string
		want string
	}{
		{city: "Berlin", want: "berlin"},
		{city: "München", want: "muenchen"},
		{city: "Frankfurt am Main", want: "frankfurt-am-main"},
		{city: "  Köln ", want: "koeln"},
	}
	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			t.Parallel()
			if got := CitySlug(tt.city); got != tt.want {
				t.Errorf("CitySlug(%q) = %q, want %q", tt.city, got, tt.want)
			}
		})
	}
}

func TestSiteDef_pageURL(t *testing.T) {
	t.Parallel()

	def := SiteDef{
		ID:      "wg-gesucht",
		Name:    "WG-Gesucht.de",
		BaseURL: "https://www.wg-gesucht.de",
		Categories: []Category{{
			URL: "/wohnungen-in-{city}.{city_id}.1.{page0}.html",
		}},
		Params:   map[string]map[string]string{"city_id": {"berlin": "8", "muenchen": "90"}},
		Required: []string{"city_id"},
		Item:     "div.offer_list_item",
	}

	t.Run("first page", func(t *testing.T) {
		t.Parallel()
		got, err := def.pageURL(def.Categories[0], "München", 1)
		if err != nil {
			t.Fatalf("pageURL() error = %v", err)
		}
		if want := "https://www.wg-gesucht.de/wohnungen-in-muenchen.90.1.0.html"; got != want {
			t.Errorf("pageURL() = %q, want %q", got, want)
		}
	})

	t.Run("zero based page", func(t *testing.T) {
		t.Parallel()
		got, err := def.pageURL(def.Categories[0], "Berlin", 3)
		if err != nil {
			t.Fatalf("pageURL() error = %v", err)
		}
		if want := "https://www.wg-gesucht.de/wohnungen-in-berlin.8.1.2.html"; got != want {
			t.Errorf("pageURL() = %q, want %q", got, want)
		}
	})

	t.Run("unsupported city", func(t *testing.T) {
		t.Parallel()
		_, err := def.pageURL(def.Categories[0], "Ulm", 1)
		if !errors.Is(err, ErrUnsupportedCity) {
			t.Errorf("pageURL() error = %v, want ErrUnsupportedCity", err)
		}
	})

	t.Run("page template after first page", func(t *testing.T) {
		t.Parallel()
		ka := SiteDef{
			BaseURL: "https://www.kleinanzeigen.de",
			Categories: []Category{{
				URL:     "/s-wohnung-mieten/{city}/c203{location}",
				PageURL: "/s-wohnung-mieten/{city}/seite:{page}/c203{location}",
			}},
			Params: map[string]map[string]string{"location": {"berlin": "l3331"}},
		}
		first, err := ka.pageURL(ka.Categories[0], "Hamburg", 1)
		if err != nil {
			t.Fatalf("pageURL() error = %v", err)
		}
		if want := "https://www.kleinanzeigen.de/s-wohnung-mieten/hamburg/c203"; first != want {
			t.Errorf("pageURL(1) = %q, want %q", first, want)
		}
		second, err := ka.pageURL(ka.Categories[0], "Berlin", 2)
		if err != nil {
			t.Fatalf("pageURL() error = %v", err)
		}
		if want := "https://www.kleinanzeigen.de/s-wohnung-mieten/berlin/seite:2/c203l3331"; second != want {
			t.Errorf("pageURL(2) = %q, want %q", second, want)
		}
	})
}

func TestSiteDef_IsEnabled(t *testing.T) {
	t.Parallel()

	on, off := true, false
	if !(SiteDef{}).IsEnabled() {
		t.Error("nil Enabled should mean enabled")
	}
	if !(SiteDef{Enabled: &on}).IsEnabled() {
		t.Error("Enabled=true should be enabled")
	}
	if (SiteDef{Enabled: &off}).IsEnabled() {
		t.Error("Enabled=false should be disabled")
	}
}

func TestProxyAPI_Wrap(t *testing.T) {
	t.Parallel()

	p := &ProxyAPI{APIKey: "k", Country: "de"}
	raw := p.Wrap("https://www.immowelt.de/suche/berlin?x=1", true)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("Wrap() returned invalid url %q: %v", raw, err)
	}
	if got := u.Scheme + "://" + u.Host + u.Path; got != DefaultProxyAPIEndpoint {
		t.Errorf("endpoint = %q, want %q", got, DefaultProxyAPIEndpoint)
	}
	q := u.Query()
	if q.Get("api_key") != "k" || q.Get("country") != "de" || q.Get("render_js") != "true" {
		t.Errorf("query = %v", q)
	}
	if q.Get("url") != "https://www.immowelt.de/suche/berlin?x=1" {
		t.Errorf("url = %q", q.Get("url"))
	}

	var nilProxy *ProxyAPI
	if nilProxy.Enabled() {
		t.Error("nil proxy should not be enabled")
	}
}
