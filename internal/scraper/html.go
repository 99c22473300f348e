package scraper

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/flatscout/flatscout/internal/model"
)

// Defaults for HTMLScraper.
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultRequestTimeout = 20 * time.Second
	DefaultPageDelay      = 1500 * time.Millisecond
	DefaultEmptyPageLimit = 2
)

// HTMLScraper scrapes a website described by a SiteDef.
type HTMLScraper struct {
	def SiteDef

	// transport is used for every page request. nil means the colly default.
	transport http.RoundTripper

	userAgent string
	timeout   time.Duration

	// delay is the minimum time between two page requests of one Fetch.
	delay time.Duration

	// emptyPageLimit ends a category after this many consecutive pages
	// without new listings.
	emptyPageLimit int

	proxyAPI *ProxyAPI
	logger   *slog.Logger
}

// Option configures an HTMLScraper.
type Option func(*HTMLScraper)

// WithTransport sets the HTTP transport, e.g. one from NewTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *HTMLScraper) {
		s.transport = rt
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *HTMLScraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithRequestTimeout sets the timeout of a single page request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *HTMLScraper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPageDelay sets the pause between page requests. Zero disables pacing.
func WithPageDelay(d time.Duration) Option {
	return func(s *HTMLScraper) {
		s.delay = max(d, 0)
	}
}

// WithEmptyPageLimit sets how many consecutive empty pages end a category.
func WithEmptyPageLimit(n int) Option {
	return func(s *HTMLScraper) {
		if n > 0 {
			s.emptyPageLimit = n
		}
	}
}

// WithProxyAPI sets the proxy API used by sites that ask for it.
func WithProxyAPI(p *ProxyAPI) Option {
	return func(s *HTMLScraper) {
		s.proxyAPI = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *HTMLScraper) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHTMLScraper returns a scraper for def.
func NewHTMLScraper(def SiteDef, opts ...Option) (*HTMLScraper, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	s := &HTMLScraper{
		def:            def,
		userAgent:      DefaultUserAgent,
		timeout:        DefaultRequestTimeout,
		delay:          DefaultPageDelay,
		emptyPageLimit: DefaultEmptyPageLimit,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("site", def.ID)
	return s, nil
}

// ID returns the site id.
func (s *HTMLScraper) ID() string { return s.def.ID }

// Name returns the site display name.
func (s *HTMLScraper) Name() string { return s.def.Name }

// Note returns the site note.
func (s *HTMLScraper) Note() string { return s.def.Note }

// Fetch returns the site's listings for req.City.
//
// Categories are scraped one after another, each page by page until
// req.MaxPages is reached or the site stops returning new listings. A
// failing category is logged and skipped. The sequence ends with an error
// only when no page of any category could be fetched.
func (s *HTMLScraper) Fetch(ctx context.Context, req Request) iter.Seq2[model.RawListing, error] {
	return func(yield func(model.RawListing, error) bool) {
		if s.def.Proxy == ProxyScrapeOps && !s.proxyAPI.Enabled() {
			yield(model.RawListing{}, fmt.Errorf("%w: %s: %w", ErrSiteUnavailable, s.def.Name, ErrMissingAPIKey))
			return
		}

		limit := rate.Inf
		if s.delay > 0 {
			limit = rate.Every(s.delay)
		}
		limiter := rate.NewLimiter(limit, 1)

		seen := make(map[string]struct{})
		var (
			fetched bool
			lastErr error
		)

		for _, cat := range s.def.Categories {
			empty := 0
			for page := 1; req.MaxPages == 0 || page <= req.MaxPages; page++ {
				if ctx.Err() != nil {
					return
				}

				target, err := s.def.pageURL(cat, req.City, page)
				if err != nil {
					yield(model.RawListing{}, err)
					return
				}

				if err := limiter.Wait(ctx); err != nil {
					return
				}
				if req.OnPage != nil {
					req.OnPage(page, req.MaxPages)
				}

				listings, err := s.scrapePage(ctx, target)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Debug("page failed", "category", cat.Name, "page", page, "error", err)
					lastErr = err
					break
				}
				fetched = true

				fresh := 0
				for _, l := range listings {
					if _, dup := seen[l.URL]; dup {
						continue
					}
					seen[l.URL] = struct{}{}
					fresh++
					if ctx.Err() != nil {
						return
					}
					if !yield(l, nil) {
						return
					}
				}

				if fresh > 0 {
					empty = 0
					continue
				}
				empty++
				if empty >= s.emptyPageLimit {
					break
				}
			}
		}

		if !fetched && lastErr != nil {
			yield(model.RawListing{}, lastErr)
		}
	}
}

// scrapePage fetches one result page and extracts its listing cards.
func (s *HTMLScraper) scrapePage(ctx context.Context, target string) ([]model.RawListing, error) {
	pageURL, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSiteUnavailable, target, err)
	}

	visit := target
	if s.def.Proxy == ProxyScrapeOps {
		visit = s.proxyAPI.Wrap(target, s.def.RenderJS)
	}

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	if s.transport != nil {
		c.WithTransport(s.transport)
	}
	c.SetRequestTimeout(s.timeout)

	var (
		listings []model.RawListing
		fetchErr error
	)
	c.OnHTML(s.def.Item, func(e *colly.HTMLElement) {
		if l, ok := s.extract(pageURL, e.DOM); ok {
			listings = append(listings, l)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("%w: %s: status %d: %w", ErrSiteUnavailable, target, r.StatusCode, err)
	})

	if err := c.Visit(visit); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("%w: %s: %w", ErrSiteUnavailable, target, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	return listings, nil
}

// extract turns one listing card into a RawListing.
func (s *HTMLScraper) extract(pageURL *url.URL, card *goquery.Selection) (model.RawListing, bool) {
	link := card
	switch {
	case s.def.Link != "":
		link = card.Find(s.def.Link).First()
	case goquery.NodeName(card) != "a":
		link = card.Find("a[href]").First()
	}

	href, ok := link.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") {
		return model.RawListing{}, false
	}
	if s.def.LinkContains != "" && !strings.Contains(href, s.def.LinkContains) {
		return model.RawListing{}, false
	}
	u, err := pageURL.Parse(href)
	if err != nil {
		return model.RawListing{}, false
	}
	u.Fragment = ""
	if s.def.StripQuery {
		u.RawQuery = ""
	}

	title := ""
	if s.def.Title != "" {
		title = collapse(card.Find(s.def.Title).First().Text())
	}
	if title == "" {
		title = collapse(link.Text())
	}
	if !s.def.keepTitle(title) {
		return model.RawListing{}, false
	}

	address := ""
	if s.def.Address != "" {
		address = collapse(card.Find(s.def.Address).First().Text())
	}
	if address == "" {
		address = collapse(card.Text())
	}

	return model.RawListing{
		Title:       title,
		URL:         u.String(),
		Address:     address,
		Website:     s.def.ID,
		WebsiteName: s.def.Name,
	}, true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
