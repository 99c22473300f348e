// Package scraper fetches listings from property websites.
//
// Each website is described by a SiteDef: category URL templates, CSS
// selectors for listing cards and per-city URL parameters. HTMLScraper turns
// a SiteDef into a Scraper using colly for fetching and goquery selections
// for extraction. Page requests are paced with a rate limiter and stop after
// consecutive empty pages.
//
// Sites protected by anti-bot services can be routed through a ScrapeOps
// style proxy API, and all traffic can optionally go through a SOCKS5 proxy.
package scraper
