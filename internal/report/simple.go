package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/flatscout/flatscout/internal/model"
)

const (
	ruleWidth      = 60
	matchRuleWidth = 50
)

// SimpleWriter outputs plain text reports: a header block with the session
// facts, one block per match, and an end marker.
type SimpleWriter struct {
	baseWriter

	// location is the time zone dates are printed in.
	location *time.Location

	// verbose adds the match time and session errors.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithLocation prints dates in loc instead of the local time zone.
func WithLocation(loc *time.Location) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if loc != nil {
			w.location = loc
		}
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		location:   time.Local,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in plain text.
func (w *SimpleWriter) Write(r model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, r)
	w.writeMatches(&sb, r)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func banner(sb *strings.Builder, title string) {
	rule := strings.Repeat("=", ruleWidth)
	pad := max((ruleWidth-len(title))/2, 0)
	sb.WriteString(rule + "\n")
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	sb.WriteString(rule + "\n")
}

// writeHeader writes the session facts.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, r model.Report) {
	banner(sb, "FLATSCOUT - SEARCH REPORT")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Date: %s\n", r.StartedAt.In(w.location).Format(dateLayout))
	fmt.Fprintf(sb, "Status: %s\n", r.Status)
	fmt.Fprintf(sb, "Addresses checked: %d\n", r.AddressesChecked)
	fmt.Fprintf(sb, "Matches found: %d\n", len(r.Matches))
	fmt.Fprintf(sb, "Search mode: %s\n", searchModeText(r.SearchMode))
	fmt.Fprintf(sb, "Accuracy: %s\n", matchModeText(r.MatchMode))
	if len(r.WebsitesChecked) > 0 {
		fmt.Fprintf(sb, "Websites: %s\n", strings.Join(r.WebsitesChecked, ", "))
	}
	if w.verbose {
		if d := r.Duration(); d > 0 {
			fmt.Fprintf(sb, "Duration: %s\n", d.Round(time.Second))
		}
		if r.Error != "" {
			fmt.Fprintf(sb, "Error: %s\n", r.Error)
		}
	}
	sb.WriteString("\n")
}

// writeMatches writes one block per match.
func (w *SimpleWriter) writeMatches(sb *strings.Builder, r model.Report) {
	banner(sb, "MATCHED LISTINGS")
	sb.WriteString("\n")

	if len(r.Matches) == 0 {
		sb.WriteString("No matches found.\n\n")
		return
	}

	rule := strings.Repeat("-", matchRuleWidth)
	for i, m := range r.Matches {
		sb.WriteString(rule + "\n")
		fmt.Fprintf(sb, "Match #%d\n", i+1)
		sb.WriteString(rule + "\n")
		fmt.Fprintf(sb, "Address: %s\n", orDash(m.AddressDisplay))
		fmt.Fprintf(sb, "Website: %s\n", orDash(cmpOr(m.WebsiteName, m.Website)))
		fmt.Fprintf(sb, "Type: %s\n", matchTypeText(m.MatchType))
		fmt.Fprintf(sb, "Title: %s\n", orDash(m.ListingTitle))
		fmt.Fprintf(sb, "URL: %s\n", orDash(m.ListingURL))
		if w.verbose && !m.FoundAt.IsZero() {
			fmt.Fprintf(sb, "Found: %s\n", m.FoundAt.In(w.location).Format(dateLayout))
		}
		sb.WriteString("\n")
	}
}

// writeFooter writes the end marker.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	banner(sb, "END")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
