package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/flatscout/flatscout/internal/model"
)

// Format is an export file format.
type Format string

const (
	// FormatText is the plain text layout.
	FormatText Format = "txt"

	// FormatMarkdown is Markdown.
	FormatMarkdown Format = "md"

	// FormatJSON is the report JSON schema.
	FormatJSON Format = "json"
)

// ParseFormat converts user input into a Format. An empty string selects
// FormatText.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown report format %q: expected txt, md or json", s)
	}
}

// Ext returns the file extension of f without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Writer renders reports.
type Writer interface {
	// Write renders r to the configured output.
	// Returns the number of bytes written and any error encountered.
	Write(r model.Report) (int, error)
}

// NewWriter returns the writer for format f.
func NewWriter(f Format, output io.Writer) (Writer, error) {
	switch f {
	case FormatText:
		return NewSimpleWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", f)
	}
}

// Render returns r rendered in format f.
func Render(r model.Report, f Format) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(f, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(r); err != nil {
		return nil, fmt.Errorf("failed to render report %s: %w", r.ID, err)
	}
	return buf.Bytes(), nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// searchModeText returns the human readable search mode.
func searchModeText(m model.SearchMode) string {
	if m == model.SearchModeFull {
		return "Full search"
	}
	return "Quick search"
}

// matchModeText returns the human readable match mode.
func matchModeText(m model.MatchMode) string {
	switch m {
	case model.MatchModeExact:
		return "Exact (street and house number)"
	case model.MatchModeExtended:
		return "Extended (street in the same area)"
	default:
		return "Exact and extended"
	}
}

// matchTypeText returns the per-match type line of text exports.
func matchTypeText(t model.MatchType) string {
	if t == model.MatchTypeExact {
		return "EXACT MATCH"
	}
	return "Extended match"
}

// dateLayout is the date format of text and Markdown reports.
const dateLayout = "2006-01-02 15:04"
