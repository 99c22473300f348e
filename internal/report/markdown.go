package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/flatscout/flatscout/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format, for sharing a search
// result or pasting it into an issue tracker.
type MarkdownWriter struct {
	baseWriter
	location *time.Location
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		location:   time.Local,
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(r model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, r)
	w.writeSummary(md, r)
	w.writeMatches(md, r)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with session information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r model.Report) {
	md.H1("flatscout Search Report")
	md.PlainText("")

	rows := [][]string{
		{"Report", "`" + r.ID + "`"},
		{"Date", r.StartedAt.In(w.location).Format(dateLayout)},
		{"Status", statusText(r.Status)},
		{"Search mode", searchModeText(r.SearchMode)},
		{"Accuracy", matchModeText(r.MatchMode)},
		{"Addresses checked", strconv.Itoa(r.AddressesChecked)},
		{"Websites", strings.Join(r.WebsitesChecked, ", ")},
	}
	if d := r.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Second).String()})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusText(s model.ReportStatus) string {
	switch s {
	case model.StatusCompleted:
		return "✅ Completed"
	case model.StatusStopped:
		return "⏹️ Stopped (partial results)"
	case model.StatusFailed:
		return "❌ Failed"
	default:
		return string(s)
	}
}

// writeSummary writes the match counts, a chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, r model.Report) {
	exact, extended := r.CountByType()

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Match type", "Count"},
		Rows: [][]string{
			{"Exact", strconv.Itoa(exact)},
			{"Extended", strconv.Itoa(extended)},
			{"**Total**", "**" + strconv.Itoa(len(r.Matches)) + "**"},
		},
	})
	md.PlainText("")

	if exact > 0 && extended > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Matches by type"),
			piechart.WithShowData(true),
		)
		chart.LabelAndIntValue("Exact", uint64(exact))
		chart.LabelAndIntValue("Extended", uint64(extended))
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case r.Status == model.StatusFailed:
		md.Cautionf("The search failed: %s.", cmpOr(r.Error, "no website could be searched"))
	case r.Status == model.StatusStopped:
		md.Warningf("The search was stopped early. %d match(es) were found before it ended.", len(r.Matches))
	case exact > 0:
		md.Importantf("%d exact match(es) found.", exact)
	case extended > 0:
		md.Note("Only extended matches found. Check the house numbers on the listing pages.")
	default:
		md.Tip("No listing matched a tracked address.")
	}
	md.PlainText("")
}

// writeMatches writes a table of all matches.
func (w *MarkdownWriter) writeMatches(md *markdown.Markdown, r model.Report) {
	md.H2("Matches")
	md.PlainText("")

	if len(r.Matches) == 0 {
		md.PlainText("No matches found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(r.Matches))
	for i, m := range r.Matches {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			m.MatchType.Label(),
			cell(m.AddressDisplay),
			cell(cmpOr(m.WebsiteName, m.Website)),
			cell(truncateString(m.ListingTitle, 60)),
			markdown.Link("open", m.ListingURL),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Type", "Address", "Website", "Title", "Listing"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by flatscout*")
}

// cell makes s safe for a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.Join(strings.Fields(s), " ")
	return orDash(s)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
