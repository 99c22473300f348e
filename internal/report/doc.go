// Package report renders and exports archived search reports.
//
// Writers render a model.Report in one format:
//   - SimpleWriter: plain text, the default export format
//   - MarkdownWriter: Markdown with a match table and a match type chart
//   - JSONWriter: the report's JSON schema, readable by Decode
//
// Export looks a report up in an archive, asks a Destination where to
// write it and writes the file. A destination that declines returns
// ErrCancelled, which Export passes through unchanged; I/O failures are
// returned as *ExportError.
package report
