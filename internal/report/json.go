package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/flatscout/flatscout/internal/model"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONWriter outputs reports as JSON documents following report.schema.json.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in JSON format. Nil lists are written as [].
func (w *JSONWriter) Write(r model.Report) (int, error) {
	if r.WebsitesChecked == nil {
		r.WebsitesChecked = []string{}
	}
	if r.Matches == nil {
		r.Matches = []model.Match{}
	}

	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(r, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// ErrInvalidReport is returned by Decode and Validate for documents that
// are not valid reports.
var ErrInvalidReport = errors.New("invalid report document")

//go:embed report.schema.json
var reportSchemaJSON []byte

const reportSchemaName = "report.schema.json"

var reportSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(reportSchemaName, bytes.NewReader(reportSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add report schema: %w", err)
	}
	return compiler.Compile(reportSchemaName)
})

// Validate checks a JSON document against the report schema.
func Validate(data []byte) error {
	schema, err := reportSchema()
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: not valid JSON: %w", ErrInvalidReport, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	return nil
}

// Decode reads one report written by JSONWriter, e.g. for importing an
// export into another archive.
func Decode(r io.Reader) (model.Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.Report{}, fmt.Errorf("failed to read report: %w", err)
	}
	if err := Validate(data); err != nil {
		return model.Report{}, err
	}

	var rep model.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return model.Report{}, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	if rep.MatchesFound != len(rep.Matches) {
		return model.Report{}, fmt.Errorf("%w: matches_found is %d but %d matches are listed",
			ErrInvalidReport, rep.MatchesFound, len(rep.Matches))
	}
	return rep, nil
}
