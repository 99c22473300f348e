package report

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flatscout/flatscout/internal/archive"
	"github.com/flatscout/flatscout/internal/model"
)

var (
	// ErrExport matches every *ExportError with errors.Is.
	ErrExport = errors.New("export failed")

	// ErrCancelled is returned when the user declines to pick a
	// destination. It is not a failure.
	ErrCancelled = errors.New("export cancelled")
)

// ExportError is returned when an export file cannot be written.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("failed to export report to %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *ExportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrExport.
func (e *ExportError) Is(target error) bool { return target == ErrExport }

// Destination chooses the file an export is written to.
type Destination interface {
	// Path returns the file to write. suggested is a file name without a
	// directory. It returns ErrCancelled when the user declines.
	Path(ctx context.Context, suggested string) (string, error)
}

// FileName returns the suggested file name of an export of r,
// e.g. "flatscout-report-2026-10-19_14-05.txt".
func FileName(r model.Report, f Format) string {
	return "flatscout-report-" + r.StartedAt.Local().Format("2006-01-02_15-04") + "." + f.Ext()
}

// Export writes the report id from arch to the file chosen by dest and
// returns the path written.
//
// An unknown id returns an error matching archive.ErrNotFound. A declined
// destination returns ErrCancelled. Failing to write returns an *ExportError.
func Export(ctx context.Context, arch archive.Archive, id string, dest Destination, f Format) (string, error) {
	r, err := arch.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to load report %s: %w", id, err)
	}

	data, err := Render(r, f)
	if err != nil {
		return "", err
	}

	path, err := dest.Path(ctx, FileName(r, f))
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	return path, nil
}

// FixedDestination writes to a fixed path. If the path is an existing
// directory, the suggested file name is used inside it.
type FixedDestination string

// Path implements Destination.
func (d FixedDestination) Path(_ context.Context, suggested string) (string, error) {
	path := string(d)
	if path == "" {
		return suggested, nil
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, suggested), nil
	}
	return path, nil
}

// PromptDestination asks the user for the export path on a terminal.
// An empty answer accepts the suggestion, "n" or end of input cancels.
type PromptDestination struct {
	In  io.Reader
	Out io.Writer

	// Dir is the directory of the suggested path. Empty means the
	// current directory.
	Dir string
}

// Path implements Destination.
func (d PromptDestination) Path(_ context.Context, suggested string) (string, error) {
	def := suggested
	if d.Dir != "" {
		def = filepath.Join(d.Dir, suggested)
	}
	fmt.Fprintf(d.Out, "Save report to [%s] (n to cancel): ", def)

	line, err := bufio.NewReader(d.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read destination: %w", err)
	}
	answer := strings.TrimSpace(line)
	switch {
	case errors.Is(err, io.EOF) && answer == "":
		return "", ErrCancelled
	case strings.EqualFold(answer, "n"), strings.EqualFold(answer, "no"):
		return "", ErrCancelled
	case answer == "":
		return def, nil
	}

	if info, err := os.Stat(answer); err == nil && info.IsDir() {
		return filepath.Join(answer, suggested), nil
	}
	return answer, nil
}
