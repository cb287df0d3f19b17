// Package output prints search results and diagnostics.
//
// Results go to stdout, as plain paths or as one JSON document. Diagnostics
// go to stderr and are colored only when stderr is a terminal and NO_COLOR
// is unset.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Report is the result of one search.
type Report struct {
	Root    string   `json:"root"`
	Terms   []string `json:"terms"`
	Mode    string   `json:"mode"`
	Matches []string `json:"matches"`
	Skipped int      `json:"skipped"`
}

// Writer prints results to out and diagnostics to errOut.
type Writer struct {
	out    io.Writer
	errOut io.Writer
	format string

	warn  *color.Color
	fail  *color.Color
	ok    *color.Color
	faint *color.Color
}

// New creates a Writer. Colors are enabled when errOut is a terminal.
func New(out, errOut io.Writer, format string) *Writer {
	w := &Writer{
		out:    out,
		errOut: errOut,
		format: format,
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed, color.Bold),
		ok:     color.New(color.FgGreen),
		faint:  color.New(color.Faint),
	}
	w.SetColor(ColorEnabled(errOut))
	return w
}

// ColorEnabled reports whether ANSI colors should be written to f.
func ColorEnabled(f io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	file, ok := f.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetColor forces colors on or off.
func (w *Writer) SetColor(enabled bool) {
	for _, c := range []*color.Color{w.warn, w.fail, w.ok, w.faint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// JSON reports whether results are printed as JSON.
func (w *Writer) JSON() bool {
	return w.format == FormatJSON
}

// Report prints the result of a search.
func (w *Writer) Report(r Report) error {
	if w.JSON() {
		if r.Matches == nil {
			r.Matches = []string{}
		}
		if r.Terms == nil {
			r.Terms = []string{}
		}
		return w.encode(r, true)
	}
	return w.Paths(r.Matches)
}

// Paths prints paths one per line, or as a JSON array.
func (w *Writer) Paths(paths []string) error {
	if w.JSON() {
		if paths == nil {
			paths = []string{}
		}
		return w.encode(paths, true)
	}
	for _, p := range paths {
		if _, err := fmt.Fprintln(w.out, p); err != nil {
			return err
		}
	}
	return nil
}

// Match prints one path found while watching. In JSON mode every match is
// its own line: {"event":"match","path":...}.
func (w *Writer) Match(path string) error {
	if w.JSON() {
		return w.encode(struct {
			Event string `json:"event"`
			Path  string `json:"path"`
		}{"match", path}, false)
	}
	_, err := fmt.Fprintln(w.out, path)
	return err
}

func (w *Writer) encode(v any, indent bool) error {
	enc := json.NewEncoder(w.out)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Skip reports a file or directory that could not be examined.
func (w *Writer) Skip(path string, err error) {
	_, _ = fmt.Fprintf(w.errOut, "%s %s: %v\n", w.faint.Sprint("skip"), path, err)
}

// Warning prints a warning to errOut.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintf(w.errOut, "%s %s\n", w.warn.Sprint("warning:"), msg)
}

// Warningf prints a formatted warning.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an already formatted error to errOut.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprint(w.errOut, w.fail.Sprint(msg))
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		_, _ = fmt.Fprintln(w.errOut)
	}
}

// Success prints a confirmation to errOut.
func (w *Writer) Success(msg string) {
	_, _ = fmt.Fprintf(w.errOut, "%s %s\n", w.ok.Sprint("✓"), msg)
}

// Successf prints a formatted confirmation.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}
