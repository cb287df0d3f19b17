package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

// followInterval is how often Follow polls the log for new lines.
const followInterval = 100 * time.Millisecond

// maxLineSize bounds a single log line.
const maxLineSize = 1024 * 1024

// Entry is one parsed line of the JSON debug log.
type Entry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs map[string]any
	// Raw is the original line.
	Raw string
	// Valid is false when the line is not JSON; only Raw is set then.
	Valid bool
}

// ViewerConfig filters and styles log output.
type ViewerConfig struct {
	// Level hides entries below it. Empty shows everything.
	Level string
	// Pattern hides lines it does not match. May be nil.
	Pattern *regexp.Regexp
	// Color enables ANSI colors.
	Color bool
}

// Viewer reads the debug log back for the logs subcommand.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
	levels map[string]*color.Color
}

// NewViewer creates a viewer printing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	levels := map[string]*color.Color{
		"DEBUG": color.New(color.FgHiBlack),
		"INFO":  color.New(color.FgGreen),
		"WARN":  color.New(color.FgYellow),
		"ERROR": color.New(color.FgRed),
	}
	for _, c := range levels {
		if cfg.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return &Viewer{config: cfg, out: out, levels: levels}
}

// Tail returns the entries among the last n lines of path that pass the
// filters.
func (v *Viewer) Tail(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if n <= 0 {
		return nil, nil
	}

	// Ring buffer of the last n lines.
	ring := make([]string, n)
	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	start := 0
	if count > n {
		start = count - n
	}
	var entries []Entry
	for i := start; i < count; i++ {
		entry := ParseLine(ring[i%n])
		if v.matches(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Follow calls fn for every new line appended to path until ctx is done.
func (v *Viewer) Follow(ctx context.Context, path string, fn func(Entry)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReader(f)
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	var partial strings.Builder
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for {
			chunk, err := reader.ReadString('\n')
			partial.WriteString(chunk)
			if err != nil {
				// Incomplete line: wait for the rest.
				break
			}
			line := strings.TrimSuffix(partial.String(), "\n")
			partial.Reset()
			if line == "" {
				continue
			}
			if entry := ParseLine(line); v.matches(entry) {
				fn(entry)
			}
		}
	}
}

// ParseLine parses one JSON log line as written by Setup.
func ParseLine(line string) Entry {
	entry := Entry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.Valid = true

	if t, ok := data[slogTimeKey].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	entry.Level, _ = data[slogLevelKey].(string)
	entry.Msg, _ = data[slogMsgKey].(string)

	delete(data, slogTimeKey)
	delete(data, slogLevelKey)
	delete(data, slogMsgKey)
	entry.Attrs = data
	return entry
}

const (
	slogTimeKey  = "time"
	slogLevelKey = "level"
	slogMsgKey   = "msg"
)

// FormatEntry renders an entry as "15:04:05.000 LEVEL msg key=value ...",
// with attributes sorted by key.
func (v *Viewer) FormatEntry(entry Entry) string {
	if !entry.Valid {
		return entry.Raw
	}

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.formatLevel(entry.Level))
	b.WriteByte(' ')
	b.WriteString(entry.Msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Attrs[k])
	}
	return b.String()
}

// Print writes entries to the viewer's output, one per line.
func (v *Viewer) Print(entries []Entry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

func (v *Viewer) matches(entry Entry) bool {
	if v.config.Level != "" && entry.Valid {
		if ParseLevel(entry.Level) < ParseLevel(v.config.Level) {
			return false
		}
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

func (v *Viewer) formatLevel(level string) string {
	label := strings.ToUpper(level)
	if len(label) > 5 {
		label = label[:5]
	}
	padded := fmt.Sprintf("%-5s", label)
	if c, ok := v.levels[label]; ok {
		return c.Sprint(padded)
	}
	return padded
}
