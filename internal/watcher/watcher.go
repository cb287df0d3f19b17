package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was written to.
	OpModify
	// OpDelete indicates a file was removed.
	OpDelete
	// OpRename indicates a file was renamed away; it is gone from its path.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Exists reports whether the file is still at its path after op.
func (op Operation) Exists() bool {
	return op == OpCreate || op == OpModify
}

// FileEvent is a change to one file.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet time before coalesced events are emitted.
	// Default: 200ms
	DebounceWindow time.Duration

	// PollInterval is the scan interval for polled directories.
	// Default: 2s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the reader.
	// Default: 100
	EventBufferSize int

	// ForcePolling polls every directory instead of using fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    2 * time.Second,
		EventBufferSize: 100,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// Watcher watches the files directly inside a set of directories. It does
// not descend into subdirectories.
type Watcher struct {
	opts      Options
	fsWatcher *fsnotify.Watcher
	poller    *Poller
	debouncer *Debouncer

	events chan []FileEvent
	errors chan error
	stopCh chan struct{}

	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// New creates a watcher. If fsnotify cannot be initialized every directory
// is polled.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	w := &Watcher{
		opts:      opts,
		poller:    NewPoller(opts.PollInterval),
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			slog.Warn("fsnotify unavailable, falling back to polling",
				slog.String("error", err.Error()))
		} else {
			w.fsWatcher = fsw
		}
	}
	return w, nil
}

// Start watches dirs until ctx is cancelled or Stop is called. It blocks.
func (w *Watcher) Start(ctx context.Context, dirs []string) error {
	var polled []string
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolve absolute path: %w", err)
		}
		if w.fsWatcher != nil {
			err := w.fsWatcher.Add(abs)
			if err == nil {
				continue
			}
			slog.Debug("polling directory",
				slog.String("path", abs),
				slog.String("error", err.Error()))
		}
		polled = append(polled, abs)
	}

	slog.Debug("watch_started",
		slog.Int("dirs", len(dirs)),
		slog.Int("polled", len(polled)))

	go w.forwardDebouncedEvents(ctx)
	if len(polled) > 0 {
		go w.poller.Run(ctx, polled, w.debouncer.Add)
	}

	var fsEvents chan fsnotify.Event
	var fsErrors chan error
	if w.fsWatcher != nil {
		fsEvents, fsErrors = w.fsWatcher.Events, w.fsWatcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-fsEvents:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-fsErrors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handleFsnotifyEvent converts an fsnotify event and hands it to the
// debouncer. Directory events are dropped.
func (w *Watcher) handleFsnotifyEvent(event fsnotify.Event) {
	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// chmod
		return
	}

	if op.Exists() {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return
		}
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// forwardDebouncedEvents forwards debounced batches to the output channel.
func (w *Watcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) > 0 {
				w.emitEvents(events)
			}
		}
	}
}

// emitEvents sends a batch without blocking. The read lock keeps Stop from
// closing the channel during the send.
func (w *Watcher) emitEvents(events []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.events <- events:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.errors <- err:
	default:
	}
}

// DroppedBatches returns the number of batches dropped because the reader
// fell behind.
func (w *Watcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Events returns the channel of batched file events. It is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors. It is closed by
// Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop stops the watcher and releases resources. Safe to call multiple
// times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	w.poller.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}

	close(w.events)
	close(w.errors)
	return nil
}
