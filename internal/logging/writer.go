package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// RotatingWriter is an io.Writer that rotates its file by size:
// app.log -> app.log.1 -> ... -> app.log.<maxFiles>, oldest dropped.
//
// Several processes may log to the same file; rotation is serialized
// through an exclusive lock on <path>.lock.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int
	lock     *flock.Flock

	mu      sync.Mutex
	file    *os.File
	written int64
}

// NewRotatingWriter opens path for appending, creating its directory.
// maxSize is in bytes; a non-empty file is rotated before a write would
// take it past maxSize.
func NewRotatingWriter(path string, maxSize int64, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		maxSize:  maxSize,
		maxFiles: maxFiles,
		lock:     flock.New(path + ".lock"),
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer with automatic rotation and syncs after each
// write so that `logs -f` sees records immediately.
func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written > 0 && w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			// Keep logging to whatever file is open.
			_, _ = fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}
	if w.file == nil {
		return 0, fmt.Errorf("log file %s is closed", w.path)
	}

	n, err = w.file.Write(p)
	w.written += int64(n)
	if err == nil {
		_ = w.file.Sync()
	}
	return n, err
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Sync flushes the file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Sync()
	}
	return nil
}

func (w *RotatingWriter) openFile() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.file = f
	w.written = info.Size()
	return nil
}

// rotate shifts the numbered files up by one and starts a new file. If
// another process rotated while this one waited for the lock, the new file
// is simply reopened.
func (w *RotatingWriter) rotate() error {
	if err := w.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire rotation lock: %w", err)
	}
	defer func() { _ = w.lock.Unlock() }()

	current, err := w.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	w.file = nil

	if onDisk, err := os.Stat(w.path); err == nil && !os.SameFile(current, onDisk) {
		return w.openFile()
	}

	_ = os.Remove(w.numbered(w.maxFiles))
	for n := w.maxFiles - 1; n >= 1; n-- {
		_ = os.Rename(w.numbered(n), w.numbered(n+1))
	}
	if w.maxFiles > 0 {
		if err := os.Rename(w.path, w.numbered(1)); err != nil && !os.IsNotExist(err) {
			_ = w.openFile()
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	} else {
		_ = os.Remove(w.path)
	}

	return w.openFile()
}

func (w *RotatingWriter) numbered(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}
