package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Poller detects file changes by rescanning directories on an interval.
// It is the fallback for directories fsnotify cannot watch.
type Poller struct {
	interval time.Duration
	stopCh   chan struct{}
	once     sync.Once
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPoller creates a poller with the given scan interval.
func NewPoller(interval time.Duration) *Poller {
	return &Poller{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Run scans dirs every interval and calls emit for every file created,
// modified or deleted since the previous scan. The first scan only records
// the baseline. Run blocks until ctx is cancelled or Stop is called.
func (p *Poller) Run(ctx context.Context, dirs []string, emit func(FileEvent)) {
	state := scanDirs(dirs)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			current := scanDirs(dirs)
			for _, event := range diff(state, current) {
				emit(event)
			}
			state = current
		}
	}
}

// Stop ends Run. Safe to call multiple times.
func (p *Poller) Stop() {
	p.once.Do(func() { close(p.stopCh) })
}

// scanDirs records the regular files directly inside dirs. Unreadable
// directories contribute nothing.
func scanDirs(dirs []string) map[string]fileSnapshot {
	state := make(map[string]fileSnapshot)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			state[filepath.Join(dir, entry.Name())] = fileSnapshot{
				modTime: info.ModTime(),
				size:    info.Size(),
			}
		}
	}
	return state
}

// diff returns the events that turn prev into current.
func diff(prev, current map[string]fileSnapshot) []FileEvent {
	now := time.Now()
	var events []FileEvent
	for path, snap := range current {
		old, existed := prev[path]
		switch {
		case !existed:
			events = append(events, FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case old != snap:
			events = append(events, FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range prev {
		if _, ok := current[path]; !ok {
			events = append(events, FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
	return events
}
