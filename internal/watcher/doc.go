// Package watcher reports changes to the files in a fixed set of
// directories, for --watch mode.
//
// fsnotify is used where available; directories it cannot watch (network
// mounts, exhausted inotify limits) are polled instead. Events are debounced
// so that a burst of appends to one log file yields a single batch entry.
//
// Usage:
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, dirs) }()
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        // event.Path is absolute
//	    }
//	}
package watcher
