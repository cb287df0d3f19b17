package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestOperation_Exists(t *testing.T) {
	assert.True(t, OpCreate.Exists())
	assert.True(t, OpModify.Exists())
	assert.False(t, OpDelete.Exists())
	assert.False(t, OpRename.Exists())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{DebounceWindow: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, opts.DebounceWindow)
	assert.Equal(t, DefaultOptions().PollInterval, opts.PollInterval)
	assert.Equal(t, DefaultOptions().EventBufferSize, opts.EventBufferSize)
}

// collect reads batches until want has been seen or the deadline passes.
func collect(t *testing.T, w *Watcher, want string) FileEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events channel closed")
			for _, e := range batch {
				if e.Path == want {
					return e
				}
			}
		case <-deadline:
			t.Fatalf("no event for %s", want)
			return FileEvent{}
		}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	for _, polling := range []bool{false, true} {
		name := "fsnotify"
		if polling {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			// Given: a watched directory with one log
			dir := t.TempDir()
			logPath := filepath.Join(dir, "auth.log")
			require.NoError(t, os.WriteFile(logPath, []byte("start\n"), 0o644))

			w, err := New(Options{
				DebounceWindow: 20 * time.Millisecond,
				PollInterval:   20 * time.Millisecond,
				ForcePolling:   polling,
			})
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- w.Start(ctx, []string{dir}) }()
			time.Sleep(100 * time.Millisecond)

			// When: a new file appears
			created := filepath.Join(dir, "mail.log")
			require.NoError(t, os.WriteFile(created, []byte("postfix\n"), 0o644))

			// Then: it is reported as existing
			e := collect(t, w, created)
			assert.True(t, e.Operation.Exists())

			// When: the context ends
			cancel()

			// Then: Start returns and the channels close
			assert.ErrorIs(t, <-done, context.Canceled)
			_, ok := <-w.Errors()
			assert.False(t, ok)
		})
	}
}

func TestWatcher_IgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{DebounceWindow: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx, []string{dir}) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "apt"), 0o755))
	marker := filepath.Join(dir, "marker")
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	// The first batch that arrives must not contain the directory.
	select {
	case batch := <-w.Events():
		for _, e := range batch {
			assert.NotEqual(t, filepath.Join(dir, "apt"), e.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no events")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	assert.Zero(t, w.DroppedBatches())
}
