package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_WritesRequestedProfiles(t *testing.T) {
	// Given: both profiles requested
	dir := t.TempDir()
	cfg := Config{
		CPUPath:  filepath.Join(dir, "cpu.prof"),
		HeapPath: filepath.Join(dir, "heap.prof"),
	}
	require.True(t, cfg.Enabled())

	// When: running some work between Start and Stop
	p, err := Start(cfg)
	require.NoError(t, err)
	sum := 0
	for i := 0; i < 1000000; i++ {
		sum += i
	}
	_ = sum
	require.NoError(t, p.Stop())

	// Then: both files exist and are not empty
	for _, path := range []string{cfg.CPUPath, cfg.HeapPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0), path)
	}
}

func TestStart_NothingRequested(t *testing.T) {
	cfg := Config{}
	assert.False(t, cfg.Enabled())

	p, err := Start(cfg)
	require.NoError(t, err)
	assert.NoError(t, p.Stop())
}

func TestStart_BadPath(t *testing.T) {
	_, err := Start(Config{CPUPath: filepath.Join(t.TempDir(), "missing", "cpu.prof")})

	assert.Error(t, err)
}

func TestWriteHeap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")

	require.NoError(t, WriteHeap(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestMemStats(t *testing.T) {
	stats := MemStats()
	assert.Greater(t, stats.Alloc, uint64(0))
	assert.Greater(t, stats.TotalAlloc, uint64(0))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    uint64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}
