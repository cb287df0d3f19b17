// Package profiling writes pprof profiles of a single command run.
package profiling

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
)

// Config names the profile files to write. Empty paths are skipped.
type Config struct {
	CPUPath  string
	HeapPath string
}

// Enabled reports whether any profile was requested.
func (c Config) Enabled() bool {
	return c.CPUPath != "" || c.HeapPath != ""
}

// Profiler collects the profiles of one run. Stop must be called once the
// run completes.
type Profiler struct {
	cfg     Config
	cpuFile *os.File
}

// Start begins CPU profiling if requested. The heap profile is a snapshot
// taken by Stop.
func Start(cfg Config) (*Profiler, error) {
	p := &Profiler{cfg: cfg}
	if cfg.CPUPath == "" {
		return p, nil
	}

	f, err := os.Create(cfg.CPUPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	p.cpuFile = f
	return p, nil
}

// Stop flushes the CPU profile and writes the heap profile.
func (p *Profiler) Stop() error {
	var errs []error
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close CPU profile: %w", err))
		}
		slog.Debug("profile_written", slog.String("kind", "cpu"), slog.String("path", p.cfg.CPUPath))
		p.cpuFile = nil
	}
	if p.cfg.HeapPath != "" {
		if err := WriteHeap(p.cfg.HeapPath); err != nil {
			errs = append(errs, err)
		} else {
			stats := MemStats()
			slog.Debug("profile_written",
				slog.String("kind", "heap"),
				slog.String("path", p.cfg.HeapPath),
				slog.String("heap_alloc", FormatBytes(stats.HeapAlloc)))
		}
	}
	return errors.Join(errs...)
}

// WriteHeap writes a heap profile to path.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Up-to-date statistics need a collection first.
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}

// MemStats returns current memory statistics.
func MemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// FormatBytes formats bytes into human-readable form.
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
