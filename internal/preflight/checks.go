package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nzp/logfind/internal/config"
	apperrors "github.com/nzp/logfind/internal/errors"
	"github.com/nzp/logfind/internal/finder"
)

// CheckRoot checks that the walk root is a directory that can be listed.
func (c *Checker) CheckRoot(root string) CheckResult {
	result := CheckResult{
		Name:     "root",
		Required: true,
	}

	info, err := os.Stat(root)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s: %v", root, err)
		result.Details = "Pass an existing directory with --root"
		return result
	}
	if !info.IsDir() {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a directory", root)
		return result
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot list %s: %v", root, err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%d entries)", root, len(entries))
	return result
}

// CheckPathRegexes checks that the path regex file exists and that every
// regex in it compiles. The regexes are returned for later checks.
func (c *Checker) CheckPathRegexes(configDir, fileName string) ([]string, CheckResult) {
	result := CheckResult{
		Name:     "path_regexes",
		Required: true,
	}
	path := filepath.Join(configDir, fileName)

	regexes, err := config.ListPathRegexes(configDir, fileName)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = suggestion(err)
		return nil, result
	}
	if len(regexes) == 0 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s lists no path regexes; nothing will be searched", path)
		return regexes, result
	}
	if _, err := finder.CompilePaths(regexes); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s: %v", path, err)
		return nil, result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d in %s", len(regexes), path)
	return regexes, result
}

// CheckCandidates walks root and reports how many files the path regexes
// select. Selecting nothing is a warning.
func (c *Checker) CheckCandidates(ctx context.Context, root string, regexes []string) CheckResult {
	result := CheckResult{
		Name: "candidates",
	}

	f, err := finder.New()
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	skipped := 0
	set, err := f.Candidates(ctx, root, regexes, finder.CandidateOptions{
		OnSkip: func(string, error) { skipped++ },
	})
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	switch {
	case set.Len() == 0:
		result.Status = StatusWarn
		result.Message = "no file below the root matches a path regex"
		result.Details = "Check the regexes with the paths command"
	case skipped > 0:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d files, %d directories unreadable", set.Len(), skipped)
		result.Details = "Run with --verbose to list them"
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d files", set.Len())
	}
	return result
}

// CheckLogDir checks that the debug log can be written to dir, or to the
// nearest existing parent it would be created in.
func (c *Checker) CheckLogDir(dir string) CheckResult {
	result := CheckResult{
		Name: "log_dir",
	}

	existing := dir
	for {
		if _, err := os.Stat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}

	f, err := os.CreateTemp(existing, ".preflight-*")
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s is not writable, --debug will fail", existing)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = dir
	return result
}

func suggestion(err error) string {
	var e *apperrors.Error
	if errors.As(err, &e) {
		return e.Suggestion
	}
	return ""
}
