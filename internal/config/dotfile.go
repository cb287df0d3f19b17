package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/nzp/logfind/internal/errors"
)

// commentPrefix starts a line that ListPathRegexes ignores.
const commentPrefix = "#"

// ListPathRegexes reads the path regexes stored one per line in
// configDir/fileName. Lines are trimmed; blank lines and lines starting with
// "#" are skipped. Order is preserved.
//
// A missing file fails with errors.ErrConfigNotFound.
func ListPathRegexes(configDir, fileName string) ([]string, error) {
	path := filepath.Join(configDir, fileName)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.New(apperrors.ErrCodeConfigNotFound,
				fmt.Sprintf("path regex file not found: %s", path), err).
				WithDetail("path", path).
				WithSuggestion(fmt.Sprintf("create %s with one path regex per line, e.g. %q", path, `/var/log/.*\.log$`))
		}
		return nil, apperrors.ConfigError(fmt.Sprintf("failed to open %s", path), err).
			WithDetail("path", path)
	}
	defer f.Close()

	regexes, err := ParsePathRegexes(f)
	if err != nil {
		return nil, apperrors.ConfigError(fmt.Sprintf("failed to read %s", path), err).
			WithDetail("path", path)
	}
	return regexes, nil
}

// ParsePathRegexes parses path regexes from r with the rules of
// ListPathRegexes. It does not compile them.
func ParsePathRegexes(r io.Reader) ([]string, error) {
	regexes := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		regexes = append(regexes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return regexes, nil
}

// dotfileHeader opens a path regex file created by InitPathRegexes.
const dotfileHeader = `# One path regex per line. Blank lines and lines starting with # are
# ignored. Absolute regexes match absolute paths, relative ones match
# paths below the walk root. Each "/" separated segment prunes one
# directory level, so a segment cannot span several directories.
`

// InitPathRegexes creates configDir/fileName holding a short header and
// examples, one per line. An existing file is left untouched. It returns the
// path and whether the file was created.
func InitPathRegexes(configDir, fileName string, examples []string) (string, bool, error) {
	path := filepath.Join(configDir, fileName)
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}

	var sb strings.Builder
	sb.WriteString(dotfileHeader)
	for _, ex := range examples {
		sb.WriteString(ex)
		sb.WriteString("\n")
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", false, apperrors.ConfigError(fmt.Sprintf("failed to create %s", configDir), err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", false, apperrors.ConfigError(fmt.Sprintf("failed to write %s", path), err).
			WithDetail("path", path)
	}
	return path, true, nil
}
