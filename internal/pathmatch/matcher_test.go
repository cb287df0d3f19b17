package pathmatch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nzp/logfind/internal/errors"
)

// logTree mirrors a typical /var/log layout.
var logTree = map[string]string{
	"var/log/apport.log":       "apport\n",
	"var/log/alternatives.log": "update-alternatives\n",
	"var/log/auth.log":         "sshd\n",
	"var/log/apt/term.log":     "term\n",
	"var/log/apt/history.log":  "history\n",
	"var/log/Xorg.0.log":       "X.Org\n",
	"var/log/Xorg.1.log":       "X.Org\n",
	"var/log/mail.log":         "postfix\n",
	"var/log/mail.log.1":       "postfix\n",
	"var/log/syslog":           "kernel\n",
	"var/lib/apt/lists/a.log":  "lists\n",
	"usr/share/doc/a.log":      "doc\n",
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func abs(root string, rel ...string) []string {
	out := make([]string, 0, len(rel))
	for _, r := range rel {
		out = append(out, filepath.Join(root, filepath.FromSlash(r)))
	}
	return out
}

// naiveFind matches every file below root against the complete pattern
// without any pruning.
func naiveFind(t *testing.T, root string, p *Pattern) Set {
	t.Helper()
	found := make(Set)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if p.Match(root, path) {
			found.Add(path)
		}
		return nil
	})
	require.NoError(t, err)
	return found
}

func TestFindPaths_RelativePatterns(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, logTree)

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{
			name:    "a-prefixed logs stay at their level",
			pattern: `var/log/a.*\.log$`,
			want:    []string{"var/log/alternatives.log", "var/log/apport.log", "var/log/auth.log"},
		},
		{
			name:    "numbered Xorg logs",
			pattern: `var/log/Xorg\.\d+\.log$`,
			want:    []string{"var/log/Xorg.0.log", "var/log/Xorg.1.log"},
		},
		{
			name:    "rotated mail log",
			pattern: `var/log/m.*\.\d$`,
			want:    []string{"var/log/mail.log.1"},
		},
		{
			name:    "subdirectory reached through an explicit segment",
			pattern: `var/log/apt/.*\.log$`,
			want:    []string{"var/log/apt/history.log", "var/log/apt/term.log"},
		},
		{
			name:    "wildcard directory segment",
			pattern: `var/.*/a.*\.log$`,
			want:    []string{"var/log/alternatives.log", "var/log/apport.log", "var/log/auth.log"},
		},
		{
			name:    "class excluding the separator",
			pattern: `var/log/[^/]*\.log$`,
			want: []string{
				"var/log/Xorg.0.log", "var/log/Xorg.1.log", "var/log/alternatives.log",
				"var/log/apport.log", "var/log/auth.log", "var/log/mail.log",
			},
		},
		{
			name:    "class holding the separator",
			pattern: `var/log/[[:alpha:]/]+\.log$`,
			want:    []string{"var/log/alternatives.log", "var/log/apport.log", "var/log/auth.log", "var/log/mail.log"},
		},
		{
			name:    "escaped separators",
			pattern: `var\/log\/auth\.log`,
			want:    []string{"var/log/auth.log"},
		},
		{
			name:    "no match",
			pattern: `var/log/nothing-here`,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindPaths(context.Background(), root, tt.pattern, Options{})
			require.NoError(t, err)
			assert.Equal(t, abs(root, tt.want...), got.Sorted())
		})
	}
}

func TestFindPaths_AbsolutePatternAlignsWithRoot(t *testing.T) {
	// Given: an absolute pattern that spells out the temp root
	root := t.TempDir()
	writeTree(t, root, logTree)
	pattern := regexp.QuoteMeta(filepath.ToSlash(root)) + `/var/log/a.*\.log$`

	// When: walking from the temp root
	got, err := FindPaths(context.Background(), root, pattern, Options{})

	// Then: the root components consume their segments and the rest prunes
	require.NoError(t, err)
	assert.Equal(t,
		abs(root, "var/log/alternatives.log", "var/log/apport.log", "var/log/auth.log"),
		got.Sorted())
}

func TestFindPaths_AbsolutePatternFromSubdirectoryRoot(t *testing.T) {
	// Given: the walk starts below the first pattern segments
	root := t.TempDir()
	writeTree(t, root, logTree)
	logDir := filepath.Join(root, "var", "log")
	pattern := regexp.QuoteMeta(filepath.ToSlash(root)) + `/var/log/Xorg\.\d+\.log$`

	got, err := FindPaths(context.Background(), logDir, pattern, Options{})

	require.NoError(t, err)
	assert.Equal(t, abs(root, "var/log/Xorg.0.log", "var/log/Xorg.1.log"), got.Sorted())
}

func TestFindPaths_AbsolutePatternOutsideRoot(t *testing.T) {
	// Given: an absolute pattern for a tree the root is not part of
	root := t.TempDir()
	writeTree(t, root, logTree)

	// When: walking
	got, err := FindPaths(context.Background(), root, `/no-such-top-level-dir/var/log/.*`, Options{})

	// Then: nothing matches and nothing fails
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestFindPaths_NeverReturnsFalsePositives(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, logTree)

	patterns := []string{
		`var/log/a.*\.log$`,
		`var/log/.*`,
		`var/.*/.*/.*\.log`,
		`var/l`,
		`.*`,
		`usr/share/doc/a\.log`,
		`(var/log)/auth\.log`,
		regexp.QuoteMeta(filepath.ToSlash(root)) + `/var/.*`,
	}

	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			p := MustCompile(pattern)
			full := regexp.MustCompile(`^(?:` + pattern + `)`)

			got, err := FindPaths(context.Background(), root, pattern, Options{})
			require.NoError(t, err)

			naive := naiveFind(t, root, p)
			for path := range got {
				subject, ok := p.subject(root, path)
				require.True(t, ok)
				assert.True(t, full.MatchString(subject), "false positive %s", path)
				assert.True(t, naive.Has(path), "pruned walk widened results with %s", path)
			}
		})
	}
}

func TestFindPaths_PrefixMatchOnIntermediateSegments(t *testing.T) {
	// Given: directories that share a prefix with the segment
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"log/x.txt":      "a",
		"logs/x.txt":     "b",
		"logs-old/x.txt": "c",
	})

	// When: the intermediate segment is "log"
	got, err := FindPaths(context.Background(), root, `log/x\.txt`, Options{})

	// Then: all three directories are entered but only the full match survives
	require.NoError(t, err)
	assert.Equal(t, abs(root, "log/x.txt"), got.Sorted())

	m, err := New()
	require.NoError(t, err)
	w := m.newWalk(root, MustCompile(`log/x`), Options{})
	assert.True(t, w.segmentMatches("log", "logs-old"))
	assert.False(t, w.segmentMatches("log", "blog"))
}

func TestFindPaths_ShallowerSegmentsDoNotSpanLevels(t *testing.T) {
	// Given: a file two levels below where the wildcard segment sits
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/b/c/deep.log": "x",
		"a/b/flat.log":   "x",
	})

	// When: ".*" is used as if it could cross directories
	got, err := FindPaths(context.Background(), root, `a/.*\.log$`, Options{})

	// Then: only files at the terminal level are considered
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())

	got, err = FindPaths(context.Background(), root, `a/.*/flat\.log$`, Options{})
	require.NoError(t, err)
	assert.Equal(t, abs(root, "a/b/flat.log"), got.Sorted())
}

func TestFindPaths_UncompilableSegmentDoesNotPrune(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, logTree)

	got, err := FindPaths(context.Background(), root, `(var/log)/auth\.log`, Options{})

	require.NoError(t, err)
	assert.Equal(t, abs(root, "var/log/auth.log"), got.Sorted())
}

func TestFindPaths_ZeroSegmentsMatchesRootFilesOnly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"top.log":     "x",
		"other.txt":   "x",
		"sub/low.log": "x",
	})

	got, err := FindPaths(context.Background(), root, ``, Options{})
	require.NoError(t, err)
	assert.Equal(t, abs(root, "other.txt", "top.log"), got.Sorted())

	got, err = FindPaths(context.Background(), root, `.*\.log`, Options{})
	require.NoError(t, err)
	assert.Equal(t, abs(root, "top.log"), got.Sorted())
}

func TestFindPaths_InvalidPatternFailsBeforeIO(t *testing.T) {
	// Given: a root that does not exist and a broken pattern
	missing := filepath.Join(t.TempDir(), "missing")

	// When: searching
	_, err := FindPaths(context.Background(), missing, `var/log/(unclosed`, Options{})

	// Then: the pattern error wins, the root is never inspected
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPattern))
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestFindPaths_MissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	_, err := FindPaths(context.Background(), missing, `.*`, Options{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestFindPaths_RootIsAFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"file": "x"})

	_, err := FindPaths(context.Background(), filepath.Join(root, "file"), `.*`, Options{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestFindPaths_UnreadableDirectoryIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	// Given: one readable and one unreadable log directory
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"logs/open/a.log":   "x",
		"logs/closed/b.log": "x",
	})
	closed := filepath.Join(root, "logs", "closed")
	require.NoError(t, os.Chmod(closed, 0o000))
	t.Cleanup(func() { _ = os.Chmod(closed, 0o755) })

	var skipped []string
	opts := Options{OnSkip: func(path string, err error) {
		assert.True(t, errors.Is(err, apperrors.ErrPermission))
		skipped = append(skipped, path)
	}}

	// When: walking both
	got, err := FindPaths(context.Background(), root, `logs/.*/.*\.log`, opts)

	// Then: the walk continues past the unreadable directory
	require.NoError(t, err)
	assert.Equal(t, abs(root, "logs/open/a.log"), got.Sorted())
	assert.Equal(t, []string{closed}, skipped)
}

func TestFindPaths_SymlinkedDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"real/app.log": "x"})
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")))

	t.Run("not followed by default", func(t *testing.T) {
		got, err := FindPaths(context.Background(), root, `link/app\.log`, Options{})
		require.NoError(t, err)
		assert.Equal(t, 0, got.Len())
	})

	t.Run("followed on request", func(t *testing.T) {
		got, err := FindPaths(context.Background(), root, `link/app\.log`, Options{FollowSymlinks: true})
		require.NoError(t, err)
		assert.Equal(t, abs(root, "link/app.log"), got.Sorted())
	})

	t.Run("links are never files", func(t *testing.T) {
		got, err := FindPaths(context.Background(), root, `.*`, Options{})
		require.NoError(t, err)
		assert.Equal(t, 0, got.Len())
	})
}

func TestFindPaths_SymlinkCycleIsReported(t *testing.T) {
	// Given: a link pointing back to an ancestor
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/b/file.log": "x"})
	require.NoError(t, os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "a", "b", "up")))

	var cycles int
	opts := Options{
		FollowSymlinks: true,
		OnSkip: func(_ string, err error) {
			if errors.Is(err, apperrors.ErrSymlinkCycle) {
				cycles++
			}
		},
	}

	// When: the pattern asks to go through the link
	got, err := FindPaths(context.Background(), root, `a/b/up/b/file\.log`, opts)

	// Then: the cycle is cut and reported
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, 1, cycles)
}

func TestFindPaths_ContextCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, logTree)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FindPaths(ctx, root, `var/log/.*`, Options{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatcher_ConcurrentFindsShareCache(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, logTree)

	m, err := New()
	require.NoError(t, err)

	want, err := m.FindPaths(context.Background(), root, `var/log/a.*\.log$`, Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Set, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := m.FindPaths(context.Background(), root, `var/log/a.*\.log$`, Options{})
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want.Sorted(), got.Sorted())
	}
}

func TestFindPaths_DotfileExamples(t *testing.T) {
	// Given: a walk rooted at the log directory itself
	base := t.TempDir()
	writeTree(t, base, logTree)
	root := filepath.Join(base, "var", "log")

	tests := []struct {
		pattern string
		want    []string
	}{
		{
			pattern: `[^/]*\.log$`,
			want: []string{
				"Xorg.0.log", "Xorg.1.log", "alternatives.log",
				"apport.log", "auth.log", "mail.log",
			},
		},
		{pattern: `apt/[^/]*\.log$`, want: []string{"apt/history.log", "apt/term.log"}},
		{pattern: `syslog`, want: []string{"syslog"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			// When: finding the pattern below the root
			got, err := FindPaths(context.Background(), root, tt.pattern, Options{})

			// Then: only the files at the pattern's depth are selected
			require.NoError(t, err)
			assert.Equal(t, abs(root, tt.want...), got.Sorted())
		})
	}
}

func TestMatcher_Selects(t *testing.T) {
	root := "/srv/log"
	m, err := New()
	require.NoError(t, err)

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"file at the terminal level", `[^/]*\.log$`, "/srv/log/auth.log", true},
		{"file below the terminal level", `.*\.log$`, "/srv/log/sub/x.log", false},
		{"file at the terminal level, wildcard", `.*\.log$`, "/srv/log/x.log", true},
		{"directory matches its segment", `apt/.*\.log$`, "/srv/log/apt/term.log", true},
		{"directory fails its segment", `apt/.*\.log$`, "/srv/log/installer/term.log", false},
		{"full pattern still applies", `apt/.*\.log$`, "/srv/log/apt/term.txt", false},
		{"absolute pattern aligned with root", `/srv/log/[^/]*\.log$`, "/srv/log/auth.log", true},
		{"absolute pattern outside root", `/etc/[^/]*\.conf$`, "/srv/log/a.conf", false},
		{"outside root", `.*`, "/etc/passwd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Selects(root, MustCompile(tt.pattern), tt.path))
		})
	}
}
