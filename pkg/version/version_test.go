package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semverRegex.MatchString(Version), "Version should follow semver format, got: %s", Version)
}

func TestString_IncludesAppAndBuildInfo(t *testing.T) {
	s := String("prefind")

	assert.Contains(t, s, "prefind "+Version)
	assert.Contains(t, s, "commit: "+Commit)
	assert.Contains(t, s, "go: "+runtime.Version())
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo_JSON(t *testing.T) {
	// Given: build info for logfind
	info := GetInfo("logfind")

	// When: encoding it
	data, err := json.Marshal(info)
	require.NoError(t, err)

	// Then: every field is present under its snake_case name
	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "logfind", got["app"])
	assert.Equal(t, Version, got["version"])
	assert.Equal(t, runtime.GOOS, got["os"])
	assert.Equal(t, runtime.GOARCH, got["arch"])
	assert.Contains(t, got, "go_version")
	assert.Contains(t, got, "commit")
	assert.Contains(t, got, "date")
}
