// Package version holds build metadata injected with ldflags:
//
//	-ldflags "-X mediaenrich/internal/version.version=v1.0.0 -X mediaenrich/internal/version.commit=abc123"
package version

import (
	"fmt"
	"io"
	"time"
)

//nolint:gochecknoglobals // set via ldflags
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is printed in the full version output.
const ApplicationName = "MediaEnrich CLI"

const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// VersionInfo is the resolved build metadata.
type VersionInfo struct {
	Version   string `json:"version"   yaml:"version"`
	Commit    string `json:"commit"    yaml:"commit"`
	BuildTime string `json:"buildTime" yaml:"build_time"`
}

// GetVersion returns the build metadata with defaults for unset values.
func GetVersion() *VersionInfo {
	return &VersionInfo{
		Version:   withDefault(version, DefaultVersion),
		Commit:    withDefault(commit, DefaultCommit),
		BuildTime: withDefault(buildTime, DefaultBuildTime),
	}
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// FormatFull returns the multi-line version banner.
func (vi *VersionInfo) FormatFull() string {
	return fmt.Sprintf("%s\nVersion: %s\nCommit: %s\nBuilt: %s\n",
		ApplicationName, vi.Version, vi.Commit, vi.BuildTime)
}

// Write prints either the bare version or the full banner.
func (vi *VersionInfo) Write(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, vi.Version)
		return err
	}
	_, err := fmt.Fprint(w, vi.FormatFull())
	return err
}

// IsDevelopment reports whether no version was injected.
func (vi *VersionInfo) IsDevelopment() bool {
	return vi.Version == DefaultVersion
}

// BuildTimestamp parses BuildTime, returning the zero time when it is unset or malformed.
func (vi *VersionInfo) BuildTimestamp() time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, vi.BuildTime); err == nil {
			return t
		}
	}
	return time.Time{}
}

// UserAgent is sent with outbound API requests.
func UserAgent() string {
	return "mediaenrich/" + GetVersion().Version
}

// SetBuildVars overrides the injected values. Used by tests.
func SetBuildVars(ver, com, bt string) {
	version, commit, buildTime = ver, com, bt
}

// ResetBuildVars clears the injected values.
func ResetBuildVars() {
	SetBuildVars("", "", "")
}
