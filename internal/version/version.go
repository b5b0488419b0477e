// Package version carries the build identity stamped into the binary.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at build time via -ldflags "-X github.com/crewline/foreman/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build identity of the running binary
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Date      string `json:"date,omitempty" yaml:"date,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Current resolves the build identity, filling runtime facts in
func Current() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Short is the bare version number
func (i Info) Short() string {
	return i.Version
}

// String is the one-line form used in logs and text output
func (i Info) String() string {
	parts := []string{i.Version}
	if c := shortCommit(i.Commit); c != "" {
		parts = append(parts, c)
	}
	parts = append(parts, i.Platform)
	return fmt.Sprintf("foreman %s", strings.Join(parts, ", "))
}

// Detail is the multi-line form behind the verbose flag
func (i Info) Detail() string {
	var b strings.Builder
	fmt.Fprintf(&b, "foreman %s\n", i.Version)
	if c := shortCommit(i.Commit); c != "" {
		fmt.Fprintf(&b, "  commit:   %s\n", c)
	}
	if i.Date != "" {
		fmt.Fprintf(&b, "  built:    %s\n", i.Date)
	}
	fmt.Fprintf(&b, "  go:       %s\n", i.GoVersion)
	fmt.Fprintf(&b, "  platform: %s", i.Platform)
	return b.String()
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
