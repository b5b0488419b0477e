package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestCurrentFillsRuntimeFacts(t *testing.T) {
	info := Current()

	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if want := runtime.GOOS + "/" + runtime.GOARCH; info.Platform != want {
		t.Errorf("Platform = %q, want %q", info.Platform, want)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "release build",
			info: Info{Version: "1.2.0", Commit: "abc123def456", Platform: "linux/amd64"},
			want: "foreman 1.2.0, abc123de, linux/amd64",
		},
		{
			name: "dev build without commit",
			info: Info{Version: "dev", Platform: "darwin/arm64"},
			want: "foreman dev, darwin/arm64",
		},
		{
			name: "short commit is not truncated",
			info: Info{Version: "1.2.0", Commit: "abc123", Platform: "linux/amd64"},
			want: "foreman 1.2.0, abc123, linux/amd64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetail(t *testing.T) {
	full := Info{
		Version:   "1.2.0",
		Commit:    "abc123def456",
		Date:      "2026-03-01",
		GoVersion: "go1.24.6",
		Platform:  "linux/amd64",
	}
	got := full.Detail()
	for _, want := range []string{"foreman 1.2.0", "commit:   abc123de", "built:    2026-03-01", "go:       go1.24.6", "platform: linux/amd64"} {
		if !strings.Contains(got, want) {
			t.Errorf("Detail() missing %q:\n%s", want, got)
		}
	}

	dev := Info{Version: "dev", GoVersion: "go1.24.6", Platform: "linux/amd64"}
	got = dev.Detail()
	if strings.Contains(got, "commit:") || strings.Contains(got, "built:") {
		t.Errorf("Detail() shows unset build facts:\n%s", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("Detail() should not end with a newline")
	}
}

func TestShort(t *testing.T) {
	if got := (Info{Version: "1.2.0-rc1"}).Short(); got != "1.2.0-rc1" {
		t.Errorf("Short() = %q, want 1.2.0-rc1", got)
	}
}
