package version

import (
	"strings"
	"testing"
)

func TestShort(t *testing.T) {
	if got := Short(); got != Version {
		t.Errorf("Short() = %q, want %q", got, Version)
	}
}

func TestInfo(t *testing.T) {
	info := Info()

	for _, part := range []string{Version, GitCommit, BuildDate, "go"} {
		if !strings.Contains(info, part) {
			t.Errorf("Info() = %q, should contain %q", info, part)
		}
	}
}
