package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	v, c, d := Info()
	if v == "" {
		t.Error("version should not be empty")
	}
	if c == "" {
		t.Error("commit should not be empty")
	}
	if d == "" {
		t.Error("date should not be empty")
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, part := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Errorf("String should contain %q, got %q", part, s)
		}
	}
}
