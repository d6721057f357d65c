package middleware

import (
	"strings"
	"testing"
)

func TestColorFromUserIDIsStable(t *testing.T) {
	a := ColorFromUserID("user-1")
	if a != ColorFromUserID("user-1") {
		t.Fatalf("color must be deterministic")
	}
	if !strings.HasPrefix(a, "hsl(") {
		t.Fatalf("color = %q", a)
	}
}

func TestColorFromUserIDSpreads(t *testing.T) {
	seen := map[string]bool{
		ColorFromUserID("ana"):  true,
		ColorFromUserID("bob"):  true,
		ColorFromUserID("carl"): true,
	}
	if len(seen) < 2 {
		t.Fatalf("distinct users collapsed to one color")
	}
}
