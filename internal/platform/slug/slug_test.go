package slug_test

import (
	"strings"
	"testing"

	"arena/internal/platform/slug"
)

func TestMake(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"Hiring Plan", 0, "hiring-plan"},
		{"  --Q3 / Budget!! ", 0, "q3-budget"},
		{"", 0, "untitled"},
		{"launch the new pricing page", 10, "launch-the"},
		{"ab cd", 3, "ab"},
	}
	for _, tc := range cases {
		if got := slug.Make(tc.in, tc.limit); got != tc.want {
			t.Fatalf("Make(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestFileKeyKeepsDistinctKeysApart(t *testing.T) {
	t.Parallel()
	if got := slug.FileKey("p-1"); got != "p-1" {
		t.Fatalf("clean key should pass through, got %q", got)
	}
	a, b := slug.FileKey("P 1"), slug.FileKey("p 1")
	if a == b || a == "p-1" || b == "p-1" {
		t.Fatalf("expected distinct hashed keys, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "p-1-") || len(a) != len("p-1-")+8 {
		t.Fatalf("unexpected hashed key %q", a)
	}
	if slug.FileKey("P 1") != a {
		t.Fatalf("file key must be stable")
	}
}
