package naming

import (
	"regexp"
	"testing"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]+$`)

func TestHashIsStableAndCaseInsensitive(t *testing.T) {
	a := Hash("acme", "function", "Search")
	b := Hash("ACME", "Function", "search")
	if a != b {
		t.Fatalf("Hash() = %q and %q, want equal", a, b)
	}
	if len(a) != HashLen || !hexRe.MatchString(a) {
		t.Fatalf("Hash() = %q, want %d hex chars", a, HashLen)
	}
}

func TestHashSeparatesInputs(t *testing.T) {
	seen := map[string]string{}
	for _, in := range [][3]string{
		{"acme", "function", "search"},
		{"acme", "sandbox", "search"},
		{"acme", "function", "fetch"},
		{"other", "function", "search"},
	} {
		h := Hash(in[0], in[1], in[2])
		if prev, ok := seen[h]; ok {
			t.Fatalf("Hash(%v) collides with %s", in, prev)
		}
		seen[h] = in[0] + "/" + in[1] + "/" + in[2]
	}
}

func TestInternalHost(t *testing.T) {
	got := InternalHost("acme", "sandbox", "box", ".svc.cluster.local")
	want := "sbx-" + Hash("acme", "sandbox", "box") + ".svc.cluster.local"
	if got != want {
		t.Fatalf("InternalHost() = %q, want %q", got, want)
	}
	if p := KindPrefix("function"); p != "fn" {
		t.Fatalf("KindPrefix(function) = %q, want fn", p)
	}
}

func TestCollection(t *testing.T) {
	tests := map[string]string{
		"function": "functions",
		"Sandbox":  "sandboxes",
		"agent":    "agents",
	}
	for in, want := range tests {
		if got := Collection(in); got != want {
			t.Fatalf("Collection(%q) = %q, want %q", in, got, want)
		}
	}
}
