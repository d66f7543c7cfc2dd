package httpheaders

import (
	"net/http"
	"testing"
)

func TestMergeSkipsEquivalentKeyWhenOverwriteDisabled(t *testing.T) {
	dst := map[string]string{
		"authorization": "Bearer explicit",
	}
	src := map[string]string{
		"Authorization": "Bearer fallback",
	}

	got := Merge(dst, src, false)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (got=%#v)", len(got), got)
	}
	if got["authorization"] != "Bearer explicit" {
		t.Fatalf(`got["authorization"] = %q, want %q`, got["authorization"], "Bearer explicit")
	}
}

func TestMergeOverwritesEquivalentKeyWhenEnabled(t *testing.T) {
	dst := map[string]string{
		"x-mcpwire-workspace": "old",
	}
	src := map[string]string{
		"X-Mcpwire-Workspace": "new",
	}

	got := Merge(dst, src, true)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (got=%#v)", len(got), got)
	}
	if got["X-Mcpwire-Workspace"] != "new" {
		t.Fatalf(`got["X-Mcpwire-Workspace"] = %q, want %q`, got["X-Mcpwire-Workspace"], "new")
	}
	if _, exists := got["x-mcpwire-workspace"]; exists {
		t.Fatalf("got = %#v, want lowercase key removed", got)
	}
}

func TestApplyRespectsOverwrite(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer provider")

	got := Apply(h, map[string]string{"authorization": "Bearer tool", " ": "ignored", "X-Trace": "1"}, false)
	if got.Get("Authorization") != "Bearer provider" {
		t.Fatalf("Authorization = %q, want provider value kept", got.Get("Authorization"))
	}
	if got.Get("X-Trace") != "1" {
		t.Fatalf("X-Trace = %q, want 1", got.Get("X-Trace"))
	}

	got = Apply(got, map[string]string{"authorization": "Bearer tool"}, true)
	if got.Get("Authorization") != "Bearer tool" {
		t.Fatalf("Authorization = %q, want tool value", got.Get("Authorization"))
	}
	if len(got.Values("Authorization")) != 1 {
		t.Fatalf("Authorization values = %v, want one", got.Values("Authorization"))
	}
}

func TestApplyAllocatesNilHeader(t *testing.T) {
	got := Apply(nil, map[string]string{"x-env": "prod"}, false)
	if got.Get("X-Env") != "prod" {
		t.Fatalf("X-Env = %q, want prod", got.Get("X-Env"))
	}
}

func TestFlattenJoinsRepeatedValues(t *testing.T) {
	h := http.Header{}
	h.Add("accept", "text/event-stream")
	h.Add("Accept", "application/json")
	h.Set("X-Empty", "")
	h["X-None"] = nil

	got := Flatten(h)
	if got["Accept"] != "text/event-stream, application/json" {
		t.Fatalf(`got["Accept"] = %q`, got["Accept"])
	}
	if _, ok := got["X-None"]; ok {
		t.Fatalf("got = %#v, want X-None dropped", got)
	}
	if Flatten(nil) != nil {
		t.Fatal("Flatten(nil) != nil")
	}
}
