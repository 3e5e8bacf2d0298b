package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	defer SetLevel(LevelInfo)

	Debug("hidden", "k", 1)
	Info("recompute done", "rows", 3, "dangling")
	Error("fetch failed", errors.New("boom"), "id", "team-a")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at INFO: %q", out)
	}
	for _, want := range []string{"recompute done", "rows=3", "fetch failed", "boom", "id=team-a"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "dangling") {
		t.Fatalf("odd trailing key was written: %q", out)
	}

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("visible now")
	if !strings.Contains(buf.String(), "visible now") {
		t.Fatalf("debug line missing at DEBUG: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, " error ": LevelError, "": LevelInfo}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
