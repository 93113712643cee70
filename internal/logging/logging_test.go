package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_LevelFollowsVerbose(t *testing.T) {
	var quiet bytes.Buffer
	New("server", Options{Writer: &quiet}).Debug("hidden")
	New("server", Options{Writer: &quiet}).Warn("shown")
	if strings.Contains(quiet.String(), "hidden") {
		t.Fatalf("debug output leaked without verbose: %q", quiet.String())
	}
	if !strings.Contains(quiet.String(), "shown") || !strings.Contains(quiet.String(), "component=server") {
		t.Fatalf("expected warning with component, got %q", quiet.String())
	}

	var loud bytes.Buffer
	WithSession(New("cli", Options{Verbose: true, Writer: &loud}), "abc").Debug("visible")
	if !strings.Contains(loud.String(), "visible") || !strings.Contains(loud.String(), "session_id=abc") {
		t.Fatalf("expected debug line with session id, got %q", loud.String())
	}
}

func TestSubsystem(t *testing.T) {
	Subsystem(nil, "x").Error("dropped")

	var buf bytes.Buffer
	Subsystem(New("server", Options{Writer: &buf}), "sse").Warn("slow")
	if !strings.Contains(buf.String(), "subsystem=sse") {
		t.Fatalf("missing subsystem attr: %q", buf.String())
	}
}
