package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func fixedLogger(buf *bytes.Buffer, level Level) *Logger {
	l := New(Config{Level: level, Output: buf, Prefix: "test"})
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warning", LevelWarn},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ValidLevel("bogus") {
		t.Error("ValidLevel(bogus) should be false")
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info lines should be filtered: %q", out)
	}
	want := "2026-01-02T03:04:05.000 [WARN] test: shown 1\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestLoggerFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelDebug).WithComponent("parser").WithField("cycle", 3)

	l.Info("done")

	if !strings.HasSuffix(buf.String(), "done {component=parser, cycle=3}\n") {
		t.Errorf("unexpected line %q", buf.String())
	}
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := fixedLogger(&buf, LevelInfo)
	child := root.WithComponent("diff")

	root.SetLevel(LevelError)
	child.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("child should follow root level, wrote %q", buf.String())
	}
	if child.Enabled(LevelInfo) {
		t.Error("Enabled(LevelInfo) should be false after SetLevel(LevelError)")
	}
}

func TestNullLogger(t *testing.T) {
	NullLogger.Error("nothing")
	if OrNull(nil) != NullLogger {
		t.Error("OrNull(nil) should return NullLogger")
	}
}
