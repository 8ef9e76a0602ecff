package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileLoggerRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatcore.log")
	l, err := New(Config{Level: "warn", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	zl := l.With("core")
	zl.Error().Str("room", "lobby@conf").Msg("structured")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden 1") {
		t.Fatalf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Fatalf("warn line missing: %s", out)
	}
	if !strings.Contains(out, `"component":"core"`) || !strings.Contains(out, `"room":"lobby@conf"`) {
		t.Fatalf("structured fields missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != LevelDebug || ParseLevel("bogus") != LevelInfo {
		t.Fatal("ParseLevel mismatch")
	}
	if LevelError.String() != "ERROR" {
		t.Fatalf("String = %q", LevelError.String())
	}
}
