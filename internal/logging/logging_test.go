package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup_ConsoleAndFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "datefacet.log")
	closer, err := Setup("warn", file, &console)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	slog.Info("hidden")
	slog.Warn("shown", "term", "tax")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(console.String(), "hidden") {
		t.Error("info logged at warn level")
	}
	if !strings.Contains(console.String(), "term=tax") {
		t.Errorf("console = %q", console.String())
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "shown") {
		t.Errorf("file = %q", data)
	}
}

func TestSetup_NoOutputs(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	closer, err := Setup("debug", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	slog.Debug("discarded")
	if err := closer.Close(); err != nil {
		t.Error(err)
	}
}
