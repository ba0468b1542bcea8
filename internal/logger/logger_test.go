package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"matrix-quest-service/internal/config"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	cfg := config.Config{Env: "local", Log: config.Log{Level: "loud"}}
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quest.log")
	cfg := config.Config{
		Env: "production",
		Log: config.Log{Level: "warn", File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1},
	}
	log, err := New(cfg)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Info("below threshold")
	log.Warn("notification dropped")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"notification dropped"`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("expected JSON warn entry, got %q", out)
	}
	if strings.Contains(out, "below threshold") {
		t.Fatalf("info entry should be filtered at warn level: %q", out)
	}
}
