package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewLoggerWritesJSONSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")

	logger, err := newLogger(true, false, path)
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}

	logger.Named("server").Info("role cache built", zap.Duration("took", 1500*time.Millisecond))
	logger.Debug("hidden")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 entry, got %d: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decoding entry: %v", err)
	}

	if entry["step"] != "role cache built" {
		t.Fatalf("unexpected step: %v", entry["step"])
	}
	if entry["logger"] != "server" {
		t.Fatalf("unexpected logger name: %v", entry["logger"])
	}
	if entry["took"] != float64(1500) {
		t.Fatalf("unexpected duration: %v", entry["took"])
	}
	if _, ok := entry["caller"]; ok {
		t.Fatalf("caller must be omitted outside debug mode")
	}
}
