package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatsync.log")

	logger, err := New(path, "work", Options{Level: zapcore.InfoLevel})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("conversation opened", zap.String("conversation_id", "7"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("want exactly one JSON line, got %q: %v", data, err)
	}
	if entry["msg"] != "conversation opened" || entry["profile"] != "work" || entry["conversation_id"] != "7" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("missing ts field")
	}
}
