package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer, err := NewLogger(Config{Level: "debug", Output: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug().Str("exchange", "kraken").Msg("hello")
	if err := closer(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"exchange":"kraken"`) || !strings.Contains(string(data), `"level":"debug"`) {
		t.Fatalf("unexpected log content %s", data)
	}
}

func TestNewLoggerLevelFallback(t *testing.T) {
	logger, _, err := NewLogger(Config{Level: "chatty"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("unknown level should fall back to info, got %s", logger.GetLevel())
	}
}

func TestNewLoggerBadPath(t *testing.T) {
	if _, _, err := NewLogger(Config{Output: filepath.Join(t.TempDir(), "missing", "app.log")}); err == nil {
		t.Fatal("unwritable output should fail")
	}
}
