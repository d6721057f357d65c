package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("BOARD_ADDR", "")
	t.Setenv("BOARD_HEARTBEAT_SEC", "")
	t.Setenv("BOARD_HEARTBEAT_MISSES", "")
	t.Setenv("BOARD_JOURNAL_PATH", "")

	cfg := LoadServer()
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.HeartbeatInterval != 30*time.Second || cfg.HeartbeatMisses != 3 {
		t.Fatalf("heartbeat = %v x %d", cfg.HeartbeatInterval, cfg.HeartbeatMisses)
	}
	if cfg.JournalPath != "" {
		t.Fatalf("journal should default to disabled, got %q", cfg.JournalPath)
	}
}

func TestLoadServerFromEnv(t *testing.T) {
	t.Setenv("BOARD_ADDR", ":9999")
	t.Setenv("BOARD_HEARTBEAT_SEC", "5")
	t.Setenv("BOARD_HEARTBEAT_MISSES", "2")
	t.Setenv("BOARD_JOURNAL_PATH", "/tmp/board.db")

	cfg := LoadServer()
	if cfg.Addr != ":9999" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.HeartbeatInterval != 5*time.Second || cfg.HeartbeatMisses != 2 {
		t.Fatalf("heartbeat = %v x %d", cfg.HeartbeatInterval, cfg.HeartbeatMisses)
	}
	if cfg.JournalPath != "/tmp/board.db" {
		t.Fatalf("journal = %q", cfg.JournalPath)
	}
}

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("BOARD_SERVER_URL", "")
	t.Setenv("BOARD_HEARTBEAT_SEC", "")

	cfg := LoadClient()
	if cfg.ServerURL != "ws://localhost:8080/ws" {
		t.Fatalf("url = %q", cfg.ServerURL)
	}
}

func TestEnvIntRejectsGarbage(t *testing.T) {
	t.Setenv("BOARD_HEARTBEAT_SEC", "not-a-number")

	cfg := LoadServer()
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("garbage env must fall back to the default, got %v", cfg.HeartbeatInterval)
	}
}
