// Package config loads server and client settings from the environment,
// with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Server struct {
	// Listen address for the WebSocket and replay endpoints.
	Addr string

	// Heartbeat interval the liveness monitor sweeps on, and how many
	// missed beats a session survives before being pruned.
	HeartbeatInterval time.Duration
	HeartbeatMisses   int

	// Path of the sqlite operation journal. Empty disables journaling.
	JournalPath string
}

type Client struct {
	// ws:// URL of the server's /ws endpoint.
	ServerURL string

	HeartbeatInterval time.Duration
}

// LoadServer reads server settings. A missing .env file is not an error.
func LoadServer() Server {
	_ = godotenv.Load()

	return Server{
		Addr:              envStr("BOARD_ADDR", ":8080"),
		HeartbeatInterval: time.Duration(envInt("BOARD_HEARTBEAT_SEC", 30)) * time.Second,
		HeartbeatMisses:   envInt("BOARD_HEARTBEAT_MISSES", 3),
		JournalPath:       os.Getenv("BOARD_JOURNAL_PATH"),
	}
}

// LoadClient reads client settings.
func LoadClient() Client {
	_ = godotenv.Load()

	return Client{
		ServerURL:         envStr("BOARD_SERVER_URL", "ws://localhost:8080/ws"),
		HeartbeatInterval: time.Duration(envInt("BOARD_HEARTBEAT_SEC", 30)) * time.Second,
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
