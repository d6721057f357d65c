package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/collabboard/collabboard/api"
	"github.com/collabboard/collabboard/config"
	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/journal"
	"github.com/collabboard/collabboard/middleware"
	"github.com/collabboard/collabboard/registry"
	"github.com/collabboard/collabboard/ws"
)

func main() {
	logx.Init()
	defer logx.L.Sync()

	cfg := config.LoadServer()
	reg := registry.New()

	opts := []ws.Option{
		ws.WithHeartbeat(cfg.HeartbeatInterval, cfg.HeartbeatMisses),
	}

	mux := http.NewServeMux()

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			logx.L.Fatal("open journal", zap.Error(err))
		}
		defer j.Close()
		opts = append(opts, ws.WithRecorder(j))
		mux.Handle("/replay", api.GetReplay(j))
	}

	hub := ws.NewHub(reg, opts...)
	defer hub.Stop()

	mux.HandleFunc("/ws", hub.HandleWS)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: middleware.Logging(mux),
	}

	go func() {
		logx.L.Info("server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.L.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logx.L.Info("shutting down")
	server.Close()
}
