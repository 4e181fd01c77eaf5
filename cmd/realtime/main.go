package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"clipflow"
	"clipflow/internal/realtime"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := realtime.LoadConfig()
	logger := clipflow.NewLogger()

	if cfg.JWTSecret == "" && cfg.Mode != "dev" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	bridge, err := realtime.NewNATSBridge(cfg.NatsURL, cfg.TenantID, hub)
	if err != nil {
		logger.Fatal().Err(err).Msg("NATS bridge")
	}
	defer bridge.Close()

	if err := bridge.Subscribe(); err != nil {
		logger.Fatal().Err(err).Msg("NATS subscribe")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		realtime.ServeWS(hub, cfg, w, r)
	})
	srv := &http.Server{Addr: cfg.RealtimePort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.RealtimePort).Msg("Realtime service listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server")
	}
}
