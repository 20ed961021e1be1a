package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"portfolio-contact/handler"
	"portfolio-contact/internal/app"
	"portfolio-contact/internal/config"
	"portfolio-contact/internal/logging"
)

const (
	submitPath      = "/api/submit-message"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Fatal("failed to read .env", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration", "err", err)
	}
	logging.Setup(cfg.LogLevel)

	ctx := context.Background()
	h, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		logging.Fatal("failed to build handler", "err", err)
	}
	defer cleanup()

	// RealIP is left out: the handler reads X-Forwarded-For itself and
	// needs the socket address untouched as its fallback.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(handler.FloodGuard(cfg.DevRateRPS, cfg.DevRateBurst))
	r.HandleFunc(submitPath, h.ServeHTTP)

	startServer(cfg.ListenAddr, r)
}

func startServer(addr string, router http.Handler) {
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("dev server listening", "addr", addr, "path", submitPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", "err", err)
		}
	}()

	<-shutdownSignal
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "err", err)
	}
	slog.Info("server stopped")
}
