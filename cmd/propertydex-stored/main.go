package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/propertydex/propertydex-store/internal/api"
	"github.com/propertydex/propertydex-store/internal/config"
	"github.com/propertydex/propertydex-store/internal/logging"
	"github.com/propertydex/propertydex-store/internal/server"
	"github.com/propertydex/propertydex-store/pkg/client"
	"github.com/propertydex/propertydex-store/pkg/sdk"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting propertydex store daemon")

	// The daemon is the store other processes reach; it never dials a remote one itself.
	cfg.Store.RemoteAddr = ""

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := sdk.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	c := client.NewWithStorage(backend, cfg, logger)

	// TCP writes go through the client's storage so that SSE subscribers see them.
	router := server.NewRouter(c.Storage())
	router.SetLogger(logger)

	h := &api.Handler{Client: c}
	r := gin.Default()
	r.Use(api.CORS(cfg.Server.CORSOrigins))
	h.Register(r)
	r.NoRoute(api.NotFound)

	// Requests inherit the signal context so open event streams end on shutdown.
	srv := &http.Server{
		Addr:        cfg.HTTPAddress(),
		Handler:     r,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Info("HTTP facade listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("TCP store listening", "port", cfg.Server.TCPPort, "mode", backend.Mode)
		if err := router.Listen(cfg.Server.TCPPort); err != nil {
			logger.Error("TCP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, finalizing writes")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := router.Stop(); err != nil {
		logger.Warn("TCP shutdown incomplete", "error", err)
	}
	if err := backend.Close(); err != nil {
		logger.Error("failed to close storage", "error", err)
		os.Exit(1)
	}
	logger.Info("persistence complete, exiting")
}
