// Command server runs the dice session over websockets.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yahtzee/internal/app"
	"yahtzee/internal/config"
	"yahtzee/internal/platform/logging"
	"yahtzee/internal/platform/netutil"
	"yahtzee/internal/platform/otel"
	"yahtzee/internal/ports/ws"
	"yahtzee/internal/storage/backend"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		config.Exitf("config: %v", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		config.Exitf("logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	store, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("open snapshot store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("close snapshot store")
		}
	}()

	svc := app.NewService(
		nil,
		app.WithStore(store),
		app.WithLogger(log),
	)
	if err := svc.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("restore failed, starting with an empty session")
	}

	srv := ws.NewServer(svc, log, cfg.AllowedOrigins, ws.ProxyPolicy{TrustForwardedFor: cfg.TrustProxyHeaders})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	port := cfg.PublicPort
	if port == 0 {
		if port, err = netutil.PortFromAddr(cfg.HTTPAddr); err != nil {
			log.Warn().Err(err).Str("addr", cfg.HTTPAddr).Msg("cannot derive public port")
		}
	}
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("backend", cfg.Storage.Backend).
		Str("controller_url", netutil.ControllerURL(netutil.LocalIP(), port)).
		Msg("server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
}
