package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BrunoMartinho00/lab11/internal/config"
	h "github.com/BrunoMartinho00/lab11/internal/http"
	"github.com/BrunoMartinho00/lab11/internal/logger"
	"github.com/BrunoMartinho00/lab11/internal/upstream"
)

func main() {
	cfg := config.Load()

	l := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	log.Logger = l

	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.RequestTimeout,
		upstream.WithCacheTTL(cfg.CatalogCacheTTL),
		upstream.WithLogger(l.With().Str("component", "upstream").Logger()),
	)

	router := h.NewRouter(h.RouterConfig{
		Logger:         l,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Products:       h.NewProductHandler(client, cfg.RequestTimeout),
		Buy:            h.NewBuyHandler(client, cfg.PurchaseTimeout, cfg.MaxRequestBodySize),
		Quote:          h.NewQuoteHandler(cfg.MaxRequestBodySize),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info().Str("port", cfg.HTTPPort).Str("upstream", cfg.UpstreamBaseURL).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Fatal().Err(err).Msg("server forced to shutdown")
	}

	l.Info().Msg("server exited")
}
