// Command shopcart is a terminal front end for the DEISI shop cart.
// Sessions sharing a file or redis store see each other's changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/BrunoMartinho00/lab11/internal/cart"
	"github.com/BrunoMartinho00/lab11/internal/checkout"
	"github.com/BrunoMartinho00/lab11/internal/config"
	"github.com/BrunoMartinho00/lab11/internal/events"
	"github.com/BrunoMartinho00/lab11/internal/logger"
	"github.com/BrunoMartinho00/lab11/internal/store"
	"github.com/BrunoMartinho00/lab11/internal/upstream"
)

func main() {
	cfg := config.Load()

	fs := pflag.NewFlagSet("shopcart", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.StringVar(&cfg.Store.Backend, "store", cfg.Store.Backend, "cart store: file, redis or memory")
	fs.StringVar(&cfg.Store.Dir, "store-dir", cfg.Store.Dir, "directory of the file store")
	fs.StringVar(&cfg.Store.RedisAddr, "redis-addr", cfg.Store.RedisAddr, "address of the redis store")
	fs.StringVar(&cfg.UpstreamBaseURL, "upstream", cfg.UpstreamBaseURL, "shop API base URL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, errUsage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	l := logger.New(cfg.LogLevel, "console", os.Stderr)
	log.Logger = l

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "shopcart:", err)
		if errors.Is(err, errUsage) {
			fs.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l zerolog.Logger, args []string) error {
	backend, closeBackend, err := openBackend(cfg.Store)
	if err != nil {
		return err
	}
	defer closeBackend()

	st := store.New(backend, store.WithLogger(l.With().Str("component", "store").Logger()))
	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.RequestTimeout,
		upstream.WithCacheTTL(cfg.CatalogCacheTTL),
		upstream.WithLogger(l.With().Str("component", "upstream").Logger()),
	)

	manager := cart.NewManager(ctx, st, cart.WithLogger(l.With().Str("component", "cart").Logger()))
	defer manager.Close()

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			l.Warn().Err(err).Msg("failed to close event publisher")
		}
	}()

	orchestrator := checkout.NewOrchestrator(manager, client,
		checkout.WithTimeout(cfg.PurchaseTimeout),
		checkout.WithResetAfter(cfg.StatusResetAfter),
		checkout.WithPublisher(publisher),
		checkout.WithLogger(l.With().Str("component", "checkout").Logger()),
	)
	defer orchestrator.Close()

	var purchases PurchaseFeed
	if len(cfg.KafkaBrokers) > 0 {
		consumer := events.NewConsumer(cfg.KafkaTopic, "shopcart-"+uuid.NewString(), l, cfg.KafkaBrokers...)
		defer consumer.Close()
		purchases = consumer
	}

	a := &app{
		out:       os.Stdout,
		catalog:   client,
		cart:      manager,
		checkout:  orchestrator,
		store:     st,
		purchases: purchases,
		imageBase: cfg.ImageBaseURL,
		customer:  cfg.CustomerName,
	}
	return a.run(ctx, args)
}

func openBackend(cfg config.StoreConfig) (store.Backend, func(), error) {
	switch cfg.Backend {
	case config.StoreBackendFile:
		b, err := store.NewFileBackend(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	case config.StoreBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return store.NewRedisBackend(rdb), func() { _ = rdb.Close() }, nil
	case config.StoreBackendMemory:
		return store.NewMemoryBackend(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
}
