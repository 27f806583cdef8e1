package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv"
	"github.com/GriffinCanCode/vatomsync/internal/domain/datapool"
	"github.com/GriffinCanCode/vatomsync/internal/domain/regions/inventory"
	"github.com/GriffinCanCode/vatomsync/internal/domain/session"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/cache"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/client"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/push"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/server"
)

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	clearCache := flag.Bool("clear-cache", false, "Delete every region snapshot and exit")
	flag.Parse()

	if err := run(*configPath, *clearCache); err != nil {
		fmt.Fprintf(os.Stderr, "vatomsync: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, clearCache bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	var store cache.Store
	if cfg.Cache.Enabled || clearCache {
		fs, err := cache.NewFileStore(cfg.Cache, cache.WithMetrics(metrics))
		if err != nil {
			return err
		}
		if clearCache {
			n, err := fs.Clear("")
			logger.Info("Region cache cleared", zap.String("dir", fs.Dir()), zap.Int("snapshots", n))
			return err
		}
		logger.Info("Region cache enabled",
			zap.String("dir", fs.Dir()),
			zap.String("compression", cfg.Cache.Compression),
		)
		store = fs
	}

	sessions := session.NewManager()
	tokens := tokenSource(cfg)
	api := blockv.NewPlatform(client.New(cfg.API, tokens,
		client.WithMetrics(metrics),
		client.WithLogger(logger.Logger),
	))

	channel := push.New(cfg.Push, cfg.API.AppID, tokens,
		push.WithLogger(logger.Logger),
		push.WithMetrics(metrics),
	)
	defer channel.Close()

	pool := datapool.New(datapool.Deps{
		API:       api,
		Sessions:  sessions,
		Store:     store,
		Feed:      channel,
		Sender:    channel,
		Inventory: cfg.Inventory,
		SaveDelay: cfg.Cache.SaveDelay.Std(),
		Logger:    logger.Logger,
		Metrics:   metrics,
	})
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Push.Enabled {
		if err := channel.Start(ctx); err != nil {
			return fmt.Errorf("failed to start push channel: %w", err)
		}
	}

	if cfg.Auth.UserID != "" {
		sessions.Set(session.Info{UserID: cfg.Auth.UserID})
		go syncInventory(ctx, pool, logger.Logger)
	} else {
		logger.Warn("No user configured, inventory will not be synchronized")
	}

	errCh := make(chan error, 1)
	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, pool, server.Options{
			Logger:    logger.Logger,
			Metrics:   metrics,
			Gatherer:  reg,
			Connected: channel.Connected,
		})
		go func() { errCh <- srv.Run(ctx) }()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("inspector failed: %w", err)
		}
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func tokenSource(cfg *config.Config) client.TokenSource {
	if cfg.Auth.RefreshToken != "" {
		return client.NewRefreshingTokens(cfg.API.BaseURL, cfg.Auth.AccessToken, cfg.Auth.RefreshToken)
	}
	return client.StaticToken(cfg.Auth.AccessToken)
}

func syncInventory(ctx context.Context, pool *datapool.Pool, logger *zap.Logger) {
	inv, err := pool.Region(inventory.Kind, nil)
	if err != nil {
		logger.Error("Failed to open inventory", zap.Error(err))
		return
	}

	start := time.Now()
	if err := inv.Synchronize(ctx); err != nil {
		return
	}
	st := inv.Status()
	if st.Error != "" {
		logger.Warn("Initial inventory sync failed", zap.String("error", st.Error))
		return
	}
	logger.Info("Inventory synchronized",
		zap.Int("objects", st.Objects),
		zap.Duration("duration", time.Since(start)),
	)
}
