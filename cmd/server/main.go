package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crawlscope/internal/adapter"
	"crawlscope/internal/clock"
	"crawlscope/internal/codec"
	"crawlscope/internal/config"
	"crawlscope/internal/handler"
	"crawlscope/internal/hub"
	"crawlscope/internal/logging"
	"crawlscope/internal/metrics"
	"crawlscope/internal/service"
	"crawlscope/internal/watcher"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "crawlscope: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("crawlscope", pflag.ContinueOnError)
	flags := config.BindFlags(flagSet)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.PrintVersion {
		fmt.Println("crawlscope", version)
		return nil
	}

	if err := config.LoadDotEnv(flags.EnvFiles...); err != nil {
		return err
	}

	cfg, cfgPath, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, logLevel, err := logging.New(cfg.Log.Level, logging.Format(cfg.Log.Format))
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting crawlscope",
		zap.String("version", version),
		zap.String("config", cfgPath),
		zap.String("summary", cfg.Summary()))

	m := metrics.New("crawlscope")
	clk := clock.Real()

	// Initialize event bus and connect it to the SSE hub
	eventBus := service.NewEventBus(logger.Named("bus"))
	sseHub := hub.New(logger)
	eventChan := make(chan service.Event, 256)
	eventBus.Subscribe(eventChan)

	supervisor := adapter.NewSupervisor(adapter.SupervisorConfig{
		URL:                 cfg.Stream.URL,
		InitialInterval:     cfg.Stream.Reconnect.InitialInterval.Duration(),
		MaxInterval:         cfg.Stream.Reconnect.MaxInterval.Duration(),
		Multiplier:          cfg.Stream.Reconnect.Multiplier,
		RandomizationFactor: cfg.Stream.Reconnect.RandomizationFactor,
		MaxAttempts:         cfg.Stream.Reconnect.MaxAttempts,
		BreakerThreshold:    cfg.Stream.Breaker.FailureThreshold,
		BreakerTimeout:      cfg.Stream.Breaker.OpenTimeout.Duration(),
		CommandRate:         cfg.Stream.CommandRate,
		CommandBurst:        cfg.Stream.CommandBurst,
	}, adapter.NewWSDialer(cfg.Stream.HandshakeTimeout.Duration()), eventBus, m, logger)

	notifications := service.NewNotificationCenter(clk, cfg.Aggregator.NotificationTTL.Duration(), eventBus, logger.Named("notify"))
	crawl := service.NewCrawlControl(supervisor, notifications, eventBus, logger.Named("crawl"))
	supervisor.OnDisconnect(crawl.StreamLost)
	agg := service.NewAggregator(service.AggregatorDeps{
		Crawl:         crawl,
		Notifications: notifications,
		EventBus:      eventBus,
		Layout:        service.NewEventBusLayout(eventBus),
		Metrics:       m,
		Logger:        logger,
	}, func(flush service.FlushFunc) *service.Batcher {
		return service.NewBatcher(clk, cfg.Aggregator.FlushQuietPeriod.Duration(), flush)
	})

	router := handler.NewRouter(handler.RouterDeps{
		Crawl:          handler.NewCrawlHandler(agg, supervisor, codec.DefaultRegistry(), logger),
		Events:         sseHub,
		Metrics:        m,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sseHub.Run(ctx) })
	g.Go(func() error { return hub.Forward[service.Event](ctx, sseHub, eventChan) })
	g.Go(func() error { return supervisor.Run(ctx, agg.HandleRaw) })

	if cfgPath != "" {
		w := watcher.New(cfgPath, func() {
			reloaded, _, err := loadConfig(flags)
			if err != nil {
				logger.Warn("Ignoring invalid config change", zap.Error(err))
				return
			}
			if err := logging.SetLevel(logLevel, reloaded.Log.Level); err != nil {
				logger.Warn("Failed to apply log level", zap.Error(err))
				return
			}
			logger.Info("Config reloaded", zap.String("log_level", reloaded.Log.Level))
		}, logger)
		g.Go(func() error { return w.Watch(ctx) })
	}

	g.Go(func() error {
		logger.Info("Listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()

		agg.Shutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Exited with error", zap.Error(err))
		return err
	}
	logger.Info("Stopped")
	return nil
}

// loadConfig layers file, environment and flags, then validates
func loadConfig(flags *config.Flags) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if flags.ConfigPath != "" {
		cfg, path, err = config.LoadFromPath(flags.ConfigPath)
		if err == nil {
			err = config.ApplyEnv(cfg, os.LookupEnv)
		}
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}

	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
