package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/mallardmetrics/buffer"
	"github.com/tomtom215/mallardmetrics/cache"
	"github.com/tomtom215/mallardmetrics/config"
	"github.com/tomtom215/mallardmetrics/geoip"
	"github.com/tomtom215/mallardmetrics/handler"
	"github.com/tomtom215/mallardmetrics/identity"
	"github.com/tomtom215/mallardmetrics/ingest"
	"github.com/tomtom215/mallardmetrics/logger"
	"github.com/tomtom215/mallardmetrics/metrics"
	"github.com/tomtom215/mallardmetrics/query"
	"github.com/tomtom215/mallardmetrics/ratelimit"
	"github.com/tomtom215/mallardmetrics/retention"
	"github.com/tomtom215/mallardmetrics/router"
	"github.com/tomtom215/mallardmetrics/storage"
	"github.com/tomtom215/mallardmetrics/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg)
	log.Info().Str("env", cfg.Env).Str("addr", cfg.Addr).Msg("mallardmetrics starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := storage.Open(ctx, cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage engine")
	}
	defer engine.Close()

	deriver, err := identity.NewDeriver([]byte(cfg.Secret))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize visitor-id deriver")
	}

	geoResolver, err := geoip.Open(cfg.GeoIPDatabasePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open geoip database")
	}
	defer geoResolver.Close()

	buf := buffer.New()
	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)
	queryCache := cache.New(cfg.CacheTTL())
	writer := storage.NewWriter(engine, buf, queryCache)

	flushDue := make(chan struct{}, 1)
	onFlushDue := func() {
		select {
		case flushDue <- struct{}{}:
		default:
		}
	}

	orchestrator := ingest.New(ingest.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		FilterBots:     cfg.FilterBots,
		FlushThreshold: cfg.FlushThreshold,
	}, deriver, limiter, geoResolver, buf, log, onFlushDue)

	coreRunner := query.NewRunner(engine)
	behavioralRunner := query.NewBehavioralRunner(engine, log, cfg.BehavioralQueriesEnabled)

	metricsRegistry := metrics.New()

	eventHandler := handler.NewEventHandler(orchestrator, log)
	statsHandler := handler.NewStatsHandler(coreRunner, behavioralRunner, queryCache, log)

	r := router.New(cfg, log, eventHandler, statsHandler, metricsRegistry.Handler())

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	reaper := retention.New(cfg.DataDir, cfg.RetentionDays, log)
	flushSupervisor := supervisor.New(writer, cfg.FlushInterval(), cfg.ShutdownTimeout(), log, flushDue)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reaper.Run(gctx)
		return nil
	})
	flushSupervisor.RunInGroup(gctx, g)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown completed with errors")
	} else {
		log.Info().Msg("stopped gracefully")
	}
}
