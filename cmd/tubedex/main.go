// Package main wires together the tubedex discovery service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tubedex/tubedex/internal/api"
	"github.com/tubedex/tubedex/internal/clock/system"
	"github.com/tubedex/tubedex/internal/config"
	"github.com/tubedex/tubedex/internal/crawl"
	"github.com/tubedex/tubedex/internal/feeds"
	"github.com/tubedex/tubedex/internal/logging"
	"github.com/tubedex/tubedex/internal/metrics"
	"github.com/tubedex/tubedex/internal/platform"
	"github.com/tubedex/tubedex/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync() //nolint:errcheck
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, err := postgres.New(ctx, cfg.DB.DSN, logger.Named("store"))
	if err != nil {
		logger.Fatal("connect store failed", zap.Error(err))
	}
	defer store.Close()

	state := crawl.NewState(crawl.StateConfig{
		SeenCap:        cfg.Limits.SeenCap,
		RecentQueryCap: cfg.Limits.RecentQueryCap,
		QueueHighWater: cfg.Limits.QueueHighWater,
		QueueLowWater:  cfg.Limits.QueueLowWater,
	})
	sched := crawl.NewScheduler(state, crawl.SchedulerConfig{
		MaxConns:      cfg.Fetch.MaxConns,
		RatePerSecond: cfg.Fetch.RatePerSecond,
		Timeout:       cfg.FetchTimeout(),
		MaxRetries:    cfg.Fetch.MaxRetries,
		Gather:        cfg.Discovery.Gather,
		UserAgent:     crawl.RandomUserAgent,
	}, logger.Named("scheduler"))

	prober := crawl.NewProber(sched, state, store, crawl.ProberConfig{
		BaseDelay: time.Duration(cfg.Probe.DelayMs) * time.Millisecond,
	}, logger.Named("prober"))

	follower := feeds.New(state, prober, feeds.Config{
		UserAgent: crawl.RandomUserAgent(),
		Timeout:   cfg.FetchTimeout(),
	}, logger.Named("feeds"))

	extractor := crawl.NewExtractor(state, store, follower, crawl.ExtractorConfig{
		FollowChannels: cfg.Discovery.Channels,
	}, logger.Named("extractor"))

	searcher := platform.NewSearchClient(platform.SearchConfig{
		UserAgent: crawl.RandomUserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, logger.Named("platform-search"))
	suggester := platform.NewSuggestClient(platform.SuggestConfig{}, logger.Named("platform-suggest"))

	go sched.Run(ctx)
	go extractor.Run(ctx, sched.Results())

	// Stagger strategy start across cooperating instances so their schedules
	// do not tick in lockstep.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.StartStagger()):
		}
		if cfg.Discovery.RandomProbe {
			go prober.Run(ctx)
		}
		if cfg.Discovery.WebSearch {
			scraper := crawl.NewScraper(prober, state, crawl.ScraperConfig{}, logger.Named("scraper"))
			go scraper.Run(ctx)
		}
		if cfg.Discovery.PlatformSearch {
			driver := crawl.NewSearchDriver(prober, state, store, searcher, suggester, crawl.SearchDriverConfig{
				ManualQueries: cfg.Discovery.ManualQueries,
				Suggestions:   cfg.Discovery.Suggestions,
			}, logger.Named("search-driver"))
			go driver.Run(ctx)
		}
		if cfg.Discovery.Sweep {
			sweeper := crawl.NewSweeper(sched, store, crawl.SweeperConfig{
				PerItemDelay: time.Duration(cfg.Sweep.PerItemDelayMs) * time.Millisecond,
			}, logger.Named("sweeper"))
			go sweeper.Run(ctx)
		}
	}()

	server := api.NewServer(store, state, sched, system.New(), api.Config{
		RecordQueries: cfg.Discovery.ManualQueries,
	}, logger.Named("api"))

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("tubedex listening",
		zap.String("addr", cfg.ListenAddr()),
		zap.Int("instance", cfg.Instance.Ordinal),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve failed", zap.Error(err))
	}
}
