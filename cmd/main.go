package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/feedmill/internal/adapters/aiscorer"
	"github.com/okian/feedmill/internal/adapters/cache"
	"github.com/okian/feedmill/internal/adapters/http/api"
	"github.com/okian/feedmill/internal/adapters/mq/queue"
	"github.com/okian/feedmill/internal/adapters/mq/worker"
	"github.com/okian/feedmill/internal/adapters/source"
	"github.com/okian/feedmill/internal/adapters/store"
	"github.com/okian/feedmill/internal/app"
	"github.com/okian/feedmill/internal/config"
	"github.com/okian/feedmill/internal/domain/feed"
	"github.com/okian/feedmill/internal/domain/model"
	"github.com/okian/feedmill/internal/domain/ranking"
	"github.com/okian/feedmill/internal/domain/relevance"
	"github.com/okian/feedmill/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	dbPingTimeout     = 5 * time.Second
)

func main() {
	// The default Go collectors would double up with the custom registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Durable storage is optional: a missing or unreachable database
	// degrades the service to memory-only caching with no archive.
	var archive *store.Store
	if cfg.DatabaseDSN != "" {
		archive, err = store.New(cfg.DatabaseDSN)
		if err != nil {
			log.Warn(ctx, "database unavailable; running memory-only", logger.Error(err))
			archive = nil
		} else {
			pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
			if err := archive.Ping(pingCtx); err != nil {
				log.Warn(ctx, "database ping failed; running memory-only", logger.Error(err))
				archive = nil
			}
			cancel()
		}
	}

	memory := cache.NewMemory()
	defer func() { _ = memory.Close() }()

	var durable cache.Tier
	if archive != nil {
		durable = archive.CacheTier()
	}
	tiered := cache.NewTiered(memory, durable)

	// Relevance enrichment: AI scoring when a key is configured, keyword
	// fallback otherwise.
	enrichOpts := []relevance.Option{
		relevance.WithCache(tiered),
		relevance.WithConcurrency(cfg.EnrichConcurrency),
	}
	if cfg.GeminiAPIKey != "" {
		scorer, err := aiscorer.New(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Warn(ctx, "gemini unavailable; using keyword fallback", logger.Error(err))
		} else {
			defer func() { _ = scorer.Close() }()
			enrichOpts = append(enrichOpts, relevance.WithScorer(scorer))
		}
	}
	enricher := relevance.New(enrichOpts...)

	ranker := ranking.New(
		ranking.WithParams(rankingParams(cfg)),
		ranking.WithSourceWeights(sourceWeights(cfg)),
	)

	mixer := feed.NewMixer(feed.WithHighlightCadence(cfg.HighlightCadence))

	fetchers := buildFetchers(cfg, tiered)
	highlighter := source.NewGoBlog(
		source.WithGoBlogURL(cfg.GoBlogURL),
		source.WithGoBlogCache(tiered),
	)

	// Archive pipeline: coordinator feeds the queue, workers drain it.
	svcOpts := []app.Option{
		app.WithLogger(log),
		app.WithHighlighter(highlighter),
		app.WithStaleWindow(cfg.StaleWindow()),
	}
	var pool *worker.Pool
	if archive != nil {
		jobs := queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueCapacity))
		pool = worker.NewPool(cfg.WorkerCount, jobs, archive)
		pool.Start(ctx)

		svcOpts = append(svcOpts,
			app.WithArchive(archive),
			app.WithCoordinator(app.NewCoordinator(archive, jobs)),
		)
	}

	svc := app.New(fetchers, enricher, ranker, mixer, tiered, svcOpts...)

	mux := http.NewServeMux()
	api.NewServer(svc).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if pool != nil {
		if err := pool.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "worker pool shutdown failed", logger.Error(err))
		}
	}

	log.Info(ctx, "server stopped")
}

// buildFetchers wires every source upstream behind its cached fetcher.
func buildFetchers(cfg *config.Config, tiered *cache.Tiered) []app.Fetcher {
	timeout := source.WithTimeout(cfg.FetchTimeout())
	return []app.Fetcher{
		source.NewFetcher(source.NewHackerNews(source.WithHNBaseURL(cfg.HackerNewsURL)), tiered, timeout),
		source.NewFetcher(source.NewLobsters(source.WithLobstersBaseURL(cfg.LobstersURL)), tiered, timeout),
		source.NewFetcher(source.NewDevto(source.WithDevtoBaseURL(cfg.DevtoURL)), tiered, timeout),
	}
}

// rankingParams maps config onto the scoring constants, keeping defaults
// for anything not configured.
func rankingParams(cfg *config.Config) ranking.Params {
	params := ranking.DefaultParams()
	if cfg.Gravity > 0 {
		params.Gravity = cfg.Gravity
	}
	if cfg.LikeWeight > 0 {
		params.LikeWeight = cfg.LikeWeight
	}
	if cfg.CommentWeight > 0 {
		params.CommentWeight = cfg.CommentWeight
	}
	if cfg.AgeOffset > 0 {
		params.AgeOffset = cfg.AgeOffset
	}
	if cfg.BoostWeight > 0 {
		params.BoostWeight = cfg.BoostWeight
	}
	if cfg.ScaleFactor > 0 {
		params.ScaleFactor = cfg.ScaleFactor
	}
	if cfg.LowEngagementPenalty > 0 {
		params.LowEngagementPenalty = cfg.LowEngagementPenalty
	}
	return params
}

// sourceWeights converts the flat config maps into per-source overrides.
func sourceWeights(cfg *config.Config) map[model.Source]ranking.SourceWeights {
	weights := make(map[model.Source]ranking.SourceWeights)
	for _, src := range model.Sources() {
		like, hasLike := cfg.SourceLikeWeights[string(src)]
		comment, hasComment := cfg.SourceCommentWeights[string(src)]
		if !hasLike && !hasComment {
			continue
		}
		w := ranking.SourceWeights{Like: cfg.LikeWeight, Comment: cfg.CommentWeight}
		if hasLike {
			w.Like = like
		}
		if hasComment {
			w.Comment = comment
		}
		weights[src] = w
	}
	return weights
}
