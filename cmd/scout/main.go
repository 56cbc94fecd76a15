package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"content_scout/internal/bot"
	"content_scout/internal/cache"
	"content_scout/internal/config"
	"content_scout/internal/fetcher"
	"content_scout/internal/filter"
	"content_scout/internal/metrics"
	"content_scout/internal/model"
	"content_scout/internal/planner"
	"content_scout/internal/quota"
	"content_scout/internal/scan"
	"content_scout/internal/scheduler"
	"content_scout/internal/scoring"
	"content_scout/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "run a single scan and exit")
	flag.Parse()

	if _, err := config.LoadEnvFiles(); err != nil {
		slog.Error("load env files", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	vocab, err := config.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		log.Error("load vocabulary", "error", err)
		os.Exit(1)
	}
	rules, err := filter.Compile(vocab.Filters)
	if err != nil {
		log.Error("compile relevance filters", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	limits := make(map[model.Platform]quota.Limit)
	for p, pc := range cfg.Platforms() {
		limits[p] = quota.Limit{Daily: pc.DailyLimit, Monthly: pc.MonthlyLimit}
	}
	tracker := quota.New(limits, quota.WithStore(store), quota.WithLogger(log.With("component", "quota")))
	if err := tracker.Load(ctx); err != nil {
		log.Error("load quota budgets", "error", err)
		os.Exit(1)
	}

	collector := metrics.New()
	responses := cache.New(cache.Options{TTL: cfg.CacheTTL})
	searchers := newSearchers(cfg, tracker, responses, collector, log)

	popts := planner.DefaultOptions()
	popts.MaxQueriesPerScan = cfg.MaxQueriesPerScan
	popts.MaxResultsPerQuery = cfg.MaxResultsPerQuery

	engine := scoring.New(scoring.Options{
		KnownAuthors:     vocab.KnownAuthors(),
		TopicKeywords:    vocab.Keywords,
		AdvancedPatterns: vocab.AdvancedPatterns,
	})

	var telegram *bot.Bot
	sinks := []scan.Sink{store}
	if cfg.TelegramBotToken != "" {
		telegram, err = bot.New(cfg.TelegramBotToken, store, cfg, tracker, log.With("component", "bot"))
		if err != nil {
			log.Error("create bot", "error", err)
			os.Exit(1)
		}
		if cfg.TelegramChatID != 0 {
			sinks = append(sinks, telegram.Notifier())
		}
	}

	orch := scan.New(scan.Config{
		Planner:       planner.New(vocab, popts),
		Quota:         tracker,
		Searchers:     searchers,
		Analyzer:      engine,
		Filter:        rules,
		Sinks:         sinks,
		Recorder:      store,
		Cache:         responses,
		Metrics:       collector,
		Log:           log.With("component", "scan"),
		MinScore:      cfg.MinScore,
		ExcludedTiers: cfg.ExcludedTiers,
	})

	if *once {
		report, err := orch.RunScan(ctx)
		if err != nil {
			log.Error("scan", "error", err)
			os.Exit(1)
		}
		log.Info("scan done", "scan_id", report.ID, "skipped", report.Skipped,
			"unique", report.Unique, "accepted", report.Accepted, "failed", report.Failed)
		return
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, collector, log)
	}

	sched := scheduler.New(orch, cfg.ScanInterval, log.With("component", "scheduler"))
	sched.SetHistory(store)

	log.Info("starting scout", "platforms", len(searchers), "interval", cfg.ScanInterval)

	if telegram == nil {
		sched.Run(ctx)
	} else {
		telegram.SetScanner(orch)
		go sched.Run(ctx)
		telegram.Run(ctx)
	}

	log.Info("scout stopped")
}

func newSearchers(cfg *config.Config, q *quota.Tracker, c *cache.Cache, m *metrics.Collector, log *slog.Logger) []scan.Searcher {
	client := &http.Client{}
	enabled := cfg.Platforms()

	var searchers []scan.Searcher
	for _, p := range model.Platforms {
		pc, ok := enabled[p]
		if !ok {
			continue
		}
		var src fetcher.Source
		switch p {
		case model.CodeHost:
			src = fetcher.NewGitHub(client, pc.Token)
		case model.Video:
			src = fetcher.NewYouTube(client, pc.Token)
		case model.ShortForm:
			src = fetcher.NewTwitter(client, pc.Token)
		}
		searchers = append(searchers, fetcher.NewAdapter(src, q, c,
			fetcher.WithLogger(log.With("component", "fetcher")),
			fetcher.WithMetrics(m),
		))
	}
	return searchers
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Collector, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
