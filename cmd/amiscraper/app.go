package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/amiami-scraper/config"
	"github.com/aluiziolira/amiami-scraper/export"
	"github.com/aluiziolira/amiami-scraper/models"
	"github.com/aluiziolira/amiami-scraper/parser"
	"github.com/aluiziolira/amiami-scraper/pipeline"
	"github.com/aluiziolira/amiami-scraper/scraper"
)

// app wires the scraper, the pipeline and the optional metrics server and
// database export for one command invocation.
type app struct {
	cfg           *config.Config
	scraper       *scraper.Scraper
	pipeline      *pipeline.Pipeline
	store         *pipeline.Store
	exporter      *export.Postgres
	metricsServer *http.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	metrics := scraper.NewMetrics()
	s, err := scraper.NewScraper(cfg, scraper.Options{Metrics: metrics, Logger: slog.Default()})
	if err != nil {
		return nil, fmt.Errorf("initialising scraper: %w", err)
	}

	a := &app{cfg: cfg, scraper: s, store: pipeline.NewStore(cfg)}

	opts := pipeline.Options{
		AlwaysScrapDetails: cfg.AlwaysScrapDetails,
		Mapper:             parser.NewMapper(cfg.ImageRoot, cfg.DetailRoot),
		Recorder:           metrics,
		Logger:             slog.Default(),
	}
	if cfg.DatabaseURL != "" {
		pg, err := export.Connect(ctx, cfg.DatabaseURL, slog.Default())
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		a.exporter = pg
		opts.Exporter = pg
		slog.Info("database export enabled")
	}
	a.pipeline = pipeline.New(s.List, s.Detail, a.store, opts)

	if cfg.MetricsAddr != "" {
		a.metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}
	return a, nil
}

// Close stops the metrics server and releases the database pool.
func (a *app) Close() {
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
	if a.exporter != nil {
		a.exporter.Close()
	}
}

func (a *app) runQueries(ctx context.Context, queries []models.Query) error {
	for i, q := range queries {
		slog.Info("starting query",
			slog.Int("query", i+1),
			slog.Int("of", len(queries)),
			slog.String("key", q.WithDefaults().String()),
			slog.Bool("always_details", a.cfg.AlwaysScrapDetails),
		)
		summary, err := a.pipeline.Run(ctx, q)
		printSummary(summary, a.scraper.Stats(), a.store)
		if err != nil {
			a.reportFailure(summary.Timestamp, summary.RawFile, err)
			return err
		}
	}
	slog.Info("end scraping", slog.Int("queries", len(queries)))
	return nil
}

func (a *app) crawl(ctx context.Context, q models.Query) error {
	raw, err := a.pipeline.RunScraping(ctx, q)
	if err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		return err
	}
	fmt.Printf("Raw dump: %s\n", a.store.RawPath(raw.Filename))
	fmt.Printf("Items:    %d\n", raw.Items)
	fmt.Printf("Enrich with: amiscraper enrich %s '%s'\n", raw.Timestamp, raw.Filename)
	return nil
}

func (a *app) enrich(ctx context.Context, timestamp, filename string) error {
	start := time.Now()
	result, err := a.pipeline.RunEnrich(ctx, timestamp, filename)
	if result != nil {
		summary := &models.RunSummary{
			Timestamp:    timestamp,
			RawFile:      filename,
			EnrichedFile: result.Filename,
			Stage:        string(result.Stage),
			ResumedFrom:  result.ResumedFrom,
			Produced:     result.Produced,
			Fallbacks:    result.Fallbacks,
			StartTime:    start,
			EndTime:      time.Now(),
		}
		printSummary(summary, a.scraper.Stats(), a.store)
	}
	if err != nil {
		a.reportFailure(timestamp, filename, err)
		return err
	}
	return nil
}

func (a *app) reportFailure(timestamp, rawFile string, err error) {
	slog.Error("run aborted", slog.Any("error", err))
	if rawFile == "" {
		return
	}
	if scraper.IsRateLimited(err) || errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Resume later with: amiscraper enrich %s '%s'\n", timestamp, rawFile)
	}
}

func printSummary(summary *models.RunSummary, stats scraper.Stats, store *pipeline.Store) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Printf("Run finished at stage %s\n", summary.Stage)

	if summary.RawFile != "" {
		fmt.Printf("  Raw dump:      %s\n", store.RawPath(summary.RawFile))
	}
	if summary.EnrichedFile != "" {
		fmt.Printf("  Enriched dump: %s\n", store.EnrichedPath(summary.EnrichedFile))
	}
	if summary.Crawled > 0 {
		fmt.Printf("  Crawled:       %d\n", summary.Crawled)
	}
	if summary.ResumedFrom > 0 {
		fmt.Printf("  Resumed from:  %d\n", summary.ResumedFrom)
	}
	fmt.Printf("  Produced:      %d\n", summary.Produced)
	fmt.Printf("  Fallbacks:     %d\n", summary.Fallbacks)

	successRate := 0.0
	if stats.RequestCount > 0 {
		successRate = float64(stats.RequestCount-stats.ErrorCount) / float64(stats.RequestCount) * 100
	}
	fmt.Printf("  Requests:      %d\n", stats.RequestCount)
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	if len(stats.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", stats.ErrorsByType)
	}
	if !summary.EndTime.IsZero() {
		fmt.Printf("  Duration:      %v\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))
	}
	fmt.Println(separator)
}
