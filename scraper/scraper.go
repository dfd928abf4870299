// Package scraper talks to the AmiAmi JSON API: a rate-aware HTTP client plus
// the listing and detail crawlers built on top of it.
package scraper

import (
	"fmt"
	"log/slog"

	"github.com/aluiziolira/amiami-scraper/config"
	"github.com/aluiziolira/amiami-scraper/models"
	"github.com/aluiziolira/amiami-scraper/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Options carries the optional collaborators of a Scraper.
type Options struct {
	Metrics *Metrics
	Logger  *slog.Logger
	Sleep   Sleeper
}

// Scraper bundles the client and both crawlers configured from one Config.
type Scraper struct {
	cfg     *config.Config
	Client  *Client
	List    *ListCrawler
	Detail  *DetailCrawler
	Metrics *Metrics
}

// Stats is a snapshot of request counters.
type Stats struct {
	RequestCount int
	ErrorCount   int
	ErrorsByType map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, opts Options) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	client, err := NewClient(cfg, opts.Metrics, logger)
	if err != nil {
		return nil, err
	}

	var cache *lru.Cache[string, *models.DetailResponse]
	if cfg.DetailCacheSize > 0 {
		cache, err = lru.New[string, *models.DetailResponse](cfg.DetailCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create detail cache: %w", err)
		}
	}

	return &Scraper{
		cfg:    cfg,
		Client: client,
		List: &ListCrawler{
			client:   client,
			pageSize: cfg.PageSize,
			delayMax: cfg.ListDelayMax,
			sleep:    sleep,
			metrics:  opts.Metrics,
			logger:   logger,
		},
		Detail: &DetailCrawler{
			client:         client,
			mapper:         parser.NewMapper(cfg.ImageRoot, cfg.DetailRoot),
			cache:          cache,
			primaryDelay:   cfg.DetailDelayMax,
			secondaryDelay: cfg.SiblingDelayMax,
			sleep:          sleep,
			metrics:        opts.Metrics,
			logger:         logger,
		},
		Metrics: opts.Metrics,
	}, nil
}

// Stats returns the current request counters.
func (s *Scraper) Stats() Stats {
	return Stats{
		RequestCount: s.Client.RequestCount(),
		ErrorCount:   s.Client.ErrorCount(),
		ErrorsByType: s.Client.ErrorsByType(),
	}
}
