// Package pipeline runs the two-stage crawl: list crawl to a raw dump, then a
// resumable enrich pass that checkpoints after every source item.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/amiami-scraper/models"
	"github.com/aluiziolira/amiami-scraper/parser"
)

// Stage is the last state a run reached.
type Stage string

const (
	StageCrawling       Stage = "CRAWLING"
	StageDumpedRaw      Stage = "DUMPED_RAW"
	StageEnriching      Stage = "ENRICHING"
	StageDumpedEnriched Stage = "DUMPED_ENRICHED"
	StageManifested     Stage = "MANIFESTED"
)

// ListCrawler produces the listing rows for a query.
type ListCrawler interface {
	Crawl(ctx context.Context, q models.Query) ([]models.ListItem, error)
}

// DetailFetcher produces output records from detail pages. A returned error
// aborts the run; an empty result means the item should fall back to its listing row.
type DetailFetcher interface {
	Fetch(ctx context.Context, code string, codeType models.CodeType, followRelated bool) ([]models.OutputItem, error)
}

// Exporter receives every completed enriched dump.
type Exporter interface {
	Export(ctx context.Context, filename string, items []models.OutputItem) error
}

// Recorder counts enrich progress.
type Recorder interface {
	AddOutputItems(n int)
	IncFallback()
	IncCheckpoint()
}

// Options carries the optional collaborators of a Pipeline.
type Options struct {
	AlwaysScrapDetails bool
	Mapper             parser.Mapper
	Exporter           Exporter
	Recorder           Recorder
	Logger             *slog.Logger
	Now                func() time.Time
}

// Pipeline sequences the crawl and enrich stages for one query at a time.
type Pipeline struct {
	list     ListCrawler
	detail   DetailFetcher
	store    *Store
	mapper   parser.Mapper
	always   bool
	exporter Exporter
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// RawResult describes a completed crawl stage.
type RawResult struct {
	Timestamp string
	Filename  string
	Items     int
}

// EnrichResult describes an enrich pass.
type EnrichResult struct {
	Filename    string
	Stage       Stage
	ResumedFrom int
	Processed   int
	Produced    int
	Fallbacks   int
}

// New builds a pipeline.
func New(list ListCrawler, detail DetailFetcher, store *Store, opts Options) *Pipeline {
	p := &Pipeline{
		list:     list,
		detail:   detail,
		store:    store,
		mapper:   opts.Mapper,
		always:   opts.AlwaysScrapDetails,
		exporter: opts.Exporter,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if p.mapper.DetailRoot == "" {
		p.mapper = parser.NewMapper(p.mapper.ImageRoot, "")
	}
	if p.recorder == nil {
		p.recorder = nopRecorder{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// RunScraping crawls q and writes the raw dump.
func (p *Pipeline) RunScraping(ctx context.Context, q models.Query) (*RawResult, error) {
	q = q.WithDefaults()
	p.logger.Info("run scraping", slog.String("query", q.String()))

	items, err := p.list.Crawl(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}

	timestamp := Timestamp(p.now())
	filename := RawFilename(timestamp, q)
	if err := p.store.WriteRawDump(filename, items); err != nil {
		return nil, err
	}
	p.logger.Info("raw dump saved", slog.String("file", filename), slog.Int("items", len(items)))
	return &RawResult{Timestamp: timestamp, Filename: filename, Items: len(items)}, nil
}

// RunEnrich maps every item of the raw dump filename, resuming after the last
// checkpoint of the enriched dump paired with timestamp. Once all items are
// processed the enriched dump is registered in the manifest and exported.
func (p *Pipeline) RunEnrich(ctx context.Context, timestamp, filename string) (*EnrichResult, error) {
	raw, err := p.store.ReadRawDump(filename)
	if err != nil {
		return nil, err
	}

	enrichedName := EnrichedFilename(timestamp)
	dump, found, err := p.store.ReadEnrichedDump(enrichedName)
	if err != nil {
		return nil, err
	}
	if !found {
		dump = &models.EnrichedDump{CurrentIndex: -1, Items: []models.OutputItem{}}
	}

	result := &EnrichResult{
		Filename:    enrichedName,
		Stage:       StageEnriching,
		ResumedFrom: dump.CurrentIndex + 1,
	}
	p.logger.Info("run enrich",
		slog.String("file", filename),
		slog.Bool("resumed", found),
		slog.Int("start_index", result.ResumedFrom),
		slog.Int("items", len(raw.Items)),
	)

	for index := dump.CurrentIndex + 1; index < len(raw.Items); index++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item := raw.Items[index]
		p.logger.Info(fmt.Sprintf("(%d/%d) On item %s", index+1, len(raw.Items), item.Gcode),
			slog.String("url", p.mapper.DetailRoot+"?gcode="+item.Gcode),
		)

		mapped, fellBack, err := p.enrichItem(ctx, timestamp, index, item)
		if err != nil {
			return result, fmt.Errorf("enrich index %d (gcode %s): %w", index, item.Gcode, err)
		}
		if fellBack {
			result.Fallbacks++
		}

		dump.Items = append(dump.Items, mapped...)
		dump.CurrentIndex = index
		dump.ItemsLength = len(dump.Items)
		if err := p.store.WriteEnrichedDump(enrichedName, dump); err != nil {
			return result, err
		}
		p.recorder.IncCheckpoint()
		p.recorder.AddOutputItems(len(mapped))
		result.Processed++
		result.Produced += len(mapped)
	}
	result.Stage = StageDumpedEnriched

	if !found && len(raw.Items) == 0 {
		dump.ItemsLength = 0
		if err := p.store.WriteEnrichedDump(enrichedName, dump); err != nil {
			return result, err
		}
	}

	added, err := p.store.AppendManifest(enrichedName)
	if err != nil {
		return result, err
	}
	result.Stage = StageManifested
	p.logger.Info("enriched dump saved",
		slog.String("file", enrichedName),
		slog.Int("items", len(dump.Items)),
		slog.Bool("manifest_added", added),
	)

	if p.exporter != nil {
		if err := p.exporter.Export(ctx, enrichedName, dump.Items); err != nil {
			return result, fmt.Errorf("export %s: %w", enrichedName, err)
		}
	}
	return result, nil
}

// enrichItem maps one source row. Pre-owned rows, or every row when details are
// forced, go through the detail crawler; an empty detail result falls back to
// the listing row and is recorded in the error log.
func (p *Pipeline) enrichItem(ctx context.Context, timestamp string, index int, item models.ListItem) ([]models.OutputItem, bool, error) {
	if !item.IsPreowned && !p.always {
		p.logger.Debug("skipping details", slog.String("gcode", item.Gcode))
		return []models.OutputItem{p.mapper.FromList(item)}, false, nil
	}

	mapped, err := p.detail.Fetch(ctx, item.Gcode, models.CodePrimary, true)
	if err != nil {
		return nil, false, err
	}

	fellBack := false
	if len(mapped) == 0 {
		p.logger.Warn("no detail found, mapping from listing row",
			slog.Int("index", index),
			slog.String("gcode", item.Gcode),
		)
		mapped = []models.OutputItem{p.mapper.FromList(item)}
		fellBack = true
		p.recorder.IncFallback()
		if err := p.store.AppendErrorLog(errorLogLine(p.now(), timestamp, index, item.Gcode)); err != nil {
			return nil, false, err
		}
	}

	for i := range mapped {
		mapped[i].ReleaseDate = item.ReleaseDate
	}
	return mapped, fellBack, nil
}

// Run crawls q, then enriches the resulting raw dump.
func (p *Pipeline) Run(ctx context.Context, q models.Query) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		Stage:     string(StageCrawling),
		StartTime: p.now(),
	}
	defer func() { summary.EndTime = p.now() }()

	raw, err := p.RunScraping(ctx, q)
	if err != nil {
		return summary, err
	}
	summary.Stage = string(StageDumpedRaw)
	summary.Timestamp = raw.Timestamp
	summary.RawFile = raw.Filename
	summary.Crawled = raw.Items

	enriched, err := p.RunEnrich(ctx, raw.Timestamp, raw.Filename)
	if enriched != nil {
		summary.Stage = string(enriched.Stage)
		summary.EnrichedFile = enriched.Filename
		summary.ResumedFrom = enriched.ResumedFrom
		summary.Produced = enriched.Produced
		summary.Fallbacks = enriched.Fallbacks
	}
	return summary, err
}

func errorLogLine(now time.Time, timestamp string, index int, gcode string) string {
	return fmt.Sprintf("%s - On file %s: Error at index %d / gcode %s", Timestamp(now), timestamp, index, gcode)
}

type nopRecorder struct{}

func (nopRecorder) AddOutputItems(int) {}
func (nopRecorder) IncFallback()       {}
func (nopRecorder) IncCheckpoint()     {}
