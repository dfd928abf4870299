package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/amiami-scraper/config"
	"github.com/aluiziolira/amiami-scraper/models"
	"github.com/aluiziolira/amiami-scraper/parser"
	"github.com/aluiziolira/amiami-scraper/scraper"
)

var fixedNow = time.Date(2025, 3, 18, 0, 5, 40, 0, time.UTC)

type fakeList struct {
	items []models.ListItem
	err   error
	query models.Query
}

func (f *fakeList) Crawl(_ context.Context, q models.Query) ([]models.ListItem, error) {
	f.query = q
	return f.items, f.err
}

type detailReply struct {
	items []models.OutputItem
	err   error
}

type fakeDetail struct {
	mu      sync.Mutex
	replies map[string]detailReply
	calls   []string
}

func (f *fakeDetail) Fetch(_ context.Context, code string, codeType models.CodeType, followRelated bool) ([]models.OutputItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s=%s follow=%t", codeType, code, followRelated))
	reply := f.replies[code]
	if reply.err != nil {
		return nil, reply.err
	}
	out := make([]models.OutputItem, len(reply.items))
	copy(out, reply.items)
	return out, nil
}

func (f *fakeDetail) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type countingRecorder struct {
	produced    int
	fallbacks   int
	checkpoints int
}

func (r *countingRecorder) AddOutputItems(n int) { r.produced += n }
func (r *countingRecorder) IncFallback()         { r.fallbacks++ }
func (r *countingRecorder) IncCheckpoint()       { r.checkpoints++ }

type fakeExporter struct {
	filename string
	items    []models.OutputItem
}

func (f *fakeExporter) Export(_ context.Context, filename string, items []models.OutputItem) error {
	f.filename = filename
	f.items = items
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.OutputDir = dir + "/output"
	cfg.WebDataDir = dir + "/web/data"
	return cfg
}

func newTestPipeline(cfg *config.Config, list ListCrawler, detail DetailFetcher, rec Recorder) (*Pipeline, *Store) {
	store := NewStore(cfg)
	p := New(list, detail, store, Options{
		Mapper:   parser.NewMapper("https://img.example.test", ""),
		Recorder: rec,
		Now:      func() time.Time { return fixedNow },
	})
	return p, store
}

func listItem(gcode string, preowned bool, day int) models.ListItem {
	date := models.Date{Time: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)}
	return models.ListItem{
		Gcode:       gcode,
		Gname:       "Item " + gcode,
		ThumbURL:    "/thumb/" + gcode + ".jpg",
		MaxPrice:    1000,
		CPriceTaxed: 1100,
		IsPreowned:  preowned,
		ReleaseDate: &date,
	}
}

func detailItem(gcode, scode string) models.OutputItem {
	price := 900
	return models.OutputItem{
		Gcode:      gcode,
		Scode:      scode,
		Name:       "Detail " + scode,
		Price:      &price,
		IsPreowned: true,
		Categories: []int{},
		Tags:       []string{"Maker"},
	}
}

func TestRunFansOutSiblings(t *testing.T) {
	cfg := testConfig(t)
	list := &fakeList{items: []models.ListItem{listItem("FIG-1", true, 5)}}
	detail := &fakeDetail{replies: map[string]detailReply{
		"FIG-1": {items: []models.OutputItem{
			detailItem("FIG-1", "S-0"),
			detailItem("FIG-1", "S-1"),
			detailItem("FIG-1", "S-2"),
		}},
	}}
	rec := &countingRecorder{}
	exporter := &fakeExporter{}
	store := NewStore(cfg)
	p := New(list, detail, store, Options{
		Recorder: rec,
		Exporter: exporter,
		Now:      func() time.Time { return fixedNow },
	})

	summary, err := p.Run(context.Background(), models.Query{NumPages: 1, Types: []models.ItemType{models.TypePreOwned}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Stage != string(StageManifested) {
		t.Fatalf("stage=%s, want %s", summary.Stage, StageManifested)
	}
	if summary.Timestamp != "20250318_000540" {
		t.Fatalf("timestamp=%q", summary.Timestamp)
	}
	if list.query.SortKey != models.SortPreowned {
		t.Fatalf("sort key=%q, want preowned", list.query.SortKey)
	}
	wantRaw := "20250318_000540-num_pages=1&keyword=&types=s_st_condition_flg&category1=&category2=&sort_key=preowned.json"
	if summary.RawFile != wantRaw {
		t.Fatalf("raw file=%q, want %q", summary.RawFile, wantRaw)
	}

	dump, found, err := store.ReadEnrichedDump(summary.EnrichedFile)
	if err != nil || !found {
		t.Fatalf("read enriched dump: found=%t err=%v", found, err)
	}
	if dump.CurrentIndex != 0 {
		t.Fatalf("current_index=%d, want 0", dump.CurrentIndex)
	}
	if dump.ItemsLength != 3 || len(dump.Items) != 3 {
		t.Fatalf("items_length=%d items=%d, want 3", dump.ItemsLength, len(dump.Items))
	}
	for i, item := range dump.Items {
		if item.ReleaseDate == nil || item.ReleaseDate.Day() != 5 {
			t.Fatalf("items[%d].release_date=%v, want the listing date", i, item.ReleaseDate)
		}
	}
	if rec.checkpoints != 1 || rec.produced != 3 || rec.fallbacks != 0 {
		t.Fatalf("recorder=%+v", rec)
	}
	if exporter.filename != "20250318_000540-mapped_items.json" || len(exporter.items) != 3 {
		t.Fatalf("export=%q/%d", exporter.filename, len(exporter.items))
	}
	if detail.calls[0] != "gcode=FIG-1 follow=true" {
		t.Fatalf("detail call=%q", detail.calls[0])
	}
}

func TestRunEnrichSkipsDetailsForNewItems(t *testing.T) {
	cfg := testConfig(t)
	detail := &fakeDetail{}
	p, store := newTestPipeline(cfg, nil, detail, nil)

	if err := store.WriteRawDump("raw.json", []models.ListItem{listItem("NEW-1", false, 1), listItem("LTD-2", false, 2)}); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	result, err := p.RunEnrich(context.Background(), "20250101_000000", "raw.json")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if detail.callCount() != 0 {
		t.Fatalf("detail calls=%d, want 0", detail.callCount())
	}
	if result.Produced != 2 || result.Processed != 2 {
		t.Fatalf("result=%+v", result)
	}

	dump, _, err := store.ReadEnrichedDump(result.Filename)
	if err != nil {
		t.Fatalf("read enriched: %v", err)
	}
	if dump.CurrentIndex != 1 {
		t.Fatalf("current_index=%d, want 1", dump.CurrentIndex)
	}
	if !dump.Items[1].IsAgeLimited {
		t.Fatalf("LTD item should be age limited")
	}
	if dump.Items[0].ImageURL != "https://img.example.test/thumb/NEW-1.jpg" {
		t.Fatalf("image url=%q", dump.Items[0].ImageURL)
	}
}

func TestRunEnrichAlwaysScrapDetails(t *testing.T) {
	cfg := testConfig(t)
	detail := &fakeDetail{replies: map[string]detailReply{
		"NEW-1": {items: []models.OutputItem{detailItem("NEW-1", "S-1")}},
	}}
	store := NewStore(cfg)
	p := New(nil, detail, store, Options{AlwaysScrapDetails: true, Now: func() time.Time { return fixedNow }})

	if err := store.WriteRawDump("raw.json", []models.ListItem{listItem("NEW-1", false, 1)}); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if _, err := p.RunEnrich(context.Background(), "20250101_000000", "raw.json"); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if detail.callCount() != 1 {
		t.Fatalf("detail calls=%d, want 1", detail.callCount())
	}
}

func TestRunEnrichRateLimitKeepsLastCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	detail := &fakeDetail{replies: map[string]detailReply{
		"A": {items: []models.OutputItem{detailItem("A", "SA")}},
		"B": {err: scraper.ErrRateLimited{Err: errors.New("Too Many Requests")}},
		"C": {items: []models.OutputItem{detailItem("C", "SC")}},
	}}
	p, store := newTestPipeline(cfg, nil, detail, nil)

	items := []models.ListItem{listItem("A", true, 1), listItem("B", true, 2), listItem("C", true, 3)}
	if err := store.WriteRawDump("raw.json", items); err != nil {
		t.Fatalf("write raw: %v", err)
	}

	result, err := p.RunEnrich(context.Background(), "20250101_000000", "raw.json")
	var rateLimited scraper.ErrRateLimited
	if !errors.As(err, &rateLimited) {
		t.Fatalf("err=%v, want rate limited", err)
	}
	if result.Stage != StageEnriching {
		t.Fatalf("stage=%s, want %s", result.Stage, StageEnriching)
	}

	dump, found, err := store.ReadEnrichedDump(EnrichedFilename("20250101_000000"))
	if err != nil || !found {
		t.Fatalf("read enriched: found=%t err=%v", found, err)
	}
	if dump.CurrentIndex != 0 || len(dump.Items) != 1 || dump.Items[0].Gcode != "A" {
		t.Fatalf("checkpoint=%d items=%v, want index 0 with only A", dump.CurrentIndex, dump.Items)
	}
	names, err := store.Manifest()
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("manifest=%v, want empty", names)
	}
}

func TestRunEnrichResumeMatchesSingleRun(t *testing.T) {
	replies := map[string]detailReply{
		"A": {items: []models.OutputItem{detailItem("A", "SA"), detailItem("A", "SA2")}},
		"B": {items: []models.OutputItem{detailItem("B", "SB")}},
		"C": {items: []models.OutputItem{detailItem("C", "SC")}},
	}
	items := []models.ListItem{listItem("A", true, 1), listItem("B", true, 2), listItem("C", true, 3)}

	// Uninterrupted run.
	cfgFull := testConfig(t)
	pFull, storeFull := newTestPipeline(cfgFull, nil, &fakeDetail{replies: replies}, nil)
	if err := storeFull.WriteRawDump("raw.json", items); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if _, err := pFull.RunEnrich(context.Background(), "ts", "raw.json"); err != nil {
		t.Fatalf("full enrich: %v", err)
	}
	full, _, err := storeFull.ReadEnrichedDump(EnrichedFilename("ts"))
	if err != nil {
		t.Fatalf("read full: %v", err)
	}

	// Interrupted on B, then resumed.
	cfg := testConfig(t)
	failing := map[string]detailReply{
		"A": replies["A"],
		"B": {err: scraper.ErrRateLimited{Err: errors.New("Too Many Requests")}},
	}
	p, store := newTestPipeline(cfg, nil, &fakeDetail{replies: failing}, nil)
	if err := store.WriteRawDump("raw.json", items); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if _, err := p.RunEnrich(context.Background(), "ts", "raw.json"); err == nil {
		t.Fatalf("expected interrupted enrich")
	}

	resumedDetail := &fakeDetail{replies: replies}
	resumed, _ := newTestPipeline(cfg, nil, resumedDetail, nil)
	result, err := resumed.RunEnrich(context.Background(), "ts", "raw.json")
	if err != nil {
		t.Fatalf("resumed enrich: %v", err)
	}
	if result.ResumedFrom != 1 {
		t.Fatalf("resumed from=%d, want 1", result.ResumedFrom)
	}
	if got := strings.Join(resumedDetail.calls, ","); got != "gcode=B follow=true,gcode=C follow=true" {
		t.Fatalf("resumed calls=%q", got)
	}

	got, _, err := store.ReadEnrichedDump(EnrichedFilename("ts"))
	if err != nil {
		t.Fatalf("read resumed: %v", err)
	}
	if got.CurrentIndex != full.CurrentIndex || got.ItemsLength != full.ItemsLength {
		t.Fatalf("resumed dump=(%d,%d), want (%d,%d)", got.CurrentIndex, got.ItemsLength, full.CurrentIndex, full.ItemsLength)
	}
	for i := range full.Items {
		if got.Items[i].Scode != full.Items[i].Scode {
			t.Fatalf("items[%d].Scode=%q, want %q", i, got.Items[i].Scode, full.Items[i].Scode)
		}
	}

	// A completed dump is not processed again.
	again := &fakeDetail{replies: replies}
	rerun, _ := newTestPipeline(cfg, nil, again, nil)
	if _, err := rerun.RunEnrich(context.Background(), "ts", "raw.json"); err != nil {
		t.Fatalf("rerun enrich: %v", err)
	}
	if again.callCount() != 0 {
		t.Fatalf("rerun detail calls=%d, want 0", again.callCount())
	}
	names, err := store.Manifest()
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if len(names) != 1 || names[0] != EnrichedFilename("ts") {
		t.Fatalf("manifest=%v", names)
	}
}

func TestRunEnrichFallsBackAndLogs(t *testing.T) {
	cfg := testConfig(t)
	detail := &fakeDetail{replies: map[string]detailReply{
		"B": {items: []models.OutputItem{detailItem("B", "SB")}},
	}}
	rec := &countingRecorder{}
	p, store := newTestPipeline(cfg, nil, detail, rec)

	items := []models.ListItem{listItem("A", true, 1), listItem("B", true, 2)}
	if err := store.WriteRawDump("raw.json", items); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	result, err := p.RunEnrich(context.Background(), "20250101_000000", "raw.json")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if result.Fallbacks != 1 || rec.fallbacks != 1 {
		t.Fatalf("fallbacks=%d/%d, want 1", result.Fallbacks, rec.fallbacks)
	}

	dump, _, err := store.ReadEnrichedDump(result.Filename)
	if err != nil {
		t.Fatalf("read enriched: %v", err)
	}
	if len(dump.Items) != 2 || dump.Items[0].Gcode != "A" || dump.Items[0].Scode != "" {
		t.Fatalf("items=%+v", dump.Items)
	}

	data, err := os.ReadFile(store.ErrorLogPath())
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	want := "20250318_000540 - On file 20250101_000000: Error at index 0 / gcode A\n"
	if string(data) != want {
		t.Fatalf("error log=%q, want %q", string(data), want)
	}
}

func TestRunEnrichCancelledContext(t *testing.T) {
	cfg := testConfig(t)
	p, store := newTestPipeline(cfg, nil, &fakeDetail{}, nil)
	if err := store.WriteRawDump("raw.json", []models.ListItem{listItem("A", false, 1)}); err != nil {
		t.Fatalf("write raw: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.RunEnrich(ctx, "ts", "raw.json"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if _, found, _ := store.ReadEnrichedDump(EnrichedFilename("ts")); found {
		t.Fatalf("no checkpoint expected")
	}
}

func TestRunStopsOnCrawlError(t *testing.T) {
	cfg := testConfig(t)
	list := &fakeList{err: scraper.ErrRateLimited{Err: errors.New("Too Many Requests")}}
	p, _ := newTestPipeline(cfg, list, &fakeDetail{}, nil)

	summary, err := p.Run(context.Background(), models.Query{})
	if !scraper.IsRateLimited(err) {
		t.Fatalf("err=%v, want rate limited", err)
	}
	if summary.Stage != string(StageCrawling) || summary.RawFile != "" {
		t.Fatalf("summary=%+v", summary)
	}
	if _, err := os.Stat(cfg.OutputDir); !os.IsNotExist(err) {
		t.Fatalf("output dir should not be created, stat err=%v", err)
	}
}
