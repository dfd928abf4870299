package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/amiami-scraper/config"
	"github.com/aluiziolira/amiami-scraper/models"
	"github.com/jarcoal/httpmock"
)

const testAPIRoot = "http://api.example.test/api/v1.0"

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Internal Server Error"), statusCode: http.StatusInternalServerError, expected: "http_status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestClassifyErrorSuccess(t *testing.T) {
	if err := classifyError(nil, http.StatusOK); err != nil {
		t.Fatalf("classifyError(nil, 200) = %v, want nil", err)
	}
}

func TestListParams(t *testing.T) {
	q := models.Query{
		Keyword: "miku",
		Types:   []models.ItemType{models.TypePreOwned},
	}.WithDefaults()

	params := listParams(q, 3, 30)
	want := map[string]string{
		"pagecnt":            "3",
		"pagemax":            "30",
		"lang":               "eng",
		"age_confirm":        "1",
		"s_keywords":         "miku",
		"s_cate1":            "",
		"s_cate2":            "",
		"s_sortkey":          "preowned",
		"s_st_condition_flg": "1",
	}
	for key, value := range want {
		if got := params.Get(key); got != value {
			t.Fatalf("param %s = %q, want %q", key, got, value)
		}
	}
	if len(params) != len(want) {
		t.Fatalf("params has %d keys, want %d: %v", len(params), len(want), params)
	}
}

func TestListCrawlerStopsAtPageLimit(t *testing.T) {
	transport := httpmock.NewMockTransport()
	pages := &pageRecorder{}
	transport.RegisterResponder(http.MethodGet, testAPIRoot+"/items", pages.responder(map[string]string{
		"1": listBody(true, "A-1", "A-2"),
		"2": listBody(true),
	}))

	s, sleeps := newTestScraper(t, transport)
	items, err := s.List.Crawl(context.Background(), models.Query{NumPages: 1, Types: []models.ItemType{models.TypeNew}})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items=%d, want 2", len(items))
	}
	if got := pages.calls(); len(got) != 1 || got[0] != "1" {
		t.Fatalf("pages fetched=%v, want [1]", got)
	}
	if sleeps.count() != 0 {
		t.Fatalf("sleeps=%d, want 0", sleeps.count())
	}
}

func TestListCrawlerStopsOnEmptyPage(t *testing.T) {
	transport := httpmock.NewMockTransport()
	pages := &pageRecorder{}
	transport.RegisterResponder(http.MethodGet, testAPIRoot+"/items", pages.responder(map[string]string{
		"1": listBody(true, "A-1", "A-2"),
		"2": listBody(true, "A-3"),
		"3": listBody(true),
		"4": listBody(true, "A-4"),
	}))

	s, sleeps := newTestScraper(t, transport)
	items, err := s.List.Crawl(context.Background(), models.Query{})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items=%d, want 3", len(items))
	}
	if items[2].Gcode != "A-3" {
		t.Fatalf("items[2].Gcode=%q, want A-3", items[2].Gcode)
	}
	if got := pages.calls(); len(got) != 3 {
		t.Fatalf("pages fetched=%v, want 3 pages", got)
	}
	if sleeps.count() != 2 {
		t.Fatalf("sleeps=%d, want 2", sleeps.count())
	}
}

func TestListCrawlerStopsOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		page2 httpmock.Responder
	}{
		{name: "api failure", page2: httpmock.NewStringResponder(http.StatusOK, listBody(false, "A-9"))},
		{name: "server error", page2: httpmock.NewStringResponder(http.StatusInternalServerError, "")},
		{name: "malformed", page2: httpmock.NewStringResponder(http.StatusOK, `{"RSuccess": true, "items": [`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder(http.MethodGet, testAPIRoot+"/items", func(req *http.Request) (*http.Response, error) {
				if req.URL.Query().Get("pagecnt") == "1" {
					return httpmock.NewStringResponse(http.StatusOK, listBody(true, "A-1")), nil
				}
				return tt.page2(req)
			})

			s, _ := newTestScraper(t, transport)
			items, err := s.List.Crawl(context.Background(), models.Query{})
			if err != nil {
				t.Fatalf("crawl: %v", err)
			}
			if len(items) != 1 {
				t.Fatalf("items=%d, want 1", len(items))
			}
		})
	}
}

func TestListCrawlerRateLimitIsFatal(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, testAPIRoot+"/items", httpmock.NewStringResponder(http.StatusTooManyRequests, ""))

	s, _ := newTestScraper(t, transport)
	_, err := s.List.Crawl(context.Background(), models.Query{})
	if !IsRateLimited(err) {
		t.Fatalf("err=%v, want rate limited", err)
	}
	if got := s.Stats().ErrorsByType["rate_limited"]; got != 1 {
		t.Fatalf("rate_limited errors=%d, want 1", got)
	}
}

func TestListCrawlerSendsHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.ExtraHeaders = map[string]string{"X-Trace": "abc"}

	var mu sync.Mutex
	var seen http.Header
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, testAPIRoot+"/items", func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		seen = req.Header.Clone()
		mu.Unlock()
		return httpmock.NewStringResponse(http.StatusOK, listBody(true)), nil
	})

	s, err := NewScraper(cfg, Options{Sleep: (&sleepRecorder{}).sleep})
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.Client.WithTransport(transport)

	if _, err := s.List.Crawl(context.Background(), models.Query{}); err != nil {
		t.Fatalf("crawl: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got := seen.Get("X-User-Key"); got != cfg.UserKey {
		t.Fatalf("X-User-Key=%q, want %q", got, cfg.UserKey)
	}
	if got := seen.Get("X-Trace"); got != "abc" {
		t.Fatalf("X-Trace=%q, want abc", got)
	}
}

func TestDetailCrawlerFollowsSiblingsOnce(t *testing.T) {
	transport := httpmock.NewMockTransport()
	details := &pageRecorder{}
	transport.RegisterResponder(http.MethodGet, testAPIRoot+"/item", details.detailResponder(map[string]string{
		"gcode=FIG-1": detailBody("FIG-1", "FIG-1-S0", "S-1", "S-2"),
		"scode=S-1":   detailBody("FIG-1", "S-1", "FIG-1-S0", "S-2"),
		"scode=S-2":   detailBody("FIG-1", "S-2", "FIG-1-S0", "S-1"),
	}))

	s, sleeps := newTestScraper(t, transport)
	items, err := s.Detail.Fetch(context.Background(), "FIG-1", models.CodePrimary, true)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items=%d, want 3", len(items))
	}
	wantScodes := []string{"FIG-1-S0", "S-1", "S-2"}
	for i, want := range wantScodes {
		if items[i].Scode != want {
			t.Fatalf("items[%d].Scode=%q, want %q", i, items[i].Scode, want)
		}
	}
	if got := details.calls(); len(got) != 3 {
		t.Fatalf("detail requests=%v, want 3", got)
	}
	if items[1].ItemCondition != "B+" || items[1].BoxCondition != "N" {
		t.Fatalf("condition=%q/%q, want B+/N", items[1].ItemCondition, items[1].BoxCondition)
	}

	durations := sleeps.all()
	if len(durations) != 3 {
		t.Fatalf("sleeps=%d, want 3", len(durations))
	}
	for i, d := range durations[1:] {
		if d >= time.Second {
			t.Fatalf("sibling sleep %d = %v, want < 1s", i, d)
		}
	}
}

func TestDetailCrawlerWithoutFollow(t *testing.T) {
	transport := httpmock.NewMockTransport()
	details := &pageRecorder{}
	transport.RegisterResponder(http.MethodGet, testAPIRoot+"/item", details.detailResponder(map[string]string{
		"scode=S-1": detailBody("FIG-1", "S-1", "S-2"),
	}))

	s, _ := newTestScraper(t, transport)
	items, err := s.Detail.Fetch(context.Background(), "S-1", models.CodeSecondary, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items=%d, want 1", len(items))
	}
	if got := details.calls(); len(got) != 1 {
		t.Fatalf("detail requests=%v, want 1", got)
	}
}

func TestDetailCrawlerNonFatalFailuresYieldNothing(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		errorType string
	}{
		{name: "not found", responder: httpmock.NewStringResponder(http.StatusNotFound, ""), errorType: "not_found"},
		{name: "server error", responder: httpmock.NewStringResponder(http.StatusBadGateway, ""), errorType: "http_status"},
		{name: "malformed", responder: httpmock.NewStringResponder(http.StatusOK, "<html>"), errorType: "decode"},
		{name: "api failure", responder: httpmock.NewStringResponder(http.StatusOK, `{"RSuccess": false, "RValue": "E01", "RMessage": "gone", "item": null}`)},
		{name: "missing item", responder: httpmock.NewStringResponder(http.StatusOK, `{"RSuccess": true, "RMessage": "", "item": null}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder(http.MethodGet, testAPIRoot+"/item", tt.responder)

			s, sleeps := newTestScraper(t, transport)
			items, err := s.Detail.Fetch(context.Background(), "FIG-1", models.CodePrimary, true)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if items == nil || len(items) != 0 {
				t.Fatalf("items=%v, want empty non-nil slice", items)
			}
			if sleeps.count() != 1 {
				t.Fatalf("sleeps=%d, want 1", sleeps.count())
			}
			if tt.errorType != "" {
				if got := s.Stats().ErrorsByType[tt.errorType]; got != 1 {
					t.Fatalf("%s errors=%d, want 1 (%v)", tt.errorType, got, s.Stats().ErrorsByType)
				}
			}
		})
	}
}

func TestDetailCrawlerRateLimitIsFatal(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, testAPIRoot+"/item", func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("scode") == "S-2" {
			return httpmock.NewStringResponse(http.StatusTooManyRequests, ""), nil
		}
		if req.URL.Query().Get("scode") == "S-1" {
			return httpmock.NewStringResponse(http.StatusOK, detailBody("FIG-1", "S-1")), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, detailBody("FIG-1", "S-0", "S-1", "S-2")), nil
	})

	s, sleeps := newTestScraper(t, transport)
	items, err := s.Detail.Fetch(context.Background(), "FIG-1", models.CodePrimary, true)
	if !IsRateLimited(err) {
		t.Fatalf("err=%v, want rate limited", err)
	}
	if items != nil {
		t.Fatalf("items=%v, want nil", items)
	}
	if sleeps.count() != 2 {
		t.Fatalf("sleeps=%d, want 2", sleeps.count())
	}
}

func TestDetailCrawlerCachesResponses(t *testing.T) {
	transport := httpmock.NewMockTransport()
	details := &pageRecorder{}
	transport.RegisterResponder(http.MethodGet, testAPIRoot+"/item", details.detailResponder(map[string]string{
		"gcode=FIG-1": detailBody("FIG-1", "S-0", "S-1"),
		"gcode=FIG-2": detailBody("FIG-2", "S-5", "S-1"),
		"scode=S-1":   detailBody("FIG-1", "S-1"),
	}))

	s, sleeps := newTestScraper(t, transport)
	for _, code := range []string{"FIG-1", "FIG-2"} {
		items, err := s.Detail.Fetch(context.Background(), code, models.CodePrimary, true)
		if err != nil {
			t.Fatalf("fetch %s: %v", code, err)
		}
		if len(items) != 2 {
			t.Fatalf("fetch %s: items=%d, want 2", code, len(items))
		}
	}
	if got := details.calls(); len(got) != 3 {
		t.Fatalf("detail requests=%v, want 3", got)
	}
	if sleeps.count() != 3 {
		t.Fatalf("sleeps=%d, want 3", sleeps.count())
	}
}

func TestGetJSONHonoursCancelledContext(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, testAPIRoot+"/items", httpmock.NewStringResponder(http.StatusOK, listBody(true)))

	s, _ := newTestScraper(t, transport)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Client.GetJSON(ctx, endpointList, listPath, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("transport calls=%d, want 0", got)
	}
	if got := s.Stats().RequestCount; got != 0 {
		t.Fatalf("requests=%d, want 0", got)
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.APIRoot = testAPIRoot
	cfg.PageSize = 2
	return cfg
}

func newTestScraper(t *testing.T, transport *httpmock.MockTransport) (*Scraper, *sleepRecorder) {
	t.Helper()
	sleeps := &sleepRecorder{}
	s, err := NewScraper(testConfig(), Options{Metrics: NewMetrics(), Sleep: sleeps.sleep})
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.Client.WithTransport(transport)
	return s, sleeps
}

type sleepRecorder struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.durations = append(s.durations, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.durations)
}

func (s *sleepRecorder) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.durations...)
}

// pageRecorder serves canned bodies keyed by a query value and records the keys requested.
type pageRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (p *pageRecorder) record(key string) {
	p.mu.Lock()
	p.keys = append(p.keys, key)
	p.mu.Unlock()
}

func (p *pageRecorder) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func (p *pageRecorder) responder(bodies map[string]string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		page := req.URL.Query().Get("pagecnt")
		p.record(page)
		body, ok := bodies[page]
		if !ok {
			body = listBody(true)
		}
		return httpmock.NewStringResponse(http.StatusOK, body), nil
	}
}

func (p *pageRecorder) detailResponder(bodies map[string]string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		key := req.URL.RawQuery
		p.record(key)
		body, ok := bodies[key]
		if !ok {
			return httpmock.NewStringResponse(http.StatusNotFound, ""), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, body), nil
	}
}

func listBody(success bool, gcodes ...string) string {
	items := make([]string, len(gcodes))
	for i, code := range gcodes {
		items[i] = fmt.Sprintf(`{"gcode": %q, "gname": "Item %s", "thumb_url": "/thumb/%s.jpg", "max_price": 1000, "condition_flg": 0}`, code, code, code)
	}
	return fmt.Sprintf(`{"RSuccess": %t, "RValue": null, "RMessage": "", "search_result": {"total_results": %d}, "items": [%s], "_embedded": {"category_tags": []}}`,
		success, len(gcodes), strings.Join(items, ","))
}

func detailBody(gcode, scode string, siblings ...string) string {
	others := make([]string, len(siblings))
	for i, code := range siblings {
		others[i] = fmt.Sprintf(`{"scode": %q, "price": 5000, "condition": "B+"}`, code)
	}
	return fmt.Sprintf(`{
		"RSuccess": true, "RValue": null, "RMessage": "",
		"item": {
			"gcode": %q, "scode": %q, "gname": "Figure",
			"sname": "Figure (Pre-owned ITEM:B+/BOX:N)", "price": 5000, "condition_flg": 1
		},
		"_embedded": {"other_items": [%s], "makers": [{"id": 1, "name": "Maker"}]}
	}`, gcode, scode, strings.Join(others, ","))
}
