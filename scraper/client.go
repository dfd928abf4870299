package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/amiami-scraper/config"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

const (
	endpointList   = "list"
	endpointDetail = "detail"

	ctxEndpoint = "endpoint"
	ctxStart    = "start"
	ctxStatus   = "status"
	ctxBody     = "body"
)

// Client issues GET requests against the API root through a synchronous colly
// collector. Calls are strictly sequential; the collector never runs async.
type Client struct {
	cfg       *config.Config
	apiRoot   string
	collector *colly.Collector
	headers   http.Header
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    *slog.Logger

	requestCount int64
	errorCount   int64

	mu           sync.Mutex
	errorsByType map[string]int
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config, metrics *Metrics, logger *slog.Logger) (*Client, error) {
	parsed, err := url.Parse(cfg.APIRoot)
	if err != nil {
		return nil, fmt.Errorf("parse api root: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api root must include a host")
	}
	if logger == nil {
		logger = slog.Default()
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	headers := http.Header{}
	headers.Set("X-User-Key", cfg.UserKey)
	headers.Set("User-Agent", cfg.UserAgent)
	headers.Set("Accept", "application/json")
	for name, value := range cfg.ExtraHeaders {
		headers.Set(name, value)
	}

	c := &Client{
		cfg:          cfg,
		apiRoot:      strings.TrimRight(cfg.APIRoot, "/"),
		collector:    collector,
		headers:      headers,
		metrics:      metrics,
		logger:       logger,
		errorsByType: make(map[string]int),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	c.configureHandlers()
	return c, nil
}

// WithTransport swaps the round tripper used by the underlying collector.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

func (c *Client) configureHandlers() {
	c.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		atomic.AddInt64(&c.requestCount, 1)
		c.metrics.IncRequest(r.Ctx.Get(ctxEndpoint))
		c.logger.Debug("request", slog.String("url", r.URL.String()))
	})

	c.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxStatus, r.StatusCode)
		r.Ctx.Put(ctxBody, r.Body)
		c.observe(r.Ctx)
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put(ctxStatus, r.StatusCode)
		c.observe(r.Ctx)
	})
}

func (c *Client) observe(ctx *colly.Context) {
	if start, ok := ctx.GetAny(ctxStart).(time.Time); ok {
		c.metrics.ObserveDuration(ctx.Get(ctxEndpoint), time.Since(start))
	}
}

// GetJSON requests <api root>/<path> with params and returns the raw body.
// Non-2xx responses and transport failures come back as typed errors.
func (c *Client) GetJSON(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := c.apiRoot + "/" + strings.TrimLeft(path, "/")
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}

	reqCtx := colly.NewContext()
	reqCtx.Put(ctxEndpoint, endpoint)
	err := c.collector.Request(http.MethodGet, target, nil, reqCtx, c.headers.Clone())

	status, _ := reqCtx.GetAny(ctxStatus).(int)
	if classified := classifyError(err, status); classified != nil {
		c.recordError(classified)
		return nil, fmt.Errorf("get %s: %w", endpoint, classified)
	}

	body, _ := reqCtx.GetAny(ctxBody).([]byte)
	return body, nil
}

func (c *Client) recordError(err error) {
	atomic.AddInt64(&c.errorCount, 1)
	label := errorTypeLabel(err)
	c.mu.Lock()
	c.errorsByType[label]++
	c.mu.Unlock()
	c.metrics.IncError(label)
}

// RecordDecodeError counts a payload that could not be normalized.
func (c *Client) RecordDecodeError(err error) {
	c.recordError(ErrDecode{Err: err})
}

// RequestCount returns the number of requests issued so far.
func (c *Client) RequestCount() int {
	return int(atomic.LoadInt64(&c.requestCount))
}

// ErrorCount returns the number of failed requests and undecodable payloads.
func (c *Client) ErrorCount() int {
	return int(atomic.LoadInt64(&c.errorCount))
}

// ErrorsByType returns a copy of the error counters keyed by type label.
func (c *Client) ErrorsByType() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		out[k] = v
	}
	return out
}
