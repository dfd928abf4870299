package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aluiziolira/amiami-scraper/models"
	"github.com/aluiziolira/amiami-scraper/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

const detailPath = "item"

// DetailCrawler fetches detail pages and maps them to output records.
type DetailCrawler struct {
	client         *Client
	mapper         parser.Mapper
	cache          *lru.Cache[string, *models.DetailResponse]
	primaryDelay   time.Duration
	secondaryDelay time.Duration
	sleep          Sleeper
	metrics        *Metrics
	logger         *slog.Logger
}

// Fetch returns the mapped record for code followed, when followRelated is set,
// by one record per sibling listed under other_items. Siblings are looked up by
// scode and never followed further. Failures other than rate limiting or
// cancellation are logged and yield no records for that code.
func (d *DetailCrawler) Fetch(ctx context.Context, code string, codeType models.CodeType, followRelated bool) ([]models.OutputItem, error) {
	resp, err := d.lookup(ctx, code, codeType)
	if err != nil {
		if IsRateLimited(err) || ctx.Err() != nil {
			return nil, err
		}
		d.logger.Error("detail fetch failed",
			slog.String(string(codeType), code),
			slog.String("category", errorTypeLabel(err)),
			slog.Any("error", err),
		)
		return []models.OutputItem{}, nil
	}

	out := []models.OutputItem{d.mapper.FromDetail(resp)}
	if !followRelated {
		return out, nil
	}
	for _, other := range resp.Embedded.OtherItems {
		siblings, err := d.Fetch(ctx, other.Scode, models.CodeSecondary, false)
		if err != nil {
			return nil, err
		}
		out = append(out, siblings...)
	}
	return out, nil
}

func (d *DetailCrawler) lookup(ctx context.Context, code string, codeType models.CodeType) (*models.DetailResponse, error) {
	key := string(codeType) + ":" + code
	if d.cache != nil {
		if resp, ok := d.cache.Get(key); ok {
			d.metrics.IncCacheHit()
			return resp, nil
		}
	}

	params := url.Values{}
	params.Set(string(codeType), code)
	body, err := d.client.GetJSON(ctx, endpointDetail, detailPath, params)
	if err != nil && (IsRateLimited(err) || ctx.Err() != nil) {
		return nil, err
	}
	if sleepErr := d.sleep(ctx, jitter(d.delayFor(codeType))); sleepErr != nil {
		return nil, sleepErr
	}
	if err != nil {
		return nil, err
	}

	resp, err := parser.ParseDetailResponse(body)
	if err != nil {
		d.client.RecordDecodeError(err)
		return nil, ErrDecode{Err: err}
	}
	if !resp.APISuccess {
		return nil, apiFailure(resp, "unsuccessful response")
	}
	if resp.Item == nil {
		return nil, apiFailure(resp, "missing item")
	}

	if d.cache != nil {
		d.cache.Add(key, resp)
	}
	return resp, nil
}

func (d *DetailCrawler) delayFor(codeType models.CodeType) time.Duration {
	if codeType == models.CodeSecondary {
		return d.secondaryDelay
	}
	return d.primaryDelay
}

func apiFailure(resp *models.DetailResponse, reason string) error {
	code := ""
	if resp.APIValue != nil {
		code = *resp.APIValue
	}
	message := resp.APIMessage
	if message == "" {
		message = reason
	} else {
		message = fmt.Sprintf("%s: %s", reason, message)
	}
	return ErrAPIFailure{Code: code, Message: message}
}
