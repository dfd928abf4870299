package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/aluiziolira/amiami-scraper/models"
	"github.com/aluiziolira/amiami-scraper/parser"
)

const listPath = "items"

// ListCrawler paginates the listing endpoint for one query.
type ListCrawler struct {
	client   *Client
	pageSize int
	delayMax time.Duration
	sleep    Sleeper
	metrics  *Metrics
	logger   *slog.Logger
}

// Crawl returns every listing row for q in page order. Pagination stops at the
// first failed or empty page, or once q.NumPages pages were read. Only a
// rate-limit response or a cancelled context is returned as an error.
func (l *ListCrawler) Crawl(ctx context.Context, q models.Query) ([]models.ListItem, error) {
	q = q.WithDefaults()
	results := []models.ListItem{}

	for page := 1; ; page++ {
		resp, err := l.fetchPage(ctx, q, page)
		if err != nil {
			if IsRateLimited(err) || ctx.Err() != nil {
				return results, err
			}
			l.logger.Error("list page failed", slog.Int("page", page), slog.Any("error", err))
			break
		}
		if !resp.APISuccess || len(resp.Items) == 0 {
			l.logger.Debug("listing exhausted",
				slog.Int("page", page),
				slog.Bool("success", resp.APISuccess),
				slog.String("message", resp.APIMessage),
			)
			break
		}

		kept := 0
		for i := range resp.Items {
			if err := parser.ValidateListItem(&resp.Items[i]); err != nil {
				l.logger.Warn("dropping list row", slog.Int("page", page), slog.Any("error", err))
				continue
			}
			results = append(results, resp.Items[i])
			kept++
		}
		l.metrics.AddListItems(kept)
		l.logger.Info("list page crawled",
			slog.Int("page", page),
			slog.Int("items", kept),
			slog.Int("total_results", resp.TotalResults),
		)

		if q.NumPages > 0 && page >= q.NumPages {
			break
		}
		if err := l.sleep(ctx, jitter(l.delayMax)); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (l *ListCrawler) fetchPage(ctx context.Context, q models.Query, page int) (*models.ListResponse, error) {
	body, err := l.client.GetJSON(ctx, endpointList, listPath, listParams(q, page, l.pageSize))
	if err != nil {
		return nil, err
	}
	resp, err := parser.ParseListResponse(body)
	if err != nil {
		l.client.RecordDecodeError(err)
		return nil, fmt.Errorf("page %d: %w", page, ErrDecode{Err: err})
	}
	return resp, nil
}

// listParams maps q onto the fixed listing parameter set. q must already carry
// its default sort key.
func listParams(q models.Query, page, pageSize int) url.Values {
	params := url.Values{}
	params.Set("pagecnt", strconv.Itoa(page))
	params.Set("pagemax", strconv.Itoa(pageSize))
	params.Set("lang", "eng")
	params.Set("age_confirm", "1")
	params.Set("s_keywords", q.Keyword)
	params.Set("s_cate1", string(q.Category1))
	params.Set("s_cate2", string(q.Category2))
	params.Set("s_sortkey", string(q.SortKey))
	for _, t := range q.Types {
		params.Set(string(t), "1")
	}
	return params
}
