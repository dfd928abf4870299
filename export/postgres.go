// Package export copies enriched dumps into PostgreSQL.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/amiami-scraper/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultBatchSize bounds the number of upserts sent per round trip.
const DefaultBatchSize = 200

const schemaSQL = `CREATE TABLE IF NOT EXISTS amiami_items (
	gcode              TEXT NOT NULL,
	scode              TEXT NOT NULL DEFAULT '',
	name               TEXT NOT NULL,
	gcode_url          TEXT NOT NULL,
	scode_url          TEXT NOT NULL,
	image_url          TEXT NOT NULL,
	full_price         INTEGER NOT NULL,
	price              INTEGER,
	reward_point       INTEGER NOT NULL,
	sale_status        TEXT NOT NULL,
	release_date       TIMESTAMP,
	jancode            TEXT,
	maker_name         TEXT NOT NULL,
	modeler_name       TEXT NOT NULL,
	description        TEXT NOT NULL,
	memo               TEXT NOT NULL,
	copyright          TEXT NOT NULL,
	item_condition     TEXT NOT NULL,
	box_condition      TEXT NOT NULL,
	is_preowned        BOOLEAN NOT NULL,
	is_preorder        BOOLEAN NOT NULL,
	is_backorder       BOOLEAN NOT NULL,
	has_store_bonus    BOOLEAN NOT NULL,
	is_amiami_limited  BOOLEAN NOT NULL,
	is_age_limited     BOOLEAN NOT NULL,
	has_preorder_bonus BOOLEAN NOT NULL,
	is_on_sale         BOOLEAN NOT NULL,
	is_preowned_sale   BOOLEAN NOT NULL,
	categories         BIGINT[] NOT NULL,
	tags               TEXT[] NOT NULL,
	source_file        TEXT NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (gcode, scode)
)`

const upsertSQL = `INSERT INTO amiami_items
	(gcode, scode, name, gcode_url, scode_url, image_url, full_price, price, reward_point,
	 sale_status, release_date, jancode, maker_name, modeler_name, description, memo, copyright,
	 item_condition, box_condition, is_preowned, is_preorder, is_backorder, has_store_bonus,
	 is_amiami_limited, is_age_limited, has_preorder_bonus, is_on_sale, is_preowned_sale,
	 categories, tags, source_file)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31)
	ON CONFLICT (gcode, scode) DO UPDATE SET
	 name = EXCLUDED.name, gcode_url = EXCLUDED.gcode_url, scode_url = EXCLUDED.scode_url,
	 image_url = EXCLUDED.image_url, full_price = EXCLUDED.full_price, price = EXCLUDED.price,
	 reward_point = EXCLUDED.reward_point, sale_status = EXCLUDED.sale_status,
	 release_date = EXCLUDED.release_date, jancode = EXCLUDED.jancode,
	 maker_name = EXCLUDED.maker_name, modeler_name = EXCLUDED.modeler_name,
	 description = EXCLUDED.description, memo = EXCLUDED.memo, copyright = EXCLUDED.copyright,
	 item_condition = EXCLUDED.item_condition, box_condition = EXCLUDED.box_condition,
	 is_preowned = EXCLUDED.is_preowned, is_preorder = EXCLUDED.is_preorder,
	 is_backorder = EXCLUDED.is_backorder, has_store_bonus = EXCLUDED.has_store_bonus,
	 is_amiami_limited = EXCLUDED.is_amiami_limited, is_age_limited = EXCLUDED.is_age_limited,
	 has_preorder_bonus = EXCLUDED.has_preorder_bonus, is_on_sale = EXCLUDED.is_on_sale,
	 is_preowned_sale = EXCLUDED.is_preowned_sale, categories = EXCLUDED.categories,
	 tags = EXCLUDED.tags, source_file = EXCLUDED.source_file, updated_at = NOW()`

// Postgres upserts output records into the amiami_items table.
type Postgres struct {
	pool      *pgxpool.Pool
	batchSize int
	logger    *slog.Logger
}

// Connect opens a small pool against databaseURL and verifies it.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, batchSize: DefaultBatchSize, logger: logger}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// EnsureSchema creates the amiami_items table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create amiami_items: %w", err)
	}
	return nil
}

// Export upserts items tagged with the enriched dump filename they came from.
func (p *Postgres) Export(ctx context.Context, filename string, items []models.OutputItem) error {
	total := 0
	for _, chunk := range chunks(items, p.batchSize) {
		b := BuildBatch(filename, chunk)
		count := b.Len()
		if count == 0 {
			continue
		}
		br := p.pool.SendBatch(ctx, b)
		for k := 0; k < count; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert amiami_items: %w", err)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}
	p.logger.Info("exported items", slog.String("file", filename), slog.Int("rows", total))
	return nil
}

// BuildBatch queues one upsert per item. Items without a gcode are skipped.
func BuildBatch(filename string, items []models.OutputItem) *pgx.Batch {
	b := &pgx.Batch{}
	for _, it := range items {
		if strings.TrimSpace(it.Gcode) == "" {
			continue
		}
		var releaseDate *time.Time
		if it.ReleaseDate != nil {
			t := it.ReleaseDate.Time
			releaseDate = &t
		}
		categories := make([]int64, len(it.Categories))
		for i, c := range it.Categories {
			categories[i] = int64(c)
		}
		tags := it.Tags
		if tags == nil {
			tags = []string{}
		}

		b.Queue(upsertSQL,
			it.Gcode, it.Scode, it.Name, it.GcodeURL, it.ScodeURL, it.ImageURL, it.FullPrice, it.Price, it.RewardPoint,
			it.SaleStatus, releaseDate, it.JanCode, it.MakerName, it.ModelerName, it.Description, it.Memo, it.Copyright,
			it.ItemCondition, it.BoxCondition, it.IsPreowned, it.IsPreorder, it.IsBackorder, it.HasStoreBonus,
			it.IsAmiamiLimited, it.IsAgeLimited, it.HasPreorderBonus, it.IsOnSale, it.IsPreownedSale,
			categories, tags, filename,
		)
	}
	return b
}

func chunks(items []models.OutputItem, size int) [][]models.OutputItem {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]models.OutputItem
	for i := 0; i < len(items); i += size {
		j := min(i+size, len(items))
		out = append(out, items[i:j])
	}
	return out
}
