package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/aluiziolira/amiami-scraper/models"
)

// QuerySpec is one query as written in a batch file. Types, categories and the
// sort key accept symbolic names (PRE_OWNED, CHARACTER) or raw upstream codes.
type QuerySpec struct {
	NumPages  int      `toml:"num_pages" yaml:"num_pages"`
	Keyword   string   `toml:"keyword" yaml:"keyword"`
	Types     []string `toml:"types" yaml:"types"`
	Category1 string   `toml:"category1" yaml:"category1"`
	Category2 string   `toml:"category2" yaml:"category2"`
	SortKey   string   `toml:"sort_key" yaml:"sort_key"`
}

// Batch is a list of queries run one after another.
type Batch struct {
	AlwaysScrapDetails *bool       `toml:"always_scrap_details" yaml:"always_scrap_details"`
	Queries            []QuerySpec `toml:"query" yaml:"query"`
}

// LoadBatch reads a TOML (.toml) or YAML (.yaml, .yml) batch file.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file %s: %w", path, err)
	}

	var batch Batch
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parse batch TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parse batch YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported batch file extension %q", ext)
	}

	if len(batch.Queries) == 0 {
		return nil, fmt.Errorf("batch file %s defines no queries", path)
	}
	return &batch, nil
}

// Resolve converts every spec into a validated models.Query.
func (b *Batch) Resolve() ([]models.Query, error) {
	out := make([]models.Query, 0, len(b.Queries))
	for i, spec := range b.Queries {
		q, err := spec.Query()
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i+1, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// Query converts the entry into a validated models.Query.
func (s QuerySpec) Query() (models.Query, error) {
	q := models.Query{
		NumPages:  s.NumPages,
		Keyword:   s.Keyword,
		Category1: models.ParseCategory1(s.Category1),
		Category2: models.ParseCategory2(s.Category2),
	}
	for _, raw := range s.Types {
		t, err := models.ParseItemType(raw)
		if err != nil {
			return models.Query{}, err
		}
		q.Types = append(q.Types, t)
	}
	sortKey, err := models.ParseSortKey(s.SortKey)
	if err != nil {
		return models.Query{}, err
	}
	q.SortKey = sortKey

	if err := q.Validate(); err != nil {
		return models.Query{}, fmt.Errorf("invalid query: %w", err)
	}
	return q, nil
}
