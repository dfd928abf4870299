package models

import (
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Query is the fixed parameter set accepted by the listing endpoint.
// A zero NumPages means "crawl until the listing runs out".
type Query struct {
	NumPages  int        `json:"num_pages" toml:"num_pages" yaml:"num_pages" validate:"min=0"`
	Keyword   string     `json:"keyword" toml:"keyword" yaml:"keyword"`
	Types     []ItemType `json:"types" toml:"types" yaml:"types" validate:"dive,oneof=s_st_list_preorder_available s_st_list_backorder_available s_st_list_newitem_available s_st_condition_flg"`
	Category1 Category1  `json:"category1" toml:"category1" yaml:"category1"`
	Category2 Category2  `json:"category2" toml:"category2" yaml:"category2"`
	SortKey   SortKey    `json:"sort_key" toml:"sort_key" yaml:"sort_key" validate:"omitempty,oneof=regtimed recommend releasedated preowned"`
}

// Validate checks the query against its struct constraints.
func (q Query) Validate() error {
	return validator.New().Struct(q)
}

// WithDefaults returns a copy with the sort key resolved: preowned-only queries
// sort by "preowned", everything else by "recent update".
func (q Query) WithDefaults() Query {
	out := q
	out.Types = slices.Clone(q.Types)
	if out.SortKey == "" {
		if len(out.Types) == 1 && out.Types[0] == TypePreOwned {
			out.SortKey = SortPreowned
		} else {
			out.SortKey = SortRecentUpdate
		}
	}
	return out
}

// String renders the deterministic cache key used in dump filenames.
// Field order is fixed; absent values render empty.
func (q Query) String() string {
	pages := ""
	if q.NumPages > 0 {
		pages = strconv.Itoa(q.NumPages)
	}
	types := make([]string, len(q.Types))
	for i, t := range q.Types {
		types[i] = string(t)
	}

	parts := []string{
		"num_pages=" + pages,
		"keyword=" + q.Keyword,
		"types=" + strings.Join(types, ","),
		"category1=" + string(q.Category1),
		"category2=" + string(q.Category2),
		"sort_key=" + string(q.SortKey),
	}
	return strings.Join(parts, "&")
}
