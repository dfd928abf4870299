package models

import (
	"fmt"
	"strings"
)

// SortKey is the s_sortkey value sent to the listing endpoint.
type SortKey string

const (
	SortRecentUpdate   SortKey = "regtimed"
	SortRecommendation SortKey = "recommend"
	SortReleaseDate    SortKey = "releasedated"
	SortPreowned       SortKey = "preowned"
)

// ItemType is a listing filter. Each selected type is sent as `<value>=1`.
type ItemType string

const (
	TypePreOrder  ItemType = "s_st_list_preorder_available"
	TypeBackOrder ItemType = "s_st_list_backorder_available"
	TypeNew       ItemType = "s_st_list_newitem_available"
	TypePreOwned  ItemType = "s_st_condition_flg"
)

// Category1 and Category2 are opaque upstream category codes.
type (
	Category1 string
	Category2 string
)

const (
	Category1AgeRestricted Category1 = "8551"

	Category2Foreign   Category2 = "1081"
	Category2Character Category2 = "1298"
	Category2Bishoujo  Category2 = "459"
)

var sortKeyNames = map[string]SortKey{
	"RECENT_UPDATE":  SortRecentUpdate,
	"RECOMMENDATION": SortRecommendation,
	"RELEASE_DATE":   SortReleaseDate,
	"PREOWNED":       SortPreowned,
}

var itemTypeNames = map[string]ItemType{
	"PRE_ORDER":  TypePreOrder,
	"BACK_ORDER": TypeBackOrder,
	"NEW":        TypeNew,
	"PRE_OWNED":  TypePreOwned,
}

var category1Names = map[string]Category1{
	"AGE_RESTRICTED": Category1AgeRestricted,
}

var category2Names = map[string]Category2{
	"FOREIGN":   Category2Foreign,
	"CHARACTER": Category2Character,
	"BISHOUJO":  Category2Bishoujo,
}

// ParseSortKey accepts a symbolic name (RECENT_UPDATE) or a raw upstream value (regtimed).
func ParseSortKey(s string) (SortKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if v, ok := sortKeyNames[strings.ToUpper(s)]; ok {
		return v, nil
	}
	for _, v := range sortKeyNames {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// ParseItemType accepts a symbolic name (PRE_OWNED) or a raw query flag (s_st_condition_flg).
func ParseItemType(s string) (ItemType, error) {
	s = strings.TrimSpace(s)
	if v, ok := itemTypeNames[strings.ToUpper(s)]; ok {
		return v, nil
	}
	for _, v := range itemTypeNames {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown item type %q", s)
}

// ParseCategory1 resolves a symbolic name; anything else is passed through as a raw code.
func ParseCategory1(s string) Category1 {
	s = strings.TrimSpace(s)
	if v, ok := category1Names[strings.ToUpper(s)]; ok {
		return v
	}
	return Category1(s)
}

// ParseCategory2 resolves a symbolic name; anything else is passed through as a raw code.
func ParseCategory2(s string) Category2 {
	s = strings.TrimSpace(s)
	if v, ok := category2Names[strings.ToUpper(s)]; ok {
		return v
	}
	return Category2(s)
}
