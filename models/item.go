// Package models defines data structures for the scraper.
package models

import "time"

// CodeType selects which identifier the detail endpoint is keyed by.
type CodeType string

const (
	CodePrimary   CodeType = "gcode"
	CodeSecondary CodeType = "scode"
)

// ListItem is one row of a listing page, after normalization.
type ListItem struct {
	Gcode                  string  `json:"gcode"`
	Gname                  string  `json:"gname"`
	ThumbURL               string  `json:"thumb_url"`
	MinPrice               int     `json:"min_price"`
	MaxPrice               int     `json:"max_price"`
	MakerName              *string `json:"maker_name"`
	IsOnSale               bool    `json:"is_on_sale"`
	IsPreowned             bool    `json:"is_preowned"`
	IsInStock              bool    `json:"is_in_stock"`
	IsOrderClosed          bool    `json:"is_order_closed"`
	ReleaseDate            *Date   `json:"releasedate"`
	JanCode                *string `json:"jancode"`
	IsPreorder             bool    `json:"is_preorder"`
	SaleTopItem            bool    `json:"saletopitem"`
	IsResale               bool    `json:"is_resale"`
	IsPreownedSale         bool    `json:"is_preowned_sale"`
	CatForWomen            bool    `json:"cat_for_women"`
	CatMoe                 bool    `json:"cat_moe"`
	Cate6                  *int    `json:"cate6"`
	Cate7                  *int    `json:"cate7"`
	BuyPrice               *int    `json:"buy_price"`
	ThumbAlt               *string `json:"thumb_alt"`
	ThumbTitle             *string `json:"thumb_title"`
	CPriceTaxed            int     `json:"c_price_taxed"`
	ListPreorderAvailable  bool    `json:"list_preorder_available"`
	ListBackorderAvailable bool    `json:"list_backorder_available"`
	ListStoreBonus         bool    `json:"list_store_bonus"`
	ListAmiamiLimited      bool    `json:"list_amiami_limited"`
	ElementID              *string `json:"element_id"`
	SaleStatus             *string `json:"salestatus"`
	SaleStatusDetail       *string `json:"salestatus_detail"`
	BuyFlg                 bool    `json:"buy_flg"`
	BuyRemarks             *string `json:"buy_remarks"`
	StockFlg               bool    `json:"stock_flg"`
	ImageOn                bool    `json:"image_on"`
	ImageCategory          *string `json:"image_category"`
	ImageName              *string `json:"image_name"`
	MetaAlt                *string `json:"metaalt"`
}

// CategoryTag is a facet count returned alongside listing pages.
type CategoryTag struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ListResponse is a normalized listing page.
type ListResponse struct {
	APISuccess   bool
	APIValue     *string
	APIMessage   string
	TotalResults int
	Items        []ListItem
	CategoryTags []CategoryTag
}

// DetailItem is the item body of a detail page. Only the fields consumed by the
// mapper are typed; the remaining upstream fields are kept opaque in Extra.
type DetailItem struct {
	Gcode                string  `json:"gcode"`
	Scode                string  `json:"scode"`
	Gname                string  `json:"gname"`
	Sname                string  `json:"sname"`
	MainImageURL         string  `json:"main_image_url"`
	ListPrice            int     `json:"list_price"`
	CPriceTaxed          int     `json:"c_price_taxed"`
	Price                *int    `json:"price"`
	Point                int     `json:"point"`
	SaleStatus           string  `json:"salestatus"`
	ReleaseDate          string  `json:"releasedate"`
	IsWatchListAvailable bool    `json:"is_watch_list_available"`
	JanCode              *string `json:"jancode"`
	MakerName            string  `json:"maker_name"`
	Modeler              string  `json:"modeler"`
	Spec                 string  `json:"spec"`
	Memo                 string  `json:"memo"`
	Copyright            string  `json:"copyright"`
	IsPreowned           bool    `json:"is_preowned"`
	IsPreorder           bool    `json:"is_preorder"`
	IsBackorder          bool    `json:"is_backorder"`
	HasStoreBonus        bool    `json:"has_store_bonus"`
	IsAmiamiLimited      bool    `json:"is_amiami_limited"`
	IsAgeLimited         bool    `json:"is_age_limited"`
	HasPreorderBonus     bool    `json:"has_preorder_bonus"`
	IsOnSale             bool    `json:"is_on_sale"`
	IsPreownedSale       bool    `json:"is_preowned_sale"`
	Categories           []int   `json:"categories"`

	Extra map[string]any `json:"-"`
}

// ReviewImage is an entry of the review_images side-list.
type ReviewImage struct {
	ImageURL string `json:"image_url"`
	ThumbURL string `json:"thumb_url"`
	Alt      string `json:"alt"`
	Title    string `json:"title"`
}

// RelatedItem is an entry of the related_items side-list.
type RelatedItem struct {
	Gcode         string `json:"gcode"`
	Gname         string `json:"gname"`
	ThumbURL      string `json:"thumb_url"`
	ThumbAlt      string `json:"thumb_alt"`
	ThumbTitle    string `json:"thumb_title"`
	ThumbAgeLimit bool   `json:"thumb_agelimit"`
}

// OtherItem references a sibling listing (e.g. another pre-owned copy) by scode.
type OtherItem struct {
	Scode     string `json:"scode"`
	IconType  *int   `json:"icon_type"`
	Price     *int   `json:"price"`
	Condition string `json:"condition"`
}

// NamedField is an {id, name} pair used by the maker/series/title/character side-lists.
type NamedField struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DetailEmbedded holds the side-lists of a detail page. Upstream nulls decode as empty.
type DetailEmbedded struct {
	ReviewImages   []ReviewImage `json:"review_images"`
	BonusImages    []any         `json:"bonus_images"`
	RelatedItems   []RelatedItem `json:"related_items"`
	OtherItems     []OtherItem   `json:"other_items"`
	Makers         []NamedField  `json:"makers"`
	SeriesTitles   []NamedField  `json:"series_titles"`
	OriginalTitles []NamedField  `json:"original_titles"`
	CharacterNames []NamedField  `json:"character_names"`
}

// DetailResponse is a normalized detail page. Item is nil when the body was missing.
type DetailResponse struct {
	APISuccess bool
	APIValue   *string
	APIMessage string
	Item       *DetailItem
	Embedded   DetailEmbedded
}

// OutputItem is the canonical flat record written to enriched dumps.
type OutputItem struct {
	Gcode         string  `json:"gcode"`
	Scode         string  `json:"scode"`
	Name          string  `json:"name"`
	GcodeURL      string  `json:"gcode_url"`
	ScodeURL      string  `json:"scode_url"`
	ImageURL      string  `json:"image_url"`
	FullPrice     int     `json:"full_price"`
	Price         *int    `json:"price"`
	RewardPoint   int     `json:"reward_point"`
	SaleStatus    string  `json:"sale_status"`
	ReleaseDate   *Date   `json:"release_date"`
	JanCode       *string `json:"jancode"`
	MakerName     string  `json:"maker_name"`
	ModelerName   string  `json:"modeler_name"`
	Description   string  `json:"description"`
	Memo          string  `json:"memo"`
	Copyright     string  `json:"copyright"`
	ItemCondition string  `json:"item_condition"`
	BoxCondition  string  `json:"box_condition"`

	IsPreowned       bool `json:"is_preowned"`
	IsPreorder       bool `json:"is_preorder"`
	IsBackorder      bool `json:"is_backorder"`
	HasStoreBonus    bool `json:"has_store_bonus"`
	IsAmiamiLimited  bool `json:"is_amiami_limited"`
	IsAgeLimited     bool `json:"is_age_limited"`
	HasPreorderBonus bool `json:"has_preorder_bonus"`
	IsOnSale         bool `json:"is_on_sale"`
	IsPreownedSale   bool `json:"is_preowned_sale"`

	Categories []int    `json:"categories"`
	Tags       []string `json:"tags"`
}

// RawDump is the list-stage output. ItemsLength always equals len(Items).
type RawDump struct {
	ItemsLength int        `json:"items_length"`
	Items       []ListItem `json:"items"`
}

// EnrichedDump is the resumable enrich-stage output. CurrentIndex is the last
// fully processed index into the source RawDump, -1 when nothing was processed.
type EnrichedDump struct {
	CurrentIndex int          `json:"current_index"`
	ItemsLength  int          `json:"items_length"`
	Items        []OutputItem `json:"items"`
}

// RunSummary holds the overall result of one crawl + enrich run.
type RunSummary struct {
	Timestamp    string
	RawFile      string
	EnrichedFile string
	Stage        string
	Crawled      int
	ResumedFrom  int
	Produced     int
	Fallbacks    int
	StartTime    time.Time
	EndTime      time.Time
}
