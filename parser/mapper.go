package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/aluiziolira/amiami-scraper/models"
)

// DefaultDetailRoot is the public detail page every canonical URL points at.
const DefaultDetailRoot = "https://www.amiami.com/eng/detail/"

var conditionPattern = regexp.MustCompile(`\(Pre-owned ITEM:([A-CJ][+-]?)/BOX:([ABC]|N)\)`)

// ParseCondition extracts the item and box grades from a pre-owned display name,
// e.g. "Figure (Pre-owned ITEM:A+/BOX:B)" gives ("A+", "B"). No match gives two empty strings.
func ParseCondition(sname string) (item, box string) {
	m := conditionPattern.FindStringSubmatch(sname)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// Mapper reduces list and detail records to models.OutputItem.
type Mapper struct {
	ImageRoot  string
	DetailRoot string
}

// NewMapper returns a mapper; an empty detailRoot falls back to DefaultDetailRoot.
func NewMapper(imageRoot, detailRoot string) Mapper {
	if detailRoot == "" {
		detailRoot = DefaultDetailRoot
	}
	return Mapper{ImageRoot: imageRoot, DetailRoot: detailRoot}
}

func (m Mapper) codeURL(codeType models.CodeType, code string) string {
	return m.DetailRoot + "?" + string(codeType) + "=" + url.QueryEscape(code)
}

// FromList minifies a listing row. The scode is unknown at this stage, so the
// secondary URL carries an empty code.
func (m Mapper) FromList(item models.ListItem) models.OutputItem {
	price := item.MaxPrice
	return models.OutputItem{
		Gcode:            item.Gcode,
		Name:             item.Gname,
		GcodeURL:         m.codeURL(models.CodePrimary, item.Gcode),
		ScodeURL:         m.codeURL(models.CodeSecondary, ""),
		ImageURL:         m.ImageRoot + item.ThumbURL,
		FullPrice:        item.CPriceTaxed,
		Price:            &price,
		ReleaseDate:      item.ReleaseDate,
		JanCode:          item.JanCode,
		IsPreowned:       item.IsPreowned,
		IsPreorder:       item.IsPreorder,
		IsBackorder:      item.ListBackorderAvailable,
		HasStoreBonus:    item.ListStoreBonus,
		IsAmiamiLimited:  item.ListAmiamiLimited,
		IsAgeLimited:     strings.HasPrefix(item.Gcode, "LTD"),
		HasPreorderBonus: item.ListStoreBonus,
		IsOnSale:         item.IsOnSale,
		IsPreownedSale:   item.IsPreownedSale,
		Categories:       []int{},
		Tags:             []string{},
	}
}

// FromDetail minifies a detail page and enriches it with tags and condition grades.
// resp.Item must not be nil.
func (m Mapper) FromDetail(resp *models.DetailResponse) models.OutputItem {
	item := resp.Item
	out := models.OutputItem{
		Gcode:            item.Gcode,
		Scode:            item.Scode,
		Name:             item.Gname,
		GcodeURL:         m.codeURL(models.CodePrimary, item.Gcode),
		ScodeURL:         m.codeURL(models.CodeSecondary, item.Scode),
		ImageURL:         m.ImageRoot + item.MainImageURL,
		FullPrice:        item.CPriceTaxed,
		Price:            item.Price,
		RewardPoint:      item.Point,
		SaleStatus:       item.SaleStatus,
		JanCode:          item.JanCode,
		MakerName:        item.MakerName,
		ModelerName:      item.Modeler,
		Description:      item.Spec,
		Memo:             item.Memo,
		Copyright:        item.Copyright,
		IsPreowned:       item.IsPreowned,
		IsPreorder:       item.IsPreorder,
		IsBackorder:      item.IsBackorder,
		HasStoreBonus:    item.HasStoreBonus,
		IsAmiamiLimited:  item.IsAmiamiLimited,
		IsAgeLimited:     item.IsAgeLimited,
		HasPreorderBonus: item.HasPreorderBonus,
		IsOnSale:         item.IsOnSale,
		IsPreownedSale:   item.IsPreownedSale,
		Categories:       append([]int{}, item.Categories...),
		Tags:             detailTags(resp.Embedded),
	}
	out.ItemCondition, out.BoxCondition = ParseCondition(item.Sname)
	return out
}

// detailTags concatenates maker, series, original title and character names, in that order.
func detailTags(emb models.DetailEmbedded) []string {
	sources := [][]models.NamedField{emb.Makers, emb.SeriesTitles, emb.OriginalTitles, emb.CharacterNames}
	tags := []string{}
	for _, src := range sources {
		for _, f := range src {
			tags = append(tags, f.Name)
		}
	}
	return tags
}
