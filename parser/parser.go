// Package parser turns upstream JSON payloads into typed records and maps them
// to the canonical output shape.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aluiziolira/amiami-scraper/models"
)

// ParseListResponse normalizes a listing page payload.
func ParseListResponse(body []byte) (*models.ListResponse, error) {
	root, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("list response: %w", err)
	}
	env, _, err := listEnvelopeSchema.apply(root)
	if err != nil {
		return nil, err
	}

	resp := &models.ListResponse{}
	resp.APISuccess, resp.APIValue, resp.APIMessage = readEnvelope(env)

	if sr, ok := env["search_result"].(map[string]any); ok {
		if n, ok := sr["total_results"].(json.Number); ok {
			if v, err := n.Int64(); err == nil {
				resp.TotalResults = int(v)
			}
		}
	}

	resp.Items, err = decodeList[models.ListItem](listItemSchema, env["items"])
	if err != nil {
		return nil, err
	}

	resp.CategoryTags = []models.CategoryTag{}
	if embedded, ok := env["_embedded"].(map[string]any); ok {
		resp.CategoryTags, err = decodeList[models.CategoryTag](categoryTagSchema, embedded["category_tags"])
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// ParseDetailResponse normalizes a detail page payload. A missing or null item
// body is not an error here; Item is left nil for the caller to judge.
func ParseDetailResponse(body []byte) (*models.DetailResponse, error) {
	root, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("detail response: %w", err)
	}
	env, _, err := detailEnvelopeSchema.apply(root)
	if err != nil {
		return nil, err
	}

	resp := &models.DetailResponse{}
	resp.APISuccess, resp.APIValue, resp.APIMessage = readEnvelope(env)

	switch raw := env["item"].(type) {
	case nil:
	case map[string]any:
		item, extra, err := decodeRecord[models.DetailItem](detailItemSchema, raw)
		if err != nil {
			return nil, err
		}
		if item.Categories == nil {
			item.Categories = []int{}
		}
		item.Extra = extra
		resp.Item = &item
	default:
		return nil, fmt.Errorf("detail response: item must be an object, got %T", raw)
	}

	resp.Embedded, err = parseDetailEmbedded(env["_embedded"])
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func parseDetailEmbedded(raw any) (models.DetailEmbedded, error) {
	var out models.DetailEmbedded
	src := map[string]any{}
	if raw != nil {
		obj, ok := raw.(map[string]any)
		if !ok {
			return out, fmt.Errorf("detail embedded: expected an object, got %T", raw)
		}
		src = obj
	}
	emb, _, err := detailEmbeddedSchema.apply(src)
	if err != nil {
		return out, err
	}

	if out.ReviewImages, err = decodeList[models.ReviewImage](reviewImageSchema, emb["review_images"]); err != nil {
		return out, err
	}
	if out.RelatedItems, err = decodeList[models.RelatedItem](relatedItemSchema, emb["related_items"]); err != nil {
		return out, err
	}
	if out.OtherItems, err = decodeList[models.OtherItem](otherItemSchema, emb["other_items"]); err != nil {
		return out, err
	}
	if out.Makers, err = decodeList[models.NamedField](namedFieldSchema, emb["makers"]); err != nil {
		return out, err
	}
	if out.SeriesTitles, err = decodeList[models.NamedField](namedFieldSchema, emb["series_titles"]); err != nil {
		return out, err
	}
	if out.OriginalTitles, err = decodeList[models.NamedField](namedFieldSchema, emb["original_titles"]); err != nil {
		return out, err
	}
	if out.CharacterNames, err = decodeList[models.NamedField](namedFieldSchema, emb["character_names"]); err != nil {
		return out, err
	}

	out.BonusImages = []any{}
	if bonus, ok := emb["bonus_images"].([]any); ok {
		out.BonusImages = bonus
	}
	return out, nil
}

func readEnvelope(env map[string]any) (success bool, value *string, message string) {
	success, _ = env["api_success"].(bool)
	if s, ok := env["api_value"].(string); ok {
		value = &s
	}
	message, _ = env["api_message"].(string)
	return success, value, message
}

// ValidateListItem ensures the listing row carries its primary identity.
func ValidateListItem(item *models.ListItem) error {
	if item == nil {
		return fmt.Errorf("list item is nil")
	}
	if strings.TrimSpace(item.Gcode) == "" {
		return fmt.Errorf("list item missing gcode (name %q)", item.Gname)
	}
	return nil
}
