package parser

var listItemSchema = newSchema("list item", []field{
	{from: "gcode", to: "gcode", required: true},
	{from: "gname", to: "gname", required: true},
	{from: "thumb_url", to: "thumb_url", coerce: toString},
	{from: "min_price", to: "min_price"},
	{from: "max_price", to: "max_price"},
	{from: "maker_name", to: "maker_name", coerce: toOptString},
	{from: "saleitem", to: "is_on_sale", coerce: toBool},
	{from: "condition_flg", to: "is_preowned", coerce: toBool},
	{from: "instock_flg", to: "is_in_stock", coerce: toBool},
	{from: "order_closed_flg", to: "is_order_closed", coerce: toBool},
	{from: "releasedate", to: "releasedate", coerce: toDate},
	{from: "jancode", to: "jancode", coerce: toOptString},
	{from: "preorderitem", to: "is_preorder", coerce: toBool},
	{from: "saletopitem", to: "saletopitem", coerce: toBool},
	{from: "resale_flg", to: "is_resale", coerce: toBool},
	{from: "preowned_sale_flg", to: "is_preowned_sale", coerce: toBool},
	{from: "for_women_flg", to: "cat_for_women", coerce: toBool},
	{from: "genre_moe", to: "cat_moe", coerce: toBool},
	{from: "cate6", to: "cate6"},
	{from: "cate7", to: "cate7"},
	{from: "buy_price", to: "buy_price"},
	{from: "thumb_alt", to: "thumb_alt", coerce: toOptString},
	{from: "thumb_title", to: "thumb_title", coerce: toOptString},
	{from: "c_price_taxed", to: "c_price_taxed"},
	{from: "list_preorder_available", to: "list_preorder_available", coerce: toBool},
	{from: "list_backorder_available", to: "list_backorder_available", coerce: toBool},
	{from: "list_store_bonus", to: "list_store_bonus", coerce: toBool},
	{from: "list_amiami_limited", to: "list_amiami_limited", coerce: toBool},
	{from: "element_id", to: "element_id", coerce: toOptString},
	{from: "salestatus", to: "salestatus", coerce: toOptString},
	{from: "salestatus_detail", to: "salestatus_detail", coerce: toOptString},
	{from: "buy_flg", to: "buy_flg", coerce: toBool},
	{from: "buy_remarks", to: "buy_remarks", coerce: toOptString},
	{from: "stock_flg", to: "stock_flg", coerce: toBool},
	{from: "image_on", to: "image_on", coerce: toBool},
	{from: "image_category", to: "image_category", coerce: toOptString},
	{from: "image_name", to: "image_name", coerce: toOptString},
	{from: "metaalt", to: "metaalt", coerce: toOptString},
}, nil)

var detailItemSchema = newSchema("detail item", []field{
	{from: "gcode", to: "gcode", required: true},
	{from: "scode", to: "scode", coerce: toString},
	{from: "gname", to: "gname", required: true},
	{from: "sname", to: "sname", coerce: toString},
	{from: "main_image_url", to: "main_image_url", coerce: toString},
	{from: "list_price", to: "list_price"},
	{from: "c_price_taxed", to: "c_price_taxed"},
	{from: "price", to: "price"},
	{from: "point", to: "point"},
	{from: "salestatus", to: "salestatus", coerce: toString},
	{from: "releasedate", to: "releasedate", coerce: toString},
	{from: "watch_list_available", to: "is_watch_list_available", coerce: toBool},
	{from: "jancode", to: "jancode", coerce: toOptString},
	{from: "maker_name", to: "maker_name", coerce: toString},
	{from: "modeler", to: "modeler", coerce: toString},
	{from: "spec", to: "spec", coerce: toString},
	{from: "memo", to: "memo", coerce: toString},
	{from: "copyright", to: "copyright", coerce: toString},
	{from: "condition_flg", to: "is_preowned", coerce: toBool},
	{from: "preorderitem", to: "is_preorder", coerce: toBool},
	{from: "backorderitem", to: "is_backorder", coerce: toBool},
	{from: "store_bonus", to: "has_store_bonus", coerce: toBool},
	{from: "amiami_limited", to: "is_amiami_limited", coerce: toBool},
	{from: "agelimit", to: "is_age_limited", coerce: toBool},
	{from: "preorder_bonus_flg", to: "has_preorder_bonus", coerce: toBool},
	{from: "onsale_flg", to: "is_on_sale", coerce: toBool},
	{from: "preowned_sale_flg", to: "is_preowned_sale", coerce: toBool},
}, []merge{
	{to: "categories", from: []string{"cate1", "cate2", "cate3", "cate4", "cate5", "cate6", "cate7"}},
},
	"gname_sub", "sname_simple", "sname_simple_j", "main_image_alt", "main_image_title",
	"image_comment", "youtube", "period_from", "period_to", "cart_type", "max_cartin_count",
	"include_instock_only_flg", "remarks", "size_info", "modelergroup", "saleitem", "instock_flg",
	"order_closed_flg", "preown_attention", "producttypeattention", "customs_warning_flg",
	"preorderattention", "domesticitem", "metadescription", "metawords", "releasechange_text",
	"salestalk", "buy_flg", "buy_price", "buy_remarks", "end_flg", "disp_flg", "handling_store",
	"salestatus_detail", "stock", "newitem", "saletopitem", "resale_flg", "big_title_flg",
	"soldout_flg", "inc_txt1", "inc_txt2", "inc_txt3", "inc_txt4", "inc_txt5", "inc_txt6",
	"inc_txt7", "inc_txt8", "inc_txt9", "inc_txt10", "image_on", "image_category", "image_name",
	"metaalt", "image_reviewnumber", "image_reviewcategory", "price1", "price2", "price3",
	"price4", "price5", "discountrate1", "discountrate2", "discountrate3", "discountrate4",
	"discountrate5", "sizew", "colorw", "thumb_url", "thumb_alt", "thumb_title", "thumb_agelimit",
)

var relatedItemSchema = newSchema("related item", []field{
	{from: "gcode", to: "gcode"},
	{from: "gname", to: "gname", coerce: toString},
	{from: "thumb_url", to: "thumb_url", coerce: toString},
	{from: "thumb_alt", to: "thumb_alt", coerce: toString},
	{from: "thumb_title", to: "thumb_title", coerce: toString},
	{from: "thumb_agelimit", to: "thumb_agelimit", coerce: toBool},
}, nil)

var otherItemSchema = newSchema("other item", []field{
	{from: "scode", to: "scode", required: true},
	{from: "icon_type", to: "icon_type"},
	{from: "price", to: "price"},
	{from: "condition", to: "condition", coerce: toString},
}, nil)

var namedFieldSchema = newSchema("named field", []field{
	{from: "id", to: "id"},
	{from: "name", to: "name", coerce: toString},
}, nil)

var reviewImageSchema = newSchema("review image", []field{
	{from: "image_url", to: "image_url", coerce: toString},
	{from: "thumb_url", to: "thumb_url", coerce: toString},
	{from: "alt", to: "alt", coerce: toString},
	{from: "title", to: "title", coerce: toString},
}, nil)

var categoryTagSchema = newSchema("category tag", []field{
	{from: "id", to: "id"},
	{from: "name", to: "name", coerce: toString},
	{from: "count", to: "count"},
}, nil)

var envelopeFields = []field{
	{from: "RSuccess", to: "api_success", coerce: toBool, required: true},
	{from: "RValue", to: "api_value", coerce: toOptString},
	{from: "RMessage", to: "api_message", coerce: toString},
}

var listEnvelopeSchema = newSchema("list response", append(envelopeFields[:len(envelopeFields):len(envelopeFields)],
	field{from: "search_result", to: "search_result"},
	field{from: "items", to: "items"},
	field{from: "_embedded", to: "_embedded"},
), nil)

var detailEnvelopeSchema = newSchema("detail response", append(envelopeFields[:len(envelopeFields):len(envelopeFields)],
	field{from: "item", to: "item"},
	field{from: "_embedded", to: "_embedded"},
), nil)

var detailEmbeddedSchema = newSchema("detail embedded", []field{
	{from: "review_images", to: "review_images"},
	{from: "bonus_images", to: "bonus_images"},
	{from: "related_items", to: "related_items"},
	{from: "other_items", to: "other_items"},
	{from: "makers", to: "makers"},
	{from: "series_titles", to: "series_titles"},
	{from: "original_titles", to: "original_titles"},
	{from: "character_names", to: "character_names"},
}, nil)
