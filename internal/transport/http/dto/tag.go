package dto

import "net/url"

type TagListParams struct {
	Keyword      string
	IncludeCount bool
}

func (p TagListParams) Values() url.Values {
	v := url.Values{}
	if p.Keyword != "" {
		v.Set("keyword", p.Keyword)
	}
	if p.IncludeCount {
		v.Set("include_count", "true")
	}
	return v
}

type TagRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

type BatchCreateTagsRequest struct {
	Names []string `json:"names" validate:"required,min=1,dive,required,max=50"`
}
