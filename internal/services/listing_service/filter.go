package services

import (
	"illust_nest/internal/lib/validate"
	"illust_nest/internal/transport/http/dto"
)

type Visibility string

const (
	VisibilityAll     Visibility = "all"
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

const (
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortRating    = "rating"
	SortTitle     = "title"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Filter is the search form of a work list. It only reaches the server when
// the list is applied.
type Filter struct {
	Keyword    string
	TagIDs     []uint
	RatingMin  int        `validate:"min=0,max=5"`
	RatingMax  int        `validate:"min=0,max=5,gtefield=RatingMin"`
	Visibility Visibility `validate:"oneof=all public private"`
	SortBy     string     `validate:"oneof=created_at updated_at rating title"`
	SortOrder  string     `validate:"oneof=asc desc"`
}

func DefaultFilter() Filter {
	return Filter{
		Keyword:    "",
		TagIDs:     []uint{},
		RatingMin:  0,
		RatingMax:  5,
		Visibility: VisibilityAll,
		SortBy:     SortCreatedAt,
		SortOrder:  OrderDesc,
	}
}

func (f Filter) Validate() error {
	return validate.Struct(f)
}

// Params renders the filter as the query of one page.
func (f Filter) Params(page, pageSize int) dto.WorkListParams {
	p := dto.WorkListParams{
		Page:      page,
		PageSize:  pageSize,
		Keyword:   f.Keyword,
		TagIDs:    f.TagIDs,
		RatingMin: &f.RatingMin,
		RatingMax: &f.RatingMax,
		SortBy:    f.SortBy,
		SortOrder: f.SortOrder,
	}

	switch f.Visibility {
	case VisibilityPublic:
		public := true
		p.IsPublic = &public
	case VisibilityPrivate:
		public := false
		p.IsPublic = &public
	}

	return p
}
