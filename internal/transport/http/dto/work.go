package dto

import (
	"io"
	"net/url"
	"strconv"
	"strings"

	"illust_nest/internal/domain/models"
)

// WorkListParams mirrors the query string of GET /works.
type WorkListParams struct {
	Page      int
	PageSize  int
	Keyword   string
	TagIDs    []uint
	RatingMin *int
	RatingMax *int
	IsPublic  *bool
	SortBy    string
	SortOrder string
}

func (p WorkListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if kw := strings.TrimSpace(p.Keyword); kw != "" {
		v.Set("keyword", kw)
	}
	if len(p.TagIDs) > 0 {
		v.Set("tag_ids", JoinIDs(p.TagIDs))
	}
	if p.RatingMin != nil {
		v.Set("rating_min", strconv.Itoa(*p.RatingMin))
	}
	if p.RatingMax != nil {
		v.Set("rating_max", strconv.Itoa(*p.RatingMax))
	}
	if p.IsPublic != nil {
		v.Set("is_public", strconv.FormatBool(*p.IsPublic))
	}
	if p.SortBy != "" {
		v.Set("sort_by", p.SortBy)
	}
	if p.SortOrder != "" {
		v.Set("sort_order", p.SortOrder)
	}
	return v
}

// JoinIDs renders ids the way the backend parses list parameters: "1,2,3".
func JoinIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// CreateWorkInput is the metadata half of the multipart create request.
type CreateWorkInput struct {
	Title       string `validate:"required"`
	Description string
	Rating      int  `validate:"min=0,max=5"`
	IsPublic    bool
	TagIDs      []uint
}

type UpdateWorkRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Rating      int    `json:"rating" validate:"min=0,max=5"`
	IsPublic    bool   `json:"is_public"`
	TagIDs      []uint `json:"tag_ids"`
}

type BatchIDsRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1"`
}

type BatchDeleteResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

type BatchPublicRequest struct {
	IDs      []uint `json:"ids" validate:"required,min=1"`
	IsPublic bool   `json:"is_public"`
}

type ImageOrderRequest struct {
	ImageIDs []uint `json:"image_ids" validate:"required,min=1"`
}

type CheckDuplicatesRequest struct {
	ImageHashes   []string `json:"image_hashes"`
	ExcludeWorkID *uint    `json:"exclude_work_id,omitempty"`
}

type CheckDuplicatesResponse struct {
	Duplicates []models.DuplicateImageInfo `json:"duplicates"`
}

// UploadFile is one file of a multipart upload.
type UploadFile struct {
	Name       string
	Open       func() (io.ReadCloser, error)
	Hash       string
	AIMetadata *models.AIMetadata
}
