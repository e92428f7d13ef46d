package http

import (
	"context"
	"fmt"
	"net/http"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/transport/http/dto"
	"illust_nest/internal/transport/http/dto/response"
)

func (c *Client) ListTags(ctx context.Context, params dto.TagListParams) ([]models.Tag, error) {
	return c.listTags(ctx, "/api/tags", params, false)
}

func (c *Client) ListPublicTags(ctx context.Context, params dto.TagListParams) ([]models.Tag, error) {
	return c.listTags(ctx, "/api/public/tags", params, true)
}

func (c *Client) listTags(ctx context.Context, path string, params dto.TagListParams, public bool) ([]models.Tag, error) {
	env, err := c.doEnvelope(ctx, request{method: http.MethodGet, path: path, query: params.Values(), public: public})
	if err != nil {
		return nil, err
	}

	page, err := response.DecodeList[models.Tag](env.Data)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (c *Client) CreateTag(ctx context.Context, req dto.TagRequest) (*models.Tag, error) {
	var out models.Tag
	if err := c.sendJSON(ctx, http.MethodPost, "/api/tags", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTag(ctx context.Context, id uint, req dto.TagRequest) (*models.Tag, error) {
	var out models.Tag
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/api/tags/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTag(ctx context.Context, id uint) error {
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/tags/%d", id), nil, nil)
}

func (c *Client) BatchCreateTags(ctx context.Context, req dto.BatchCreateTagsRequest) (*models.BatchTagsResult, error) {
	var out models.BatchTagsResult
	if err := c.sendJSON(ctx, http.MethodPost, "/api/tags/batch", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
