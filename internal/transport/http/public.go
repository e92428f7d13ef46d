package http

import (
	"context"
	"fmt"
	"net/http"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/transport/http/dto"
)

// Public endpoints mirror the private ones under /api/public and never carry a token.

func (c *Client) ListPublicWorks(ctx context.Context, params dto.WorkListParams) (models.Page[models.Work], error) {
	return c.listWorks(ctx, "/api/public/works", params, true)
}

func (c *Client) GetPublicWork(ctx context.Context, id uint) (*models.Work, error) {
	var out models.Work
	r := request{method: http.MethodGet, path: fmt.Sprintf("/api/public/works/%d", id), public: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
