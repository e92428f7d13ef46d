package http

import (
	"context"
	"net/http"
	"net/url"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/transport/http/dto"
)

func (c *Client) SystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	var out models.SystemStatus
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/system/status", public: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InitSystem(ctx context.Context, req dto.InitRequest) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/system/init", req, nil)
}

func (c *Client) Settings(ctx context.Context) (*models.SystemSettings, error) {
	var out models.SystemSettings
	if err := c.getJSON(ctx, "/api/system/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, patch dto.SettingsPatch) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/system/settings", patch, nil)
}

func (c *Client) Statistics(ctx context.Context) (*models.SystemStatistics, error) {
	var out models.SystemStatistics
	if err := c.getJSON(ctx, "/api/system/statistics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TestImageMagick(ctx context.Context, version string) (*models.ImageMagickTestResult, error) {
	var q url.Values
	if version != "" {
		q = url.Values{"version": {version}}
	}

	var out models.ImageMagickTestResult
	if err := c.getJSON(ctx, "/api/system/imagemagick/test", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
