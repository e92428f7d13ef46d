package http

import (
	"context"
	"net/http"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/transport/http/dto"
)

func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (*models.LoginResult, error) {
	var out models.LoginResult
	if err := c.sendJSON(ctx, http.MethodPost, loginPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.getJSON(ctx, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChangePassword(ctx context.Context, req dto.ChangePasswordRequest) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/auth/password", req, nil)
}

func (c *Client) RefreshToken(ctx context.Context) (*models.TokenPair, error) {
	var out models.TokenPair
	if err := c.sendJSON(ctx, http.MethodPost, "/api/auth/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
