package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/transport/http/dto"
	"illust_nest/internal/transport/http/dto/response"
)

func (c *Client) CollectionTree(ctx context.Context) (models.CollectionTree, error) {
	env, err := c.doEnvelope(ctx, request{method: http.MethodGet, path: "/api/collections/tree"})
	if err != nil {
		return nil, err
	}

	page, err := response.DecodeList[models.Collection](env.Data)
	if err != nil {
		return nil, err
	}
	return models.CollectionTree(page.Items), nil
}

func (c *Client) CollectionsByWork(ctx context.Context, workID uint) ([]models.Collection, error) {
	env, err := c.doEnvelope(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/api/collections/by-work/%d", workID)})
	if err != nil {
		return nil, err
	}

	page, err := response.DecodeList[models.Collection](env.Data)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (c *Client) SyncWorkCollections(ctx context.Context, workID uint, collectionIDs []uint) error {
	if collectionIDs == nil {
		collectionIDs = []uint{}
	}
	return c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/api/collections/by-work/%d", workID),
		dto.SyncWorkCollectionsRequest{CollectionIDs: collectionIDs}, nil)
}

func (c *Client) GetCollection(ctx context.Context, id uint) (*models.Collection, error) {
	var out models.Collection
	if err := c.getJSON(ctx, fmt.Sprintf("/api/collections/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CollectionWorks(ctx context.Context, id uint, params dto.WorkListParams) (models.Page[models.Work], error) {
	return c.listWorks(ctx, fmt.Sprintf("/api/collections/%d/works", id), params, false)
}

func (c *Client) CreateCollection(ctx context.Context, req dto.CreateCollectionRequest) (*models.Collection, error) {
	var out models.Collection
	if err := c.sendJSON(ctx, http.MethodPost, "/api/collections", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCollection(ctx context.Context, id uint, req dto.UpdateCollectionRequest) (*models.Collection, error) {
	var out models.Collection
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/api/collections/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCollection(ctx context.Context, id uint) error {
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/collections/%d", id), nil, nil)
}

func (c *Client) UpdateCollectionOrder(ctx context.Context, ids []uint) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/collections/order", dto.CollectionOrderRequest{CollectionIDs: ids}, nil)
}

func (c *Client) AddCollectionWorks(ctx context.Context, id uint, workIDs []uint) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/api/collections/%d/works", id), dto.WorkIDsRequest{WorkIDs: workIDs}, nil)
}

func (c *Client) RemoveCollectionWorks(ctx context.Context, id uint, workIDs []uint) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/collections/%d/works", id),
		query:  url.Values{"ids": {dto.JoinIDs(workIDs)}},
	}, nil)
}

func (c *Client) UpdateCollectionWorkOrder(ctx context.Context, id uint, workIDs []uint) error {
	return c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/api/collections/%d/works/order", id), dto.WorkIDsRequest{WorkIDs: workIDs}, nil)
}
