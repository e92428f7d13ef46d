package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/transport/http/dto"
	"illust_nest/internal/transport/http/dto/response"
)

func (c *Client) ListWorks(ctx context.Context, params dto.WorkListParams) (models.Page[models.Work], error) {
	return c.listWorks(ctx, "/api/works", params, false)
}

func (c *Client) listWorks(ctx context.Context, path string, params dto.WorkListParams, public bool) (models.Page[models.Work], error) {
	env, err := c.doEnvelope(ctx, request{method: http.MethodGet, path: path, query: params.Values(), public: public})
	if err != nil {
		return models.Page[models.Work]{}, err
	}
	return response.DecodeList[models.Work](env.Data)
}

func (c *Client) GetWork(ctx context.Context, id uint) (*models.Work, error) {
	var out models.Work
	if err := c.getJSON(ctx, fmt.Sprintf("/api/works/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateWork uploads a new work with its first images in one multipart request.
func (c *Client) CreateWork(ctx context.Context, in dto.CreateWorkInput, files []dto.UploadFile) (*models.Work, error) {
	var out models.Work
	err := c.sendMultipart(ctx, "/api/works", func(mw *multipart.Writer) error {
		if err := mw.WriteField("title", in.Title); err != nil {
			return err
		}
		if in.Description != "" {
			if err := mw.WriteField("description", in.Description); err != nil {
				return err
			}
		}
		if err := mw.WriteField("rating", strconv.Itoa(in.Rating)); err != nil {
			return err
		}
		if err := mw.WriteField("is_public", strconv.FormatBool(in.IsPublic)); err != nil {
			return err
		}
		if len(in.TagIDs) > 0 {
			if err := mw.WriteField("tag_ids", dto.JoinIDs(in.TagIDs)); err != nil {
				return err
			}
		}
		return writeFiles(mw, files)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddImages(ctx context.Context, workID uint, files []dto.UploadFile) ([]models.Image, error) {
	var out models.ImageUploadResult
	err := c.sendMultipart(ctx, fmt.Sprintf("/api/works/%d/images", workID), func(mw *multipart.Writer) error {
		return writeFiles(mw, files)
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Images, nil
}

// writeFiles emits images, image_hashes and ai_metadata once per file so the
// backend can pair them by index.
func writeFiles(mw *multipart.Writer, files []dto.UploadFile) error {
	for _, f := range files {
		part, err := mw.CreateFormFile("images", f.Name)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("copy %s: %w", f.Name, err)
		}

		if err := mw.WriteField("image_hashes", f.Hash); err != nil {
			return err
		}

		meta := ""
		if !f.AIMetadata.IsZero() {
			data, err := json.Marshal(f.AIMetadata)
			if err != nil {
				return fmt.Errorf("encode ai metadata for %s: %w", f.Name, err)
			}
			meta = string(data)
		}
		if err := mw.WriteField("ai_metadata", meta); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) UpdateWork(ctx context.Context, id uint, req dto.UpdateWorkRequest) (*models.Work, error) {
	var out models.Work
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/api/works/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteWork(ctx context.Context, id uint) error {
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/works/%d", id), nil, nil)
}

func (c *Client) BatchDeleteWorks(ctx context.Context, ids []uint) (int64, error) {
	var out dto.BatchDeleteResponse
	if err := c.sendJSON(ctx, http.MethodDelete, "/api/works/batch", dto.BatchIDsRequest{IDs: ids}, &out); err != nil {
		return 0, err
	}
	return out.DeletedCount, nil
}

func (c *Client) BatchUpdatePublic(ctx context.Context, ids []uint, isPublic bool) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/works/batch/public", dto.BatchPublicRequest{IDs: ids, IsPublic: isPublic}, nil)
}

func (c *Client) DeleteImage(ctx context.Context, workID, imageID uint) error {
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/works/%d/images/%d", workID, imageID), nil, nil)
}

func (c *Client) UpdateImageOrder(ctx context.Context, workID uint, imageIDs []uint) error {
	return c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/api/works/%d/images/order", workID), dto.ImageOrderRequest{ImageIDs: imageIDs}, nil)
}

func (c *Client) UpdateImageAIMetadata(ctx context.Context, workID, imageID uint, meta *models.AIMetadata) error {
	return c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/api/works/%d/images/%d/ai-metadata", workID, imageID), meta, nil)
}

func (c *Client) ImageEXIF(ctx context.Context, workID, imageID uint) (*models.ImageEXIFInfo, error) {
	var out models.ImageEXIFInfo
	if err := c.getJSON(ctx, fmt.Sprintf("/api/works/%d/images/%d/exif", workID, imageID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckDuplicateImages(ctx context.Context, req dto.CheckDuplicatesRequest) ([]models.DuplicateImageInfo, error) {
	var out dto.CheckDuplicatesResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/api/works/images/duplicates", req, &out); err != nil {
		return nil, err
	}
	return out.Duplicates, nil
}

// ExportImages streams the zip of every image in the gallery.
func (c *Client) ExportImages(ctx context.Context) (io.ReadCloser, string, error) {
	rc, _, name, err := c.openBinary(ctx, "/api/works/export/images", nil, false)
	return rc, name, err
}

// DownloadWork streams the zip of one work's images.
func (c *Client) DownloadWork(ctx context.Context, id uint) (io.ReadCloser, string, error) {
	rc, _, name, err := c.openBinary(ctx, fmt.Sprintf("/api/works/%d/download", id), url.Values{}, false)
	return rc, name, err
}
