package http

import (
	"context"
	"strings"

	"illust_nest/internal/domain/models"
)

// ImagePath builds the endpoint serving a variant. Stored paths may carry a
// leading slash and the uploads/<dir>/ prefix; both are stripped.
func ImagePath(variant models.ImageVariant, path string, public bool) string {
	dir := variant.Dir()

	cleaned := strings.TrimPrefix(path, "/")
	cleaned = strings.TrimPrefix(cleaned, "uploads/"+dir+"/")

	base := "/api/images/"
	if public {
		base = "/api/public/images/"
	}
	return base + dir + "/" + cleaned
}

// FetchImage downloads the bytes of one image variant, with the bearer token
// unless public is set.
func (c *Client) FetchImage(ctx context.Context, variant models.ImageVariant, path string, public bool) (*Binary, error) {
	return c.getBinary(ctx, ImagePath(variant, path, public), nil, public)
}
