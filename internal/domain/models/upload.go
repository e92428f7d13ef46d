package models

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadItem is a file picked for upload during one edit session.
type UploadItem struct {
	ID                uuid.UUID
	Name              string
	Path              string
	Size              int64
	MimeType          string
	Hash              string // hex sha-256 of the full file
	PreviewHandle     string
	RequiresTranscode bool
	Width             int
	Height            int
	BlurHash          string
	AIMetadata        *AIMetadata
}

// RequiresTranscode reports formats that cannot be previewed natively and
// need a placeholder until the server converts them.
func RequiresTranscode(name, mime string) bool {
	switch strings.ToLower(mime) {
	case "image/tiff", "image/bmp", "image/x-ms-bmp":
		return true
	}

	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".") {
	case "tif", "tiff", "bmp", "dib":
		return true
	}

	return false
}
