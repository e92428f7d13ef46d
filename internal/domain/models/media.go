package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type ImageVariant string

const (
	VariantThumbnail  ImageVariant = "thumbnail"
	VariantOriginal   ImageVariant = "original"
	VariantTranscoded ImageVariant = "transcoded"
)

var ErrUnknownVariant = errors.New("unknown image variant")

func ParseVariant(s string) (ImageVariant, error) {
	switch v := ImageVariant(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return VariantThumbnail, nil
	case VariantThumbnail, VariantOriginal, VariantTranscoded:
		return v, nil
	default:
		return "", ErrUnknownVariant
	}
}

// Dir is the path segment the backend serves the variant under.
func (v ImageVariant) Dir() string {
	switch v {
	case VariantOriginal:
		return "originals"
	case VariantTranscoded:
		return "transcoded"
	default:
		return "thumbnails"
	}
}

// Image is one picture inside a Work. Only SortOrder changes after upload.
type Image struct {
	ID             uint   `json:"id"`
	ThumbnailPath  string `json:"thumbnail_path"`
	OriginalPath   string `json:"original_path,omitempty"`
	TranscodedPath string `json:"transcoded_path,omitempty"`
	ImageHash      string `json:"image_hash,omitempty"`
	FileSize       int64  `json:"file_size,omitempty"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	SortOrder      int    `json:"sort_order"`
}

// PathFor returns the stored path of the requested variant, falling back to
// the original when no transcoded copy exists.
func (i Image) PathFor(v ImageVariant) string {
	switch v {
	case VariantOriginal:
		return i.OriginalPath
	case VariantTranscoded:
		if i.TranscodedPath != "" {
			return i.TranscodedPath
		}
		return i.OriginalPath
	default:
		return i.ThumbnailPath
	}
}

type Work struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rating      int       `json:"rating"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CoverImage  *Image    `json:"cover_image,omitempty"`
	ImageCount  int       `json:"image_count,omitempty"`
	Images      []Image   `json:"images,omitempty"`
	Tags        []Tag     `json:"tags,omitempty"`
}

func (w Work) TagIDs() []uint {
	ids := make([]uint, 0, len(w.Tags))
	for _, t := range w.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

func (w Work) ImageIDs() []uint {
	ids := make([]uint, 0, len(w.Images))
	for _, img := range w.Images {
		ids = append(ids, img.ID)
	}
	return ids
}

// AIMetadata describes how an AI-generated image was produced.
type AIMetadata struct {
	Prompt         string          `json:"prompt,omitempty"`
	NegativePrompt string          `json:"negative_prompt,omitempty"`
	Model          string          `json:"model,omitempty"`
	Sampler        string          `json:"sampler,omitempty"`
	Steps          int             `json:"steps,omitempty"`
	CFGScale       float64         `json:"cfg_scale,omitempty"`
	Seed           int64           `json:"seed,omitempty"`
	Extra          json.RawMessage `json:"extra,omitempty"`
}

func (m *AIMetadata) IsZero() bool {
	return m == nil || (m.Prompt == "" && m.NegativePrompt == "" && m.Model == "" &&
		m.Sampler == "" && m.Steps == 0 && m.CFGScale == 0 && m.Seed == 0 && len(m.Extra) == 0)
}

type UploadedImage struct {
	StoragePath      string `json:"storage_path"`
	ThumbnailPath    string `json:"thumbnail_path"`
	TranscodedPath   string `json:"transcoded_path,omitempty"`
	ImageHash        string `json:"image_hash,omitempty"`
	FileSize         int64  `json:"file_size"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	OriginalFilename string `json:"original_filename"`
}

type ImageUploadResult struct {
	Images []Image `json:"images"`
}

type DuplicateImageInfo struct {
	ImageHash string `json:"image_hash"`
	WorkID    uint   `json:"work_id"`
	ImageID   uint   `json:"image_id"`
}

type ImageEXIFField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type ImageEXIFInfo struct {
	WorkID   uint             `json:"work_id"`
	ImageID  uint             `json:"image_id"`
	HasEXIF  bool             `json:"has_exif"`
	Fields   []ImageEXIFField `json:"fields"`
	Format   string           `json:"format"`
	Filename string           `json:"filename"`
}
