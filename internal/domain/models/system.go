package models

type SystemStatus struct {
	Initialized          bool   `json:"initialized"`
	PublicGalleryEnabled bool   `json:"public_gallery_enabled"`
	SiteTitle            string `json:"site_title"`
}

type SystemSettings struct {
	PublicGalleryEnabled bool   `json:"public_gallery_enabled"`
	SiteTitle            string `json:"site_title"`
	ImageMagickEnabled   bool   `json:"imagemagick_enabled"`
	ImageMagickVersion   string `json:"imagemagick_version"` // v6 | v7
}

type ImageMagickTestResult struct {
	Available bool   `json:"available"`
	Command   string `json:"command"`
	Message   string `json:"message"`
}

type SystemStatistics struct {
	WorkCount            int                   `json:"work_count"`
	ImageCount           int                   `json:"image_count"`
	TagCount             int                   `json:"tag_count"`
	CollectionCount      int                   `json:"collection_count"`
	DuplicateImageGroups []DuplicateImageGroup `json:"duplicate_image_groups"`
}

type DuplicateImageGroup struct {
	ImageHash            string                  `json:"image_hash"`
	TotalImages          int                     `json:"total_images"`
	PreviewThumbnailPath string                  `json:"preview_thumbnail_path,omitempty"`
	Works                []DuplicateImageWorkRef `json:"works"`
}

type DuplicateImageWorkRef struct {
	WorkID         uint `json:"work_id"`
	DuplicateCount int  `json:"duplicate_count"`
}
