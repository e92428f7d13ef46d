package dto

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type InitRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
}

type SettingsPatch struct {
	PublicGalleryEnabled *bool   `json:"public_gallery_enabled,omitempty"`
	SiteTitle            *string `json:"site_title,omitempty"`
	ImageMagickEnabled   *bool   `json:"imagemagick_enabled,omitempty"`
	ImageMagickVersion   *string `json:"imagemagick_version,omitempty" validate:"omitempty,oneof=v6 v7"`
}
