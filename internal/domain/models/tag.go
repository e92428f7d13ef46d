package models

import "time"

type Tag struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
	WorkCount *int      `json:"work_count,omitempty"`
}

type BatchTagsResult struct {
	Tags    []Tag    `json:"tags"`
	Skipped []string `json:"skipped"`
}
