package model

import "time"

// MaxTitleLength mirrors the schema constraint on document titles.
const MaxTitleLength = 200

// Document is the persisted record. The relay never owns it; it only
// caches a copy of Content while a session is live.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateDocRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateDocRequest carries a partial update; nil fields are left untouched.
type UpdateDocRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}
