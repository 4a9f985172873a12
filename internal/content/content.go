package content

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a source or content record does not exist
var ErrNotFound = errors.New("content not found")

// Source is a staged raw upload awaiting parsing. Written by the upload
// handler (out of scope here), read by the parse pipeline.
type Source struct {
	ContentID     string    `db:"content_id"`
	SourceURL     string    `db:"source_url"`
	RawBody       string    `db:"raw_body"`
	LastPatternID *int64    `db:"last_pattern_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// Content is a parsed and persisted piece of ingested content.
type Content struct {
	ContentID string    `db:"content_id"`
	Title     string    `db:"title"`
	ImageURL  string    `db:"image_url"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Lines []Line `db:"-"`
}

// Line is one parsed line of content.
type Line struct {
	ID        int64  `db:"id"`
	ContentID string `db:"content_id"`
	LineNo    int    `db:"line_no"`
	Text      string `db:"text"`
}

// Image describes the processed image attached to a content record.
type Image struct {
	ContentID    string `db:"content_id"`
	SourceURL    string `db:"source_url"`
	ThumbnailKey string `db:"thumbnail_key"`
	Width        int    `db:"width"`
	Height       int    `db:"height"`
}
