package model

import (
	"encoding/json"
	"errors"
	"time"
)

// Artifact is a generated content record, at most one per (source_id, slot).
// Retries of the same unit of work converge onto this row via upsert.
type Artifact struct {
	ID        string          `json:"id"         db:"id"`
	SourceID  string          `json:"source_id"  db:"source_id"`
	Slot      string          `json:"slot"       db:"slot"`
	Title     string          `json:"title"      db:"title"`
	Body      string          `json:"body"       db:"body"`
	Tags      json.RawMessage `json:"tags"       db:"tags"`
	Assets    json.RawMessage `json:"assets"     db:"assets"`
	Meta      json.RawMessage `json:"meta"       db:"meta"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ArtifactContent is the handler-side shape of an artifact's content fields
// before persistence.
type ArtifactContent struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// Validate checks that extracted content is usable.
func (c *ArtifactContent) Validate() error {
	if c.Title == "" {
		return errors.New("title is required")
	}
	if c.Body == "" {
		return errors.New("body is required")
	}
	return nil
}

// ArtifactMeta is the diagnostic blob persisted alongside artifact content.
// It records which attempt produced the current content.
type ArtifactMeta struct {
	TraceID    string `json:"trace_id"`
	JobID      string `json:"job_id"`
	Model      string `json:"model,omitempty"`
	GenerateMS int64  `json:"generate_ms"`
	TotalMS    int64  `json:"total_ms"`
}

// ArtifactListOptions filters artifact listings.
type ArtifactListOptions struct {
	SourceID string `json:"source_id,omitempty"`
	Slot     string `json:"slot,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
