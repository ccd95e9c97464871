package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// maxNameLen is the maximum allowed length for source names in characters.
	maxNameLen = 255
)

// Source is an upstream entity that artifacts are composed about. Its name,
// summary, and free-form attributes feed the generation prompt.
type Source struct {
	ID         string          `json:"id"         db:"id"`
	Name       string          `json:"name"       db:"name"`
	Summary    string          `json:"summary"    db:"summary"`
	Attributes json.RawMessage `json:"attributes" db:"attributes"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// CreateSourceRequest represents a request to register a new source.
type CreateSourceRequest struct {
	Name       string          `json:"name"`
	Summary    string          `json:"summary,omitempty"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

// Validate validates the CreateSourceRequest fields.
func (r *CreateSourceRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required and cannot be empty")
	}
	if utf8.RuneCountInString(r.Name) > maxNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	if len(r.Attributes) > 0 && !json.Valid(r.Attributes) {
		return errors.New("attributes must be valid JSON")
	}
	return nil
}

// UpdateSourceRequest carries optional field updates for a source.
type UpdateSourceRequest struct {
	Name       *string         `json:"name,omitempty"`
	Summary    *string         `json:"summary,omitempty"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

// Validate validates the UpdateSourceRequest fields.
func (r *UpdateSourceRequest) Validate() error {
	if r.Name != nil {
		if strings.TrimSpace(*r.Name) == "" {
			return errors.New("name cannot be empty")
		}
		if utf8.RuneCountInString(*r.Name) > maxNameLen {
			return errors.New("name cannot exceed 255 characters")
		}
	}
	if len(r.Attributes) > 0 && !json.Valid(r.Attributes) {
		return errors.New("attributes must be valid JSON")
	}
	return nil
}
