package api

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/accounting"
	"github.com/starford/ansuz/internal/registry"
	"github.com/starford/ansuz/internal/validate"
)

// AnnotateRequest is the request body for POST /annotate. Tree is the
// skeleton produced by the upstream parser, serialized as a node object.
type AnnotateRequest struct {
	Sentence       string          `json:"sentence"`
	Tree           json.RawMessage `json:"tree"`
	NoteMode       string          `json:"note_mode,omitempty"`
	ValidationMode string          `json:"validation_mode,omitempty"`
	Debug          bool            `json:"debug,omitempty"`
	Refresh        bool            `json:"refresh,omitempty"`
}

// Validate checks the request shape.
func (r AnnotateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Sentence, validation.Required),
		validation.Field(&r.Tree, validation.Required),
		validation.Field(&r.NoteMode, validation.In("template_only", "model", "two_stage")),
		validation.Field(&r.ValidationMode, validation.In("v1", "v2_strict")),
	)
}

// AnnotateResponse is the result of one annotation run. Document is the
// sentence-keyed contract object holding the enriched tree.
type AnnotateResponse struct {
	ID              string                     `json:"id"`
	Sentence        string                     `json:"sentence"`
	Valid           bool                       `json:"valid"`
	Errors          []validate.ValidationError `json:"validation_errors"`
	Summary         accounting.Summary         `json:"backoff_counts"`
	BackoffSummary  *accounting.DebugSummary   `json:"backoff_summary,omitempty"`
	RegistryVersion string                     `json:"registry_version"`
	Cached          bool                       `json:"cached,omitempty"`
	Document        json.RawMessage            `json:"document"`
}

// ValidateRequest is the request body for POST /validate.
type ValidateRequest struct {
	Tree           json.RawMessage `json:"tree"`
	ValidationMode string          `json:"validation_mode,omitempty"`
}

// Validate checks the request shape.
func (r ValidateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Tree, validation.Required),
		validation.Field(&r.ValidationMode, validation.In("v1", "v2_strict")),
	)
}

// ValidateResponse wraps a validation pass.
type ValidateResponse struct {
	Valid  bool                       `json:"valid"`
	Errors []validate.ValidationError `json:"errors"`
}

// AnnotationListItem is a lightweight item in a list response.
type AnnotationListItem struct {
	ID              string    `json:"id"`
	Sentence        string    `json:"sentence"`
	Valid           bool      `json:"valid"`
	RegistryVersion string    `json:"registry_version"`
	NoteMode        string    `json:"note_mode"`
	ValidationMode  string    `json:"validation_mode"`
	CreatedAt       time.Time `json:"created_at"`
}

// AnnotationListResponse wraps paginated annotation listings.
type AnnotationListResponse struct {
	Annotations []AnnotationListItem `json:"annotations"`
	Total       int                  `json:"total"`
}

// TemplatesResponse wraps the current registry contents.
type TemplatesResponse struct {
	Version   string                   `json:"version"`
	Templates []registry.TemplateEntry `json:"templates"`
}
