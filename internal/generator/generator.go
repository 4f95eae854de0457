package generator

import (
	"context"
	"errors"
	"fmt"
)

// ErrDeferred is returned by generators that hand the request to a remote
// service. The result arrives later through the callback endpoints.
var ErrDeferred = errors.New("document result deferred to callback")

// Generator is the interface that all document generators must implement.
type Generator interface {
	// Generate produces the document described by spec. The context carries
	// the generation deadline.
	Generate(ctx context.Context, spec Spec) (Result, error)

	// Capabilities reports what the generator supports.
	Capabilities() Capabilities
}

// Spec describes a document to generate.
type Spec struct {
	RequestID string `json:"request_id"`
	Template  string `json:"template"`
	FileName  string `json:"file_name"`

	// Data is the JSON object rendered into the template.
	Data []byte `json:"data"`
}

// Result holds a generated document.
type Result struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Capabilities describes what a generator supports.
type Capabilities struct {
	Name           string   `json:"name"`
	Templates      []string `json:"templates"`
	Deferred       bool     `json:"deferred"`
	MaxConcurrency int      `json:"max_concurrency"`
}

// Error is a generation failure with a structured code that is recorded on
// the request.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
