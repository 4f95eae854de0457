package store

import (
	"context"
	"errors"

	"github.com/seantiz/docgen/internal/model"
)

// ErrInvalidTransition is returned when a request status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// RequestStats holds aggregate generation statistics.
type RequestStats struct {
	Total          int            `json:"total"`
	CountByStatus  map[string]int `json:"count_by_status"`
	CountByService map[string]int `json:"count_by_service"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for document requests and the
// documents they produce.
type Store interface {
	CreateRequest(ctx context.Context, r *model.DocumentRequest) error
	GetRequest(ctx context.Context, id string) (*model.DocumentRequest, error)
	ListRequests(ctx context.Context, limit, offset int) ([]*model.DocumentRequest, int, error)
	UpdateRequestStatus(ctx context.Context, id, status string) error
	CompleteRequest(ctx context.Context, id string, doc *model.Document) error
	FailRequest(ctx context.Context, id, code, message string) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	GetRequestStats(ctx context.Context) (*RequestStats, error)

	// FindTerminalRequest returns the request only when it is completed or
	// failed; otherwise it returns nil and a nil error.
	FindTerminalRequest(ctx context.Context, id string) (*model.DocumentRequest, error)

	// MarkRequestFailed fails a request that was given up on while waiting.
	MarkRequestFailed(ctx context.Context, id string) error

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	Close() error
}
