package generator

import (
	"context"
	"log/slog"
)

// CallbackGenerator accepts requests on behalf of a remote generation service
// that reports results to the callback endpoints. Generate never produces a
// document itself; it returns ErrDeferred.
type CallbackGenerator struct {
	name   string
	logger *slog.Logger
}

// Compile-time interface satisfaction check.
var _ Generator = (*CallbackGenerator)(nil)

// NewCallbackGenerator creates a deferred generator reported under name.
func NewCallbackGenerator(name string, logger *slog.Logger) *CallbackGenerator {
	return &CallbackGenerator{name: name, logger: logger}
}

// Generate records the hand-off and defers the result.
func (g *CallbackGenerator) Generate(ctx context.Context, spec Spec) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	g.logger.Info("document request handed to remote service",
		"request_id", spec.RequestID,
		"generator", g.name,
		"template", spec.Template,
	)
	return Result{}, ErrDeferred
}

// Capabilities reports the generator as deferred.
func (g *CallbackGenerator) Capabilities() Capabilities {
	return Capabilities{Name: g.name, Deferred: true}
}
