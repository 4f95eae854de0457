package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/docgen/internal/model"
	"github.com/seantiz/docgen/internal/pending"
	"github.com/seantiz/docgen/internal/wait"
)

// Lookup is the persistence collaborator the coordinator polls.
type Lookup interface {
	// FindTerminalRequest returns the request if it is in a terminal state,
	// or nil with a nil error when it is not (yet).
	FindTerminalRequest(ctx context.Context, id string) (*model.DocumentRequest, error)

	// MarkRequestFailed records that the request was given up on. It is
	// called at most once per poll, only after the budget is spent.
	MarkRequestFailed(ctx context.Context, id string) error
}

// Coordinator waits for document requests to finish.
type Coordinator struct {
	lookup   Lookup
	registry *pending.Registry
	logger   *slog.Logger
}

// New creates a coordinator polling lookup and registering its waits in reg.
func New(lookup Lookup, reg *pending.Registry, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		lookup:   lookup,
		registry: reg,
		logger:   logger,
	}
}

// Cancel wakes the poll waiting on id, if any, so it re-checks the request
// state immediately. It reports whether a poll was found.
func (c *Coordinator) Cancel(id string) bool {
	return c.registry.Cancel(id)
}

// ActiveWaits returns the number of polls currently registered.
func (c *Coordinator) ActiveWaits() int {
	return c.registry.Len()
}

// WaitForResult blocks until request id reaches a terminal state and returns
// the artifact reference of the completed document.
//
// It fails with a *RemoteFailureError when the request failed, an
// *InvalidStateError when the lookup returned a non-terminal status and a
// *TimeoutError when the strategy stops polling first; in the timeout case
// the request is marked failed on a best-effort basis. The strategy is the
// only timeout authority; ctx only aborts the wait when the caller goes away.
func (c *Coordinator) WaitForResult(ctx context.Context, strategy wait.Strategy, id string) (string, error) {
	h, err := c.registry.BeginWait(id)
	if err != nil {
		return "", fmt.Errorf("begin wait for request %s: %w", id, err)
	}
	defer c.registry.EndWait(h)

	activePolls.Inc()
	defer activePolls.Dec()

	start := time.Now()
	attempt := 0
	finish := func(outcome string) {
		pollsTotal.WithLabelValues(outcome).Inc()
		pollDuration.Observe(time.Since(start).Seconds())
		pollAttempts.Observe(float64(attempt + 1))
	}

	for ; ; attempt++ {
		req, err := c.lookup.FindTerminalRequest(ctx, id)
		if err != nil {
			finish(outcomeError)
			return "", fmt.Errorf("find terminal request %s: %w", id, err)
		}
		if req != nil {
			ref, outcome, err := c.processResult(id, req)
			finish(outcome)
			return ref, err
		}

		if !strategy.CanContinue() {
			break
		}

		waitFor := strategy.NextWait(attempt)
		c.logger.Debug("document result is not yet available, continue polling",
			"request_id", id,
			"attempt", attempt,
			"strategy", strategy.Name(),
			"wait_ms", waitFor.Milliseconds(),
		)

		woken, err := h.Wait(ctx, waitFor)
		if err != nil {
			finish(outcomeAborted)
			return "", fmt.Errorf("wait for request %s: %w", id, err)
		}
		if woken {
			earlyWakes.Inc()
			c.logger.Debug("interrupted polling", "request_id", id, "attempt", attempt)
		}
	}

	c.logger.Debug("document result has not appeared, stopping polling", "request_id", id, "attempts", attempt+1)

	// Unregister before the secondary update so a late Cancel finds nothing.
	c.registry.EndWait(h)
	c.failRequest(ctx, id)

	finish(outcomeTimeout)
	return "", &TimeoutError{RequestID: id}
}

// processResult classifies a terminal request into an artifact reference or
// an error, together with the metric outcome label.
func (c *Coordinator) processResult(id string, req *model.DocumentRequest) (string, string, error) {
	c.logger.Debug("processing result for document request", "request_id", id, "status", req.Status)

	switch req.Status {
	case model.StatusCompleted:
		if req.ArtifactRef == "" {
			return "", outcomeInvalidState, fmt.Errorf("request %s: %w", id, ErrArtifactNotFound)
		}
		return req.ArtifactRef, outcomeCompleted, nil
	case model.StatusFailed:
		return "", outcomeFailed, &RemoteFailureError{
			RequestID: id,
			Code:      req.ErrorCode,
			Message:   req.ErrorMessage,
		}
	default:
		return "", outcomeInvalidState, &InvalidStateError{RequestID: id, Status: req.Status}
	}
}

// failRequest marks the request failed after a timeout. Errors are logged and
// dropped so they never replace the timeout reported to the caller.
func (c *Coordinator) failRequest(ctx context.Context, id string) {
	if err := c.lookup.MarkRequestFailed(context.WithoutCancel(ctx), id); err != nil {
		markFailedErrors.Inc()
		c.logger.Error("could not update status for request", "request_id", id, "error", err)
	}
}
