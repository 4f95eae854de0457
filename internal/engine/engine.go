package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/docgen/internal/generator"
	"github.com/seantiz/docgen/internal/model"
	"github.com/seantiz/docgen/internal/pending"
	"github.com/seantiz/docgen/internal/store"
)

// DefaultTimeout is the generation deadline when none is configured.
const DefaultTimeout = 30 * time.Second

const abandonedMessage = "document request abandoned"

// Engine orchestrates asynchronous document generation.
type Engine struct {
	store      store.Store
	generators *generator.Registry
	waits      *pending.Registry
	logger     *slog.Logger
	timeout    time.Duration
	wg         sync.WaitGroup
	broker     *EventBroker
}

// NewEngine creates a new generation engine. Finished requests are signalled
// to their pollers through waits.
func NewEngine(s store.Store, gens *generator.Registry, waits *pending.Registry, logger *slog.Logger) *Engine {
	return &Engine{
		store:      s,
		generators: gens,
		waits:      waits,
		logger:     logger,
		timeout:    DefaultTimeout,
		broker:     NewEventBroker(),
	}
}

// SetTimeout sets the per-request generation deadline. Non-positive values
// restore DefaultTimeout. It must be called before Submit.
func (e *Engine) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	e.timeout = d
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Submit creates a request record and launches asynchronous generation in a
// goroutine. The request is stored with status "pending" before returning.
// The goroutine operates on a copy of the request to avoid data races with
// the caller.
func (e *Engine) Submit(ctx context.Context, r *model.DocumentRequest) error {
	if err := e.store.CreateRequest(ctx, r); err != nil {
		return fmt.Errorf("create document request: %w", err)
	}

	rCopy := *r
	e.wg.Go(func() {
		e.execute(&rCopy)
	})

	return nil
}

// Wait blocks until all in-flight generation goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// execute runs the request lifecycle: pending→running→completed/failed, or
// pending→running when the generator defers to a callback.
func (e *Engine) execute(r *model.DocumentRequest) {
	ctx := context.Background()

	if err := e.store.UpdateRequestStatus(ctx, r.ID, model.StatusRunning); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Abandoned before generation started.
			e.logger.Info("request finished before generation started", "request_id", r.ID)
			return
		}
		e.logger.Error("failed to transition to running", "request_id", r.ID, "error", err)
		e.finishFailed(r, model.ErrorCodeGenerator, fmt.Sprintf("failed to start: %v", err))
		return
	}
	e.publish(r.ID, model.StatusRunning, "")

	g, err := e.generators.Resolve(r.Service)
	if err != nil {
		e.finishFailed(r, model.ErrorCodeGenerator, fmt.Sprintf("resolve generator: %v", err))
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	inflightGenerations.Inc()
	start := time.Now()
	result, err := g.Generate(genCtx, generator.Spec{
		RequestID: r.ID,
		Template:  r.Template,
		FileName:  r.FileName,
		Data:      r.Data,
	})
	inflightGenerations.Dec()
	generationDuration.WithLabelValues(r.Service).Observe(time.Since(start).Seconds())

	if errors.Is(err, generator.ErrDeferred) {
		generationsTotal.WithLabelValues(r.Service, statusDeferred).Inc()
		e.logger.Debug("generation deferred to callback", "request_id", r.ID, "service", r.Service)
		return
	}
	if err != nil {
		code, msg := model.ErrorCodeGenerator, err.Error()
		var gerr *generator.Error
		switch {
		case errors.As(err, &gerr):
			code, msg = gerr.Code, gerr.Message
		case genCtx.Err() == context.DeadlineExceeded:
			code, msg = model.ErrorCodeTimeout, fmt.Sprintf("generation timed out after %s", e.timeout)
		}
		e.finishFailed(r, code, msg)
		return
	}

	doc := &model.Document{
		FileName:    result.FileName,
		ContentType: result.ContentType,
		Content:     result.Content,
	}
	if err := e.Complete(ctx, r.ID, doc); err != nil {
		e.logger.Error("failed to update completed request", "request_id", r.ID, "error", err)
		return
	}
	generationsTotal.WithLabelValues(r.Service, model.StatusCompleted).Inc()
}

// finishFailed marks a request failed and records the failure metric.
func (e *Engine) finishFailed(r *model.DocumentRequest, code, msg string) {
	if err := e.Fail(context.Background(), r.ID, code, msg); err != nil {
		e.logger.Error("failed to update failed request", "request_id", r.ID, "error", err)
		return
	}
	generationsTotal.WithLabelValues(r.Service, model.StatusFailed).Inc()
}

// Complete stores doc as the result of request id, marks it completed and
// wakes its poller.
func (e *Engine) Complete(ctx context.Context, id string, doc *model.Document) error {
	if err := e.store.CompleteRequest(ctx, id, doc); err != nil {
		return err
	}
	e.finish(id, model.StatusCompleted, "")
	return nil
}

// Fail marks request id failed with the given error code and message and
// wakes its poller.
func (e *Engine) Fail(ctx context.Context, id, code, message string) error {
	if err := e.store.FailRequest(ctx, id, code, message); err != nil {
		return err
	}
	e.finish(id, model.StatusFailed, code)
	return nil
}

// Abandon fails a request that is no longer wanted.
func (e *Engine) Abandon(ctx context.Context, id string) error {
	return e.Fail(ctx, id, model.ErrorCodeAbandoned, abandonedMessage)
}

// finish publishes the terminal event, closes the request's event stream and
// wakes any poller waiting on it.
func (e *Engine) finish(id, status, code string) {
	e.publish(id, status, code)
	e.broker.Close(id)
	if e.waits.Cancel(id) {
		e.logger.Debug("woke pending poll", "request_id", id, "status", status)
	}
}

func (e *Engine) publish(id, status, code string) {
	e.broker.Publish(id, Event{
		RequestID: id,
		Status:    status,
		ErrorCode: code,
		Time:      time.Now().UTC(),
	})
}
