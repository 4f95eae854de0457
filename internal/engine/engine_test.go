package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/seantiz/docgen/internal/engine"
	"github.com/seantiz/docgen/internal/generator"
	"github.com/seantiz/docgen/internal/model"
	"github.com/seantiz/docgen/internal/pending"
	"github.com/seantiz/docgen/internal/store"
)

// delayGenerator is a configurable mock generator for engine tests.
type delayGenerator struct {
	delay   time.Duration
	content []byte
	err     error
}

func (d *delayGenerator) Generate(ctx context.Context, spec generator.Spec) (generator.Result, error) {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return generator.Result{}, ctx.Err()
	}
	if d.err != nil {
		return generator.Result{}, d.err
	}
	return generator.Result{
		FileName:    spec.Template + ".txt",
		ContentType: "text/plain",
		Content:     d.content,
	}, nil
}

func (d *delayGenerator) Capabilities() generator.Capabilities {
	return generator.Capabilities{Name: "delay"}
}

func newTestEngine(t *testing.T, g generator.Generator) (*engine.Engine, store.Store, *pending.Registry) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	gens := generator.NewRegistry()
	gens.Register(model.ServiceLocal, g)
	waits := pending.NewRegistry()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng := engine.NewEngine(s, gens, waits, logger)
	t.Cleanup(eng.Wait)
	return eng, s, waits
}

func makeRequest() *model.DocumentRequest {
	return &model.DocumentRequest{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		Template:  "invoice",
		Service:   model.ServiceLocal,
		CreatedAt: time.Now().UTC(),
	}
}

// waitForStatus polls the store until the request reaches the expected status.
func waitForStatus(t *testing.T, s store.Store, id, expected string, timeout time.Duration) *model.DocumentRequest {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r, err := s.GetRequest(context.Background(), id)
		if err != nil {
			t.Fatalf("GetRequest: %v", err)
		}
		if r.Status == expected {
			return r
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("request %s did not reach status %q within %v", id, expected, timeout)
	return nil
}

func TestSubmitHappyPath(t *testing.T) {
	g := &delayGenerator{delay: 10 * time.Millisecond, content: []byte("hello")}
	eng, s, _ := newTestEngine(t, g)
	r := makeRequest()

	if err := eng.Submit(context.Background(), r); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	completed := waitForStatus(t, s, r.ID, model.StatusCompleted, 5*time.Second)
	if completed.ArtifactRef == "" {
		t.Fatal("artifact_ref is empty")
	}
	if completed.StartedAt == nil || completed.FinishedAt == nil {
		t.Error("timestamps not set on completed request")
	}

	doc, err := s.GetDocument(context.Background(), completed.ArtifactRef)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if string(doc.Content) != "hello" {
		t.Errorf("content = %q, want %q", doc.Content, "hello")
	}
	if doc.FileName != "invoice.txt" {
		t.Errorf("file name = %q, want invoice.txt", doc.FileName)
	}
}

func TestSubmitGeneratorError(t *testing.T) {
	g := &delayGenerator{err: &generator.Error{Code: "E42", Message: "bad template"}}
	eng, s, _ := newTestEngine(t, g)
	r := makeRequest()

	if err := eng.Submit(context.Background(), r); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failed := waitForStatus(t, s, r.ID, model.StatusFailed, 5*time.Second)
	if failed.ErrorCode != "E42" {
		t.Errorf("error_code = %q, want E42", failed.ErrorCode)
	}
	if failed.ErrorMessage != "bad template" {
		t.Errorf("error_message = %q, want %q", failed.ErrorMessage, "bad template")
	}
}

func TestSubmitUnstructuredError(t *testing.T) {
	g := &delayGenerator{err: errors.New("crash")}
	eng, s, _ := newTestEngine(t, g)
	r := makeRequest()

	eng.Submit(context.Background(), r)

	failed := waitForStatus(t, s, r.ID, model.StatusFailed, 5*time.Second)
	if failed.ErrorCode != model.ErrorCodeGenerator {
		t.Errorf("error_code = %q, want %q", failed.ErrorCode, model.ErrorCodeGenerator)
	}
}

func TestSubmitTimeout(t *testing.T) {
	g := &delayGenerator{delay: 5 * time.Second}
	eng, s, _ := newTestEngine(t, g)
	eng.SetTimeout(50 * time.Millisecond)
	r := makeRequest()

	eng.Submit(context.Background(), r)

	failed := waitForStatus(t, s, r.ID, model.StatusFailed, 5*time.Second)
	if failed.ErrorCode != model.ErrorCodeTimeout {
		t.Errorf("error_code = %q, want %q", failed.ErrorCode, model.ErrorCodeTimeout)
	}
}

func TestSubmitUnresolvableGenerator(t *testing.T) {
	g := &delayGenerator{delay: 10 * time.Millisecond}
	eng, s, _ := newTestEngine(t, g)
	r := makeRequest()
	r.Service = model.ServicePrivate

	eng.Submit(context.Background(), r)

	failed := waitForStatus(t, s, r.ID, model.StatusFailed, 5*time.Second)
	if failed.ErrorMessage == "" {
		t.Error("expected resolve generator error message, got empty")
	}
	if failed.StartedAt == nil {
		t.Error("started_at should be set when resolution fails after the running transition")
	}
}

func TestSubmitDeferredStaysRunning(t *testing.T) {
	eng, s, _ := newTestEngine(t, generator.NewCallbackGenerator("cloud", slog.New(slog.NewJSONHandler(io.Discard, nil))))
	r := makeRequest()

	eng.Submit(context.Background(), r)
	eng.Wait()

	got, err := s.GetRequest(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Status != model.StatusRunning {
		t.Errorf("status = %q, want running", got.Status)
	}

	doc := &model.Document{FileName: "out.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}
	if err := eng.Complete(context.Background(), r.ID, doc); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ = s.GetRequest(context.Background(), r.ID)
	if got.Status != model.StatusCompleted || got.ArtifactRef != doc.ID {
		t.Errorf("status/ref = %q/%q, want completed/%s", got.Status, got.ArtifactRef, doc.ID)
	}
}

func TestCompleteWakesPendingWait(t *testing.T) {
	eng, s, waits := newTestEngine(t, generator.NewCallbackGenerator("cloud", slog.New(slog.NewJSONHandler(io.Discard, nil))))
	r := makeRequest()
	eng.Submit(context.Background(), r)
	eng.Wait()
	waitForStatus(t, s, r.ID, model.StatusRunning, time.Second)

	h, err := waits.BeginWait(r.ID)
	if err != nil {
		t.Fatalf("BeginWait: %v", err)
	}
	defer waits.EndWait(h)

	if err := eng.Fail(context.Background(), r.ID, "E42", "remote failure"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if !h.Released() {
		t.Error("pending wait was not released by Fail")
	}
}

func TestAbandonPendingRequest(t *testing.T) {
	eng, s, _ := newTestEngine(t, &delayGenerator{delay: time.Second})
	r := makeRequest()
	if err := s.CreateRequest(context.Background(), r); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	if err := eng.Abandon(context.Background(), r.ID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	got, _ := s.GetRequest(context.Background(), r.ID)
	if got.Status != model.StatusFailed || got.ErrorCode != model.ErrorCodeAbandoned {
		t.Errorf("status/code = %q/%q, want failed/%s", got.Status, got.ErrorCode, model.ErrorCodeAbandoned)
	}

	if err := eng.Abandon(context.Background(), r.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("second Abandon error = %v, want ErrInvalidTransition", err)
	}
}

func TestSubmitPublishesEvents(t *testing.T) {
	g := &delayGenerator{delay: 50 * time.Millisecond, content: []byte("x")}
	eng, _, _ := newTestEngine(t, g)
	r := makeRequest()

	ch, unsub := eng.Broker().Subscribe(r.ID)
	defer unsub()

	eng.Submit(context.Background(), r)

	var statuses []string
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-ch:
			if !ok {
				done = true
				break
			}
			statuses = append(statuses, ev.Status)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}

	if len(statuses) != 2 || statuses[0] != model.StatusRunning || statuses[1] != model.StatusCompleted {
		t.Errorf("statuses = %v, want [running completed]", statuses)
	}
}

func TestSubmitConcurrent(t *testing.T) {
	g := &delayGenerator{delay: 50 * time.Millisecond, content: []byte("done")}
	eng, s, _ := newTestEngine(t, g)

	ids := make([]string, 5)
	for i := range ids {
		r := makeRequest()
		ids[i] = r.ID
		if err := eng.Submit(context.Background(), r); err != nil {
			t.Fatalf("Submit[%d]: %v", i, err)
		}
	}

	for _, id := range ids {
		waitForStatus(t, s, id, model.StatusCompleted, 5*time.Second)
	}
}
