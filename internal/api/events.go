package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/docgen/internal/engine"
	"github.com/seantiz/docgen/internal/model"
	"github.com/seantiz/docgen/internal/store"
)

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := s.store.GetRequest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "document request not found")
		return
	}
	if err != nil {
		s.logger.Error("get document request for events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get document request")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribing before the terminal check means a request finishing in
	// between still closes the channel and ends the loop below.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}

	if model.IsTerminal(req.Status) {
		_ = writeStatusEvent(w, engine.Event{
			RequestID: req.ID,
			Status:    req.Status,
			ErrorCode: req.ErrorCode,
			Time:      time.Now().UTC(),
		})
		_ = writeSSEEvent(w, "done", "stream complete")
		flush()
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Error("set write deadline for SSE", "error", err)
	}
	flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				flush()
				return
			}
			if err := writeStatusEvent(w, ev); err != nil {
				return
			}
			flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeStatusEvent writes ev as a JSON "status" event.
func writeStatusEvent(w http.ResponseWriter, ev engine.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return writeSSEEvent(w, "status", string(data))
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
