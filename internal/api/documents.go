package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/docgen/internal/coordinator"
	"github.com/seantiz/docgen/internal/model"
	"github.com/seantiz/docgen/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createDocumentRequest is the JSON body for POST /v1/documents and
// POST /v1/documents/async.
type createDocumentRequest struct {
	Template string          `json:"template"`
	FileName string          `json:"file_name"`
	Service  string          `json:"service"`
	Data     json.RawMessage `json:"data"`
}

// documentResponse is returned by a successful synchronous generation.
type documentResponse struct {
	Request  *model.DocumentRequest `json:"request"`
	Document *model.Document        `json:"document"`
}

// listDocumentsResponse wraps the paginated list response.
type listDocumentsResponse struct {
	Requests []*model.DocumentRequest `json:"requests"`
	Total    int                      `json:"total"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

// errorResponse is the JSON error body. Failures tied to a request carry its
// id and, for generator failures, the remote error code.
type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// handleCreateDocument submits a request and blocks until the coordinator
// observes its result or the sync timeout elapses.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := s.submit(w, r)
	if !ok {
		return
	}

	ref, err := s.coordinator.WaitForResult(r.Context(), s.newStrategy(s.syncTimeout), req.ID)
	if err != nil {
		s.writeWaitError(w, r, req.ID, err)
		return
	}

	// The request context may already be done if the client left just as
	// the result arrived.
	ctx := context.WithoutCancel(r.Context())
	final, err := s.store.GetRequest(ctx, req.ID)
	if err != nil {
		s.logger.Error("get finished document request", "request_id", req.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get document request")
		return
	}
	doc, err := s.store.GetDocument(ctx, ref)
	if err != nil {
		s.logger.Error("get document", "request_id", req.ID, "artifact_ref", ref, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	s.writeJSON(w, http.StatusOK, documentResponse{Request: final, Document: doc})
}

func (s *Server) handleAsyncDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := s.submit(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusAccepted, req)
}

// submit decodes and validates the request body, then hands the request to
// the engine. It writes the error response itself and reports whether the
// caller should continue.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) (*model.DocumentRequest, bool) {
	var body createDocumentRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}

	if body.Template == "" {
		s.writeError(w, http.StatusBadRequest, "template is required")
		return nil, false
	}

	service := body.Service
	if service == "" {
		service = s.defaultService
	}
	if _, err := s.generators.Resolve(service); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported service %q", service))
		return nil, false
	}

	req := &model.DocumentRequest{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		Template:  body.Template,
		FileName:  body.FileName,
		Service:   service,
		Data:      body.Data,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.engine.Submit(r.Context(), req); err != nil {
		s.logger.Error("submit document request", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create document request")
		return nil, false
	}

	s.logger.Info("document request submitted", "request_id", req.ID, "service", service, "template", req.Template)
	return req, true
}

// writeWaitError maps coordinator errors to HTTP responses.
func (s *Server) writeWaitError(w http.ResponseWriter, r *http.Request, id string, err error) {
	var remote *coordinator.RemoteFailureError
	switch {
	case errors.Is(err, coordinator.ErrPollingTimeout):
		s.writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error(), RequestID: id})
	case errors.As(err, &remote):
		s.writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:     remote.Reason(),
			ErrorCode: remote.Code,
			RequestID: id,
		})
	case errors.Is(err, coordinator.ErrInvalidState), errors.Is(err, coordinator.ErrArtifactNotFound):
		s.logger.Error("document request in unexpected state", "request_id", id, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), RequestID: id})
	case r.Context().Err() != nil:
		s.logger.Info("client left before document was ready", "request_id", id)
	default:
		s.logger.Error("wait for document result", "request_id", id, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to wait for document", RequestID: id})
	}
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := s.store.GetRequest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "document request not found")
		return
	}
	if err != nil {
		s.logger.Error("get document request", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get document request")
		return
	}

	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	reqs, total, err := s.store.ListRequests(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list document requests", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list document requests")
		return
	}

	if reqs == nil {
		reqs = []*model.DocumentRequest{}
	}

	s.writeJSON(w, http.StatusOK, listDocumentsResponse{
		Requests: reqs,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := s.store.GetRequest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "document request not found")
		return
	}
	if err != nil {
		s.logger.Error("get document request for content", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get document request")
		return
	}

	if req.Status != model.StatusCompleted {
		s.writeJSON(w, http.StatusConflict, errorResponse{
			Error:     fmt.Sprintf("document request is %s", req.Status),
			ErrorCode: req.ErrorCode,
			RequestID: id,
		})
		return
	}

	doc, err := s.store.GetDocument(r.Context(), req.ArtifactRef)
	if err != nil {
		s.logger.Error("get document content", "request_id", id, "artifact_ref", req.ArtifactRef, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Content); err != nil {
		s.logger.Error("write document content", "request_id", id, "error", err)
	}
}

// handleDeleteDocument abandons a request that has not finished yet and wakes
// any synchronous caller waiting on it.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.Abandon(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "document request not found")
		case errors.Is(err, store.ErrInvalidTransition):
			s.writeError(w, http.StatusConflict, "document request already finished")
		default:
			s.logger.Error("abandon document request", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to abandon document request")
		}
		return
	}

	req, err := s.store.GetRequest(r.Context(), id)
	if err != nil {
		s.logger.Error("get abandoned document request", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve document request")
		return
	}

	s.writeJSON(w, http.StatusOK, req)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
