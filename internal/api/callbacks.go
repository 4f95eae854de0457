package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/docgen/internal/model"
	"github.com/seantiz/docgen/internal/store"
)

const defaultContentType = "application/octet-stream"

// resultCallback is the JSON body a remote generator posts when a deferred
// document is ready. Content is base64 encoded.
type resultCallback struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// errorCallback is the JSON body a remote generator posts when a deferred
// document could not be produced.
type errorCallback struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (s *Server) handleResultCallback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body resultCallback
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.FileName == "" {
		s.writeError(w, http.StatusBadRequest, "file_name is required")
		return
	}
	if body.ContentType == "" {
		body.ContentType = defaultContentType
	}

	doc := &model.Document{
		FileName:    body.FileName,
		ContentType: body.ContentType,
		Content:     body.Content,
	}
	if err := s.engine.Complete(r.Context(), id, doc); err != nil {
		s.writeCallbackError(w, id, err)
		return
	}

	s.logger.Info("document result received", "request_id", id, "document_id", doc.ID, "size", doc.Size)
	s.writeCallbackAccepted(w, r, id)
}

func (s *Server) handleErrorCallback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body errorCallback
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.engine.Fail(r.Context(), id, body.ErrorCode, body.ErrorMessage); err != nil {
		s.writeCallbackError(w, id, err)
		return
	}

	s.logger.Info("document error received", "request_id", id, "error_code", body.ErrorCode)
	s.writeCallbackAccepted(w, r, id)
}

func (s *Server) writeCallbackAccepted(w http.ResponseWriter, r *http.Request, id string) {
	req, err := s.store.GetRequest(r.Context(), id)
	if err != nil {
		s.logger.Error("get document request after callback", "request_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve document request")
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) writeCallbackError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "document request not found")
	case errors.Is(err, store.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, "document request already finished")
	default:
		s.logger.Error("apply callback", "request_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to apply callback")
	}
}
