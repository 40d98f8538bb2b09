package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lardosa/contacerta/internal/importer"
	"github.com/lardosa/contacerta/internal/sheet"
)

// sessionResponse is the common session envelope returned by most handlers.
type sessionResponse struct {
	ID      string              `json:"id"`
	Kind    importer.RecordKind `json:"kind"`
	State   importer.State      `json:"state"`
	Columns []importer.ColumnID `json:"columns,omitempty"`
}

func newSessionResponse(sess *importer.Session) sessionResponse {
	resp := sessionResponse{
		ID:    sess.ID,
		Kind:  sess.Kind,
		State: sess.State(),
	}
	if cols := sess.Layout().Columns; len(cols) > 0 {
		resp.Columns = cols
	}
	return resp
}

// handleCreateSession starts an import run for a record kind.
// POST /api/imports {"kind": "receipts"}
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind importer.RecordKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode request: %w", err))
		return
	}

	sess, err := s.service.Create(r.Context(), req.Kind)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newSessionResponse(sess))
}

// handleSessionState returns the current state of a session.
func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(sess))
}

// handleUploadFile accepts the spreadsheet file, loads the matrix and runs
// detection plus auto-mapping. The response state tells the client whether
// the session reached review or needs a manual mapping.
// POST /api/imports/{sessionID}/file (multipart, field "file")
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(s.maxBody); err != nil {
		s.respondError(w, r, fmt.Errorf("parse upload: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	matrix, err := sheet.LoadMatrix(header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := sess.Load(r.Context(), matrix); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(sess))
}

// handleSetMapping applies an operator-supplied field mapping.
// POST /api/imports/{sessionID}/mapping {"mapping": {"DATE": "A", ...}}
func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req struct {
		Mapping map[importer.LogicalField]importer.ColumnID `json:"mapping"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode request: %w", err))
		return
	}

	if err := sess.SetMapping(r.Context(), req.Mapping); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(sess))
}

// handleReview returns the valid/invalid partition with duplicate marks.
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if sess.State() != importer.StateReview {
		s.respondError(w, r, fmt.Errorf("%w: review in state %s", importer.ErrWrongState, sess.State()))
		return
	}
	respondJSON(w, http.StatusOK, sess.Review())
}

// handleCommit confirms the import. The optional skipExisting flag
// overrides the session's duplicate-skip toggle.
// POST /api/imports/{sessionID}/commit {"skipExisting": false}
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req struct {
		SkipExisting *bool `json:"skipExisting"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, r, fmt.Errorf("decode request: %w", err))
			return
		}
	}
	if req.SkipExisting != nil {
		sess.SkipExisting = *req.SkipExisting
	}

	result, err := sess.Commit(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.service.Remove(sess.ID)
	respondJSON(w, http.StatusOK, result)
}

// handleDiscard cancels a run with no external effects.
func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := sess.Discard(); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.service.Remove(sess.ID)
	respondJSON(w, http.StatusOK, map[string]string{"state": string(importer.StateDiscarded)})
}
