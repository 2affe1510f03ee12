package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aileronlabs/aileron/pkg/vector"
	"github.com/aileronlabs/aileron/pkg/workflow"
)

// queryRequest is the POST /v1/query body. collection pins a design
// area; top_k applies to retrieve-only requests; retrieve_only skips
// generation and returns the closest documents instead.
type queryRequest struct {
	Question     string `json:"question"`
	Collection   string `json:"collection,omitempty"`
	TopK         int    `json:"top_k,omitempty"`
	RetrieveOnly bool   `json:"retrieve_only,omitempty"`
}

// queryResponse is the POST /v1/query reply. sources is filled for
// retrieve-only requests; generated runs report their evidence inside
// the answer text.
type queryResponse struct {
	Answer  string            `json:"answer"`
	Intent  string            `json:"intent"`
	Sources []vector.Document `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	if req.RetrieveOnly {
		s.handleRetrieveOnly(w, r, req)
		return
	}

	question := req.Question
	if req.Collection != "" {
		question = workflow.CollectionHint(req.Collection, req.Question)
	}

	next, err := s.engine.Run(r.Context(), &workflow.State{
		Question:   question,
		Collection: req.Collection,
	})
	if err != nil {
		if r.Context().Err() != nil {
			slog.Warn("query abandoned by client", "error", err)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:  next.Generation,
		Intent:  next.Intent,
		Sources: []vector.Document{},
	})
}

func (s *Server) handleRetrieveOnly(w http.ResponseWriter, r *http.Request, req queryRequest) {
	docs, err := s.engine.Retrieve(r.Context(), req.Question, req.Collection, req.TopK)
	if err != nil {
		switch {
		case vector.IsUnknownCollection(err):
			writeError(w, http.StatusNotFound, err.Error())
		case vector.IsTransient(err):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if docs == nil {
		docs = []vector.Document{}
	}
	writeJSON(w, http.StatusOK, queryResponse{Sources: docs})
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Collections(r.Context())
	if err != nil {
		if vector.IsTransient(err) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stats == nil {
		stats = []vector.CollectionStat{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": stats,
		"total":       len(stats),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
