package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-motion/internal/lighting"
)

// resetOrigin is recorded as the triggered-by value of API resets.
const resetOrigin = "api"

// handleListControllers returns the status of every controller in
// definition order.
func (s *Server) handleListControllers(w http.ResponseWriter, _ *http.Request) {
	controllers := s.manager.List()
	statuses := make([]lighting.Status, 0, len(controllers))
	for _, c := range controllers {
		statuses = append(statuses, c.Status())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"controllers": statuses,
		"count":       len(statuses),
	})
}

// handleGetController returns one controller's status.
func (s *Server) handleGetController(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

// handleControllerHistory returns recent transitions, newest first.
// The optional limit query parameter is capped by the repository.
func (s *Server) handleControllerHistory(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "transition history is not enabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.history.List(r.Context(), c.Name(), limit)
	if err != nil {
		s.logger.Error("listing transition history failed", "controller", c.Name(), "error", err)
		writeInternalError(w, "failed to list transition history")
		return
	}
	if records == nil {
		records = []lighting.TransitionRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"controller":  c.Name(),
		"transitions": records,
		"count":       len(records),
	})
}

// handleControllerGraph returns the state graph in DOT format.
func (s *Server) handleControllerGraph(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte(c.Graph()))
}

// handleResetController forces the controller back to idle, as the
// lightingsm-reset event does, and returns the resulting status.
func (s *Server) handleResetController(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// The reset's status publication and history write must outlive a
	// client that hangs up.
	ctx := context.WithoutCancel(r.Context())
	if err := s.manager.Reset(ctx, name, resetOrigin); err != nil {
		if errors.Is(err, lighting.ErrControllerNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		writeInternalError(w, "reset failed")
		return
	}

	s.logger.Info("controller reset via API", "controller", name)

	c, err := s.manager.Get(name)
	if err != nil {
		writeNotFound(w, "controller not found")
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

// lookup resolves the {name} URL parameter, writing a 404 when unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*lighting.Controller, bool) {
	c, err := s.manager.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeNotFound(w, "controller not found")
		return nil, false
	}
	return c, true
}
