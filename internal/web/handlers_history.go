package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/filterit/internal/audit"
	"github.com/JonMunkholm/filterit/internal/logging"
	"github.com/JonMunkholm/filterit/internal/web/templates"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxHistoryLimit = 500

var errHistoryUnavailable = errors.New("audit history is not available without a database")

// HistoryResponse lists a session's audit trail, newest first.
type HistoryResponse struct {
	SessionID string        `json:"sessionId"`
	Entries   []audit.Entry `json:"entries"`
}

// handleHistory returns the recorded actions of a session. The trail
// outlives the session, so closed and expired ids are still answered.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		s.respondError(w, r, errInvalidSessionID, http.StatusBadRequest)
		return
	}

	hist, ok := s.audit.(audit.History)
	if !ok {
		s.respondError(w, r, errHistoryUnavailable, http.StatusNotImplemented)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	entries, err := hist.Recent(r.Context(), id, limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("read audit history", "session_id", id, "error", err)
		s.respondError(w, r, errors.New("could not read audit history"), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.History(id, entries).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render history", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: id, Entries: entries})
}

// parseLimit reads ?limit=, defaulting to audit.DefaultHistoryLimit and
// capped at maxHistoryLimit.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return audit.DefaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid request: limit must be a positive integer, got %q", v)
	}
	return min(n, maxHistoryLimit), nil
}
