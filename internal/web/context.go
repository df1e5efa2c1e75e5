package web

import (
	"net/http"

	"github.com/JonMunkholm/filterit/internal/audit"
	"github.com/JonMunkholm/filterit/internal/logging"
	mw "github.com/JonMunkholm/filterit/internal/web/middleware"
)

// auditEntry starts an entry tagged with the caller's address.
func auditEntry(r *http.Request, action audit.Action, sessionID string) audit.Entry {
	e := audit.NewEntry(action, sessionID)
	e.IPAddress = mw.ClientIP(r)
	return e
}

// record writes e to the audit trail. Failures are logged, never returned.
func (s *Server) record(r *http.Request, e audit.Entry) {
	if err := s.audit.Record(r.Context(), e); err != nil {
		logging.FromContext(r.Context()).Warn("audit record failed",
			"action", e.Action,
			"session_id", e.SessionID,
			"error", err,
		)
	}
}
