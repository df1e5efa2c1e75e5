package web

// errors.go turns failures into responses.
//
// The technical error is logged with the request ID. The client gets the
// mapped core.UserMessage as JSON for API calls, or as an HTML fragment for
// browser and HTMX requests.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/filterit/internal/core"
	"github.com/JonMunkholm/filterit/internal/logging"
	mw "github.com/JonMunkholm/filterit/internal/web/middleware"
	"github.com/JonMunkholm/filterit/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// respondError logs err and writes a user-facing error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Warn("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if wantsJSON(r) && !isHTMX(r) {
		respondErrorJSON(w, err, userMsg, statusCode)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if rerr := templates.Alert(userMsg).Render(r.Context(), w); rerr != nil {
		logging.FromContext(r.Context()).Error("render error fragment", "error", rerr)
	}
}

// rejectAPIKey answers 401 for a missing key and 403 for a wrong one.
func (s *Server) rejectAPIKey(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusForbidden
	if errors.Is(err, mw.ErrMissingAPIKey) {
		status = http.StatusUnauthorized
	}
	s.respondError(w, r, err, status)
}

// respondStatus writes a failed session status as an error response.
func (s *Server) respondStatus(w http.ResponseWriter, r *http.Request, st core.Status) {
	s.respondError(w, r, st.Err(), statusCodeFor(st.Kind))
}

func respondErrorJSON(w http.ResponseWriter, err error, msg core.UserMessage, statusCode int) {
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var se *core.Error
	if errors.As(err, &se) {
		resp.Kind = se.Kind.String()
		resp.Detail = se.Detail
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// statusCodeFor maps a session failure kind to an HTTP status.
func statusCodeFor(k core.Kind) int {
	switch k {
	case core.KindLoadFailure:
		return http.StatusUnprocessableEntity
	case core.KindSaveFailure:
		return http.StatusInternalServerError
	case core.KindNoFileLoaded, core.KindNoPendingFilter:
		return http.StatusConflict
	case core.KindInvalidFilterRule, core.KindInvalidColumn:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// registryErrorCode maps registry lookups to an HTTP status.
func registryErrorCode(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidSessionID):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooManySessions):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client expects a JSON body. API routes
// default to JSON.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
