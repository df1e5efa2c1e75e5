package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/filterit/internal/audit"
	"github.com/JonMunkholm/filterit/internal/core"
	"github.com/JonMunkholm/filterit/internal/logging"
	"github.com/JonMunkholm/filterit/internal/record"
	"github.com/JonMunkholm/filterit/internal/table"
	"github.com/JonMunkholm/filterit/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// StatusResponse is the JSON form of a core.Status.
type StatusResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

func statusJSON(st core.Status) StatusResponse {
	resp := StatusResponse{
		Message: st.Message,
		Error:   st.ErrorMessage,
		Detail:  st.ErrorDetail,
	}
	if st.Kind != core.KindNone {
		resp.Kind = st.Kind.String()
	}
	return resp
}

// SessionInfo describes a session's state.
type SessionInfo struct {
	ID      string          `json:"id"`
	Loaded  bool            `json:"loaded"`
	File    string          `json:"file,omitempty"`
	Headers []string        `json:"headers"`
	Rows    int             `json:"rows"`
	Pending *PendingInfo    `json:"pending,omitempty"`
	Status  StatusResponse  `json:"status"`
	Lists   core.MatchLists `json:"matchLists"`
}

// PendingInfo summarizes a staged filter.
type PendingInfo struct {
	Rule    string `json:"rule"`
	Column  int    `json:"column"`
	Removed int    `json:"removed"`
	Kept    int    `json:"kept"`
}

// FilterRequest is the body of POST /filter. Column wins over ColumnName
// when both are set.
type FilterRequest struct {
	Rule       string `json:"rule"`
	Column     *int   `json:"column,omitempty"`
	ColumnName string `json:"columnName,omitempty"`
}

// FilterResponse lists the rows a staged filter would remove.
type FilterResponse struct {
	Status  StatusResponse `json:"status"`
	Count   int            `json:"count"`
	Removed [][]string     `json:"removed"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	lists := s.cfg.Filter.MatchLists()
	page := templates.Index(templates.IndexParams{
		ActiveSessions:  s.sessions.Len(),
		MaxSessions:     s.cfg.Session.MaxSessions,
		AddressPrefixes: lists.AddressPrefixes,
		EmailSuffixes:   lists.EmailSuffixes,
	})
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessions.Create()
	if err != nil {
		s.respondError(w, r, err, registryErrorCode(err))
		return
	}
	s.record(r, auditEntry(r, audit.ActionCreate, id))
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Remove(id) {
		s.respondError(w, r, ErrSessionNotFound, http.StatusNotFound)
		return
	}
	s.record(r, auditEntry(r, audit.ActionClose, id))
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload stores the uploaded file in a scratch directory, loads it
// into the session and removes the scratch copy.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		code := http.StatusBadRequest
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			code = http.StatusRequestEntityTooLarge
		}
		s.respondError(w, r, fmt.Errorf("parse upload: %w", err), code)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	dir, err := os.MkdirTemp(s.cfg.Upload.WorkDir, "filterit-upload-*")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("create upload dir: %w", err), http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	name := uploadName(header.Filename)
	path := filepath.Join(dir, name)
	if err := copyToFile(path, file); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	if err := s.loads.acquire(r.Context()); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer s.loads.release()

	var (
		ok   bool
		st   core.Status
		info SessionInfo
	)
	start := time.Now()
	err = s.sessions.With(id, func(sess *core.Session) error {
		ok, st = sess.LoadFile(path)
		info = describe(id, sess)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err, registryErrorCode(err))
		return
	}

	s.metrics.Observe("load", ok)
	if !ok {
		s.respondStatus(w, r, st)
		return
	}
	s.metrics.LoadDuration.WithLabelValues(table.DetectFormat(name).String()).Observe(time.Since(start).Seconds())
	s.metrics.Loaded(info.Rows)

	e := auditEntry(r, audit.ActionLoad, id)
	e.File = name
	e.RowsAffected = info.Rows
	s.record(r, e)

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var headers []string
	err := s.sessions.With(id, func(sess *core.Session) error {
		headers = sess.Headers()
		return nil
	})
	if err != nil {
		s.respondError(w, r, err, registryErrorCode(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"headers": headers})
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req FilterRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}

	// An unknown rule name is passed through so the session reports it.
	kind, _ := core.ParseRuleKind(req.Rule)

	var (
		removed []table.Row
		st      core.Status
		column  int
	)
	err := s.sessions.With(id, func(sess *core.Session) error {
		column = resolveColumn(req, sess)
		removed, st = sess.Filter(kind, column)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err, registryErrorCode(err))
		return
	}

	s.metrics.Observe("filter", !st.Failed())
	if st.Failed() {
		s.respondStatus(w, r, st)
		return
	}

	e := auditEntry(r, audit.ActionFilter, id)
	e.Rule = kind.String()
	e.Column = column
	e.RowsAffected = len(removed)
	s.record(r, e)

	writeJSON(w, http.StatusOK, FilterResponse{
		Status:  statusJSON(st),
		Count:   len(removed),
		Removed: rowFields(removed),
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		count   int
		st      core.Status
		pending core.Pending
		info    SessionInfo
	)
	err := s.sessions.With(id, func(sess *core.Session) error {
		pending, _ = sess.Pending()
		count, st = sess.ConfirmFilter()
		info = describe(id, sess)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err, registryErrorCode(err))
		return
	}

	s.metrics.Observe("confirm", !st.Failed())
	if st.Failed() {
		s.respondStatus(w, r, st)
		return
	}
	s.metrics.Removed(pending.Rule.String(), count)

	e := auditEntry(r, audit.ActionConfirm, id)
	e.Rule = pending.Rule.String()
	e.Column = pending.Column
	e.RowsAffected = count
	s.record(r, e)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": count,
		"session": info,
	})
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var had bool
	err := s.sessions.With(id, func(sess *core.Session) error {
		had = sess.Discard()
		return nil
	})
	if err != nil {
		s.respondError(w, r, err, registryErrorCode(err))
		return
	}
	if !had {
		s.respondError(w, r, core.ErrNoPendingFilter, http.StatusConflict)
		return
	}

	s.metrics.Observe("discard", true)
	s.record(r, auditEntry(r, audit.ActionDiscard, id))
	w.WriteHeader(http.StatusNoContent)
}

// exportSets names the row sets that can be downloaded.
var exportSets = map[string]string{
	"kept":    "filtered",
	"pending": "pending",
	"removed": "removed",
}

// handleExport streams one row set as CSV. The attachment name follows the
// same convention as files saved next to the source.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	set := strings.ToLower(r.URL.Query().Get("set"))
	if set == "" {
		set = "kept"
	}
	label, ok := exportSets[set]
	if !ok {
		s.respondError(w, r, fmt.Errorf("invalid request: unknown export set %q", set), http.StatusBadRequest)
		return
	}

	var (
		rows   []table.Row
		lines  []table.Row
		source string
		fail   error
	)
	err := s.sessions.With(id, func(sess *core.Session) error {
		source = filepath.Base(sess.Source())
		if !sess.Loaded() {
			fail = core.ErrNoFileLoaded
			return nil
		}
		switch set {
		case "kept":
			rows = sess.Rows()
		default:
			p, ok := sess.Pending()
			if !ok {
				fail = core.ErrNoPendingFilter
				return nil
			}
			if set == "removed" {
				rows = p.Removed
			} else {
				rows = p.Table.Rows()
			}
		}
		lines = sess.WithHeader(rows)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err, registryErrorCode(err))
		return
	}
	if fail != nil {
		s.metrics.Observe("export", false)
		s.respondError(w, r, fail, http.StatusConflict)
		return
	}

	filename := filepath.Base(core.OutputPath(source, label, time.Now()))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := record.Write(w, lines); err != nil {
		// Headers are gone; all we can do is log.
		logging.FromContext(r.Context()).Error("export write failed", "session_id", id, "error", err)
		s.metrics.Observe("export", false)
		return
	}
	s.metrics.Observe("export", true)

	e := auditEntry(r, audit.ActionSave, id)
	e.File = filename
	e.RowsAffected = len(rows)
	s.record(r, e)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var info SessionInfo
	err := s.sessions.With(id, func(sess *core.Session) error {
		info = describe(id, sess)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err, registryErrorCode(err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func describe(id string, sess *core.Session) SessionInfo {
	info := SessionInfo{
		ID:      id,
		Loaded:  sess.Loaded(),
		Headers: sess.Headers(),
		Rows:    sess.RowCount(),
		Status:  statusJSON(sess.LastStatus()),
		Lists:   sess.MatchLists(),
	}
	if info.Loaded {
		info.File = filepath.Base(sess.Source())
	}
	if p, ok := sess.Pending(); ok {
		info.Pending = &PendingInfo{
			Rule:    p.Rule.String(),
			Column:  p.Column,
			Removed: len(p.Removed),
			Kept:    p.Table.Len(),
		}
	}
	return info
}

// resolveColumn picks the column index for a filter request. An unknown
// name yields -1, which the session rejects.
func resolveColumn(req FilterRequest, sess *core.Session) int {
	if req.Column != nil {
		return *req.Column
	}
	if req.ColumnName != "" {
		i, _ := sess.ColumnIndex(req.ColumnName)
		return i
	}
	return -1
}

func rowFields(rows []table.Row) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = row.Fields()
	}
	return out
}

// uploadName keeps only the base name of a client-supplied filename.
func uploadName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.csv"
	}
	return name
}

func copyToFile(path string, src io.Reader) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close upload file: %w", cerr)
		}
	}()
	if _, err := io.Copy(f, src); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}
