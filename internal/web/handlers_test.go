package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/filterit/internal/audit"
	"github.com/JonMunkholm/filterit/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contactsCSV = "Name,Address,Email\n" +
	"Ann,PO BOX 12,ann@example.com\n" +
	"Bob,1 Main St,bob@state.gov\n" +
	"Cy,p.o. box 9,cy@uni.edu\n" +
	"Di,22 Elm,di@example.com\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Upload:  config.UploadConfig{MaxFileSize: 1 << 20, WorkDir: t.TempDir()},
		Session: config.SessionConfig{IdleTimeout: time.Minute, SweepInterval: time.Minute, MaxSessions: 5},
		Filter: config.FilterConfig{
			AddressPrefixes: []string{"po box", "p.o. box"},
			EmailSuffixes:   []string{".edu", ".gov"},
		},
	}
}

type testServer struct {
	t     *testing.T
	srv   *Server
	audit *memRecorder
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	rec := &memRecorder{}
	return &testServer{
		t:     t,
		srv:   NewServer(cfg, Options{Audit: rec, Registry: prometheus.NewRegistry()}),
		audit: rec,
	}
}

func (ts *testServer) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createSession() string {
	rec := ts.do(http.MethodPost, "/api/sessions", nil, "")
	require.Equal(ts.t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["id"]
}

func (ts *testServer) upload(id, filename, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(ts.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(ts.t, err)
	require.NoError(ts.t, mw.Close())
	return ts.do(http.MethodPost, "/api/sessions/"+id+"/file", buf.Bytes(), mw.FormDataContentType())
}

func (ts *testServer) filter(id, body string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, "/api/sessions/"+id+"/filter", []byte(body), "application/json")
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Code
}

func TestServer_FullWorkflow(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := ts.createSession()

	// Filtering before a load is rejected.
	rec := ts.filter(id, `{"rule":"address","column":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SES001", errorCode(t, rec))

	rec = ts.upload(id, "contacts.csv", contactsCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var info SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Loaded)
	assert.Equal(t, "contacts.csv", info.File)
	assert.Equal(t, 4, info.Rows)
	assert.Equal(t, []string{"Name", "Address", "Email"}, info.Headers)
	assert.Equal(t, "Loaded 4 records from contacts.csv", info.Status.Message)

	rec = ts.filter(id, `{"rule":"address","column":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fr FilterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fr))
	assert.Equal(t, 2, fr.Count)
	assert.Equal(t, "Records found to be removed: 2", fr.Status.Message)
	assert.Equal(t, "Ann", fr.Removed[0][0])
	assert.Equal(t, "Cy", fr.Removed[1][0])

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/export?set=removed", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Name,Address,Email\nAnn,PO BOX 12,ann@example.com\nCy,p.o. box 9,cy@uni.edu\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "contacts.csv_removed_")

	// Staging does not touch the committed rows.
	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/status", nil, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, 4, info.Rows)
	require.NotNil(t, info.Pending)
	assert.Equal(t, 2, info.Pending.Removed)

	rec = ts.do(http.MethodPost, "/api/sessions/"+id+"/confirm", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"removed":2`)

	rec = ts.do(http.MethodPost, "/api/sessions/"+id+"/confirm", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SES002", errorCode(t, rec))

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Name,Address,Email\nBob,1 Main St,bob@state.gov\nDi,22 Elm,di@example.com\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "contacts.csv_filtered_")

	// Column by name, then throw the result away.
	rec = ts.filter(id, `{"rule":"email","columnName":"EMAIL"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fr))
	assert.Equal(t, 1, fr.Count)

	rec = ts.do(http.MethodDelete, "/api/sessions/"+id+"/pending", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodDelete, "/api/sessions/"+id+"/pending", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/status", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REQ001", errorCode(t, rec))

	var actions []audit.Action
	for _, e := range ts.audit.entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []audit.Action{
		audit.ActionCreate,
		audit.ActionLoad,
		audit.ActionFilter,
		audit.ActionSave,
		audit.ActionConfirm,
		audit.ActionSave,
		audit.ActionFilter,
		audit.ActionDiscard,
		audit.ActionClose,
	}, actions)
}

func TestServer_FilterValidation(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := ts.createSession()
	require.Equal(t, http.StatusOK, ts.upload(id, "contacts.csv", contactsCSV).Code)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown rule", `{"rule":"phone","column":1}`, http.StatusBadRequest, "FLT001"},
		{"column out of range", `{"rule":"email","column":9}`, http.StatusBadRequest, "FLT002"},
		{"negative column", `{"rule":"email","column":-1}`, http.StatusBadRequest, "FLT002"},
		{"unknown column name", `{"rule":"email","columnName":"Phone"}`, http.StatusBadRequest, "FLT002"},
		{"no column", `{"rule":"email"}`, http.StatusBadRequest, "FLT002"},
		{"malformed body", `{"rule":`, http.StatusBadRequest, "REQ002"},
		{"unknown field", `{"rule":"email","col":1}`, http.StatusBadRequest, "REQ002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.filter(id, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, errorCode(t, rec))
		})
	}

	// None of the rejected requests staged anything.
	rec := ts.do(http.MethodPost, "/api/sessions/"+id+"/confirm", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_UploadFailures(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := ts.createSession()

	rec := ts.upload(id, "dupes.csv", "a,a\n1,2\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "LOAD001", errorCode(t, rec))

	rec = ts.upload(id, "empty.csv", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, "/api/sessions/"+id+"/file", []byte("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Still empty after the failed loads.
	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/headers", nil, "")
	assert.JSONEq(t, `{"headers":[]}`, rec.Body.String())
}

func TestServer_UploadTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.MaxFileSize = 64
	ts := newTestServer(t, cfg)
	id := ts.createSession()

	rec := ts.upload(id, "big.csv", strings.Repeat("a,b\n", 100))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", errorCode(t, rec))
}

func TestServer_ExportErrors(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := ts.createSession()

	rec := ts.do(http.MethodGet, "/api/sessions/"+id+"/export", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SES001", errorCode(t, rec))

	require.Equal(t, http.StatusOK, ts.upload(id, "contacts.csv", contactsCSV).Code)
	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/export?set=removed", nil, "")
	assert.Equal(t, "SES002", errorCode(t, rec))

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/export?set=everything", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SessionErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.MaxSessions = 1
	ts := newTestServer(t, cfg)
	ts.createSession()

	rec := ts.do(http.MethodPost, "/api/sessions", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SES003", errorCode(t, rec))

	rec = ts.do(http.MethodGet, "/api/sessions/not-a-uuid/status", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	ts := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", nil, "").Code)
	rec := ts.do(http.MethodGet, "/api/sessions/x/status", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", errorCode(t, rec))
}

func TestServer_PagesAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Filter.AddressPrefixes = []string{"<po box>"}
	cfg.Security.EnableCSP = true
	ts := newTestServer(t, cfg)
	ts.createSession()

	rec := ts.do(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Active sessions: <strong>1</strong> of 5")
	assert.Contains(t, body, "&lt;po box&gt;")
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = ts.do(http.MethodGet, "/healthz", nil, "")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "filterit_sessions_active 1")
}

func TestServer_APIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	ts := newTestServer(t, cfg)

	rec := ts.do(http.MethodPost, "/api/sessions", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AUTH001", resp.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.Header.Set("X-API-Key", "wrong")
	rr := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "AUTH002", resp.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.Header.Set("X-API-Key", "secret")
	rr = httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)

	// HTMX callers get the alert fragment.
	req = httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.Header.Set("HX-Request", "true")
	rr = httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Code: AUTH001")
}

func TestErrorFragmentForHTMX(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/sessions/%s/status", "00000000-0000-0000-0000-000000000000"), nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Code: REQ001")
}

func TestUploadName(t *testing.T) {
	assert.Equal(t, "list.csv", uploadName("list.csv"))
	assert.Equal(t, "list.xlsx", uploadName(`C:\Users\me\list.xlsx`))
	assert.Equal(t, "x.csv", uploadName("../../x.csv"))
	assert.Equal(t, "upload.csv", uploadName(""))
}
