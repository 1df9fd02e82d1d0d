package httpapi_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rasha-hantash/confluence-mirror/config"
	"github.com/rasha-hantash/confluence-mirror/httpapi"
	"github.com/rasha-hantash/confluence-mirror/steps/reader/readertest"
	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/steps/uploader"
	"github.com/rasha-hantash/confluence-mirror/steps/uploader/uploadertest"
	"github.com/rasha-hantash/confluence-mirror/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	space string
	mode  syncer.Mode
}

type fakeRunner struct {
	calls   []call
	summary *types.Summary
	err     error
}

func (f *fakeRunner) Run(_ context.Context, space string, mode syncer.Mode) (*types.Summary, error) {
	f.calls = append(f.calls, call{space, mode})
	return f.summary, f.err
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, http.Header, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec.Code, rec.Header(), strings.TrimSpace(rec.Body.String())
}

func TestConfluenceSync(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
		wantCall *call
	}{
		{
			name:     "full",
			body:     `{"space": "SIA", "type": "full"}`,
			wantCode: http.StatusOK,
			wantBody: "Full sync completed for space: SIA.\nUploaded: 3, failed: 1, ambiguous titles: 0.",
			wantCall: &call{"SIA", syncer.ModeFull},
		},
		{
			name:     "incremental",
			body:     `{"space": "ENG", "type": "incremental"}`,
			wantCode: http.StatusOK,
			wantBody: "Incremental sync completed for space: ENG.\nUploaded: 3, failed: 1, ambiguous titles: 0.",
			wantCall: &call{"ENG", syncer.ModeIncremental},
		},
		{
			name:     "missing type key",
			body:     `{"space": "SIA"}`,
			wantCode: http.StatusBadRequest,
			wantBody: "missing key 'type'",
		},
		{
			name:     "missing space key",
			body:     `{"type": "full"}`,
			wantCode: http.StatusBadRequest,
			wantBody: "missing key 'space'",
		},
		{
			name:     "null body",
			body:     `null`,
			wantCode: http.StatusBadRequest,
			wantBody: "missing key 'space'",
		},
		{
			name:     "empty type",
			body:     `{"space": "SIA", "type": ""}`,
			wantCode: http.StatusBadRequest,
			wantBody: "Please pass both 'space' and 'type' parameters in the query string.",
		},
		{
			name:     "empty space",
			body:     `{"space": "", "type": "full"}`,
			wantCode: http.StatusBadRequest,
			wantBody: "Please pass both 'space' and 'type' parameters in the query string.",
		},
		{
			name:     "unknown type",
			body:     `{"space": "SIA", "type": "archive"}`,
			wantCode: http.StatusBadRequest,
			wantBody: "Invalid 'type' parameter. Please use 'full' or 'incremental'.",
		},
		{
			name:     "trailing data",
			body:     `{"space": "SIA", "type": "full"} garbage`,
			wantCode: http.StatusBadRequest,
			wantBody: "unexpected data after the JSON object",
		},
		{
			name:     "two objects",
			body:     `{"space": "SIA", "type": "full"}{"space": "X"}`,
			wantCode: http.StatusBadRequest,
			wantBody: "unexpected data after the JSON object",
		},
		{
			name:     "trailing newline",
			body:     "{\"space\": \"SIA\", \"type\": \"full\"}\n",
			wantCode: http.StatusOK,
			wantBody: "Full sync completed for space: SIA.\nUploaded: 3, failed: 1, ambiguous titles: 0.",
			wantCall: &call{"SIA", syncer.ModeFull},
		},
		{
			name:     "malformed json",
			body:     `{"space": `,
			wantCode: http.StatusBadRequest,
			wantBody: "unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{summary: &types.Summary{Uploaded: 3, Failed: 1}}
			code, header, body := do(t, httpapi.NewHandler(runner), http.MethodPost, "/api/ConfluenceSync", tt.body)

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, "text/plain; charset=utf-8", header.Get("Content-Type"))
			if tt.wantCall == nil {
				assert.Empty(t, runner.calls)
			} else {
				assert.Equal(t, []call{*tt.wantCall}, runner.calls)
			}
		})
	}
}

func TestHTTPTrigger(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		wantCode int
		wantBody string
	}{
		{"get", http.MethodGet, "/api/HttpTrigger?space=SIA&type=full", http.StatusOK, "Full sync completed for space: SIA."},
		{"post", http.MethodPost, "/api/HttpTrigger?space=SIA&type=incremental", http.StatusOK, "Incremental sync completed for space: SIA."},
		{"no params", http.MethodGet, "/api/HttpTrigger", http.StatusBadRequest, "Please pass both 'space' and 'type' parameters in the query string."},
		{"no type", http.MethodGet, "/api/HttpTrigger?space=SIA", http.StatusBadRequest, "Please pass both 'space' and 'type' parameters in the query string."},
		{"bad type", http.MethodGet, "/api/HttpTrigger?space=SIA&type=archive", http.StatusBadRequest, "Invalid 'type' parameter. Please use 'full' or 'incremental'."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			code, _, body := do(t, httpapi.NewHandler(runner), tt.method, tt.target, "")

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body)
			if code != http.StatusOK {
				assert.Empty(t, runner.calls)
			}
		})
	}
}

func TestInternalErrorIsGeneric(t *testing.T) {
	runner := &fakeRunner{err: &uploader.StorageError{
		Backend: "azure", Op: "create container", Err: errors.New("AuthenticationFailed: key=secret"),
	}}

	code, _, body := do(t, httpapi.NewHandler(runner), http.MethodPost, "/api/ConfluenceSync", `{"space":"SIA","type":"full"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "An error occurred while processing the request.", body)
	assert.NotContains(t, body, "secret")
}

func TestMethodNotAllowed(t *testing.T) {
	h := httpapi.NewHandler(&fakeRunner{})

	code, header, _ := do(t, h, http.MethodGet, "/api/ConfluenceSync", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "POST", header.Get("Allow"))

	code, header, _ = do(t, h, http.MethodDelete, "/api/HttpTrigger?space=SIA&type=full", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "GET, POST", header.Get("Allow"))
}

func TestHealthz(t *testing.T) {
	code, _, body := do(t, httpapi.NewHandler(&fakeRunner{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
}

// TestEndToEnd drives a real session against a fake Confluence.
func TestEndToEnd(t *testing.T) {
	srv := readertest.NewServer(t)
	srv.AddPage("SIA", "1", "", "Home", "<p>home</p>", "2026-10-15T09:30:00.000Z")
	srv.AddPage("SIA", "2", "1", "Guides", "<p>guides</p>", "2026-10-15T09:30:00.000Z")
	sink := uploadertest.NewMemory()

	svc := syncer.New(config.Config{
		ConfluenceBaseURL: srv.URL,
		Username:          readertest.Username,
		Token:             readertest.Token,
		HTTPTimeout:       5 * time.Second,
		PublicSpace:       "SIA",
		PublicContainer:   "public",
		PrivateContainer:  "private",
	}, syncer.WithSinkFactory(func(_ context.Context, _ uploader.Config, container string) (uploader.Sink, error) {
		require.Equal(t, "public", container)
		return sink, nil
	}))
	h := httpapi.NewHandler(svc)

	code, _, body := do(t, h, http.MethodGet, "/api/HttpTrigger?space=SIA&type=archive", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Empty(t, srv.Requests(), "no upstream call for an invalid type")

	code, _, body = do(t, h, http.MethodPost, "/api/ConfluenceSync", `{"space":"SIA","type":"full"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Full sync completed for space: SIA.\nUploaded: 2, failed: 0, ambiguous titles: 0.", body)
	assert.Equal(t, []string{"Home.html", "Home/Guides.html"}, sink.Paths())
}
