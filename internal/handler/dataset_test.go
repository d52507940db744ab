package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"dataset-proxy-go/internal/client"
	"dataset-proxy-go/internal/config"
	"dataset-proxy-go/internal/service"
)

// configFor points the backend config at rawURL.
func configFor(t *testing.T, rawURL string) *config.Config {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	return &config.Config{
		Backend:  config.BackendConfig{Host: u.Hostname(), Port: u.Port()},
		Upstream: config.UpstreamConfig{IdleConnections: 10},
	}
}

func newTestDatasetHandler(cfg *config.Config, logger *slog.Logger) *DatasetHandler {
	bc := client.NewBackendClient(cfg, logger, nil)
	svc := service.NewDatasetService(bc, cfg, logger, nil)
	return NewDatasetHandler(svc, logger)
}

// serveDataset runs one GET through h and returns the recorder.
func serveDataset(t *testing.T, h *DatasetHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestDatasetHandler_Handle_Success(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fs/dataset" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/fs/dataset")
		}
		if r.URL.RawQuery != "dataset_url=foo&namespace=default" {
			t.Errorf("query = %q, want %q", r.URL.RawQuery, "dataset_url=foo&namespace=default")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rows": 1}`))
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := newTestDatasetHandler(configFor(t, upstream.URL), logger)

	rec := serveDataset(t, h, "/api/dataset?dataset_url=foo")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != `{"rows": 1}` {
		t.Errorf("body = %q, want %q", rec.Body.String(), `{"rows": 1}`)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		t.Errorf("Content-Type = %q, want %q", ct, echo.MIMEApplicationJSON)
	}
}

func TestDatasetHandler_Handle_CustomNamespace(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("namespace"); got != "custom" {
			t.Errorf("namespace = %q, want %q", got, "custom")
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := newTestDatasetHandler(configFor(t, upstream.URL), logger)

	rec := serveDataset(t, h, "/api/dataset?namespace=custom")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestDatasetHandler_Handle_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"404 with text", http.StatusNotFound, "not found", "not found"},
		{"500 empty body", http.StatusInternalServerError, "", "Failed to load dataset"},
		{"502 json body kept raw", http.StatusBadGateway, `{"detail":"down"}`, `{"detail":"down"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer upstream.Close()

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			h := newTestDatasetHandler(configFor(t, upstream.URL), logger)

			rec := serveDataset(t, h, "/api/dataset?dataset_url=foo")

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
			}
			if got := errorBody(t, rec); got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

// The backend answers /fs/dataset with a dataset descriptor on success and
// a {"detail": ...} body on failure.
func TestDatasetHandler_Handle_BackendContract(t *testing.T) {
	const descriptor = `{"path":"datasets/default/foo.jsonl","metadata":{"rows":2},` +
		`"dataset_url":"foo","source_version_id":null,"content_type":"application/jsonl",` +
		`"preview":[{"text":"a"},{"text":"b"}]}`

	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantBody string
		wantErr  string
	}{
		{
			name:     "descriptor relayed byte for byte",
			status:   http.StatusOK,
			body:     descriptor,
			wantCode: http.StatusOK,
			wantBody: descriptor,
		},
		{
			name:     "load failure detail kept raw",
			status:   http.StatusInternalServerError,
			body:     `{"detail":"Failed to load dataset: boom"}`,
			wantCode: http.StatusInternalServerError,
			wantErr:  `{"detail":"Failed to load dataset: boom"}`,
		},
		{
			name:     "missing dataset detail kept raw",
			status:   http.StatusNotFound,
			body:     `{"detail":"Dataset not found"}`,
			wantCode: http.StatusInternalServerError,
			wantErr:  `{"detail":"Dataset not found"}`,
		},
		{
			name:     "missing identifier detail kept raw",
			status:   http.StatusBadRequest,
			body:     `{"detail":"dataset_url or source_version_id is required"}`,
			wantCode: http.StatusInternalServerError,
			wantErr:  `{"detail":"dataset_url or source_version_id is required"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer upstream.Close()

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			h := newTestDatasetHandler(configFor(t, upstream.URL), logger)

			rec := serveDataset(t, h, "/api/dataset?dataset_url=foo")

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantErr == "" {
				if rec.Body.String() != tt.wantBody {
					t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
				}
				return
			}
			if got := errorBody(t, rec); got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestDatasetHandler_Handle_InvalidJSON(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not-json"))
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := newTestDatasetHandler(configFor(t, upstream.URL), logger)

	rec := serveDataset(t, h, "/api/dataset")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if got := errorBody(t, rec); !strings.Contains(got, "invalid character") {
		t.Errorf("error = %q, want JSON parse error", got)
	}
}

func TestDatasetHandler_Handle_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := newTestDatasetHandler(configFor(t, "http://"+addr), logger)

	rec := serveDataset(t, h, "/api/dataset?dataset_url=foo")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if got := errorBody(t, rec); !strings.Contains(got, "connection refused") {
		t.Errorf("error = %q, want mention of connection refused", got)
	}
	if n := strings.Count(logs.String(), "dataset fetch failed"); n != 1 {
		t.Errorf("logged %d failure lines, want 1; logs: %q", n, logs.String())
	}
}

// errFetcher always fails with err.
type errFetcher struct{ err error }

func (f errFetcher) Fetch(context.Context, url.Values) (json.RawMessage, error) {
	return nil, f.err
}

func TestDatasetHandler_mapError_Fallback(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"untyped error", errors.New("boom"), fallbackErrorMessage},
		{"fetch error without message", &service.FetchError{Kind: service.KindTransport}, fallbackErrorMessage},
		{"fetch error with message", &service.FetchError{Kind: service.KindDecode, Message: "bad json"}, "bad json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDatasetHandler(errFetcher{err: tt.err}, logger)
			rec := serveDataset(t, h, "/api/dataset")

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
			}
			if got := errorBody(t, rec); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}
