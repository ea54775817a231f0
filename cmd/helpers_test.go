package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"mediaserver/config"
	"mediaserver/logger"
	"mediaserver/services"
	"mediaserver/store"
)

const testAPIKey = "test-key"

// TestHelper runs the full router against a temporary database
type TestHelper struct {
	Server      *httptest.Server
	App         *App
	DownloadDir string
	Prober      *fakeProber
	Executor    *fakeExecutor
}

// NewTestHelper creates a server with fake downloader collaborators
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.APIKey = testAPIKey
	cfg.DBPath = filepath.Join(dir, "downloads.db")
	cfg.DownloadDir = filepath.Join(dir, "media")
	cfg.SettingsPath = filepath.Join(dir, "settings.json")
	require.NoError(t, os.MkdirAll(cfg.DownloadDir, 0o755))

	st, err := store.Open(cfg.DBPath)
	require.NoError(t, err)

	prober := &fakeProber{listings: map[string][]services.ProbeEntry{}}
	executor := &fakeExecutor{failures: map[string]string{}}
	app := NewApp(&cfg, logger.NewNop(), st, Deps{
		Prober:   prober,
		Executor: executor,
		Scraper:  fakeScraper{},
	})

	server := httptest.NewServer(NewRouter(app))
	t.Cleanup(func() {
		server.Close()
		st.Close()
	})

	return &TestHelper{
		Server:      server,
		App:         app,
		DownloadDir: cfg.DownloadDir,
		Prober:      prober,
		Executor:    executor,
	}
}

// MakeRequest makes an authenticated HTTP request to the test server
func (h *TestHelper) MakeRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reqBody io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = strings.NewReader(b)
	default:
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, h.Server.URL+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// DoJSON makes a request and unmarshals the JSON response into target
func (h *TestHelper) DoJSON(t *testing.T, method, path string, requestBody any, target any) *http.Response {
	t.Helper()
	resp := h.MakeRequest(t, method, path, requestBody)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if target != nil {
		require.NoError(t, json.Unmarshal(body, target), string(body))
	}
	return resp
}

// GetJSON makes a GET request and unmarshals the JSON response
func (h *TestHelper) GetJSON(t *testing.T, path string, target any) *http.Response {
	return h.DoJSON(t, http.MethodGet, path, nil, target)
}

// PostJSON makes a POST request with a JSON body and unmarshals the response
func (h *TestHelper) PostJSON(t *testing.T, path string, requestBody any, target any) *http.Response {
	return h.DoJSON(t, http.MethodPost, path, requestBody, target)
}

// ConnectWebSocket dials a websocket endpoint with the API key
func (h *TestHelper) ConnectWebSocket(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(h.Server.URL, "http") + path

	header := http.Header{}
	header.Set("X-API-Key", testAPIKey)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	return conn
}

// CreateTestFile writes a file below the download directory
func (h *TestHelper) CreateTestFile(t *testing.T, relativePath string, content []byte) {
	t.Helper()
	fullPath := filepath.Join(h.DownloadDir, relativePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, os.WriteFile(fullPath, content, 0o644))
}

// fakeProber answers from a fixed table; unknown URLs fail like gallery-dl
// does for unsupported sites.
type fakeProber struct {
	listings map[string][]services.ProbeEntry
}

func (p *fakeProber) Probe(_ context.Context, url string) ([]services.ProbeEntry, error) {
	entries, ok := p.listings[url]
	if !ok {
		return nil, errors.New("unsupported URL")
	}
	return entries, nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]string
}

func (e *fakeExecutor) Execute(_ context.Context, req services.ExecRequest) services.ExecResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, req.URL)
	if msg, ok := e.failures[req.URL]; ok {
		return services.ExecResult{Success: false, Output: msg, Error: msg}
	}
	return services.ExecResult{Success: true, Output: "downloaded " + req.URL}
}

func (e *fakeExecutor) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

type fakeScraper struct{}

func (fakeScraper) Title(_ context.Context, url string) (string, error) {
	return "Title of " + url, nil
}
