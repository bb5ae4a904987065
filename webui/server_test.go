package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"zexplorer/core"
	"zexplorer/metrics"
)

type fakeStore struct {
	vars map[string]core.Variable
	err  error
}

func (f *fakeStore) LoadAll() (map[string]core.Variable, error) {
	return f.vars, f.err
}

func (f *fakeStore) Save(name, description string, values []string) (string, error) {
	return "", nil
}

type fakeGPU struct {
	info metrics.GPUInfo
	err  error
}

func (f *fakeGPU) ReadGPU(ctx context.Context) (metrics.GPUInfo, error) {
	return f.info, f.err
}

type fakeUnloader struct {
	called bool
	err    error
}

func (f *fakeUnloader) UnloadAll() error {
	f.called = true
	return f.err
}

func noopGenerate(ctx context.Context, req core.GenerationRequest, onProgress core.ProgressFunc) core.GenerationResult {
	return core.GenerationResult{Success: true}
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Generate == nil {
		deps.Generate = noopGenerate
	}
	s, err := NewServer(DefaultServerConfig(), deps, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func TestNewServerRequiresGenerate(t *testing.T) {
	if _, err := NewServer(DefaultServerConfig(), Deps{}, nil, zap.NewNop()); err == nil {
		t.Error("expected error for missing Generate")
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestVariablesEndpoint(t *testing.T) {
	store := &fakeStore{vars: map[string]core.Variable{
		"__animal__": {
			ID:     "__animal__",
			Values: []string{"cat", "dog", "fox", "owl", "bat", "eel", "ram"},
		},
		"__color__": {
			ID:          "__color__",
			Description: "Color names",
			Values:      []string{"red", "blue"},
		},
	}}
	s := newTestServer(t, Deps{Variables: store})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/variables", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Variables []variableSummary `json:"variables"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Variables) != 2 {
		t.Fatalf("len(variables) = %d, want 2", len(body.Variables))
	}
	// Sorted by ID, so __animal__ first.
	if body.Variables[0].ID != "__animal__" {
		t.Errorf("first variable = %q", body.Variables[0].ID)
	}
	if body.Variables[0].ValueCount != 7 {
		t.Errorf("value_count = %d, want 7", body.Variables[0].ValueCount)
	}
	if len(body.Variables[0].Sample) != variableSampleSize {
		t.Errorf("sample size = %d, want %d", len(body.Variables[0].Sample), variableSampleSize)
	}
}

func TestVariablesEndpointStoreFailure(t *testing.T) {
	s := newTestServer(t, Deps{Variables: &fakeStore{err: errors.New("disk gone")}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/variables", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestGPUEndpoint(t *testing.T) {
	gpu := &fakeGPU{info: metrics.GPUInfo{
		Name:          "NVIDIA GeForce RTX 4090",
		Utilization:   42,
		MemoryUsedMB:  8000,
		MemoryTotalMB: 24564,
	}}
	s := newTestServer(t, Deps{GPU: gpu})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gpu", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["name"] != "NVIDIA GeForce RTX 4090" {
		t.Errorf("name = %v", body["name"])
	}
	if body["memory_free_mb"].(float64) != 16564 {
		t.Errorf("memory_free_mb = %v, want 16564", body["memory_free_mb"])
	}
}

func TestGPUEndpointUnavailable(t *testing.T) {
	s := newTestServer(t, Deps{GPU: &fakeGPU{err: errors.New("no nvidia-smi")}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gpu", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestUnloadEndpoint(t *testing.T) {
	unloader := &fakeUnloader{}
	s := newTestServer(t, Deps{Engines: unloader})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/unload", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !unloader.called {
		t.Error("UnloadAll was not called")
	}
}

func TestUnloadEndpointRequiresPOST(t *testing.T) {
	s := newTestServer(t, Deps{Engines: &fakeUnloader{}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unload", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHistoryEndpointUnconfigured(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestIndexServesDashboard(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "zexplorer") {
		t.Error("dashboard page missing title")
	}
}

func TestModelsEndpointEmptyWithoutPresets(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
