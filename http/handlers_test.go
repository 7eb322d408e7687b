package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"irisnet/db"
	"irisnet/ml"
)

var testStore *db.Store

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "irisnet-http")
	if err != nil {
		panic(err)
	}
	testStore, err = db.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testStore.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

type fakeModel ml.Scores

func (f fakeModel) Run(ml.Features) ml.Scores { return ml.Scores(f) }

func newTestHandler(model ml.Scorer, strict bool) http.Handler {
	api := NewAPI(APIConfig{StrictInput: strict, Language: language.Spanish}, testStore, nil, nil)
	if model != nil {
		api.SetModel(model, ml.DefaultTrainingConfig(), ml.TrainingResult{Iterations: 10, Samples: 30})
	}
	return NewHandler(DefaultServerConfig(), api, nil, nil)
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	newTestHandler(nil, true).ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	expected := `{"model_ready":false,"status":"ok"}`
	if strings.TrimSpace(rr.Body.String()) != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestIndexRendersForm(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestHandler(nil, true).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range append(ml.FeatureNames(), "resultadoEspecie") {
		if !strings.Contains(body, `id="`+name+`"`) {
			t.Fatalf("page missing element %s", name)
		}
	}
}

func TestModelEndpointWithoutModel(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestHandler(nil, true).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/model", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestModelEndpoint(t *testing.T) {
	cached, err := ml.NewCachedModel(fakeModel{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rr := httptest.NewRecorder()
	newTestHandler(cached, true).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/model", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Classes  []string          `json:"classes"`
		Training ml.TrainingResult `json:"training"`
		Cache    *ml.CacheStats    `json:"cache"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(payload.Classes) != 3 || payload.Classes[0] != "setosa" {
		t.Fatalf("unexpected classes %v", payload.Classes)
	}
	if payload.Training.Iterations != 10 || payload.Cache == nil {
		t.Fatalf("unexpected payload %s", rr.Body.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := Chain(RecoveryMiddleware(zapNop()))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "http://example.com")
	rr := httptest.NewRecorder()
	newTestHandler(nil, true).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://example.com" {
		t.Fatalf("unexpected CORS headers %v", rr.Header())
	}
}
