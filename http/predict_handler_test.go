package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"irisnet/ml"
)

func zapNop() *zap.Logger { return zap.NewNop() }

func postForm(h http.Handler, values url.Values, acceptLanguage string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if acceptLanguage != "" {
		req.Header.Set("Accept-Language", acceptLanguage)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func irisForm(sl, sw, pl, pw string) url.Values {
	return url.Values{
		"SepalLengthCm": {sl},
		"SepalWidthCm":  {sw},
		"PetalLengthCm": {pl},
		"PetalWidthCm":  {pw},
	}
}

func TestHandleFormPredict(t *testing.T) {
	h := newTestHandler(fakeModel{0.2, 0.9, 0.1}, true)
	rr := postForm(h, irisForm("5.7", "2.6", "3.5", "1.0"), "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := `<div id="resultadoEspecie">Especie predicha: <strong>versicolor</strong> (Confianza: 90.00%)</div>`
	if !strings.Contains(rr.Body.String(), want) {
		t.Fatalf("expected %q in body:\n%s", want, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `value="5.7"`) {
		t.Fatal("submitted values not echoed back into the form")
	}
}

func TestHandleFormPredictEnglish(t *testing.T) {
	h := newTestHandler(fakeModel{0.5, 0.5, 0.1}, true)
	rr := postForm(h, irisForm("5", "3", "1.5", "0.2"), "en-GB,en;q=0.8")
	if !strings.Contains(rr.Body.String(), "Predicted species: <strong>setosa</strong> (Confidence: 50.00%)") {
		t.Fatalf("unexpected body:\n%s", rr.Body.String())
	}
}

func TestHandleFormPredictRejectsBadInput(t *testing.T) {
	h := newTestHandler(fakeModel{1, 0, 0}, true)
	rr := postForm(h, irisForm("5", "tres", "1.5", "0.2"), "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "<strong>") {
		t.Fatal("rendered a prediction for invalid input")
	}
}

func TestHandleFormPredictLenientAcceptsBadInput(t *testing.T) {
	h := newTestHandler(fakeModel{0.1, 0.2, 0.3}, false)
	rr := postForm(h, irisForm("5", "tres", "1.5", "0.2"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<strong>virginica</strong>") {
		t.Fatalf("unexpected body:\n%s", rr.Body.String())
	}
}

func TestHandleFormPredictWithoutModel(t *testing.T) {
	rr := postForm(newTestHandler(nil, true), irisForm("5", "3", "1.5", "0.2"), "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestHandleAPIPredict(t *testing.T) {
	h := newTestHandler(fakeModel{0.2, 0.9, 0.1}, true)
	body := `{"sepal_length":5.7,"sepal_width":2.6,"petal_length":3.5,"petal_width":1.0}`
	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["class"] != "versicolor" {
		t.Fatalf("unexpected class: %v", payload["class"])
	}
	if payload["confidence"].(float64) != 0.9 {
		t.Fatalf("unexpected confidence: %v", payload["confidence"])
	}
	if !strings.Contains(payload["text"].(string), "90.00%") {
		t.Fatalf("unexpected text: %v", payload["text"])
	}
}

func TestHandleAPIPredictMissingField(t *testing.T) {
	h := newTestHandler(fakeModel{1, 0, 0}, true)
	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"sepal_length":5.7}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPredictionsAreRecorded(t *testing.T) {
	h := newTestHandler(fakeModel{0.1, 0.1, 0.8}, true)
	rr := postForm(h, irisForm("7.7", "2.6", "6.9", "2.3"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/predictions?limit=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Data []struct {
			Class       string   `json:"class"`
			PetalLength *float64 `json:"petal_length"`
			Source      string   `json:"source"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(payload.Data) != 1 {
		t.Fatalf("expected 1 record, got %d", len(payload.Data))
	}
	got := payload.Data[0]
	if got.Class != "virginica" || got.Source != "form" || got.PetalLength == nil || *got.PetalLength != 6.9 {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestTrainedModelEndToEnd(t *testing.T) {
	model, result, err := ml.Train(context.Background(), ml.IrisDataset(), ml.DefaultTrainingConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	api := NewAPI(APIConfig{StrictInput: true}, nil, nil, nil)
	api.SetModel(model, ml.DefaultTrainingConfig(), result)
	h := NewHandler(DefaultServerConfig(), api, nil, nil)

	rr := postForm(h, irisForm("4.3", "3.0", "1.1", "0.1"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<strong>setosa</strong>") {
		t.Fatalf("expected setosa, got:\n%s", rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(fakeModel{0.1, 0.8, 0.1}, true)
	postForm(h, irisForm("5.7", "2.6", "3.5", "1.0"), "")
	postForm(h, irisForm("5.7", "", "3.5", "1.0"), "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`iris_predictions_total{class="versicolor"} 1`,
		`iris_predictions_rejected_total{reason="missing_field"} 1`,
		"iris_training_iterations 10",
		"# TYPE iris_predictions_total counter",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics:\n%s", want, body)
		}
	}
}
