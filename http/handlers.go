package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"irisnet/db"
	"irisnet/form"
	"irisnet/ml"
	"irisnet/monitoring"
)

// APIConfig controls how form input is read and rendered.
type APIConfig struct {
	StrictInput bool
	Language    language.Tag
	// CacheSize bounds the score cache put in front of models built by Train.
	CacheSize int
}

// API serves the form page and the JSON endpoints. Prediction routes answer
// 503 until SetModel has been called.
type API struct {
	config APIConfig
	store  *db.Store
	hub     *monitoring.Hub
	metrics *monitoring.MetricsCollector
	logger  *zap.Logger

	mu             sync.RWMutex
	predictor      *form.Predictor
	model          ml.Scorer
	trainingConfig ml.TrainingConfig
	result         ml.TrainingResult

	training atomic.Bool
}

// NewAPI wires the handlers. store and hub may be nil.
func NewAPI(config APIConfig, store *db.Store, hub *monitoring.Hub, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Language == language.Und {
		config.Language = language.Spanish
	}
	return &API{
		config:         config,
		store:          store,
		hub:            hub,
		metrics:        monitoring.NewMetricsCollector(),
		logger:         logger,
		trainingConfig: ml.DefaultTrainingConfig(),
	}
}

// Metrics returns the collector behind GET /metrics.
func (a *API) Metrics() *monitoring.MetricsCollector {
	return a.metrics
}

// SetModel installs the trained model.
func (a *API) SetModel(model ml.Scorer, config ml.TrainingConfig, result ml.TrainingResult) {
	predictor := form.NewPredictor(model, a.logger)
	predictor.Observe(func(_ ml.Features, p ml.Prediction) {
		a.metrics.IncrCounter("iris_predictions_total", "Predictions served by class",
			map[string]string{"class": p.Class.String()})
	})
	if a.hub != nil {
		predictor.Observe(func(input ml.Features, p ml.Prediction) {
			if err := a.hub.Publish(monitoring.PredictionMade, newPredictionResponse(input, p, "")); err != nil {
				a.logger.Warn("publish prediction failed", zap.Error(err))
			}
		})
	}

	a.metrics.SetGauge("iris_training_iterations", "Iterations run by the last training", float64(result.Iterations))
	a.metrics.SetGauge("iris_training_error", "Final training error", result.Error)
	a.metrics.SetGauge("iris_training_accuracy", "Accuracy on the training set", result.Accuracy)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.predictor = predictor
	a.model = model
	a.trainingConfig = config
	a.result = result
}

func (a *API) currentPredictor() *form.Predictor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.predictor
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleIndex)
	mux.HandleFunc("POST /predict", a.handleFormPredict)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/predict", a.handleAPIPredict)
	mux.HandleFunc("GET /api/model", a.handleModel)
	mux.HandleFunc("GET /api/predictions", a.handlePredictions)
	mux.HandleFunc("GET /api/training-runs", a.handleTrainingRuns)
	mux.HandleFunc("POST /api/train", a.handleTrain)
	mux.HandleFunc("GET /metrics", a.handleMetrics)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head><meta charset="utf-8"><title>Iris</title></head>
<body>
<form method="post" action="/predict">
{{range .Fields}}<label for="{{.Name}}">{{.Name}}</label>
<input type="number" step="0.1" id="{{.Name}}" name="{{.Name}}" value="{{.Value}}">
{{end}}<button type="submit">Predecir</button>
</form>
<div id="resultadoEspecie">{{.Result}}</div>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
</body>
</html>
`))

type pageField struct {
	Name  string
	Value string
}

type pageData struct {
	Lang   string
	Fields []pageField
	Result template.HTML
	Error  string
}

func (a *API) renderPage(w http.ResponseWriter, status int, lang language.Tag, r *http.Request, result template.HTML, errText string) {
	data := pageData{Lang: lang.String(), Result: result, Error: errText}
	for _, name := range ml.FeatureNames() {
		data.Fields = append(data.Fields, pageField{Name: name, Value: r.FormValue(name)})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		a.logger.Error("render page failed", zap.Error(err))
	}
}

func (a *API) requestLanguage(r *http.Request) language.Tag {
	return form.MatchLanguage(r.Header.Get("Accept-Language"), a.config.Language)
}

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.renderPage(w, http.StatusOK, a.requestLanguage(r), r, "", "")
}

func (a *API) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	lang := a.requestLanguage(r)
	predictor := a.currentPredictor()
	if predictor == nil {
		a.renderPage(w, http.StatusServiceUnavailable, lang, r, "", ml.ErrNoModel.Error())
		return
	}
	if err := r.ParseForm(); err != nil {
		a.renderPage(w, http.StatusBadRequest, lang, r, "", err.Error())
		return
	}

	reader := form.ValuesReader{Values: r.PostForm, Strict: a.config.StrictInput}
	holder := &form.ResultHolder{Lang: lang}
	prediction, err := predictor.Handle(reader, holder)
	if err != nil {
		a.countRejected(err)
		a.renderPage(w, statusFor(err), lang, r, "", err.Error())
		return
	}
	a.record(r.Context(), reader, prediction, "form")
	a.renderPage(w, http.StatusOK, lang, r, holder.Result, "")
}

type predictRequest struct {
	SepalLength *float64 `json:"sepal_length"`
	SepalWidth  *float64 `json:"sepal_width"`
	PetalLength *float64 `json:"petal_length"`
	PetalWidth  *float64 `json:"petal_width"`
}

func (p predictRequest) features() (ml.Features, error) {
	if p.SepalLength == nil || p.SepalWidth == nil || p.PetalLength == nil || p.PetalWidth == nil {
		return ml.Features{}, form.ErrMissingField
	}
	return ml.Features{
		SepalLength: *p.SepalLength,
		SepalWidth:  *p.SepalWidth,
		PetalLength: *p.PetalLength,
		PetalWidth:  *p.PetalWidth,
	}, nil
}

type predictionResponse struct {
	Class      string              `json:"class"`
	Confidence *float64            `json:"confidence"`
	Scores     map[string]*float64 `json:"scores"`
	Input      map[string]*float64 `json:"input"`
	Text       string              `json:"text,omitempty"`
}

func newPredictionResponse(input ml.Features, p ml.Prediction, text string) predictionResponse {
	resp := predictionResponse{
		Class:      p.Class.String(),
		Confidence: jsonFloat(p.Confidence),
		Scores:     make(map[string]*float64, ml.NumClasses),
		Input:      make(map[string]*float64, ml.NumFeatures),
		Text:       text,
	}
	for name, s := range p.Scores.Map() {
		resp.Scores[name] = jsonFloat(s)
	}
	for i, v := range input.Vector() {
		resp.Input[ml.FeatureNames()[i]] = jsonFloat(v)
	}
	return resp
}

// jsonFloat maps NaN and infinities, which JSON cannot carry, to null.
func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (a *API) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	predictor := a.currentPredictor()
	if predictor == nil {
		respondError(w, http.StatusServiceUnavailable, ml.ErrNoModel)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	features, err := req.features()
	if err != nil {
		a.countRejected(err)
		respondError(w, http.StatusBadRequest, err)
		return
	}

	reader := form.FeaturesReader{Features: features, Strict: a.config.StrictInput}
	holder := &form.ResultHolder{Lang: a.requestLanguage(r)}
	prediction, err := predictor.Handle(reader, holder)
	if err != nil {
		a.countRejected(err)
		respondError(w, statusFor(err), err)
		return
	}
	a.record(r.Context(), reader, prediction, "api")
	respondJSON(w, http.StatusOK, newPredictionResponse(features, prediction, string(holder.Result)))
}

func (a *API) record(ctx context.Context, reader form.FormReader, p ml.Prediction, source string) {
	if a.store == nil {
		return
	}
	input, err := reader.ReadInput()
	if err != nil {
		return
	}
	err = a.store.SavePrediction(ctx, db.PredictionRecord{
		SepalLength: input.SepalLength,
		SepalWidth:  input.SepalWidth,
		PetalLength: input.PetalLength,
		PetalWidth:  input.PetalWidth,
		Class:       p.Class.String(),
		Confidence:  p.Confidence,
		Source:      source,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		a.logger.Warn("save prediction failed", zap.Error(err))
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"model_ready": a.currentPredictor() != nil,
	})
}

func (a *API) handleModel(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	model := a.model
	config := a.trainingConfig
	result := a.result
	a.mu.RUnlock()

	if model == nil {
		respondError(w, http.StatusServiceUnavailable, ml.ErrNoModel)
		return
	}
	resp := map[string]interface{}{
		"classes":   classNames(),
		"features":  ml.FeatureNames(),
		"config":    config,
		"training":  result,
		"converged": result.Converged(config),
	}
	if cached, ok := model.(*ml.CachedModel); ok {
		resp["cache"] = cached.Stats()
	}
	respondJSON(w, http.StatusOK, resp)
}

func classNames() []string {
	names := make([]string, 0, ml.NumClasses)
	for _, c := range ml.Classes() {
		names = append(names, c.String())
	}
	return names
}

func queryLimit(r *http.Request, fallback int) int {
	limit := fallback
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}
	return limit
}

type predictionRecordResponse struct {
	SepalLength *float64  `json:"sepal_length"`
	SepalWidth  *float64  `json:"sepal_width"`
	PetalLength *float64  `json:"petal_length"`
	PetalWidth  *float64  `json:"petal_width"`
	Class       string    `json:"class"`
	Confidence  *float64  `json:"confidence"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *API) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("history not available"))
		return
	}
	records, err := a.store.RecentPredictions(r.Context(), queryLimit(r, 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]predictionRecordResponse, 0, len(records))
	for _, p := range records {
		out = append(out, predictionRecordResponse{
			SepalLength: jsonFloat(p.SepalLength),
			SepalWidth:  jsonFloat(p.SepalWidth),
			PetalLength: jsonFloat(p.PetalLength),
			PetalWidth:  jsonFloat(p.PetalWidth),
			Class:       p.Class,
			Confidence:  jsonFloat(p.Confidence),
			Source:      p.Source,
			CreatedAt:   p.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": out})
}

func (a *API) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("history not available"))
		return
	}
	runs, err := a.store.TrainingRuns(r.Context(), queryLimit(r, 20))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": runs})
}

func (a *API) countRejected(err error) {
	reason := "other"
	switch {
	case errors.Is(err, form.ErrMissingField):
		reason = "missing_field"
	case errors.Is(err, form.ErrInvalidInput):
		reason = "invalid_input"
	}
	a.metrics.IncrCounter("iris_predictions_rejected_total", "Prediction requests rejected by reason",
		map[string]string{"reason": reason})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(a.metrics.ExportPrometheus()))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, form.ErrInvalidInput), errors.Is(err, form.ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrNoModel):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
