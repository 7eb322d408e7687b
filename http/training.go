package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"irisnet/db"
	"irisnet/ml"
	"irisnet/monitoring"
)

var ErrTrainingInProgress = errors.New("training already in progress")

// Train fits a fresh model on the iris dataset and installs it. Progress and
// the final result go to the hub, the run is recorded in the store, and the
// new model is wrapped in a score cache when CacheSize is positive.
func (a *API) Train(ctx context.Context, config ml.TrainingConfig) (ml.TrainingResult, error) {
	if !a.training.CompareAndSwap(false, true) {
		return ml.TrainingResult{}, ErrTrainingInProgress
	}
	defer a.training.Store(false)

	trainer := ml.NewTrainer(config, a.logger.Named("trainer"))
	if a.hub != nil {
		trainer.OnProgress(func(p ml.Progress) {
			if err := a.hub.Publish(monitoring.TrainingProgress, p); err != nil {
				a.logger.Warn("publish progress failed", zap.Error(err))
			}
		})
	}

	model, result, err := trainer.Train(ctx, ml.IrisDataset())
	if err != nil {
		return ml.TrainingResult{}, err
	}
	if a.hub != nil {
		if err := a.hub.Publish(monitoring.TrainingDone, result); err != nil {
			a.logger.Warn("publish training result failed", zap.Error(err))
		}
	}

	if a.store != nil {
		run := db.TrainingRun{
			Iterations: result.Iterations,
			Error:      result.Error,
			Accuracy:   result.Accuracy,
			Duration:   result.Duration,
			DataPoints: result.Samples,
			Converged:  result.Converged(config),
			TrainedAt:  time.Now(),
		}
		if err := a.store.SaveTrainingRun(ctx, run); err != nil {
			a.logger.Warn("save training run failed", zap.Error(err))
		}
	}

	var scorer ml.Scorer = model
	if a.config.CacheSize > 0 {
		cached, err := ml.NewCachedModel(model, a.config.CacheSize)
		if err != nil {
			return ml.TrainingResult{}, fmt.Errorf("create score cache: %w", err)
		}
		scorer = cached
	}
	a.SetModel(scorer, config, result)
	return result, nil
}

// trainRequest overrides parts of the current training config. Omitted
// fields keep their current value.
type trainRequest struct {
	MaxIterations  *int     `json:"max_iterations"`
	ErrorThreshold *float64 `json:"error_threshold"`
	HiddenLayers   []int    `json:"hidden_layers"`
	LearningRate   *float64 `json:"learning_rate"`
	Momentum       *float64 `json:"momentum"`
	Activation     *string  `json:"activation"`
	Seed           *int64   `json:"seed"`
}

func (req trainRequest) apply(config ml.TrainingConfig) ml.TrainingConfig {
	if req.MaxIterations != nil {
		config.MaxIterations = *req.MaxIterations
	}
	if req.ErrorThreshold != nil {
		config.ErrorThreshold = *req.ErrorThreshold
	}
	if req.HiddenLayers != nil {
		config.HiddenLayers = append([]int(nil), req.HiddenLayers...)
	}
	if req.LearningRate != nil {
		config.LearningRate = *req.LearningRate
	}
	if req.Momentum != nil {
		config.Momentum = *req.Momentum
	}
	if req.Activation != nil {
		config.Activation = *req.Activation
	}
	if req.Seed != nil {
		config.Seed = *req.Seed
	}
	return config
}

func (a *API) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	a.mu.RLock()
	config := req.apply(a.trainingConfig)
	a.mu.RUnlock()
	if err := config.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.Train(r.Context(), config)
	switch {
	case errors.Is(err, ErrTrainingInProgress):
		respondError(w, http.StatusConflict, err)
		return
	case err != nil:
		a.logger.Error("retraining failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"config":    config,
		"training":  result,
		"converged": result.Converged(config),
	})
}
