package form

import (
	"fmt"

	"go.uber.org/zap"

	"irisnet/ml"
)

// Observer is told about every successful prediction.
type Observer func(input ml.Features, prediction ml.Prediction)

// Predictor reads a form, runs the model and renders the winning class.
type Predictor struct {
	model     ml.Scorer
	logger    *zap.Logger
	observers []Observer
}

func NewPredictor(model ml.Scorer, logger *zap.Logger) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{model: model, logger: logger}
}

// Observe registers fn. Not safe to call once predictions are being served.
func (p *Predictor) Observe(fn Observer) {
	p.observers = append(p.observers, fn)
}

// Handle runs one read-predict-render cycle.
func (p *Predictor) Handle(reader FormReader, renderer ResultRenderer) (ml.Prediction, error) {
	input, err := reader.ReadInput()
	if err != nil {
		return ml.Prediction{}, err
	}

	scores := p.model.Run(input)
	p.logger.Debug("class scores", zap.Any("scores", scores.Map()), zap.Float64s("input", input.Vector()))
	prediction := ml.ArgMax(scores)

	if err := renderer.Render(prediction); err != nil {
		return prediction, fmt.Errorf("render: %w", err)
	}
	for _, fn := range p.observers {
		fn(input, prediction)
	}
	return prediction, nil
}
