package ml

import (
	"errors"
	"strconv"
)

// Prediction is the arg-max of a model's scores.
type Prediction struct {
	Class      Class
	Confidence float64
	Scores     Scores
}

// Predict runs the model and picks the highest scoring class. Inputs are not
// validated; a NaN measurement flows into the model as is. Ties go to the
// class declared first.
func Predict(model Scorer, input Features) Prediction {
	return ArgMax(model.Run(input))
}

// ArgMax selects the winning class from scores.
func ArgMax(scores Scores) Prediction {
	best := Prediction{Class: Setosa, Confidence: -1, Scores: scores}
	for _, c := range Classes() {
		if scores[c] > best.Confidence {
			best.Class = c
			best.Confidence = scores[c]
		}
	}
	return best
}

// FormatConfidence renders a score as a percentage with two decimals,
// without the percent sign.
func FormatConfidence(score float64) string {
	return strconv.FormatFloat(score*100, 'f', 2, 64)
}

// ConfusionMatrix counts predictions; rows are true classes, columns predicted.
type ConfusionMatrix [NumClasses][NumClasses]int

// Evaluate returns the share of samples the model labels correctly.
func Evaluate(model Scorer, dataset Dataset) (float64, ConfusionMatrix) {
	var cm ConfusionMatrix
	if len(dataset) == 0 {
		return 0, cm
	}
	correct := 0
	for _, s := range dataset {
		want := s.Label.Class()
		if want < 0 {
			continue
		}
		got := Predict(model, s.Features).Class
		cm[want][got]++
		if got == want {
			correct++
		}
	}
	return float64(correct) / float64(len(dataset)), cm
}

// ErrNoModel is returned by callers that need a model before Train has run.
var ErrNoModel = errors.New("model not trained")
