// Package form connects the classifier to a measurement form: a FormReader
// supplies the four inputs and a ResultRenderer shows the answer.
package form

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"irisnet/ml"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrMissingField = errors.New("missing field")
)

// FormReader supplies one set of measurements.
type FormReader interface {
	ReadInput() (ml.Features, error)
}

// ValuesReader reads the measurements from submitted form values using the
// field names in ml.FeatureNames.
//
// With Strict unset a missing or unparsable field becomes NaN and is handed to
// the model unchanged.
type ValuesReader struct {
	Values url.Values
	Strict bool
}

func (r ValuesReader) ReadInput() (ml.Features, error) {
	names := ml.FeatureNames()
	vector := make([]float64, len(names))
	for i, name := range names {
		v, err := r.field(name)
		if err != nil {
			return ml.Features{}, err
		}
		vector[i] = v
	}
	return ml.FeaturesFromVector(vector)
}

func (r ValuesReader) field(name string) (float64, error) {
	raw := strings.TrimSpace(r.Values.Get(name))
	if raw == "" {
		if r.Strict {
			return 0, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
		return math.NaN(), nil
	}
	// accept a decimal comma as typed on Spanish keyboards
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		if r.Strict {
			return 0, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidInput, name, raw)
		}
		return math.NaN(), nil
	}
	if r.Strict && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return 0, fmt.Errorf("%w: %s=%q is not finite", ErrInvalidInput, name, raw)
	}
	return v, nil
}

// FeaturesReader hands over measurements that were already decoded, e.g. from
// a JSON body.
type FeaturesReader struct {
	Features ml.Features
	Strict   bool
}

func (r FeaturesReader) ReadInput() (ml.Features, error) {
	if r.Strict && !r.Features.Finite() {
		return ml.Features{}, fmt.Errorf("%w: measurements must be finite numbers", ErrInvalidInput)
	}
	return r.Features, nil
}
