package ml

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"
)

var (
	ErrEmptyDataset  = errors.New("dataset is empty")
	ErrInvalidSample = errors.New("invalid sample")
)

// Class is one of the three Iris species. The declared order is also the
// arg-max tie-break order.
type Class int

const (
	Setosa Class = iota
	Versicolor
	Virginica
)

// NumClasses is the size of the fixed class set.
const NumClasses = 3

// NumFeatures is the number of measurements per sample.
const NumFeatures = 4

var classNames = [NumClasses]string{"setosa", "versicolor", "virginica"}

func (c Class) String() string {
	if c < 0 || int(c) >= NumClasses {
		return fmt.Sprintf("class(%d)", int(c))
	}
	return classNames[c]
}

// Classes returns the class set in declared order.
func Classes() []Class {
	return []Class{Setosa, Versicolor, Virginica}
}

// ParseClass maps a species name back to its Class.
func ParseClass(name string) (Class, error) {
	for i, n := range classNames {
		if n == name {
			return Class(i), nil
		}
	}
	return 0, fmt.Errorf("unknown class %q", name)
}

// Features holds the four flower measurements in centimetres.
type Features struct {
	SepalLength float64 `json:"sepal_length"`
	SepalWidth  float64 `json:"sepal_width"`
	PetalLength float64 `json:"petal_length"`
	PetalWidth  float64 `json:"petal_width"`
}

// FeatureNames returns the form field names in Vector order.
func FeatureNames() []string {
	return []string{"SepalLengthCm", "SepalWidthCm", "PetalLengthCm", "PetalWidthCm"}
}

func (f Features) Vector() []float64 {
	return []float64{f.SepalLength, f.SepalWidth, f.PetalLength, f.PetalWidth}
}

// FeaturesFromVector is the inverse of Features.Vector.
func FeaturesFromVector(v []float64) (Features, error) {
	if len(v) != NumFeatures {
		return Features{}, fmt.Errorf("expected %d features, got %d", NumFeatures, len(v))
	}
	return Features{SepalLength: v[0], SepalWidth: v[1], PetalLength: v[2], PetalWidth: v[3]}, nil
}

// Finite reports whether every measurement is a finite number.
func (f Features) Finite() bool {
	for _, v := range f.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Label is a one-hot vector indexed by Class.
type Label [NumClasses]float64

func OneHot(c Class) Label {
	var l Label
	l[c] = 1
	return l
}

// Valid reports whether exactly one entry is 1 and all others are 0.
func (l Label) Valid() bool {
	ones := 0
	for _, v := range l {
		switch v {
		case 1:
			ones++
		case 0:
		default:
			return false
		}
	}
	return ones == 1
}

// Class returns the hot class. The label must be valid.
func (l Label) Class() Class {
	for i, v := range l {
		if v == 1 {
			return Class(i)
		}
	}
	return -1
}

type Sample struct {
	Features Features
	Label    Label
}

type Dataset []Sample

// Validate reports every malformed sample, not just the first one.
func (d Dataset) Validate() error {
	if len(d) == 0 {
		return ErrEmptyDataset
	}
	var err error
	for i, s := range d {
		if !s.Features.Finite() {
			err = multierr.Append(err, fmt.Errorf("%w: row %d has non-finite features %v", ErrInvalidSample, i, s.Features.Vector()))
		}
		if !s.Label.Valid() {
			err = multierr.Append(err, fmt.Errorf("%w: row %d label %v is not one-hot", ErrInvalidSample, i, s.Label))
		}
	}
	return err
}

// CountByClass returns how many samples carry each label.
func (d Dataset) CountByClass() [NumClasses]int {
	var counts [NumClasses]int
	for _, s := range d {
		if c := s.Label.Class(); c >= 0 {
			counts[c]++
		}
	}
	return counts
}

func sample(sl, sw, pl, pw float64, c Class) Sample {
	return Sample{
		Features: Features{SepalLength: sl, SepalWidth: sw, PetalLength: pl, PetalWidth: pw},
		Label:    OneHot(c),
	}
}

var irisRows = Dataset{
	sample(4.3, 3.0, 1.1, 0.1, Setosa),
	sample(5.1, 3.4, 1.5, 0.2, Setosa),
	sample(4.8, 3.1, 1.6, 0.2, Setosa),
	sample(4.8, 3.0, 1.4, 0.3, Setosa),
	sample(5.1, 3.5, 1.4, 0.3, Setosa),
	sample(5.3, 3.7, 1.5, 0.2, Setosa),
	sample(5.0, 3.4, 1.6, 0.4, Setosa),
	sample(5.0, 3.0, 1.6, 0.2, Setosa),
	sample(5.2, 4.1, 1.5, 0.1, Setosa),
	sample(5.1, 3.8, 1.5, 0.3, Setosa),

	sample(5.7, 2.6, 3.5, 1.0, Versicolor),
	sample(5.6, 3.0, 4.1, 1.3, Versicolor),
	sample(6.9, 3.1, 4.9, 1.5, Versicolor),
	sample(5.7, 2.9, 4.2, 1.3, Versicolor),
	sample(5.7, 3.0, 4.2, 1.2, Versicolor),
	sample(5.5, 2.5, 4.0, 1.3, Versicolor),
	sample(6.3, 2.5, 4.9, 1.5, Versicolor),
	sample(5.6, 2.7, 4.2, 1.3, Versicolor),
	sample(5.0, 2.0, 3.5, 1.0, Versicolor),
	sample(7.0, 3.2, 4.7, 1.4, Versicolor),

	sample(5.8, 2.7, 5.1, 1.9, Virginica),
	sample(5.9, 3.0, 5.1, 1.8, Virginica),
	sample(7.6, 3.0, 6.6, 2.1, Virginica),
	sample(6.8, 3.2, 5.9, 2.3, Virginica),
	sample(7.2, 3.0, 5.8, 1.6, Virginica),
	sample(6.4, 2.8, 5.6, 2.1, Virginica),
	sample(7.7, 3.8, 6.7, 2.2, Virginica),
	sample(6.3, 2.9, 5.6, 1.8, Virginica),
	sample(7.7, 2.6, 6.9, 2.3, Virginica),
	sample(6.4, 3.2, 5.3, 2.3, Virginica),
}

// IrisDataset returns a copy of the built-in 30-row training set, ten rows per
// class.
func IrisDataset() Dataset {
	return append(Dataset(nil), irisRows...)
}
