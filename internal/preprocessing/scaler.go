package preprocessing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrNotFitted = errors.New("transformer must be fitted before transform")

const (
	ScaleStandard = "standard"
	ScaleMinMax   = "minmax"
	ScaleNone     = "none"
)

type Scaler struct {
	ScaleType   string
	IsFitted    bool
	FeatureMin  []float64
	FeatureMax  []float64
	FeatureMean []float64
	FeatureStd  []float64
}

func NewScaler(scaleType string) *Scaler {
	return &Scaler{ScaleType: scaleType}
}

func (s *Scaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty dataset")
	}

	nFeatures := len(X[0])
	s.FeatureMin = make([]float64, nFeatures)
	s.FeatureMax = make([]float64, nFeatures)
	s.FeatureMean = make([]float64, nFeatures)
	s.FeatureStd = make([]float64, nFeatures)

	column := make([]float64, len(X))
	for j := 0; j < nFeatures; j++ {
		for i := range X {
			column[i] = X[i][j]
		}
		switch s.ScaleType {
		case ScaleMinMax, "normalized":
			s.FeatureMin[j] = floats.Min(column)
			s.FeatureMax[j] = floats.Max(column)
		case ScaleStandard, "standardized":
			mean, variance := stat.PopMeanVariance(column, nil)
			s.FeatureMean[j] = mean
			s.FeatureStd[j] = math.Sqrt(variance)
			if s.FeatureStd[j] == 0 {
				s.FeatureStd[j] = 1
			}
		case ScaleNone, "raw":
		default:
			return fmt.Errorf("unknown scale type: %s", s.ScaleType)
		}
	}

	s.IsFitted = true
	return nil
}

// Transform returns a scaled copy; X is left untouched.
func (s *Scaler) Transform(X [][]float64) ([][]float64, error) {
	if !s.IsFitted {
		return nil, ErrNotFitted
	}

	result := make([][]float64, len(X))
	for i := range X {
		if len(X[i]) != len(s.FeatureMean) {
			return nil, fmt.Errorf("row %d has %d features, scaler was fitted on %d", i, len(X[i]), len(s.FeatureMean))
		}
		result[i] = make([]float64, len(X[i]))
		for j, v := range X[i] {
			switch s.ScaleType {
			case ScaleMinMax, "normalized":
				result[i][j] = s.transformMinMax(v, j)
			case ScaleStandard, "standardized":
				result[i][j] = (v - s.FeatureMean[j]) / s.FeatureStd[j]
			default:
				result[i][j] = v
			}
		}
	}

	return result, nil
}

func (s *Scaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *Scaler) transformMinMax(value float64, featureIndex int) float64 {
	span := s.FeatureMax[featureIndex] - s.FeatureMin[featureIndex]
	if span == 0 {
		return 0
	}
	return (value - s.FeatureMin[featureIndex]) / span
}
