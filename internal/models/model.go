package models

import (
	"fmt"
	"sort"
	"strings"
)

type Family string

const (
	FamilyLogistic         Family = "logistic_regression"
	FamilyRandomForest     Family = "random_forest"
	FamilyXGBoost          Family = "xgboost"
	FamilyGradientBoosting Family = "gradient_boosting"
)

// Capability tags what kind of feature ranking a fitted model can provide.
type Capability int

const (
	CapabilityNone Capability = iota
	CapabilityImportance
	CapabilityCoefficients
)

func (c Capability) String() string {
	switch c {
	case CapabilityImportance:
		return "importance"
	case CapabilityCoefficients:
		return "coefficients"
	default:
		return "none"
	}
}

type Model interface {
	Fit(X [][]float64, y []int, sampleWeight []float64) error
	Predict(X [][]float64) []int
	PredictProba(X [][]float64) [][]float64
	GetType() Family
	GetName() string
	GetParams() Params
	GetClasses() []int
	Inspect() Inspection
}

// Inspection is the fitted-model summary handed to the evaluator. Exactly one of
// Importances or Coefficients is set, matching Capability.
type Inspection struct {
	Family       Family
	Params       Params
	Capability   Capability
	Importances  []float64
	Coefficients [][]float64
}

type BaseModel struct {
	Name    string
	Family  Family
	Params  Params
	Classes []int
}

func (bm *BaseModel) GetType() Family {
	return bm.Family
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetParams() Params {
	return bm.Params
}

func (bm *BaseModel) GetClasses() []int {
	return bm.Classes
}

// ExtractClasses returns the sorted distinct labels.
func ExtractClasses(y []int) []int {
	classMap := make(map[int]bool)
	for _, label := range y {
		classMap[label] = true
	}

	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	return classes
}

func classIndex(classes []int) map[int]int {
	idx := make(map[int]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return idx
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func checkFitInput(X [][]float64, y []int, w []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("cannot fit on empty data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X has %d rows but y has %d", len(X), len(y))
	}
	if w != nil && len(w) != len(y) {
		return fmt.Errorf("sample weights have %d entries, expected %d", len(w), len(y))
	}
	return nil
}

func uniformWeights(n int, w []float64) []float64 {
	if w != nil {
		return w
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

// Params holds one hyperparameter configuration.
type Params map[string]any

func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := p[k]
		if v == nil {
			v = "None"
		}
		parts[i] = fmt.Sprintf("%s=%v", k, v)
	}
	return strings.Join(parts, " ")
}

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Params) Float(key string, def float64) (float64, error) {
	switch v := p[key].(type) {
	case nil:
		return def, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("parameter %s: expected number, got %T", key, v)
	}
}

// Int reads an integer parameter. A missing or null value yields def.
func (p Params) Int(key string, def int) (int, error) {
	switch v := p[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("parameter %s: %v is not an integer", key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("parameter %s: expected integer, got %T", key, v)
	}
}

func (p Params) Str(key, def string) (string, error) {
	switch v := p[key].(type) {
	case nil:
		return def, nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("parameter %s: expected string, got %T", key, v)
	}
}
