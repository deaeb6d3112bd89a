package models

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownFamily     = errors.New("unknown model family")
	ErrFamilyUnavailable = errors.New("model family unavailable in this build")
)

// Constructor builds an unfitted model from one hyperparameter configuration.
type Constructor func(params Params, seed int64) (Model, error)

// Registry maps families to constructors. The preferred boosting family may be
// absent from a build; Resolve negotiates the fallback.
type Registry struct {
	mu           sync.RWMutex
	constructors map[Family]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[Family]Constructor)}
}

func (r *Registry) Register(family Family, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[family] = c
}

func (r *Registry) Has(family Family) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[family]
	return ok
}

func (r *Registry) Families() []Family {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Family, 0, len(r.constructors))
	for f := range r.constructors {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) New(family Family, params Params, seed int64) (Model, error) {
	r.mu.RLock()
	c, ok := r.constructors[family]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFamilyUnavailable, family)
	}
	return c(params, seed)
}

// Resolve returns preferred when registered, otherwise fallback with
// fellBack set. Neither being registered is an error.
func (r *Registry) Resolve(preferred, fallback Family) (family Family, fellBack bool, err error) {
	if r.Has(preferred) {
		return preferred, false, nil
	}
	if fallback != "" && r.Has(fallback) {
		return fallback, true, nil
	}
	return "", false, fmt.Errorf("%w: %s (fallback %q)", ErrFamilyUnavailable, preferred, fallback)
}

// DefaultRegistry holds every family compiled into this build.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(FamilyLogistic, func(p Params, seed int64) (Model, error) {
		return NewLogisticRegression(p, seed)
	})
	DefaultRegistry.Register(FamilyRandomForest, func(p Params, seed int64) (Model, error) {
		return NewRandomForest(p, seed)
	})
	DefaultRegistry.Register(FamilyGradientBoosting, func(p Params, seed int64) (Model, error) {
		return NewGradientBoosting(p, seed)
	})
}

// ParseFamily validates a family name from configuration.
func ParseFamily(name string) (Family, error) {
	switch f := Family(name); f {
	case FamilyLogistic, FamilyRandomForest, FamilyXGBoost, FamilyGradientBoosting:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFamily, name)
	}
}

// DefaultGrid returns the search space used for each family.
func DefaultGrid(family Family) map[string][]any {
	switch family {
	case FamilyLogistic:
		return map[string][]any{
			"C":        {0.01, 0.1, 1.0, 10.0, 100.0},
			"solver":   {SolverLBFGS, SolverSAGA},
			"max_iter": {1000},
		}
	case FamilyRandomForest:
		return map[string][]any{
			"n_estimators":      {100, 200},
			"max_depth":         {10, 20, nil},
			"min_samples_split": {2, 5},
			"min_samples_leaf":  {1, 2},
		}
	case FamilyXGBoost, FamilyGradientBoosting:
		return map[string][]any{
			"n_estimators":  {100, 200},
			"max_depth":     {3, 5, 7},
			"learning_rate": {0.01, 0.1, 0.3},
			"subsample":     {0.8, 1.0},
		}
	default:
		return nil
	}
}
