package models

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs puts class c around feature0 = 3*c; feature1 is noise.
func blobs(n, classes int, seed int64) ([][]float64, []int) {
	r := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		c := i % classes
		X[i] = []float64{3*float64(c) + r.NormFloat64()*0.5, r.NormFloat64()}
		y[i] = c
	}
	return X, y
}

func accuracy(pred, y []int) float64 {
	correct := 0
	for i := range y {
		if pred[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

func smallParams(family Family) Params {
	switch family {
	case FamilyLogistic:
		return Params{"C": 1.0, "solver": SolverLBFGS, "max_iter": 200}
	case FamilyRandomForest:
		return Params{"n_estimators": 15, "max_depth": nil, "min_samples_split": 2, "min_samples_leaf": 1}
	default:
		return Params{"n_estimators": 20, "max_depth": 3, "learning_rate": 0.3, "subsample": 0.8}
	}
}

func TestFamiliesSeparateBlobs(t *testing.T) {
	for _, family := range []Family{FamilyLogistic, FamilyRandomForest, FamilyXGBoost, FamilyGradientBoosting} {
		for _, classes := range []int{2, 3} {
			X, y := blobs(300, classes, 1)
			m, err := DefaultRegistry.New(family, smallParams(family), 42)
			if errors.Is(err, ErrFamilyUnavailable) {
				continue
			}
			require.NoError(t, err)
			require.NoError(t, m.Fit(X, y, nil), "%s/%d", family, classes)

			assert.Equal(t, family, m.GetType())
			assert.Equal(t, ExtractClasses(y), m.GetClasses())
			assert.Greater(t, accuracy(m.Predict(X), y), 0.9, "%s with %d classes", family, classes)

			for _, p := range m.PredictProba(X[:5]) {
				sum := 0.0
				for _, v := range p {
					sum += v
				}
				assert.InDelta(t, 1.0, sum, 1e-9)
				assert.Len(t, p, classes)
			}
		}
	}
}

func TestTreeEnsemblesRankInformativeFeature(t *testing.T) {
	X, y := blobs(200, 2, 7)
	for _, family := range []Family{FamilyRandomForest, FamilyGradientBoosting} {
		m, err := DefaultRegistry.New(family, smallParams(family), 42)
		require.NoError(t, err)
		require.NoError(t, m.Fit(X, y, nil))

		ins := m.Inspect()
		assert.Equal(t, CapabilityImportance, ins.Capability)
		assert.Nil(t, ins.Coefficients)
		require.Len(t, ins.Importances, 2)
		assert.InDelta(t, 1.0, ins.Importances[0]+ins.Importances[1], 1e-9)
		assert.Greater(t, ins.Importances[0], ins.Importances[1], "%s", family)
	}
}

func TestLogisticCoefficientShape(t *testing.T) {
	a := assert.New(t)

	X, y := blobs(200, 2, 3)
	binary, err := NewLogisticRegression(Params{"C": 10.0, "max_iter": 500}, 42)
	require.NoError(t, err)
	require.NoError(t, binary.Fit(X, y, nil))
	ins := binary.Inspect()
	a.Equal(CapabilityCoefficients, ins.Capability)
	require.Len(t, ins.Coefficients, 1)
	a.Greater(ins.Coefficients[0][0], 0.0, "class 1 sits at larger feature0")

	X, y = blobs(300, 3, 3)
	multi, err := NewLogisticRegression(Params{"C": 1.0, "solver": SolverSAGA, "max_iter": 300}, 42)
	require.NoError(t, err)
	require.NoError(t, multi.Fit(X, y, nil))
	a.Len(multi.Inspect().Coefficients, 3)
	a.Greater(accuracy(multi.Predict(X), y), 0.9)
}

func TestLogisticSolversAgree(t *testing.T) {
	X, y := blobs(200, 2, 11)
	lbfgs, err := NewLogisticRegression(Params{"C": 0.1, "solver": SolverLBFGS, "max_iter": 1000}, 42)
	require.NoError(t, err)
	saga, err := NewLogisticRegression(Params{"C": 0.1, "solver": SolverSAGA, "max_iter": 1000}, 42)
	require.NoError(t, err)
	require.NoError(t, lbfgs.Fit(X, y, nil))
	require.NoError(t, saga.Fit(X, y, nil))

	a := lbfgs.Inspect().Coefficients[0]
	b := saga.Inspect().Coefficients[0]
	assert.InDelta(t, a[0], b[0], 0.05)
	assert.InDelta(t, accuracy(lbfgs.Predict(X), y), accuracy(saga.Predict(X), y), 0.02)
}

func TestSampleWeightsShiftDecision(t *testing.T) {
	X := make([][]float64, 10)
	y := make([]int, 10)
	for i := range X {
		X[i] = []float64{0}
		if i >= 8 {
			y[i] = 1
		}
	}

	m, err := NewLogisticRegression(Params{"C": 1.0}, 42)
	require.NoError(t, err)
	require.NoError(t, m.Fit(X, y, nil))
	assert.Equal(t, 0, m.Predict(X[:1])[0])

	w := make([]float64, 10)
	for i := range w {
		w[i] = 1
		if y[i] == 1 {
			w[i] = 10
		}
	}
	require.NoError(t, m.Fit(X, y, w))
	assert.Equal(t, 1, m.Predict(X[:1])[0])
}

func TestRandomForestDeterministicAcrossWorkers(t *testing.T) {
	X, y := blobs(150, 3, 5)
	params := smallParams(FamilyRandomForest)

	parallel, err := NewRandomForest(params, 42)
	require.NoError(t, err)
	require.NoError(t, parallel.Fit(X, y, nil))

	sequential, err := NewRandomForest(params, 42)
	require.NoError(t, err)
	sequential.Parallel = false
	require.NoError(t, sequential.Fit(X, y, nil))

	assert.Equal(t, parallel.PredictProba(X), sequential.PredictProba(X))
	assert.Equal(t, parallel.Inspect().Importances, sequential.Inspect().Importances)
}

func TestDecisionTreeDepthLimit(t *testing.T) {
	X, y := blobs(100, 3, 9)
	w := uniformWeights(len(y), nil)
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}

	stump := NewDecisionTree(1, 2, 1)
	stump.fit(X, y, w, idx, 3, nil)
	assert.Equal(t, 1, stump.Depth())

	full := NewDecisionTree(0, 2, 1)
	full.fit(X, y, w, idx, 3, nil)
	for i, row := range X {
		assert.Equal(t, y[i], argmax(full.proba(row)), "unlimited depth fits the training data")
	}
}

func TestRegistryResolveFallback(t *testing.T) {
	a := assert.New(t)
	r := NewRegistry()
	r.Register(FamilyGradientBoosting, func(p Params, seed int64) (Model, error) {
		return NewGradientBoosting(p, seed)
	})

	family, fellBack, err := r.Resolve(FamilyXGBoost, FamilyGradientBoosting)
	a.NoError(err)
	a.True(fellBack)
	a.Equal(FamilyGradientBoosting, family)

	r.Register(FamilyXGBoost, func(p Params, seed int64) (Model, error) {
		return NewXGBoost(p, seed)
	})
	family, fellBack, err = r.Resolve(FamilyXGBoost, FamilyGradientBoosting)
	a.NoError(err)
	a.False(fellBack)
	a.Equal(FamilyXGBoost, family)

	_, _, err = NewRegistry().Resolve(FamilyXGBoost, FamilyGradientBoosting)
	a.ErrorIs(err, ErrFamilyUnavailable)

	_, err = ParseFamily("svm")
	a.ErrorIs(err, ErrUnknownFamily)
}

func TestParams(t *testing.T) {
	a := assert.New(t)
	p := Params{"max_depth": nil, "n_estimators": 100, "learning_rate": 0.1}
	a.Equal("learning_rate=0.1 max_depth=None n_estimators=100", p.String())

	depth, err := p.Int("max_depth", 0)
	a.NoError(err)
	a.Equal(0, depth)

	_, err = p.Int("learning_rate", 0)
	a.Error(err)

	_, err = NewRandomForest(Params{"n_estimators": "many"}, 1)
	a.Error(err)
}
