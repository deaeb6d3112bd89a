package models

import (
	"fmt"
	"math"
	"math/rand"
)

// GradientBoosting is an additive ensemble of regression trees on the log-loss.
// Binary problems boost one log-odds output; multiclass problems boost one
// output per class each round.
type GradientBoosting struct {
	BaseModel
	NEstimators    int
	MaxDepth       int
	LearningRate   float64
	Subsample      float64
	Lambda         float64
	MinChildWeight float64
	UnitHessian    bool
	Seed           int64
	Init           []float64
	Rounds         [][]*RegressionTree
	importances    []float64
}

type boostingDefaults struct {
	name           string
	family         Family
	lambda         float64
	minChildWeight float64
	unitHessian    bool
}

// NewXGBoost builds the second-order variant: hessian-weighted splits, L2 leaf
// penalty reg_lambda and min_child_weight on the hessian sum.
func NewXGBoost(params Params, seed int64) (*GradientBoosting, error) {
	return newBoosting(params, seed, boostingDefaults{
		name:           "XGBoost",
		family:         FamilyXGBoost,
		lambda:         1,
		minChildWeight: 1,
	})
}

// NewGradientBoosting builds the classic variant that splits on residual variance.
func NewGradientBoosting(params Params, seed int64) (*GradientBoosting, error) {
	return newBoosting(params, seed, boostingDefaults{
		name:           "GradientBoosting",
		family:         FamilyGradientBoosting,
		lambda:         0,
		minChildWeight: 1,
		unitHessian:    true,
	})
}

func newBoosting(params Params, seed int64, d boostingDefaults) (*GradientBoosting, error) {
	nEstimators, err := params.Int("n_estimators", 100)
	if err != nil {
		return nil, err
	}
	maxDepth, err := params.Int("max_depth", 3)
	if err != nil {
		return nil, err
	}
	lr, err := params.Float("learning_rate", 0.1)
	if err != nil {
		return nil, err
	}
	subsample, err := params.Float("subsample", 1.0)
	if err != nil {
		return nil, err
	}
	lambda, err := params.Float("reg_lambda", d.lambda)
	if err != nil {
		return nil, err
	}
	mcw, err := params.Float("min_child_weight", d.minChildWeight)
	if err != nil {
		return nil, err
	}
	if nEstimators < 1 {
		return nil, fmt.Errorf("n_estimators must be positive, got %d", nEstimators)
	}
	if subsample <= 0 || subsample > 1 {
		return nil, fmt.Errorf("subsample must be in (0, 1], got %v", subsample)
	}
	if lr <= 0 {
		return nil, fmt.Errorf("learning_rate must be positive, got %v", lr)
	}

	return &GradientBoosting{
		NEstimators:    nEstimators,
		MaxDepth:       maxDepth,
		LearningRate:   lr,
		Subsample:      subsample,
		Lambda:         lambda,
		MinChildWeight: mcw,
		UnitHessian:    d.unitHessian,
		Seed:           seed,
		BaseModel: BaseModel{
			Name:   d.name,
			Family: d.family,
			Params: params.Clone(),
		},
	}, nil
}

func (gb *GradientBoosting) outputs() int {
	if len(gb.Classes) == 2 {
		return 1
	}
	return len(gb.Classes)
}

func (gb *GradientBoosting) Fit(X [][]float64, y []int, sampleWeight []float64) error {
	if err := checkFitInput(X, y, sampleWeight); err != nil {
		return err
	}
	gb.Classes = ExtractClasses(y)
	pos := classIndex(gb.Classes)
	n, p := len(X), len(X[0])
	w := uniformWeights(n, sampleWeight)
	nOut := gb.outputs()

	yPos := make([]int, n)
	classWeight := make([]float64, len(gb.Classes))
	total := 0.0
	for i, label := range y {
		yPos[i] = pos[label]
		classWeight[yPos[i]] += w[i]
		total += w[i]
	}
	if total <= 0 {
		return fmt.Errorf("sample weights sum to %v", total)
	}

	gb.Init = make([]float64, nOut)
	gb.importances = make([]float64, p)
	gb.Rounds = nil
	if len(gb.Classes) < 2 {
		return nil
	}
	if nOut == 1 {
		prior := clampProb(classWeight[1] / total)
		gb.Init[0] = math.Log(prior / (1 - prior))
	} else {
		for k := range gb.Init {
			gb.Init[k] = math.Log(clampProb(classWeight[k] / total))
		}
	}

	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = append([]float64(nil), gb.Init...)
	}

	order := presort(X)
	rng := rand.New(rand.NewSource(gb.Seed))
	g := make([]float64, n)
	h := make([]float64, n)
	probs := make([][]float64, n)
	for i := range probs {
		probs[i] = make([]float64, nOut)
	}
	inSample := make([]bool, n)

	for round := 0; round < gb.NEstimators; round++ {
		gb.drawSubsample(rng, inSample)

		for i := 0; i < n; i++ {
			if nOut == 1 {
				probs[i][0] = sigmoid(raw[i][0])
			} else {
				softmaxInto(raw[i], probs[i])
			}
		}

		trees := make([]*RegressionTree, nOut)
		for k := 0; k < nOut; k++ {
			for i := 0; i < n; i++ {
				target := 0.0
				if (nOut == 1 && yPos[i] == 1) || (nOut > 1 && yPos[i] == k) {
					target = 1
				}
				pk := probs[i][k]
				g[i] = w[i] * (pk - target)
				h[i] = w[i] * math.Max(pk*(1-pk), 1e-16)
			}

			tree := &RegressionTree{
				MaxDepth:       gb.MaxDepth,
				Lambda:         gb.Lambda,
				MinChildWeight: gb.MinChildWeight,
				UnitHessian:    gb.UnitHessian,
			}
			tree.fit(X, order, g, h, w, inSample, gb.importances)
			trees[k] = tree
		}

		for k, tree := range trees {
			for i := 0; i < n; i++ {
				raw[i][k] += gb.LearningRate * tree.predict(X[i])
			}
		}
		gb.Rounds = append(gb.Rounds, trees)
	}

	total = 0
	for _, v := range gb.importances {
		total += v
	}
	if total > 0 {
		for j := range gb.importances {
			gb.importances[j] /= total
		}
	}
	return nil
}

// drawSubsample picks round(subsample*n) rows without replacement.
func (gb *GradientBoosting) drawSubsample(rng *rand.Rand, inSample []bool) {
	n := len(inSample)
	if gb.Subsample >= 1 {
		for i := range inSample {
			inSample[i] = true
		}
		return
	}
	size := int(math.Round(gb.Subsample * float64(n)))
	if size < 1 {
		size = 1
	}
	for i := range inSample {
		inSample[i] = false
	}
	for _, i := range rng.Perm(n)[:size] {
		inSample[i] = true
	}
}

func (gb *GradientBoosting) rawScores(sample []float64) []float64 {
	raw := append([]float64(nil), gb.Init...)
	for _, trees := range gb.Rounds {
		for k, tree := range trees {
			raw[k] += gb.LearningRate * tree.predict(sample)
		}
	}
	return raw
}

func (gb *GradientBoosting) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	for i, sample := range X {
		if len(gb.Classes) < 2 {
			proba[i] = []float64{1}
			continue
		}
		raw := gb.rawScores(sample)
		if len(raw) == 1 {
			p := sigmoid(raw[0])
			proba[i] = []float64{1 - p, p}
			continue
		}
		proba[i] = make([]float64, len(raw))
		softmaxInto(raw, proba[i])
	}
	return proba
}

func (gb *GradientBoosting) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, p := range gb.PredictProba(X) {
		predictions[i] = gb.Classes[argmax(p)]
	}
	return predictions
}

// Inspect reports split gain per feature, normalised to sum to 1.
func (gb *GradientBoosting) Inspect() Inspection {
	return Inspection{
		Family:      gb.Family,
		Params:      gb.Params,
		Capability:  CapabilityImportance,
		Importances: append([]float64(nil), gb.importances...),
	}
}

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, 1e-15), 1-1e-15)
}
