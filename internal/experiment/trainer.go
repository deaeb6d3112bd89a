package experiment

import (
	"fmt"
	"io"
	"sort"
	"time"

	"ermpipeline/internal/evaluation"
	"ermpipeline/internal/log"
	"ermpipeline/internal/models"
)

type Weighting string

const (
	WeightingNone     Weighting = "none"
	WeightingBalanced Weighting = "balanced"
	WeightingScalePos Weighting = "scale_pos_weight"
)

// ModelCandidate is the grid-search winner of one family, refit on all
// training rows.
type ModelCandidate struct {
	Family        models.Family
	Requested     models.Family
	FellBack      bool
	Model         models.Model
	Params        models.Params
	CVScore       float64
	CVStd         float64
	TrainAccuracy float64
	ValAccuracy   float64
	Weighting     Weighting
	ScalePos      float64
	Search        *evaluation.SearchResult
	Duration      time.Duration
}

type Trainer struct {
	Registry *models.Registry
	Config   RunConfig
	// Progress receives grid-search progress bars when non-nil.
	Progress io.Writer
}

func NewTrainer(cfg RunConfig, registry *models.Registry) *Trainer {
	if registry == nil {
		registry = models.DefaultRegistry
	}
	return &Trainer{Registry: registry, Config: cfg}
}

// ImbalanceRatio is the largest class count over the smallest.
func ImbalanceRatio(y []int) float64 {
	counts := classCounts(y)
	if len(counts) == 0 {
		return 0
	}
	minCount, maxCount := -1, 0
	for _, c := range counts {
		if minCount < 0 || c < minCount {
			minCount = c
		}
		if c > maxCount {
			maxCount = c
		}
	}
	return float64(maxCount) / float64(minCount)
}

// BalancedWeights gives every sample n / (k * count of its class).
func BalancedWeights(y []int) []float64 {
	counts := classCounts(y)
	n, k := float64(len(y)), float64(len(counts))
	w := make([]float64, len(y))
	for i, label := range y {
		w[i] = n / (k * float64(counts[label]))
	}
	return w
}

func classCounts(y []int) map[int]int {
	counts := make(map[int]int)
	for _, label := range y {
		counts[label]++
	}
	return counts
}

// weightingFor decides how a family compensates an imbalanced training set.
// Linear and bagging families use balanced weights. The second-order booster
// scales the positive class of binary problems by negatives/positives, computed
// once on the full training labels. The fallback booster is never weighted.
func (t *Trainer) weightingFor(family models.Family, y []int) (Weighting, float64, evaluation.WeightFunc) {
	if ImbalanceRatio(y) <= t.Config.Training.ImbalanceThreshold {
		return WeightingNone, 0, nil
	}

	switch family {
	case models.FamilyLogistic, models.FamilyRandomForest:
		return WeightingBalanced, 0, BalancedWeights
	case models.FamilyXGBoost:
		counts := classCounts(y)
		if len(counts) != 2 || counts[1] == 0 {
			return WeightingNone, 0, nil
		}
		scale := float64(counts[0]) / float64(counts[1])
		return WeightingScalePos, scale, func(labels []int) []float64 {
			w := make([]float64, len(labels))
			for i, label := range labels {
				w[i] = 1
				if label == 1 {
					w[i] = scale
				}
			}
			return w
		}
	default:
		return WeightingNone, 0, nil
	}
}

// resolve maps the requested family to the one this build provides.
func (t *Trainer) resolve(requested models.Family) (models.Family, bool, error) {
	fallback := models.Family("")
	if string(requested) == t.Config.Training.PreferredBoosting {
		fallback = models.Family(t.Config.Training.FallbackBoosting)
	}
	return t.Registry.Resolve(requested, fallback)
}

// TrainFamily grid-searches one family on the training rows, refits the winner
// and scores it on training and validation rows.
func (t *Trainer) TrainFamily(requested models.Family, X [][]float64, y []int, XVal [][]float64, yVal []int) (*ModelCandidate, error) {
	start := time.Now()
	family, fellBack, err := t.resolve(requested)
	if err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{"family": string(family), "rows": len(X)})
	if fellBack {
		logger.WithField("requested", string(requested)).Warn("preferred estimator unavailable, using fallback")
	}

	grid, ok := t.Config.Training.Grids[string(family)]
	if !ok || len(grid) == 0 {
		return nil, fmt.Errorf("no parameter grid for %s", family)
	}

	weighting, scale, weights := t.weightingFor(family, y)
	if ImbalanceRatio(y) > t.Config.Training.ImbalanceThreshold && weighting == WeightingNone {
		logger.Info("class imbalance detected but this family is trained unweighted")
	}

	build := func(p models.Params, seed int64) (models.Model, error) {
		return t.Registry.New(family, p, seed)
	}

	gs := evaluation.NewGridSearch(t.Config.Training.CVFolds, t.Config.Seed)
	if t.Config.Training.Workers > 0 {
		gs.MaxWorkers = t.Config.Training.Workers
	}
	gs.Progress = t.Progress
	gs.Label = string(family)

	search, err := gs.Search(build, grid, X, y, weights)
	if err != nil {
		return nil, fmt.Errorf("%s grid search: %w", family, err)
	}

	model, err := build(search.Best, t.Config.Seed)
	if err != nil {
		return nil, err
	}
	var w []float64
	if weights != nil {
		w = weights(y)
	}
	if err := model.Fit(X, y, w); err != nil {
		return nil, fmt.Errorf("%s refit: %w", family, err)
	}

	if lr, ok := model.(*models.LogisticRegression); ok && !lr.Converged {
		logger.WithField("max_iter", search.Best["max_iter"]).Warn("logistic regression stopped before converging")
	}

	candidate := &ModelCandidate{
		Family:        family,
		Requested:     requested,
		FellBack:      fellBack,
		Model:         model,
		Params:        search.Best,
		CVScore:       search.BestScore,
		CVStd:         search.Results[search.BestIndex].Std,
		TrainAccuracy: evaluation.Accuracy(y, model.Predict(X)),
		ValAccuracy:   evaluation.Accuracy(yVal, model.Predict(XVal)),
		Weighting:     weighting,
		ScalePos:      scale,
		Search:        search,
		Duration:      time.Since(start),
	}

	logger.WithFields(log.Fields{
		"params":    search.Best.String(),
		"cv_score":  fmt.Sprintf("%.4f", candidate.CVScore),
		"val_acc":   fmt.Sprintf("%.4f", candidate.ValAccuracy),
		"weighting": string(weighting),
		"duration":  candidate.Duration.Round(time.Millisecond).String(),
	}).Info("family trained")
	return candidate, nil
}

// SelectBest orders candidates by validation accuracy, highest first. Equal
// accuracies keep their training order.
func SelectBest(candidates []*ModelCandidate) []*ModelCandidate {
	ranked := append([]*ModelCandidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ValAccuracy > ranked[j].ValAccuracy
	})
	return ranked
}
