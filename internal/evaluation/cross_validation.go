package evaluation

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"

	"ermpipeline/internal/models"

	"github.com/cheggaaa/pb/v3"
	"gonum.org/v1/gonum/stat"
)

// ParamGrid maps a hyperparameter name to the values to try.
type ParamGrid map[string][]any

// Expand lists every combination. Keys are iterated in sorted order and the
// last key varies fastest, so the order is stable across runs.
func (g ParamGrid) Expand() []models.Params {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []models.Params{{}}
	for _, key := range keys {
		var next []models.Params
		for _, base := range combos {
			for _, v := range g[key] {
				p := base.Clone()
				p[key] = v
				next = append(next, p)
			}
		}
		combos = next
	}
	return combos
}

func (g ParamGrid) Size() int {
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n
}

// StratifiedKFold assigns every row to one test fold, keeping class proportions
// per fold. Rows of each class are shuffled with Seed and dealt round-robin.
type StratifiedKFold struct {
	NFolds int
	Seed   int64
}

func (kf StratifiedKFold) Split(y []int) ([][]int, error) {
	n := len(y)
	if kf.NFolds < 2 || kf.NFolds > n {
		return nil, fmt.Errorf("invalid number of folds: %d (must be between 2 and %d)", kf.NFolds, n)
	}

	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := models.ExtractClasses(y)

	rng := rand.New(rand.NewSource(kf.Seed))
	folds := make([][]int, kf.NFolds)
	next := 0
	for _, class := range classes {
		members := byClass[class]
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		for _, i := range members {
			folds[next] = append(folds[next], i)
			next = (next + 1) % kf.NFolds
		}
	}
	for _, fold := range folds {
		sort.Ints(fold)
	}
	return folds, nil
}

// WeightFunc derives per-sample weights from training labels. It is applied to
// each CV training fold and to the final refit; nil means unweighted.
type WeightFunc func(y []int) []float64

type CVResult struct {
	Params models.Params
	Scores []float64
	Mean   float64
	Std    float64
}

type SearchResult struct {
	Best      models.Params
	BestScore float64
	BestIndex int
	Results   []CVResult
}

type GridSearch struct {
	NFolds     int
	Seed       int64
	MaxWorkers int
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
	Label    string
}

func NewGridSearch(nFolds int, seed int64) *GridSearch {
	return &GridSearch{
		NFolds:     nFolds,
		Seed:       seed,
		MaxWorkers: 4,
	}
}

type foldJob struct {
	candidate int
	fold      int
}

// Search scores every grid combination by mean fold accuracy. Fold jobs run in
// a worker pool and write into fixed slots, so the winner is the first
// combination with the highest mean regardless of scheduling.
func (gs *GridSearch) Search(build models.Constructor, grid ParamGrid, X [][]float64, y []int, weights WeightFunc) (*SearchResult, error) {
	candidates := grid.Expand()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("empty parameter grid")
	}

	folds, err := StratifiedKFold{NFolds: gs.NFolds, Seed: gs.Seed}.Split(y)
	if err != nil {
		return nil, err
	}

	scores := make([][]float64, len(candidates))
	errs := make([][]error, len(candidates))
	for c := range candidates {
		scores[c] = make([]float64, len(folds))
		errs[c] = make([]error, len(folds))
	}

	total := len(candidates) * len(folds)
	var bar *pb.ProgressBar
	if gs.Progress != nil {
		bar = pb.New(total).Set("prefix", gs.Label+" ").SetWriter(gs.Progress).Start()
	}

	workers := gs.MaxWorkers
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan foldJob, total)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				score, err := evaluateFold(build, candidates[job.candidate], gs.Seed, X, y, folds[job.fold], weights)
				scores[job.candidate][job.fold] = score
				errs[job.candidate][job.fold] = err
				if bar != nil {
					bar.Increment()
				}
			}
		}()
	}

	for c := range candidates {
		for f := range folds {
			jobs <- foldJob{candidate: c, fold: f}
		}
	}
	close(jobs)

	wg.Wait()
	if bar != nil {
		bar.Finish()
	}

	result := &SearchResult{BestIndex: -1, Results: make([]CVResult, len(candidates))}
	for c, params := range candidates {
		for f, err := range errs[c] {
			if err != nil {
				return nil, fmt.Errorf("%s fold %d failed: %w", params, f, err)
			}
		}
		mean, std := stat.MeanStdDev(scores[c], nil)
		result.Results[c] = CVResult{Params: params, Scores: scores[c], Mean: mean, Std: std}
		if result.BestIndex < 0 || mean > result.BestScore {
			result.BestIndex = c
			result.BestScore = mean
		}
	}
	result.Best = candidates[result.BestIndex]
	return result, nil
}

func evaluateFold(build models.Constructor, params models.Params, seed int64, X [][]float64, y []int, testIndices []int, weights WeightFunc) (float64, error) {
	testSet := make(map[int]bool, len(testIndices))
	for _, idx := range testIndices {
		testSet[idx] = true
	}

	XTrain := make([][]float64, 0, len(X)-len(testIndices))
	yTrain := make([]int, 0, len(X)-len(testIndices))
	for i := range X {
		if !testSet[i] {
			XTrain = append(XTrain, X[i])
			yTrain = append(yTrain, y[i])
		}
	}

	XTest := make([][]float64, len(testIndices))
	yTest := make([]int, len(testIndices))
	for i, idx := range testIndices {
		XTest[i] = X[idx]
		yTest[i] = y[idx]
	}

	model, err := build(params, seed)
	if err != nil {
		return 0, err
	}
	var w []float64
	if weights != nil {
		w = weights(yTrain)
	}
	if err := model.Fit(XTrain, yTrain, w); err != nil {
		return 0, err
	}

	return Accuracy(yTest, model.Predict(XTest)), nil
}
