package models

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

type RandomForest struct {
	BaseModel
	NTrees          int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Seed            int64
	Trees           []*DecisionTree
	Parallel        bool
	MaxWorkers      int
	importances     []float64
}

// NewRandomForest reads n_estimators, max_depth (nil for unlimited),
// min_samples_split and min_samples_leaf from params.
func NewRandomForest(params Params, seed int64) (*RandomForest, error) {
	nTrees, err := params.Int("n_estimators", 100)
	if err != nil {
		return nil, err
	}
	maxDepth, err := params.Int("max_depth", 0)
	if err != nil {
		return nil, err
	}
	minSplit, err := params.Int("min_samples_split", 2)
	if err != nil {
		return nil, err
	}
	minLeaf, err := params.Int("min_samples_leaf", 1)
	if err != nil {
		return nil, err
	}
	if nTrees < 1 {
		return nil, fmt.Errorf("n_estimators must be positive, got %d", nTrees)
	}

	return &RandomForest{
		NTrees:          nTrees,
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSplit,
		MinSamplesLeaf:  minLeaf,
		Seed:            seed,
		Parallel:        true,
		MaxWorkers:      4,
		BaseModel: BaseModel{
			Name:   "RandomForest",
			Family: FamilyRandomForest,
			Params: params.Clone(),
		},
	}, nil
}

func (rf *RandomForest) Fit(X [][]float64, y []int, sampleWeight []float64) error {
	if err := checkFitInput(X, y, sampleWeight); err != nil {
		return err
	}
	rf.Classes = ExtractClasses(y)
	pos := classIndex(rf.Classes)
	yPos := make([]int, len(y))
	for i, label := range y {
		yPos[i] = pos[label]
	}
	w := uniformWeights(len(y), sampleWeight)

	nFeatures := len(X[0])
	rf.MaxFeatures = int(math.Sqrt(float64(nFeatures)))
	if rf.MaxFeatures < 1 {
		rf.MaxFeatures = 1
	}

	rf.Trees = make([]*DecisionTree, rf.NTrees)
	if rf.Parallel {
		rf.trainParallel(X, yPos, w)
	} else {
		for i := 0; i < rf.NTrees; i++ {
			rf.Trees[i] = rf.trainSingleTree(X, yPos, w, i)
		}
	}

	rf.importances = make([]float64, nFeatures)
	for _, tree := range rf.Trees {
		for j, v := range tree.normalizedImportances() {
			rf.importances[j] += v
		}
	}
	total := 0.0
	for _, v := range rf.importances {
		total += v
	}
	if total > 0 {
		for j := range rf.importances {
			rf.importances[j] /= total
		}
	}
	return nil
}

func (rf *RandomForest) trainParallel(X [][]float64, y []int, w []float64) {
	var wg sync.WaitGroup

	workers := rf.MaxWorkers
	if workers > rf.NTrees {
		workers = rf.NTrees
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int, rf.NTrees)

	for k := 0; k < workers; k++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rf.Trees[i] = rf.trainSingleTree(X, y, w, i)
			}
		}()
	}

	for i := 0; i < rf.NTrees; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
}

// trainSingleTree draws a bootstrap sample with its own seed, so the result does
// not depend on which worker builds the tree.
func (rf *RandomForest) trainSingleTree(X [][]float64, y []int, w []float64, i int) *DecisionTree {
	r := rand.New(rand.NewSource(rf.Seed + int64(i)))

	n := len(X)
	boot := make([]int, n)
	for k := range boot {
		boot[k] = r.Intn(n)
	}

	tree := NewDecisionTree(rf.MaxDepth, rf.MinSamplesSplit, rf.MinSamplesLeaf)
	tree.MaxFeatures = rf.MaxFeatures
	tree.fit(X, y, w, boot, len(rf.Classes), r)
	return tree
}

func (rf *RandomForest) Predict(X [][]float64) []int {
	proba := rf.PredictProba(X)
	predictions := make([]int, len(X))
	for i, p := range proba {
		predictions[i] = rf.Classes[argmax(p)]
	}
	return predictions
}

// PredictProba averages the leaf distributions of all trees.
func (rf *RandomForest) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	nTrees := float64(len(rf.Trees))

	for i, sample := range X {
		proba[i] = make([]float64, len(rf.Classes))
		for _, tree := range rf.Trees {
			for k, p := range tree.proba(sample) {
				proba[i][k] += p
			}
		}
		for k := range proba[i] {
			proba[i][k] /= nTrees
		}
	}

	return proba
}

func (rf *RandomForest) Inspect() Inspection {
	return Inspection{
		Family:      rf.Family,
		Params:      rf.Params,
		Capability:  CapabilityImportance,
		Importances: append([]float64(nil), rf.importances...),
	}
}
