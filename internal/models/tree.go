package models

import (
	"math/rand"
	"sort"
)

type TreeNode struct {
	IsLeaf           bool
	Class            int
	Feature          int
	Threshold        float64
	Left             *TreeNode
	Right            *TreeNode
	Samples          int
	Distribution     []float64
	Impurity         float64
	ImpurityDecrease float64
}

// DecisionTree is a CART classifier with weighted Gini impurity. It is the base
// learner of RandomForest and works on class positions 0..k-1.
type DecisionTree struct {
	Root            *TreeNode
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures is the number of features drawn per split; 0 means all.
	MaxFeatures int
	NClasses    int
	NFeatures   int
	importances []float64
	rng         *rand.Rand
}

func NewDecisionTree(maxDepth, minSamplesSplit, minSamplesLeaf int) *DecisionTree {
	if minSamplesSplit < 2 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf < 1 {
		minSamplesLeaf = 1
	}
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
	}
}

// fit grows the tree on the rows listed in indices. y holds class positions.
func (dt *DecisionTree) fit(X [][]float64, y []int, w []float64, indices []int, nClasses int, rng *rand.Rand) {
	dt.NClasses = nClasses
	dt.NFeatures = len(X[0])
	dt.importances = make([]float64, dt.NFeatures)
	dt.rng = rng
	dt.Root = dt.buildTree(X, y, w, indices, 0)
	dt.rng = nil
}

func (dt *DecisionTree) buildTree(X [][]float64, y []int, w []float64, indices []int, depth int) *TreeNode {
	dist := make([]float64, dt.NClasses)
	for _, i := range indices {
		dist[y[i]] += w[i]
	}
	node := &TreeNode{
		Samples:      len(indices),
		Distribution: dist,
		Impurity:     gini(dist),
		Class:        argmax(dist),
	}

	if (dt.MaxDepth > 0 && depth >= dt.MaxDepth) ||
		len(indices) < dt.MinSamplesSplit ||
		len(indices) < 2*dt.MinSamplesLeaf ||
		node.Impurity == 0 {
		node.IsLeaf = true
		return node
	}

	feature, threshold, decrease, ok := dt.findBestSplit(X, y, w, indices, node)
	if !ok {
		node.IsLeaf = true
		return node
	}

	var left, right []int
	for _, i := range indices {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.Feature = feature
	node.Threshold = threshold
	node.ImpurityDecrease = decrease
	dt.importances[feature] += decrease

	node.Left = dt.buildTree(X, y, w, left, depth+1)
	node.Right = dt.buildTree(X, y, w, right, depth+1)
	return node
}

// findBestSplit scans sorted values of each candidate feature. The returned
// decrease is weighted by node mass, as used for impurity-based importances.
func (dt *DecisionTree) findBestSplit(X [][]float64, y []int, w []float64, indices []int, node *TreeNode) (int, float64, float64, bool) {
	total := 0.0
	for _, v := range node.Distribution {
		total += v
	}
	if total <= 0 {
		return 0, 0, 0, false
	}

	bestFeature, bestThreshold := -1, 0.0
	bestChild := node.Impurity * total

	sorted := make([]int, len(indices))
	left := make([]float64, dt.NClasses)
	right := make([]float64, dt.NClasses)

	for _, feature := range dt.candidateFeatures() {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, b int) bool {
			return X[sorted[a]][feature] < X[sorted[b]][feature]
		})

		for k := range left {
			left[k] = 0
			right[k] = node.Distribution[k]
		}
		leftW := 0.0

		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			left[y[i]] += w[i]
			right[y[i]] -= w[i]
			leftW += w[i]

			nLeft := pos + 1
			if nLeft < dt.MinSamplesLeaf || len(sorted)-nLeft < dt.MinSamplesLeaf {
				continue
			}
			cur, next := X[i][feature], X[sorted[pos+1]][feature]
			if cur == next {
				continue
			}

			rightW := total - leftW
			child := gini(left)*leftW + gini(right)*rightW
			if child < bestChild-1e-12 {
				bestChild = child
				bestFeature = feature
				bestThreshold = cur + (next-cur)/2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, 0, false
	}
	return bestFeature, bestThreshold, node.Impurity*total - bestChild, true
}

func (dt *DecisionTree) candidateFeatures() []int {
	features := make([]int, dt.NFeatures)
	for i := range features {
		features[i] = i
	}
	if dt.MaxFeatures <= 0 || dt.MaxFeatures >= dt.NFeatures || dt.rng == nil {
		return features
	}
	for i := 0; i < dt.MaxFeatures; i++ {
		j := i + dt.rng.Intn(dt.NFeatures-i)
		features[i], features[j] = features[j], features[i]
	}
	return features[:dt.MaxFeatures]
}

func (dt *DecisionTree) leaf(sample []float64) *TreeNode {
	node := dt.Root
	for !node.IsLeaf {
		if sample[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// proba returns the normalised class distribution of the sample's leaf.
func (dt *DecisionTree) proba(sample []float64) []float64 {
	dist := dt.leaf(sample).Distribution
	out := make([]float64, len(dist))
	total := 0.0
	for _, v := range dist {
		total += v
	}
	if total == 0 {
		return out
	}
	for k, v := range dist {
		out[k] = v / total
	}
	return out
}

// normalizedImportances returns importances summing to 1 (or all zeros for a stump).
func (dt *DecisionTree) normalizedImportances() []float64 {
	out := make([]float64, len(dt.importances))
	total := 0.0
	for _, v := range dt.importances {
		total += v
	}
	if total == 0 {
		return out
	}
	for j, v := range dt.importances {
		out[j] = v / total
	}
	return out
}

func (dt *DecisionTree) Depth() int {
	return depth(dt.Root)
}

func depth(node *TreeNode) int {
	if node == nil || node.IsLeaf {
		return 0
	}
	l, r := depth(node.Left), depth(node.Right)
	if l > r {
		return l + 1
	}
	return r + 1
}

func gini(dist []float64) float64 {
	total := 0.0
	for _, v := range dist {
		total += v
	}
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, v := range dist {
		p := v / total
		impurity -= p * p
	}
	return impurity
}
