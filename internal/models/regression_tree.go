package models

import (
	"math"
	"sort"
)

// regressionNode is one node of a flat regression tree. Leaves carry Value.
type regressionNode struct {
	IsLeaf    bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Gain      float64
}

// RegressionTree fits per-sample gradients and hessians. With UnitHessian the
// split search uses the sample weight in place of the hessian, which is the
// residual-variance criterion; leaf values are always Newton steps.
type RegressionTree struct {
	MaxDepth       int
	Lambda         float64
	MinChildWeight float64
	UnitHessian    bool
	Nodes          []regressionNode
}

type nodeStats struct {
	G, H, W float64
	Count   int
}

type splitCandidate struct {
	gain      float64
	feature   int
	threshold float64
	found     bool
}

// presort returns, for every feature, the row indices ordered by that feature.
func presort(X [][]float64) [][]int {
	nFeatures := len(X[0])
	order := make([][]int, nFeatures)
	for f := range order {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return X[idx[a]][f] < X[idx[b]][f]
		})
		order[f] = idx
	}
	return order
}

// fit grows the tree level by level. Rows with inSample false are ignored.
// importance receives the gain of every split.
func (rt *RegressionTree) fit(X [][]float64, order [][]int, g, h, w []float64, inSample []bool, importance []float64) {
	n := len(X)
	nodeOf := make([]int, n)
	root := nodeStats{}
	for i := 0; i < n; i++ {
		if !inSample[i] {
			nodeOf[i] = -1
			continue
		}
		root.G += g[i]
		root.H += h[i]
		root.W += w[i]
		root.Count++
	}

	rt.Nodes = []regressionNode{{IsLeaf: true}}
	stats := []nodeStats{root}
	active := []int{0}

	for level := 0; len(active) > 0; level++ {
		if rt.MaxDepth > 0 && level >= rt.MaxDepth {
			break
		}
		best := rt.findSplits(X, order, g, h, w, nodeOf, stats, active)

		var next []int
		for _, nd := range active {
			cand := best[nd]
			if !cand.found {
				continue
			}
			left, right := len(rt.Nodes), len(rt.Nodes)+1
			rt.Nodes[nd] = regressionNode{
				Feature:   cand.feature,
				Threshold: cand.threshold,
				Left:      left,
				Right:     right,
				Gain:      cand.gain,
			}
			importance[cand.feature] += cand.gain
			rt.Nodes = append(rt.Nodes, regressionNode{IsLeaf: true}, regressionNode{IsLeaf: true})
			stats = append(stats, nodeStats{}, nodeStats{})
			next = append(next, left, right)
		}
		if len(next) == 0 {
			break
		}

		for i := 0; i < n; i++ {
			nd := nodeOf[i]
			if nd < 0 || rt.Nodes[nd].IsLeaf {
				continue
			}
			child := rt.Nodes[nd].Right
			if X[i][rt.Nodes[nd].Feature] <= rt.Nodes[nd].Threshold {
				child = rt.Nodes[nd].Left
			}
			nodeOf[i] = child
			s := &stats[child]
			s.G += g[i]
			s.H += h[i]
			s.W += w[i]
			s.Count++
		}
		active = next
	}

	for nd := range rt.Nodes {
		if rt.Nodes[nd].IsLeaf {
			rt.Nodes[nd].Value = newtonStep(stats[nd], rt.Lambda)
		}
	}
}

// findSplits sweeps each presorted feature once for all active nodes.
func (rt *RegressionTree) findSplits(X [][]float64, order [][]int, g, h, w []float64, nodeOf []int, stats []nodeStats, active []int) map[int]splitCandidate {
	isActive := make(map[int]bool, len(active))
	best := make(map[int]splitCandidate, len(active))
	for _, nd := range active {
		isActive[nd] = true
	}

	running := make(map[int]*nodeStats, len(active))
	last := make(map[int]float64, len(active))

	for f, idx := range order {
		for _, nd := range active {
			running[nd] = &nodeStats{}
		}
		for _, i := range idx {
			nd := nodeOf[i]
			if nd < 0 || !isActive[nd] {
				continue
			}
			left := running[nd]
			x := X[i][f]
			if left.Count > 0 && x != last[nd] {
				total := stats[nd]
				right := nodeStats{
					G:     total.G - left.G,
					H:     total.H - left.H,
					W:     total.W - left.W,
					Count: total.Count - left.Count,
				}
				if rt.childOK(*left) && rt.childOK(right) {
					gain := rt.score(*left) + rt.score(right) - rt.score(total)
					if gain > best[nd].gain+1e-12 {
						best[nd] = splitCandidate{
							gain:      gain,
							feature:   f,
							threshold: last[nd] + (x-last[nd])/2,
							found:     true,
						}
					}
				}
			}
			left.G += g[i]
			left.H += h[i]
			left.W += w[i]
			left.Count++
			last[nd] = x
		}
	}
	return best
}

func (rt *RegressionTree) childOK(s nodeStats) bool {
	if s.Count == 0 {
		return false
	}
	if rt.UnitHessian {
		return float64(s.Count) >= rt.MinChildWeight
	}
	return s.H >= rt.MinChildWeight
}

func (rt *RegressionTree) score(s nodeStats) float64 {
	denom := s.H + rt.Lambda
	if rt.UnitHessian {
		denom = s.W + rt.Lambda
	}
	if denom <= 1e-12 {
		return 0
	}
	return s.G * s.G / denom
}

func newtonStep(s nodeStats, lambda float64) float64 {
	denom := s.H + lambda
	if denom <= 1e-12 {
		return 0
	}
	v := -s.G / denom
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (rt *RegressionTree) predict(sample []float64) float64 {
	nd := 0
	for !rt.Nodes[nd].IsLeaf {
		if sample[rt.Nodes[nd].Feature] <= rt.Nodes[nd].Threshold {
			nd = rt.Nodes[nd].Left
		} else {
			nd = rt.Nodes[nd].Right
		}
	}
	return rt.Nodes[nd].Value
}
