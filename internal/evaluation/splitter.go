package evaluation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"ermpipeline/internal/data"
)

// IdentifierMarkers mark a column as an identifier when they appear in its
// lower-cased name.
var IdentifierMarkers = []string{"id", "patient"}

// Split is the train/validation/test partition of the feature columns. Row
// slices hold indices into the dataset passed to Split and are aligned with the
// label slices.
type Split struct {
	Train *data.Dataset
	Val   *data.Dataset
	Test  *data.Dataset

	YTrain []string
	YVal   []string
	YTest  []string

	TrainRows []int
	ValRows   []int
	TestRows  []int

	Target         string
	DroppedColumns []string
	DroppedRows    int
	Stratified     bool
}

type TrainValTestSplitter struct {
	TestSize float64
	ValSize  float64
	Seed     int64
}

func NewTrainValTestSplitter(testSize, valSize float64, seed int64) *TrainValTestSplitter {
	return &TrainValTestSplitter{
		TestSize: testSize,
		ValSize:  valSize,
		Seed:     seed,
	}
}

func IsIdentifierColumn(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range IdentifierMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (s *TrainValTestSplitter) Split(ds *data.Dataset, target string) (*Split, error) {
	if s.TestSize <= 0 || s.TestSize >= 1 {
		return nil, fmt.Errorf("test size must be between 0 and 1, got %v", s.TestSize)
	}
	if s.ValSize <= 0 || s.ValSize >= 1 || s.TestSize+s.ValSize >= 1 {
		return nil, fmt.Errorf("validation size must be in (0, 1-test size), got %v", s.ValSize)
	}

	targetCol, ok := ds.Column(target)
	if !ok {
		return nil, fmt.Errorf("target column %q not found", target)
	}

	var dropped []string
	for _, name := range ds.Names() {
		if name != target && IsIdentifierColumn(name) {
			dropped = append(dropped, name)
		}
	}
	features := ds.Drop(append([]string{target}, dropped...)...)

	kept := make([]int, 0, ds.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		if !targetCol.IsMissing(i) {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("target %q: %w", target, data.ErrEmptyDataset)
	}

	labels := make([]string, ds.NumRows())
	distinct := make(map[string]bool)
	for _, i := range kept {
		labels[i] = targetCol.Values[i]
		distinct[labels[i]] = true
	}
	stratify := len(distinct) < len(kept)

	rng := rand.New(rand.NewSource(s.Seed))
	rest, test, err := holdOut(kept, labels, s.TestSize, stratify, rng)
	if err != nil {
		return nil, fmt.Errorf("test split: %w", err)
	}
	train, val, err := holdOut(rest, labels, s.ValSize/(1-s.TestSize), stratify, rng)
	if err != nil {
		return nil, fmt.Errorf("validation split: %w", err)
	}

	pick := func(rows []int) []string {
		out := make([]string, len(rows))
		for k, i := range rows {
			out[k] = labels[i]
		}
		return out
	}

	return &Split{
		Train:          features.SelectRows(train),
		Val:            features.SelectRows(val),
		Test:           features.SelectRows(test),
		YTrain:         pick(train),
		YVal:           pick(val),
		YTest:          pick(test),
		TrainRows:      train,
		ValRows:        val,
		TestRows:       test,
		Target:         target,
		DroppedColumns: dropped,
		DroppedRows:    ds.NumRows() - len(kept),
		Stratified:     stratify,
	}, nil
}

// holdOutCount is ceil(size*n), ignoring float noise such as 0.15*1000.
func holdOutCount(n int, size float64) int {
	return int(math.Ceil(size*float64(n) - 1e-9))
}

// holdOut carves ceil(size*len(rows)) rows out of rows. Both outputs are shuffled.
func holdOut(rows []int, labels []string, size float64, stratify bool, rng *rand.Rand) ([]int, []int, error) {
	n := len(rows)
	nOut := holdOutCount(n, size)
	if nOut < 1 || nOut >= n {
		return nil, nil, fmt.Errorf("%d rows cannot be split with size %.4f", n, size)
	}

	var keep, out []int
	if !stratify {
		shuffled := append([]int(nil), rows...)
		rng.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		return shuffled[nOut:], shuffled[:nOut], nil
	}

	groups, order := groupByLabel(rows, labels)
	counts := make([]int, len(order))
	for k, label := range order {
		counts[k] = len(groups[label])
	}
	alloc := allocate(counts, nOut)

	for k, label := range order {
		members := groups[label]
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		out = append(out, members[:alloc[k]]...)
		keep = append(keep, members[alloc[k]:]...)
	}
	rng.Shuffle(len(keep), func(i, j int) { keep[i], keep[j] = keep[j], keep[i] })
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return keep, out, nil
}

// groupByLabel groups rows per label; order lists labels sorted for determinism.
func groupByLabel(rows []int, labels []string) (map[string][]int, []string) {
	groups := make(map[string][]int)
	for _, i := range rows {
		groups[labels[i]] = append(groups[labels[i]], i)
	}
	order := make([]string, 0, len(groups))
	for label := range groups {
		order = append(order, label)
	}
	sort.Strings(order)
	return groups, order
}

// allocate splits total across classes proportionally to counts using largest
// remainders. Ties go to the larger class, then the earlier one.
func allocate(counts []int, total int) []int {
	n := 0
	for _, c := range counts {
		n += c
	}
	alloc := make([]int, len(counts))
	remainders := make([]float64, len(counts))
	assigned := 0
	for k, c := range counts {
		exact := float64(total) * float64(c) / float64(n)
		alloc[k] = int(math.Floor(exact + 1e-9))
		remainders[k] = exact - float64(alloc[k])
		assigned += alloc[k]
	}

	order := make([]int, len(counts))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if remainders[ka] != remainders[kb] {
			return remainders[ka] > remainders[kb]
		}
		return counts[ka] > counts[kb]
	})
	for _, k := range order {
		if assigned >= total {
			break
		}
		if alloc[k] < counts[k] {
			alloc[k]++
			assigned++
		}
	}
	return alloc
}
