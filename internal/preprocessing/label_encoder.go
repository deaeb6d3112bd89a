package preprocessing

import (
	"fmt"
	"sort"

	"ermpipeline/internal/data"
)

// LabelEncoder maps class labels to 0..k-1 in sorted label order. Labels that
// all parse as numbers are sorted numerically.
type LabelEncoder struct {
	ClassToInt map[string]int
	IntToClass []string
	IsFitted   bool
}

func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{
		ClassToInt: make(map[string]int),
	}
}

func (le *LabelEncoder) Fit(labels []string) {
	uniqueLabels := make(map[string]bool)
	for _, label := range labels {
		uniqueLabels[label] = true
	}

	le.IntToClass = make([]string, 0, len(uniqueLabels))
	for label := range uniqueLabels {
		le.IntToClass = append(le.IntToClass, label)
	}
	sortLabels(le.IntToClass)

	le.ClassToInt = make(map[string]int, len(le.IntToClass))
	for i, label := range le.IntToClass {
		le.ClassToInt[label] = i
	}

	le.IsFitted = true
}

func sortLabels(labels []string) {
	for _, label := range labels {
		if _, ok := data.ParseNumber(label); !ok {
			sort.Strings(labels)
			return
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		a, _ := data.ParseNumber(labels[i])
		b, _ := data.ParseNumber(labels[j])
		if c := a.Cmp(b); c != 0 {
			return c < 0
		}
		return labels[i] < labels[j]
	})
}

func (le *LabelEncoder) Transform(labels []string) ([]int, error) {
	if !le.IsFitted {
		return nil, ErrNotFitted
	}

	result := make([]int, len(labels))
	for i, label := range labels {
		val, ok := le.ClassToInt[label]
		if !ok {
			return nil, fmt.Errorf("unknown label %q at row %d", label, i)
		}
		result[i] = val
	}

	return result, nil
}

func (le *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	le.Fit(labels)
	return le.Transform(labels)
}

func (le *LabelEncoder) InverseTransform(encoded []int) ([]string, error) {
	if !le.IsFitted {
		return nil, ErrNotFitted
	}

	result := make([]string, len(encoded))
	for i, val := range encoded {
		if val < 0 || val >= len(le.IntToClass) {
			return nil, fmt.Errorf("unknown encoding: %d", val)
		}
		result[i] = le.IntToClass[val]
	}

	return result, nil
}

func (le *LabelEncoder) Classes() []string {
	return le.IntToClass
}
