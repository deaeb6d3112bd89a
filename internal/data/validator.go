package data

import (
	"fmt"
)

type DataValidator struct {
	MinClasses int
}

func NewDataValidator() *DataValidator {
	return &DataValidator{MinClasses: 2}
}

func (dv *DataValidator) ValidateDataset(ds *Dataset) error {
	if ds == nil || ds.NumRows() == 0 {
		return ErrEmptyDataset
	}
	if ds.NumCols() == 0 {
		return fmt.Errorf("dataset has no columns")
	}
	return nil
}

// ValidateLabels checks that the labels carry at least MinClasses distinct values.
func (dv *DataValidator) ValidateLabels(y []string) error {
	if len(y) == 0 {
		return fmt.Errorf("labels are empty")
	}

	classCount := make(map[string]int)
	for _, label := range y {
		classCount[label]++
	}

	if len(classCount) < dv.MinClasses {
		return fmt.Errorf("dataset must have at least %d classes, found %d", dv.MinClasses, len(classCount))
	}

	return nil
}

func (dv *DataValidator) ValidateFeatureMatrix(X [][]float64, y []int) error {
	if len(X) == 0 {
		return ErrEmptyDataset
	}
	if len(X) != len(y) {
		return fmt.Errorf("feature matrix and labels have different lengths: %d vs %d", len(X), len(y))
	}

	nFeatures := len(X[0])
	if nFeatures == 0 {
		return fmt.Errorf("features cannot be empty")
	}
	for i, sample := range X {
		if len(sample) != nFeatures {
			return fmt.Errorf("inconsistent feature count at sample %d: expected %d, got %d", i, nFeatures, len(sample))
		}
	}
	return nil
}
