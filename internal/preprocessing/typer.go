package preprocessing

import (
	"ermpipeline/internal/data"
)

type FeatureTypes struct {
	Numerical   []string
	Categorical []string
	// Coerced counts, per numerical column, the validation/test cells that
	// failed lenient parsing and became missing.
	Coerced map[string]int
}

// DetectFeatureTypes marks a column numerical when every non-missing training
// cell parses as a number. The same column in the held-out sets is coerced in
// place: cells that do not parse become missing. Other columns are categorical.
func DetectFeatureTypes(train *data.Dataset, heldOut ...*data.Dataset) (FeatureTypes, error) {
	ft := FeatureTypes{Coerced: make(map[string]int)}

	for _, col := range train.Columns() {
		if !strictNumeric(col) {
			ft.Categorical = append(ft.Categorical, col.Name)
			continue
		}
		ft.Numerical = append(ft.Numerical, col.Name)

		for _, ds := range heldOut {
			other, ok := ds.Column(col.Name)
			if !ok {
				continue
			}
			values, n := coerceNumeric(other)
			if n == 0 {
				continue
			}
			if err := ds.ReplaceColumn(col.Name, values); err != nil {
				return ft, err
			}
			ft.Coerced[col.Name] += n
		}
	}
	return ft, nil
}

func strictNumeric(col *data.Column) bool {
	for i, v := range col.Values {
		if col.IsMissing(i) {
			continue
		}
		if _, ok := data.ParseNumber(v); !ok {
			return false
		}
	}
	return true
}

func coerceNumeric(col *data.Column) ([]string, int) {
	values := make([]string, len(col.Values))
	coerced := 0
	for i, v := range col.Values {
		if !col.IsMissing(i) {
			if _, ok := data.ParseNumber(v); !ok {
				coerced++
				v = ""
			}
		}
		values[i] = v
	}
	return values, coerced
}
