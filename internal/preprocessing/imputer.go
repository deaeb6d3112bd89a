package preprocessing

import (
	"sort"

	"ermpipeline/internal/data"

	"github.com/shopspring/decimal"
)

// DefaultPlaceholder is the category substituted for missing categorical cells.
const DefaultPlaceholder = "unknown"

// MedianImputer fills missing numeric cells with the per-column training median.
// Medians are computed exactly on decimals.
type MedianImputer struct {
	Medians  []decimal.Decimal
	IsFitted bool
}

func NewMedianImputer() *MedianImputer {
	return &MedianImputer{}
}

// ParseColumn reads a column leniently: missing or unparseable cells are invalid.
func ParseColumn(col *data.Column) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(col.Values))
	for i, v := range col.Values {
		if col.IsMissing(i) {
			continue
		}
		if d, ok := data.ParseNumber(v); ok {
			out[i] = decimal.NewNullDecimal(d)
		}
	}
	return out
}

func (mi *MedianImputer) Fit(columns [][]decimal.NullDecimal) {
	mi.Medians = make([]decimal.Decimal, len(columns))
	for j, col := range columns {
		mi.Medians[j] = median(col)
	}
	mi.IsFitted = true
}

// Transform imputes and returns a row-major float matrix.
func (mi *MedianImputer) Transform(columns [][]decimal.NullDecimal) ([][]float64, error) {
	if !mi.IsFitted {
		return nil, ErrNotFitted
	}
	nRows := 0
	if len(columns) > 0 {
		nRows = len(columns[0])
	}
	out := make([][]float64, nRows)
	for i := range out {
		out[i] = make([]float64, len(columns))
	}
	for j, col := range columns {
		fill := mi.Medians[j].InexactFloat64()
		for i, v := range col {
			if v.Valid {
				out[i][j] = v.Decimal.InexactFloat64()
			} else {
				out[i][j] = fill
			}
		}
	}
	return out, nil
}

// median of the valid values; zero when the column has none.
func median(col []decimal.NullDecimal) decimal.Decimal {
	values := make([]decimal.Decimal, 0, len(col))
	for _, v := range col {
		if v.Valid {
			values = append(values, v.Decimal)
		}
	}
	if len(values) == 0 {
		return decimal.Zero
	}
	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return values[mid-1].Add(values[mid]).Div(decimal.NewFromInt(2))
}

type ConstantImputer struct {
	Fill string
}

func NewConstantImputer(fill string) *ConstantImputer {
	return &ConstantImputer{Fill: fill}
}

func (ci *ConstantImputer) Transform(col *data.Column) []string {
	out := make([]string, len(col.Values))
	for i, v := range col.Values {
		if col.IsMissing(i) {
			out[i] = ci.Fill
		} else {
			out[i] = v
		}
	}
	return out
}
