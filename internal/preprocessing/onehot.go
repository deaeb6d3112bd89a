package preprocessing

import (
	"sort"
)

// OneHotEncoder learns one vocabulary per column. The placeholder category is
// always part of the vocabulary; categories unseen at fit time encode to zeros.
type OneHotEncoder struct {
	Placeholder string
	Categories  [][]string
	index       []map[string]int
	IsFitted    bool
}

func NewOneHotEncoder(placeholder string) *OneHotEncoder {
	return &OneHotEncoder{Placeholder: placeholder}
}

// Fit takes imputed columns (no missing cells).
func (e *OneHotEncoder) Fit(columns [][]string) {
	e.Categories = make([][]string, len(columns))
	e.index = make([]map[string]int, len(columns))

	for j, col := range columns {
		seen := map[string]bool{e.Placeholder: true}
		cats := []string{e.Placeholder}
		for _, v := range col {
			if !seen[v] {
				seen[v] = true
				cats = append(cats, v)
			}
		}
		sort.Strings(cats)

		e.Categories[j] = cats
		e.index[j] = make(map[string]int, len(cats))
		for k, c := range cats {
			e.index[j][c] = k
		}
	}
	e.IsFitted = true
}

func (e *OneHotEncoder) Width() int {
	w := 0
	for _, cats := range e.Categories {
		w += len(cats)
	}
	return w
}

// Transform returns a row-major 0/1 matrix of Width() columns.
func (e *OneHotEncoder) Transform(columns [][]string) ([][]float64, error) {
	if !e.IsFitted {
		return nil, ErrNotFitted
	}
	nRows := 0
	if len(columns) > 0 {
		nRows = len(columns[0])
	}
	width := e.Width()
	out := make([][]float64, nRows)
	for i := range out {
		out[i] = make([]float64, width)
	}

	offset := 0
	for j, col := range columns {
		for i, v := range col {
			if k, ok := e.index[j][v]; ok {
				out[i][offset+k] = 1
			}
		}
		offset += len(e.Categories[j])
	}
	return out, nil
}
