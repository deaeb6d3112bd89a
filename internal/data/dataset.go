package data

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrEmptyDataset = errors.New("dataset is empty")

// missingMarkers are the cell spellings treated as absent values.
var missingMarkers = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"-NaN": true,
	"null": true,
	"NULL": true,
	"None": true,
	"<NA>": true,
	"#N/A": true,
}

// IsMissing reports whether a raw cell denotes a missing value.
func IsMissing(value string) bool {
	return missingMarkers[strings.TrimSpace(value)]
}

type Column struct {
	Name   string
	Values []string
}

func (c *Column) IsMissing(i int) bool {
	return IsMissing(c.Values[i])
}

func (c *Column) MissingCount() int {
	n := 0
	for i := range c.Values {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Distinct returns the distinct non-missing values in first-seen order.
func (c *Column) Distinct() []string {
	seen := make(map[string]bool)
	var out []string
	for i, v := range c.Values {
		if c.IsMissing(i) {
			continue
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

type ValueCount struct {
	Value string
	Count int
}

// ValueCounts counts non-missing values, most frequent first, ties by value.
func (c *Column) ValueCounts() []ValueCount {
	counts := make(map[string]int)
	for i, v := range c.Values {
		if !c.IsMissing(i) {
			counts[v]++
		}
	}
	out := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Dataset is a column-major table of raw string cells. All columns have the same length.
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

func NewDataset(names []string, rows [][]string) (*Dataset, error) {
	cols := make([]*Column, len(names))
	for j, name := range names {
		cols[j] = &Column{Name: name, Values: make([]string, len(rows))}
	}
	for i, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+1, len(row), len(names))
		}
		for j, v := range row {
			cols[j].Values[i] = v
		}
	}
	return FromColumns(cols...)
}

func FromColumns(cols ...*Column) (*Dataset, error) {
	ds := &Dataset{index: make(map[string]int, len(cols))}
	for j, c := range cols {
		if _, dup := ds.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if j == 0 {
			ds.rows = len(c.Values)
		} else if len(c.Values) != ds.rows {
			return nil, fmt.Errorf("column %q has %d values, expected %d", c.Name, len(c.Values), ds.rows)
		}
		ds.index[c.Name] = j
		ds.columns = append(ds.columns, c)
	}
	return ds, nil
}

func (ds *Dataset) NumRows() int { return ds.rows }

func (ds *Dataset) NumCols() int { return len(ds.columns) }

func (ds *Dataset) Columns() []*Column { return ds.columns }

func (ds *Dataset) Names() []string {
	names := make([]string, len(ds.columns))
	for j, c := range ds.columns {
		names[j] = c.Name
	}
	return names
}

func (ds *Dataset) Column(name string) (*Column, bool) {
	j, ok := ds.index[name]
	if !ok {
		return nil, false
	}
	return ds.columns[j], true
}

func (ds *Dataset) Row(i int) []string {
	row := make([]string, len(ds.columns))
	for j, c := range ds.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Drop returns a dataset without the named columns. Unknown names are ignored.
// Column value slices are shared with the receiver.
func (ds *Dataset) Drop(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := &Dataset{index: make(map[string]int), rows: ds.rows}
	for _, c := range ds.columns {
		if drop[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	return out
}

// SelectRows copies the given rows, in order, into a new dataset.
func (ds *Dataset) SelectRows(indices []int) *Dataset {
	out := &Dataset{index: make(map[string]int, len(ds.columns)), rows: len(indices)}
	for j, c := range ds.columns {
		values := make([]string, len(indices))
		for i, idx := range indices {
			values[i] = c.Values[idx]
		}
		out.index[c.Name] = j
		out.columns = append(out.columns, &Column{Name: c.Name, Values: values})
	}
	return out
}

// ReplaceColumn swaps in new values for an existing column.
func (ds *Dataset) ReplaceColumn(name string, values []string) error {
	j, ok := ds.index[name]
	if !ok {
		return fmt.Errorf("unknown column %q", name)
	}
	if len(values) != ds.rows {
		return fmt.Errorf("column %q: got %d values, expected %d", name, len(values), ds.rows)
	}
	ds.columns[j] = &Column{Name: name, Values: values}
	return nil
}

func (ds *Dataset) Head(n int) [][]string {
	if n > ds.rows {
		n = ds.rows
	}
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		out[i] = ds.Row(i)
	}
	return out
}
