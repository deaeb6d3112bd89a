package data

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type ColumnKind string

const (
	KindNumeric ColumnKind = "numeric"
	KindText    ColumnKind = "text"
	KindMixed   ColumnKind = "mixed"
	KindEmpty   ColumnKind = "empty"
)

type ColumnProfile struct {
	Name           string
	Kind           ColumnKind
	Missing        int
	Distinct       int
	NonNumeric     int
	EmptyStrings   int
	WhitespaceOnly int
	Min            decimal.NullDecimal
	Max            decimal.NullDecimal
	Mean           decimal.NullDecimal
	// Values lists sorted distinct values for low-cardinality columns.
	Values []string
}

type DatasetProfile struct {
	Rows    int
	Cols    int
	Columns []ColumnProfile
}

func (p DatasetProfile) TotalMissing() int {
	n := 0
	for _, c := range p.Columns {
		n += c.Missing
	}
	return n
}

// ParseNumber parses a trimmed cell as an exact decimal.
func ParseNumber(value string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Profile summarises every column: inferred kind, missing and distinct counts,
// and how many non-missing cells fail numeric parsing.
func Profile(ds *Dataset, listValuesBelow int) DatasetProfile {
	p := DatasetProfile{Rows: ds.NumRows(), Cols: ds.NumCols()}
	for _, c := range ds.Columns() {
		p.Columns = append(p.Columns, profileColumn(c, listValuesBelow))
	}
	return p
}

func profileColumn(c *Column, listValuesBelow int) ColumnProfile {
	cp := ColumnProfile{Name: c.Name}
	numeric := 0
	sum := decimal.Zero

	for i, v := range c.Values {
		if v == "" {
			cp.EmptyStrings++
		} else if strings.TrimSpace(v) == "" {
			cp.WhitespaceOnly++
		}
		if c.IsMissing(i) {
			cp.Missing++
			continue
		}
		d, ok := ParseNumber(v)
		if !ok {
			cp.NonNumeric++
			continue
		}
		numeric++
		sum = sum.Add(d)
		if !cp.Min.Valid || d.LessThan(cp.Min.Decimal) {
			cp.Min = decimal.NewNullDecimal(d)
		}
		if !cp.Max.Valid || d.GreaterThan(cp.Max.Decimal) {
			cp.Max = decimal.NewNullDecimal(d)
		}
	}
	if numeric > 0 {
		cp.Mean = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(numeric))))
	}

	switch {
	case numeric == 0 && cp.NonNumeric == 0:
		cp.Kind = KindEmpty
	case cp.NonNumeric == 0:
		cp.Kind = KindNumeric
	case numeric == 0:
		cp.Kind = KindText
	default:
		cp.Kind = KindMixed
	}

	distinct := c.Distinct()
	cp.Distinct = len(distinct)
	if cp.Distinct <= listValuesBelow {
		cp.Values = append([]string(nil), distinct...)
		sort.Strings(cp.Values)
	}
	return cp
}
