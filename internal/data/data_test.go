package data

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const patientsCSV = `Patient_ID,Age,Gender,Symptoms,Risk
P1,34,Male,cough,Low
P2,NA,Female,fever,High
P3,51,Female,,Low
P4,47, ,cough,Medium
P5,abc,Male,fever,
`

func TestReadParsesHeaderAndMissing(t *testing.T) {
	a := assert.New(t)
	ds, err := Read(strings.NewReader(patientsCSV), ',')
	require.NoError(t, err)

	a.Equal(5, ds.NumRows())
	a.Equal([]string{"Patient_ID", "Age", "Gender", "Symptoms", "Risk"}, ds.Names())

	age, ok := ds.Column("Age")
	require.True(t, ok)
	a.True(age.IsMissing(1))
	a.False(age.IsMissing(4))
	a.Equal(1, age.MissingCount())

	gender, _ := ds.Column("Gender")
	a.True(gender.IsMissing(3), "whitespace-only cell is missing")
}

func TestReadStripsByteOrderMark(t *testing.T) {
	ds, err := Read(strings.NewReader("\ufeffAge,Outcome\n30,yes\n"), ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"Age", "Outcome"}, ds.Names())
	_, ok := ds.Column("Age")
	assert.True(t, ok)
}

func TestReadRejectsRaggedRows(t *testing.T) {
	_, err := Read(strings.NewReader("a,b\n1,2\n3\n"), ',')
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestSelectRowsAndDrop(t *testing.T) {
	a := assert.New(t)
	ds, err := Read(strings.NewReader(patientsCSV), ',')
	require.NoError(t, err)

	sub := ds.SelectRows([]int{4, 0})
	a.Equal(2, sub.NumRows())
	a.Equal([]string{"P5", "abc", "Male", "fever", ""}, sub.Row(0))

	dropped := sub.Drop("Patient_ID", "missing")
	a.Equal([]string{"Age", "Gender", "Symptoms", "Risk"}, dropped.Names())
	_, ok := dropped.Column("Patient_ID")
	a.False(ok)
	a.Equal(5, ds.NumCols(), "drop does not mutate the source")
}

func TestProfileKinds(t *testing.T) {
	a := assert.New(t)
	ds, err := Read(strings.NewReader(patientsCSV), ',')
	require.NoError(t, err)

	p := Profile(ds, 15)
	a.Equal(5, p.Rows)
	byName := map[string]ColumnProfile{}
	for _, c := range p.Columns {
		byName[c.Name] = c
	}
	a.Equal(KindMixed, byName["Age"].Kind)
	a.Equal(1, byName["Age"].NonNumeric)
	a.Equal("51", byName["Age"].Max.Decimal.String())
	a.Equal(KindText, byName["Gender"].Kind)
	a.Equal(1, byName["Gender"].WhitespaceOnly)
	a.Equal(1, byName["Symptoms"].EmptyStrings)
	a.Equal([]string{"High", "Low", "Medium"}, byName["Risk"].Values)
	a.Equal(4, p.TotalMissing())
}

func TestIdentifyTargetPicksLastCandidate(t *testing.T) {
	a := assert.New(t)
	ds, err := Read(strings.NewReader(patientsCSV), ',')
	require.NoError(t, err)

	choice := IdentifyTarget(ds, DefaultIdentifierColumns)
	a.Equal("Risk", choice.Column)
	a.False(choice.Fallback)
	names := []string{}
	for _, c := range choice.Candidates {
		names = append(names, c.Column)
	}
	a.Equal([]string{"Age", "Gender", "Symptoms", "Risk"}, names)
}

func TestIdentifyTargetFallsBackToLastColumn(t *testing.T) {
	a := assert.New(t)
	var rows [][]string
	for i := 0; i < 12; i++ {
		rows = append(rows, []string{strconv.Itoa(i), strconv.Itoa(i * 10)})
	}
	ds, err := NewDataset([]string{"id", "score"}, rows)
	require.NoError(t, err)
	ds2, err := NewDataset([]string{"score", "value"}, [][]string{{"1", "1"}, {"1", "1"}})
	require.NoError(t, err)

	choice := IdentifyTarget(ds, DefaultIdentifierColumns)
	a.Equal("score", choice.Column)
	a.True(choice.Fallback)

	choice = IdentifyTarget(ds2, nil)
	a.Equal("value", choice.Column)
	a.True(choice.Fallback)
}

func TestValidator(t *testing.T) {
	a := assert.New(t)
	v := NewDataValidator()
	a.Error(v.ValidateLabels([]string{"a", "a"}))
	a.NoError(v.ValidateLabels([]string{"a", "b"}))
	a.Error(v.ValidateFeatureMatrix([][]float64{{1, 2}, {3}}, []int{0, 1}))
	a.NoError(v.ValidateFeatureMatrix([][]float64{{1, 2}, {3, 4}}, []int{0, 1}))
}
