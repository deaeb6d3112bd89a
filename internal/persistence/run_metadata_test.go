package persistence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetadataSaveLoad(t *testing.T) {
	a := assert.New(t)
	path := filepath.Join(t.TempDir(), "run_metadata.yaml")

	rm := NewRunMetadata("patients.csv", 42)
	_, err := uuid.Parse(rm.RunID)
	a.NoError(err)

	rm.Target = TargetMetadata{Column: "Risk", Classes: []string{"High", "Low"}}
	rm.Rows = RowCounts{Loaded: 1000, Train: 700, Val: 150, Test: 150}
	rm.Families = []FamilyMetadata{{
		Family:    "gradient_boosting",
		Requested: "xgboost",
		FellBack:  true,
		Params:    map[string]any{"max_depth": 3, "learning_rate": 0.1},
		Weighting: "none",
	}, {
		Family: "random_forest",
		Params: map[string]any{"max_depth": nil},
	}}
	require.NoError(t, rm.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	a.True(strings.Contains(string(raw), "fell_back: true"))
	a.True(strings.Contains(string(raw), "max_depth: null"))

	loaded, err := LoadRunMetadata(path)
	require.NoError(t, err)
	a.Equal(rm.RunID, loaded.RunID)
	a.True(rm.CreatedAt.Equal(loaded.CreatedAt))
	a.Equal(rm.Rows, loaded.Rows)
	a.Equal("Risk", loaded.Target.Column)
	a.Equal(3, loaded.Families[0].Params["max_depth"])
	a.Nil(loaded.Families[1].Params["max_depth"])
}

func TestLoadRunMetadataMissingFile(t *testing.T) {
	_, err := LoadRunMetadata(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
