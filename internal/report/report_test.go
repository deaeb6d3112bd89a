package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ermpipeline/internal/data"
	"ermpipeline/internal/evaluation"
	"ermpipeline/internal/models"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReporter(quiet bool) (*Reporter, *bytes.Buffer) {
	color.NoColor = true
	var buf bytes.Buffer
	return NewReporter(&buf, quiet), &buf
}

func TestComparisonBars(t *testing.T) {
	r, buf := newTestReporter(false)
	r.Comparison([]ComparisonRow{
		{Name: "random_forest", Accuracy: 0.8612},
		{Name: "logistic_regression", Accuracy: 0.5},
	})
	out := buf.String()
	assert.Contains(t, out, "random_forest         86.12% "+strings.Repeat("█", 43))
	assert.Contains(t, out, "logistic_regression   50.00% "+strings.Repeat("█", 25))
}

func TestTargetCheck(t *testing.T) {
	r, buf := newTestReporter(false)
	r.TargetCheck(0.80, 0.85)
	out := buf.String()
	assert.Contains(t, out, "5.00 points below")
	for _, s := range Suggestions {
		assert.Contains(t, out, s)
	}

	buf.Reset()
	r.TargetCheck(0.9, 0.85)
	assert.Contains(t, buf.String(), "reached")
	assert.NotContains(t, buf.String(), "Suggestions")
}

func TestQuietReporterWritesNothing(t *testing.T) {
	r, buf := newTestReporter(true)
	r.Banner("title")
	r.Success("done")
	r.Metrics(&evaluation.ClassificationMetrics{})
	r.Profile(data.DatasetProfile{})
	assert.Empty(t, buf.String())
	assert.Nil(t, r.Writer())
}

func TestBannerWidth(t *testing.T) {
	r, buf := newTestReporter(false)
	r.Banner("Empirical Risk Minimization (ERM) Machine Learning Pipeline", "Target: ~85% Validation Accuracy")
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	for _, l := range lines {
		assert.Equal(t, width, len([]rune(l)))
	}
}

func TestRankingFormatting(t *testing.T) {
	r, buf := newTestReporter(false)
	r.Ranking("Top coefficients", []string{"Age", "Gender_M"}, []float64{1.25, -0.5}, true)
	assert.Contains(t, buf.String(), " 1. Age                            +1.2500")
	assert.Contains(t, buf.String(), " 2. Gender_M                       -0.5000")

	buf.Reset()
	r.Ranking("Top importances", nil, nil, false)
	assert.Contains(t, buf.String(), "not available")
}

func TestStructureListsKindsAndMissing(t *testing.T) {
	ds, err := data.Read(strings.NewReader("id,Age,Gender\np1,34,M\np2,,F\np3,NA,M\n"), ',')
	require.NoError(t, err)

	r, buf := newTestReporter(false)
	r.Structure(ds)
	out := buf.String()
	assert.Regexp(t, `Age\s+numeric`, out)
	assert.Regexp(t, `Gender\s+text`, out)
	assert.Contains(t, out, "Age: 2 missing")
	assert.NotContains(t, out, "Gender: ")
	assert.NotContains(t, out, "No missing values detected")

	clean, err := data.Read(strings.NewReader("a,b\n1,x\n2,y\n"), ',')
	require.NoError(t, err)
	buf.Reset()
	r.Structure(clean)
	assert.Contains(t, buf.String(), "✓ No missing values detected")

	quiet, qbuf := newTestReporter(true)
	quiet.Structure(ds)
	assert.Empty(t, qbuf.String())
}

func TestMetricsShowsBalancedAccuracy(t *testing.T) {
	m, err := evaluation.CalculateMetrics([]int{0, 0, 0, 1}, []int{0, 0, 0, 0}, []int{0, 1}, []string{"no", "yes"})
	require.NoError(t, err)

	r, buf := newTestReporter(false)
	r.Metrics(m)
	assert.Contains(t, buf.String(), "Balanced accuracy: 0.5000")
}

func TestTrainingOutput(t *testing.T) {
	r, buf := newTestReporter(false)
	r.TrainingStart("random_forest", evaluation.ParamGrid{"max_depth": {10, nil}}, 5, "balanced")
	r.TrainingResult(models.Params{"max_depth": nil}, 0.99, 0.8, 0.81, 0.02)
	out := buf.String()
	assert.Contains(t, out, "Training: random_forest")
	assert.Contains(t, out, "Log loss (cross-entropy)")
	assert.Contains(t, out, "[10, None]")
	assert.Contains(t, out, "Class weighting: balanced")
	assert.Contains(t, out, "max_depth=None")
}

func TestPlots(t *testing.T) {
	dir := t.TempDir()

	cmPath := filepath.Join(dir, "cm.png")
	require.NoError(t, PlotConfusionMatrix(cmPath, [][]int{{5, 1}, {2, 7}}, []string{"no", "yes"}, "Confusion Matrix - random_forest"))
	info, err := os.Stat(cmPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	rankPath := filepath.Join(dir, "rank.png")
	require.NoError(t, PlotFeatureRanking(rankPath, []string{"Age", "BMI"}, []float64{0.7, 0.3}, "Top 15 Feature Importances - random_forest"))
	_, err = os.Stat(rankPath)
	require.NoError(t, err)

	assert.Error(t, PlotConfusionMatrix(cmPath, [][]int{{1}}, []string{"a", "b"}, ""))
	assert.Error(t, PlotFeatureRanking(rankPath, []string{"a"}, nil, ""))
}
