package experiment

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ermpipeline/internal/evaluation"
	"ermpipeline/internal/log"
	"ermpipeline/internal/models"
	"ermpipeline/internal/persistence"
	"ermpipeline/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = log.InitLogger("/dev/null", "error")
}

// writePatients writes n rows where Glucose separates the two outcomes.
func writePatients(t *testing.T, dir string, n, positives int) string {
	r := rand.New(rand.NewSource(11))
	var b strings.Builder
	b.WriteString("Patient_ID,Age,BMI,BloodPressure,Glucose,Cholesterol,Gender,Smoking,Region,Outcome\n")
	for i := 0; i < n; i++ {
		outcome, glucose := "No", 100.0
		if i < positives {
			outcome, glucose = "Yes", 140.0
		}
		age := fmt.Sprint(20 + r.Intn(60))
		if i%97 == 0 {
			age = ""
		}
		fmt.Fprintf(&b, "P%05d,%s,%.1f,%d,%.1f,%d,%s,%s,%s,%s\n",
			i, age,
			22+r.NormFloat64()*4,
			110+r.Intn(40),
			glucose+r.NormFloat64()*10,
			150+r.Intn(100),
			[]string{"M", "F"}[r.Intn(2)],
			[]string{"never", "former", "current"}[r.Intn(3)],
			[]string{"north", "south", "east", "west"}[r.Intn(4)],
			outcome,
		)
	}
	path := filepath.Join(dir, "patients.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func smallConfig(dir, input string) RunConfig {
	cfg := DefaultRunConfig()
	cfg.Input = input
	cfg.Training.CVFolds = 3
	cfg.Training.Grids = map[string]evaluation.ParamGrid{
		string(models.FamilyLogistic):         {"C": {0.1, 1.0}, "solver": {"lbfgs"}, "max_iter": {200}},
		string(models.FamilyRandomForest):     {"n_estimators": {10}, "max_depth": {5}},
		string(models.FamilyXGBoost):          {"n_estimators": {10}, "max_depth": {3}, "learning_rate": {0.3}},
		string(models.FamilyGradientBoosting): {"n_estimators": {10}, "max_depth": {3}, "learning_rate": {0.3}},
	}
	cfg.Output.ConfusionMatrixPlot = filepath.Join(dir, "cm.png")
	cfg.Output.FeatureImportancePlot = filepath.Join(dir, "features.png")
	cfg.Output.Metadata = filepath.Join(dir, "run.yaml")
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()
	cfg := smallConfig(dir, writePatients(t, dir, 1000, 400))

	var out bytes.Buffer
	runner := NewRunner(cfg, report.NewReporter(&out, false))
	res, err := runner.Run()
	require.NoError(t, err)

	a.Equal("Outcome", res.Target.Column)
	a.Equal(700, len(res.Split.YTrain))
	a.Equal(150, len(res.Split.YVal))
	a.Equal(150, len(res.Split.YTest))
	a.Equal([]string{"Patient_ID"}, res.Split.DroppedColumns)
	a.Equal([]string{"Age", "BMI", "BloodPressure", "Glucose", "Cholesterol"}, res.Features.Numerical)
	a.Equal([]string{"Gender", "Smoking", "Region"}, res.Features.Categorical)
	a.Equal([]string{"No", "Yes"}, res.Labels.Classes())

	require.Len(t, res.Candidates, 3)
	a.Equal(models.FamilyLogistic, res.Candidates[0].Family)
	a.Equal(models.FamilyRandomForest, res.Candidates[1].Family)
	a.Equal(models.FamilyXGBoost, res.Candidates[2].Family)
	for _, c := range res.Candidates {
		a.Equal(WeightingNone, c.Weighting, "600/400 is below the imbalance threshold")
		a.Greater(c.ValAccuracy, 0.85)
	}
	a.Equal(SelectBest(res.Candidates)[0], res.Best)

	require.NotNil(t, res.Evaluation)
	a.Greater(res.Evaluation.TestAccuracy, 0.85)
	a.NotEmpty(res.Evaluation.Ranking)
	a.Equal(150, res.Evaluation.Metrics.NumSamples)

	for _, path := range []string{cfg.Output.ConfusionMatrixPlot, cfg.Output.FeatureImportancePlot} {
		_, err := os.Stat(path)
		a.NoError(err, path)
	}

	meta, err := persistence.LoadRunMetadata(cfg.Output.Metadata)
	require.NoError(t, err)
	a.Equal(res.Metadata.RunID, meta.RunID)
	a.Equal(1000, meta.Rows.Loaded)
	a.Equal(700, meta.Rows.Train)
	a.Len(meta.Families, 3)
	a.Equal(string(res.Best.Family), meta.Best.Family)
	a.InDelta(res.Evaluation.Metrics.BalancedAccuracy, meta.Best.BalancedAccuracy, 1e-9)
	a.Greater(meta.Best.BalancedAccuracy, 0.85)
	a.NotEmpty(meta.Stages)

	text := out.String()
	a.Contains(text, "Empirical Risk Minimization (ERM) Machine Learning Pipeline")
	a.Regexp(`Glucose\s+numeric`, text)
	a.Regexp(`Region\s+text`, text)
	a.Contains(text, "Age: 11 missing")
	a.NotContains(text, "No missing values detected")
	a.Contains(text, "Sample data (first 3 rows)")
	a.Contains(text, "P00002")
	a.NotContains(text, "P00003")
	a.Contains(text, "Balanced accuracy: ")
	a.Contains(text, "MODEL COMPARISON")
	a.Contains(text, "macro avg")
	a.Contains(text, "FINAL SUMMARY")

	for _, job := range runner.Jobs.ListJobs() {
		a.Equal("completed", string(job.GetStatus()), job.ID)
	}
}

func TestRunFailsOnMissingTargetColumn(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir, writePatients(t, dir, 100, 40))
	cfg.Target = "Diagnosis"
	cfg.Output.Quiet = true

	runner := NewRunner(cfg, nil)
	res, err := runner.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Diagnosis")
	require.NotNil(t, res)
	assert.Equal(t, 100, res.Metadata.Rows.Loaded)

	jobs := runner.Jobs.ListJobs()
	assert.Equal(t, "failed", string(jobs[len(jobs)-1].GetStatus()))
}

func TestRunFallsBackWhenPreferredBoostingMissing(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir, writePatients(t, dir, 300, 100))
	cfg.Output.Quiet = true
	cfg.Output.Metadata = ""

	registry := models.NewRegistry()
	for _, family := range []models.Family{models.FamilyLogistic, models.FamilyRandomForest, models.FamilyGradientBoosting} {
		family := family
		registry.Register(family, func(p models.Params, seed int64) (models.Model, error) {
			return models.DefaultRegistry.New(family, p, seed)
		})
	}
	runner := NewRunner(cfg, nil)
	runner.Registry = registry

	res, err := runner.Run()
	require.NoError(t, err)
	boost := res.Candidates[2]
	assert.Equal(t, models.FamilyGradientBoosting, boost.Family)
	assert.Equal(t, models.FamilyXGBoost, boost.Requested)
	assert.True(t, boost.FellBack)
	assert.Equal(t, WeightingNone, boost.Weighting)
}

func TestImbalanceAndWeights(t *testing.T) {
	a := assert.New(t)
	y := []int{0, 0, 0, 0, 0, 0, 1, 1}
	a.InDelta(3.0, ImbalanceRatio(y), 1e-12)

	w := BalancedWeights(y)
	a.InDelta(8.0/12, w[0], 1e-12)
	a.InDelta(2.0, w[7], 1e-12)
	total := 0.0
	for _, v := range w {
		total += v
	}
	a.InDelta(8.0, total, 1e-9)
}

func TestWeightingAtRatioFour(t *testing.T) {
	a := assert.New(t)
	y := make([]int, 1000)
	for i := 800; i < len(y); i++ {
		y[i] = 1
	}
	a.InDelta(4.0, ImbalanceRatio(y), 1e-12)

	trainer := NewTrainer(DefaultRunConfig(), nil)
	kind, _, fn := trainer.weightingFor(models.FamilyLogistic, y)
	a.Equal(WeightingBalanced, kind)
	require.NotNil(t, fn)
	w := fn(y)
	a.InDelta(1000.0/1600, w[0], 1e-12)
	a.InDelta(1000.0/400, w[999], 1e-12)

	kind, scale, _ := trainer.weightingFor(models.FamilyXGBoost, y)
	a.Equal(WeightingScalePos, kind)
	a.InDelta(4.0, scale, 1e-12)
}

func TestWeightingPerFamily(t *testing.T) {
	a := assert.New(t)
	trainer := NewTrainer(DefaultRunConfig(), nil)
	y := []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1}

	kind, _, fn := trainer.weightingFor(models.FamilyLogistic, y)
	a.Equal(WeightingBalanced, kind)
	a.NotNil(fn)

	kind, scale, fn := trainer.weightingFor(models.FamilyXGBoost, y)
	a.Equal(WeightingScalePos, kind)
	a.InDelta(3.0, scale, 1e-12)
	a.Equal([]float64{1, 3, 1}, fn([]int{0, 1, 0}))

	kind, _, fn = trainer.weightingFor(models.FamilyGradientBoosting, y)
	a.Equal(WeightingNone, kind)
	a.Nil(fn)

	kind, _, _ = trainer.weightingFor(models.FamilyXGBoost, []int{0, 0, 0, 0, 0, 0, 0, 1, 2})
	a.Equal(WeightingNone, kind, "multiclass boosting is unweighted")

	kind, _, _ = trainer.weightingFor(models.FamilyRandomForest, []int{0, 0, 1})
	a.Equal(WeightingNone, kind, "ratio of exactly 2 is not imbalanced")
}

func TestSelectBestKeepsOrderOnTies(t *testing.T) {
	first := &ModelCandidate{Family: models.FamilyLogistic, ValAccuracy: 0.8}
	second := &ModelCandidate{Family: models.FamilyRandomForest, ValAccuracy: 0.85}
	third := &ModelCandidate{Family: models.FamilyXGBoost, ValAccuracy: 0.8}

	ranked := SelectBest([]*ModelCandidate{first, second, third})
	assert.Equal(t, []*ModelCandidate{second, first, third}, ranked)
}

func TestDiagnose(t *testing.T) {
	assert.Equal(t, DiagnosisOverfitting, Diagnose(1.0, 0.85, 0.1, 0.7))
	assert.Equal(t, DiagnosisUnderfitting, Diagnose(0.65, 0.62, 0.1, 0.7))
	assert.Equal(t, DiagnosisGeneralization, Diagnose(0.9, 0.85, 0.1, 0.7))
	assert.Equal(t, DiagnosisOverfitting, Diagnose(0.6, 0.4, 0.1, 0.7), "overfitting is checked first")
}

func TestRankFeatures(t *testing.T) {
	a := assert.New(t)
	names := []string{"a", "b", "c"}

	ranked, err := RankFeatures(models.Inspection{
		Capability:  models.CapabilityImportance,
		Importances: []float64{0.2, 0.5, 0.3},
	}, names, []string{"A", "B", "C"}, 2)
	require.NoError(t, err)
	a.Equal([]FeatureScore{{Name: "b", Source: "B", Score: 0.5}, {Name: "c", Source: "C", Score: 0.3}}, ranked)

	ranked, err = RankFeatures(models.Inspection{
		Capability:   models.CapabilityCoefficients,
		Coefficients: [][]float64{{0.1, -0.9, 0.4}},
	}, names, nil, 10)
	require.NoError(t, err)
	a.Equal("b", ranked[0].Name)
	a.InDelta(-0.9, ranked[0].Score, 1e-12)

	ranked, err = RankFeatures(models.Inspection{
		Capability:   models.CapabilityCoefficients,
		Coefficients: [][]float64{{1, -2, 0}, {-1, 0, 0.5}},
	}, names, nil, 10)
	require.NoError(t, err)
	a.Equal([]string{"a", "b", "c"}, []string{ranked[0].Name, ranked[1].Name, ranked[2].Name})
	a.InDelta(1.0, ranked[0].Score, 1e-12)
	a.InDelta(0.25, ranked[2].Score, 1e-12)

	_, err = RankFeatures(models.Inspection{Capability: models.CapabilityImportance, Importances: []float64{1}}, names, nil, 3)
	a.Error(err)

	ranked, err = RankFeatures(models.Inspection{}, names, nil, 3)
	a.NoError(err)
	a.Empty(ranked)
}

func TestLoadRunConfigOverlay(t *testing.T) {
	a := assert.New(t)
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input: data.csv
seed: 7
split:
  test_size: 0.2
training:
  preferred_boosting: gradient_boosting
  grids:
    random_forest:
      n_estimators: [50]
      max_depth: [null, 4]
`), 0o644))

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	a.Equal("data.csv", cfg.Input)
	a.Equal(int64(7), cfg.Seed)
	a.Equal(0.2, cfg.Split.TestSize)
	a.Equal(0.15, cfg.Split.ValSize)
	a.Equal(5, cfg.Training.CVFolds)
	a.Equal([]any{nil, 4}, cfg.Training.Grids["random_forest"]["max_depth"])
	a.NotEmpty(cfg.Training.Grids["logistic_regression"])
	a.Equal(models.FamilyGradientBoosting, cfg.Families()[2])
	a.NoError(cfg.Validate())

	_, err = LoadRunConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	a.Error(err)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	for name, mutate := range map[string]func(*RunConfig){
		"sizes":     func(c *RunConfig) { c.Split.TestSize, c.Split.ValSize = 0.5, 0.5 },
		"folds":     func(c *RunConfig) { c.Training.CVFolds = 1 },
		"family":    func(c *RunConfig) { c.Training.PreferredBoosting = "catboost" },
		"grid":      func(c *RunConfig) { c.Training.Grids["logistic_regression"] = evaluation.ParamGrid{} },
		"top_k":     func(c *RunConfig) { c.Evaluation.TopK = 0 },
		"threshold": func(c *RunConfig) { c.Training.ImbalanceThreshold = 0.5 },
	} {
		cfg := DefaultRunConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, DefaultRunConfig().Validate())
}

func TestDefaultLogGoesToStderr(t *testing.T) {
	cfg := DefaultRunConfig()
	assert.Empty(t, cfg.Log.File)
	assert.Equal(t, "info", cfg.Log.Level)
}
