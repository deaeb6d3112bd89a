package experiment

import (
	"fmt"
	"os"

	"ermpipeline/internal/data"
	"ermpipeline/internal/evaluation"
	"ermpipeline/internal/models"

	"gopkg.in/yaml.v3"
)

const DefaultInput = "patient_dataset_5000_realistic.csv"

// RunConfig carries every constant of a run. Stages receive it explicitly.
type RunConfig struct {
	Input             string   `yaml:"input"`
	Target            string   `yaml:"target"`
	IdentifierColumns []string `yaml:"identifier_columns"`
	Seed              int64    `yaml:"seed"`

	Split      SplitConfig      `yaml:"split"`
	Training   TrainingConfig   `yaml:"training"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Output     OutputConfig     `yaml:"output"`
	Log        LogConfig        `yaml:"log"`
}

type SplitConfig struct {
	TestSize float64 `yaml:"test_size"`
	ValSize  float64 `yaml:"val_size"`
}

type TrainingConfig struct {
	CVFolds            int     `yaml:"cv_folds"`
	ImbalanceThreshold float64 `yaml:"imbalance_threshold"`
	Workers            int     `yaml:"workers"`
	PreferredBoosting  string  `yaml:"preferred_boosting"`
	FallbackBoosting   string  `yaml:"fallback_boosting"`
	// Grids holds the search space per family name.
	Grids map[string]evaluation.ParamGrid `yaml:"grids"`
}

type EvaluationConfig struct {
	OverfitGap     float64 `yaml:"overfit_gap"`
	UnderfitFloor  float64 `yaml:"underfit_floor"`
	TargetAccuracy float64 `yaml:"target_accuracy"`
	TopK           int     `yaml:"top_k"`
}

type OutputConfig struct {
	ConfusionMatrixPlot   string `yaml:"confusion_matrix_plot"`
	FeatureImportancePlot string `yaml:"feature_importance_plot"`
	Metadata              string `yaml:"metadata"`
	Quiet                 bool   `yaml:"quiet"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

func DefaultRunConfig() RunConfig {
	grids := make(map[string]evaluation.ParamGrid)
	for _, family := range []models.Family{
		models.FamilyLogistic,
		models.FamilyRandomForest,
		models.FamilyXGBoost,
		models.FamilyGradientBoosting,
	} {
		grids[string(family)] = evaluation.ParamGrid(models.DefaultGrid(family))
	}

	return RunConfig{
		Input:             DefaultInput,
		IdentifierColumns: append([]string(nil), data.DefaultIdentifierColumns...),
		Seed:              42,
		Split: SplitConfig{
			TestSize: 0.15,
			ValSize:  0.15,
		},
		Training: TrainingConfig{
			CVFolds:            5,
			ImbalanceThreshold: 2,
			Workers:            4,
			PreferredBoosting:  string(models.FamilyXGBoost),
			FallbackBoosting:   string(models.FamilyGradientBoosting),
			Grids:              grids,
		},
		Evaluation: EvaluationConfig{
			OverfitGap:     0.10,
			UnderfitFloor:  0.70,
			TargetAccuracy: 0.85,
			TopK:           15,
		},
		Output: OutputConfig{
			ConfusionMatrixPlot:   "confusion_matrix.png",
			FeatureImportancePlot: "feature_importance.png",
			Metadata:              "run_metadata.yaml",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadRunConfig overlays a YAML file on the defaults. Keys absent from the
// file keep their default values; a grid given for a family replaces that
// family's default grid.
func LoadRunConfig(filename string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	raw, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", filename, err)
	}
	return cfg, nil
}

// Families returns the families trained in order: linear, bagging, boosting.
func (c RunConfig) Families() []models.Family {
	return []models.Family{
		models.FamilyLogistic,
		models.FamilyRandomForest,
		models.Family(c.Training.PreferredBoosting),
	}
}

func (c RunConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input path is empty")
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return fmt.Errorf("split.test_size must be in (0, 1), got %v", c.Split.TestSize)
	}
	if c.Split.ValSize <= 0 || c.Split.ValSize >= 1 {
		return fmt.Errorf("split.val_size must be in (0, 1), got %v", c.Split.ValSize)
	}
	if c.Split.TestSize+c.Split.ValSize >= 1 {
		return fmt.Errorf("split sizes sum to %v, leaving no training rows", c.Split.TestSize+c.Split.ValSize)
	}
	if c.Training.CVFolds < 2 {
		return fmt.Errorf("training.cv_folds must be at least 2, got %d", c.Training.CVFolds)
	}
	if c.Training.ImbalanceThreshold < 1 {
		return fmt.Errorf("training.imbalance_threshold must be at least 1, got %v", c.Training.ImbalanceThreshold)
	}
	if c.Evaluation.TopK < 1 {
		return fmt.Errorf("evaluation.top_k must be positive, got %d", c.Evaluation.TopK)
	}

	preferred, err := models.ParseFamily(c.Training.PreferredBoosting)
	if err != nil {
		return fmt.Errorf("training.preferred_boosting: %w", err)
	}
	families := []models.Family{models.FamilyLogistic, models.FamilyRandomForest, preferred}
	if c.Training.FallbackBoosting != "" {
		fallback, err := models.ParseFamily(c.Training.FallbackBoosting)
		if err != nil {
			return fmt.Errorf("training.fallback_boosting: %w", err)
		}
		families = append(families, fallback)
	}
	for _, family := range families {
		grid := c.Training.Grids[string(family)]
		if grid.Size() == 0 || len(grid) == 0 {
			return fmt.Errorf("training.grids.%s is empty", family)
		}
	}
	return nil
}
