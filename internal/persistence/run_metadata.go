package persistence

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RunMetadata describes one pipeline run. Fitted models are not stored.
type RunMetadata struct {
	RunID          string           `yaml:"run_id"`
	CreatedAt      time.Time        `yaml:"created_at"`
	Dataset        string           `yaml:"dataset"`
	Seed           int64            `yaml:"seed"`
	Target         TargetMetadata   `yaml:"target"`
	Rows           RowCounts        `yaml:"rows"`
	DroppedColumns []string         `yaml:"dropped_columns,omitempty"`
	Features       FeatureMetadata  `yaml:"features"`
	Families       []FamilyMetadata `yaml:"families"`
	Best           BestMetadata     `yaml:"best"`
	Stages         []StageMetadata  `yaml:"stages,omitempty"`
	Plots          []string         `yaml:"plots,omitempty"`
}

type TargetMetadata struct {
	Column   string   `yaml:"column"`
	Fallback bool     `yaml:"fallback"`
	Classes  []string `yaml:"classes"`
}

type RowCounts struct {
	Loaded               int `yaml:"loaded"`
	DroppedMissingTarget int `yaml:"dropped_missing_target"`
	Train                int `yaml:"train"`
	Val                  int `yaml:"val"`
	Test                 int `yaml:"test"`
}

type FeatureMetadata struct {
	Numerical   []string       `yaml:"numerical"`
	Categorical []string       `yaml:"categorical"`
	Encoded     int            `yaml:"encoded_width"`
	Coerced     map[string]int `yaml:"coerced,omitempty"`
}

type FamilyMetadata struct {
	Family        string         `yaml:"family"`
	Requested     string         `yaml:"requested,omitempty"`
	FellBack      bool           `yaml:"fell_back,omitempty"`
	Params        map[string]any `yaml:"params"`
	Weighting     string         `yaml:"weighting"`
	CVScore       float64        `yaml:"cv_score"`
	TrainAccuracy float64        `yaml:"train_accuracy"`
	ValAccuracy   float64        `yaml:"val_accuracy"`
}

type BestMetadata struct {
	Family           string  `yaml:"family"`
	TrainAccuracy    float64 `yaml:"train_accuracy"`
	ValAccuracy      float64 `yaml:"val_accuracy"`
	TestAccuracy     float64 `yaml:"test_accuracy"`
	BalancedAccuracy float64 `yaml:"balanced_accuracy"`
	Diagnosis        string  `yaml:"diagnosis"`
}

type StageMetadata struct {
	Stage    string `yaml:"stage"`
	Status   string `yaml:"status"`
	Duration string `yaml:"duration"`
}

func NewRunMetadata(dataset string, seed int64) *RunMetadata {
	return &RunMetadata{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Dataset:   dataset,
		Seed:      seed,
	}
}

func (rm *RunMetadata) Save(filename string) error {
	out, err := yaml.Marshal(rm)
	if err != nil {
		return fmt.Errorf("failed to encode run metadata: %w", err)
	}
	if err := os.WriteFile(filename, out, 0o644); err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}
	return nil
}

func LoadRunMetadata(filename string) (*RunMetadata, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	var rm RunMetadata
	if err := yaml.Unmarshal(raw, &rm); err != nil {
		return nil, fmt.Errorf("failed to decode run metadata: %w", err)
	}
	return &rm, nil
}
