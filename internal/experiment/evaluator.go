package experiment

import (
	"fmt"
	"math"
	"sort"

	"ermpipeline/internal/evaluation"
	"ermpipeline/internal/models"
)

type Diagnosis string

const (
	DiagnosisOverfitting    Diagnosis = "overfitting"
	DiagnosisUnderfitting   Diagnosis = "underfitting"
	DiagnosisGeneralization Diagnosis = "good generalization"
)

// FeatureScore is one encoded feature with the column it came from.
type FeatureScore struct {
	Name   string
	Source string
	Score  float64
}

type EvaluationReport struct {
	Family        models.Family
	TrainAccuracy float64
	ValAccuracy   float64
	TestAccuracy  float64
	Gap           float64
	Diagnosis     Diagnosis
	Metrics       *evaluation.ClassificationMetrics
	// Capability says how Ranking was computed.
	Capability models.Capability
	Ranking    []FeatureScore
}

// Diagnose compares training and test accuracy.
func Diagnose(train, test, overfitGap, underfitFloor float64) Diagnosis {
	switch {
	case train-test > overfitGap:
		return DiagnosisOverfitting
	case train < underfitFloor:
		return DiagnosisUnderfitting
	default:
		return DiagnosisGeneralization
	}
}

// Evaluate scores the chosen candidate on the held-out test rows.
func Evaluate(cfg EvaluationConfig, best *ModelCandidate, XTest [][]float64, yTest []int, classNames, featureNames, sources []string) (*EvaluationReport, error) {
	if best == nil || best.Model == nil {
		return nil, fmt.Errorf("no model to evaluate")
	}
	if len(XTest) == 0 {
		return nil, fmt.Errorf("test set is empty")
	}

	pred := best.Model.Predict(XTest)
	classes := make([]int, len(classNames))
	for i := range classes {
		classes[i] = i
	}
	metrics, err := evaluation.CalculateMetrics(yTest, pred, classes, classNames)
	if err != nil {
		return nil, fmt.Errorf("test metrics: %w", err)
	}

	report := &EvaluationReport{
		Family:        best.Family,
		TrainAccuracy: best.TrainAccuracy,
		ValAccuracy:   best.ValAccuracy,
		TestAccuracy:  metrics.Accuracy,
		Gap:           best.TrainAccuracy - metrics.Accuracy,
		Metrics:       metrics,
	}
	report.Diagnosis = Diagnose(report.TrainAccuracy, report.TestAccuracy, cfg.OverfitGap, cfg.UnderfitFloor)

	inspection := best.Model.Inspect()
	report.Capability = inspection.Capability
	report.Ranking, err = RankFeatures(inspection, featureNames, sources, cfg.TopK)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// RankFeatures orders encoded features by importance, or by absolute
// coefficient for linear models. Binary coefficients keep their sign;
// multiclass coefficients are averaged in absolute value over classes.
func RankFeatures(inspection models.Inspection, names, sources []string, topK int) ([]FeatureScore, error) {
	var scores []float64
	var key func(float64) float64

	switch inspection.Capability {
	case models.CapabilityImportance:
		scores = inspection.Importances
		key = func(v float64) float64 { return v }
	case models.CapabilityCoefficients:
		rows := inspection.Coefficients
		if len(rows) == 0 {
			return nil, nil
		}
		if len(rows) == 1 {
			scores = rows[0]
		} else {
			scores = make([]float64, len(rows[0]))
			for _, row := range rows {
				for j, v := range row {
					scores[j] += math.Abs(v) / float64(len(rows))
				}
			}
		}
		key = math.Abs
	default:
		return nil, nil
	}

	if len(scores) != len(names) {
		return nil, fmt.Errorf("model reports %d feature scores for %d features", len(scores), len(names))
	}

	ranked := make([]FeatureScore, len(scores))
	for i, s := range scores {
		ranked[i] = FeatureScore{Name: names[i], Score: s}
		if i < len(sources) {
			ranked[i].Source = sources[i]
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return key(ranked[i].Score) > key(ranked[j].Score)
	})
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}
