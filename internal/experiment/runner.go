package experiment

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ermpipeline/internal/data"
	"ermpipeline/internal/evaluation"
	"ermpipeline/internal/jobs"
	"ermpipeline/internal/log"
	"ermpipeline/internal/models"
	"ermpipeline/internal/persistence"
	"ermpipeline/internal/preprocessing"
	"ermpipeline/internal/report"
)

// Runner drives one pipeline run from CSV to evaluated model.
type Runner struct {
	Config   RunConfig
	Registry *models.Registry
	Reporter *report.Reporter
	Jobs     *jobs.Manager
}

// RunResult holds everything a run produced. Fields are filled stage by stage,
// so a failed run still returns what completed.
type RunResult struct {
	Metadata    *persistence.RunMetadata
	Dataset     *data.Dataset
	Target      data.TargetChoice
	Split       *evaluation.Split
	Features    preprocessing.FeatureTypes
	Transformer *preprocessing.ColumnTransformer
	Labels      *preprocessing.LabelEncoder
	Candidates  []*ModelCandidate
	Best        *ModelCandidate
	Evaluation  *EvaluationReport
}

func NewRunner(cfg RunConfig, reporter *report.Reporter) *Runner {
	if reporter == nil {
		reporter = report.NewReporter(nil, cfg.Output.Quiet)
	}
	return &Runner{
		Config:   cfg,
		Registry: models.DefaultRegistry,
		Reporter: reporter,
		Jobs:     jobs.NewManager(),
	}
}

type encoded struct {
	XTrain, XVal, XTest [][]float64
	yTrain, yVal, yTest []int
}

func (r *Runner) Run() (*RunResult, error) {
	cfg := r.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	res := &RunResult{Metadata: persistence.NewRunMetadata(cfg.Input, cfg.Seed)}
	logger := log.WithFields(log.Fields{"run_id": res.Metadata.RunID, "input": cfg.Input})
	logger.Info("pipeline started")

	r.Reporter.Banner(
		"Empirical Risk Minimization (ERM) Machine Learning Pipeline",
		fmt.Sprintf("Target: ~%.0f%% Validation Accuracy", cfg.Evaluation.TargetAccuracy*100),
	)

	err := r.run(res)
	r.recordStages(res.Metadata)
	if err != nil {
		logger.WithError(err).Error("pipeline failed")
		return res, err
	}
	logger.WithField("best", string(res.Best.Family)).Info("pipeline finished")
	return res, nil
}

func (r *Runner) run(res *RunResult) error {
	cfg := r.Config
	meta := res.Metadata
	var enc encoded

	err := r.Jobs.Run("load", "read CSV dataset", func(job *jobs.Job) error {
		ds, err := data.Load(cfg.Input)
		if err != nil {
			return err
		}
		if err := data.NewDataValidator().ValidateDataset(ds); err != nil {
			return fmt.Errorf("%s: %w", cfg.Input, err)
		}
		res.Dataset = ds
		meta.Rows.Loaded = ds.NumRows()
		job.AddLog(fmt.Sprintf("%d rows, %d columns", ds.NumRows(), ds.NumCols()))
		r.Reporter.Loaded(cfg.Input, ds)
		r.Reporter.Structure(ds)
		r.Reporter.Sample(ds, 3)
		return nil
	})
	if err != nil {
		return err
	}

	err = r.Jobs.Run("target", "identify target column", func(job *jobs.Job) error {
		choice := data.IdentifyTarget(res.Dataset, cfg.IdentifierColumns)
		override := cfg.Target != ""
		if override {
			if _, ok := res.Dataset.Column(cfg.Target); !ok {
				return fmt.Errorf("target column %q not found", cfg.Target)
			}
			choice.Column = cfg.Target
			choice.Fallback = false
		}
		if choice.Column == "" {
			return fmt.Errorf("no target column found")
		}
		res.Target = choice
		meta.Target.Column = choice.Column
		meta.Target.Fallback = choice.Fallback
		job.SetResult(choice.Column)
		r.Reporter.TargetCandidates(choice, override)
		return nil
	})
	if err != nil {
		return err
	}

	err = r.Jobs.Run("split", "stratified train/validation/test split", func(job *jobs.Job) error {
		splitter := evaluation.NewTrainValTestSplitter(cfg.Split.TestSize, cfg.Split.ValSize, cfg.Seed)
		split, err := splitter.Split(res.Dataset, res.Target.Column)
		if err != nil {
			return err
		}
		if err := data.NewDataValidator().ValidateLabels(split.YTrain); err != nil {
			return fmt.Errorf("training labels: %w", err)
		}
		res.Split = split
		meta.Rows.DroppedMissingTarget = split.DroppedRows
		meta.Rows.Train = len(split.YTrain)
		meta.Rows.Val = len(split.YVal)
		meta.Rows.Test = len(split.YTest)
		meta.DroppedColumns = split.DroppedColumns
		r.Reporter.SplitSummary(split)
		return nil
	})
	if err != nil {
		return err
	}

	err = r.Jobs.Run("preprocess", "type, impute, scale and encode features", func(job *jobs.Job) error {
		split := res.Split
		ft, err := preprocessing.DetectFeatureTypes(split.Train, split.Val, split.Test)
		if err != nil {
			return err
		}
		res.Features = ft

		ct := preprocessing.NewColumnTransformer(ft.Numerical, ft.Categorical, preprocessing.ScaleStandard, "")
		if enc.XTrain, err = ct.FitTransform(split.Train); err != nil {
			return fmt.Errorf("training features: %w", err)
		}
		if enc.XVal, err = ct.Transform(split.Val); err != nil {
			return fmt.Errorf("validation features: %w", err)
		}
		if enc.XTest, err = ct.Transform(split.Test); err != nil {
			return fmt.Errorf("test features: %w", err)
		}
		res.Transformer = ct

		meta.Features = persistence.FeatureMetadata{
			Numerical:   ft.Numerical,
			Categorical: ft.Categorical,
			Encoded:     ct.NumFeatures(),
			Coerced:     ft.Coerced,
		}
		job.AddLog(fmt.Sprintf("%d encoded features", ct.NumFeatures()))
		r.Reporter.FeatureTypes(ft, ct.NumFeatures())
		return nil
	})
	if err != nil {
		return err
	}

	err = r.Jobs.Run("encode_labels", "map class labels to integers", func(job *jobs.Job) error {
		le := preprocessing.NewLabelEncoder()
		var err error
		if enc.yTrain, err = le.FitTransform(res.Split.YTrain); err != nil {
			return err
		}
		if enc.yVal, err = le.Transform(res.Split.YVal); err != nil {
			return fmt.Errorf("validation labels: %w", err)
		}
		if enc.yTest, err = le.Transform(res.Split.YTest); err != nil {
			return fmt.Errorf("test labels: %w", err)
		}
		if err := data.NewDataValidator().ValidateFeatureMatrix(enc.XTrain, enc.yTrain); err != nil {
			return err
		}
		res.Labels = le
		meta.Target.Classes = le.Classes()
		return nil
	})
	if err != nil {
		return err
	}

	trainer := NewTrainer(cfg, r.Registry)
	trainer.Progress = r.Reporter.Writer()
	for _, family := range cfg.Families() {
		family := family
		err = r.Jobs.Run("train_"+string(family), "grid search and refit "+string(family), func(job *jobs.Job) error {
			resolved, fellBack, err := trainer.resolve(family)
			if err != nil {
				return err
			}
			weighting, _, _ := trainer.weightingFor(resolved, enc.yTrain)
			r.Reporter.TrainingStart(string(resolved), cfg.Training.Grids[string(resolved)], cfg.Training.CVFolds, string(weighting))
			if fellBack {
				r.Reporter.FallbackNote(family, resolved)
			}

			candidate, err := trainer.TrainFamily(family, enc.XTrain, enc.yTrain, enc.XVal, enc.yVal)
			if err != nil {
				return err
			}
			res.Candidates = append(res.Candidates, candidate)
			job.SetResult(candidate)
			r.Reporter.TrainingResult(candidate.Params, candidate.TrainAccuracy, candidate.ValAccuracy, candidate.CVScore, candidate.CVStd)

			meta.Families = append(meta.Families, persistence.FamilyMetadata{
				Family:        string(candidate.Family),
				Requested:     string(candidate.Requested),
				FellBack:      candidate.FellBack,
				Params:        map[string]any(candidate.Params.Clone()),
				Weighting:     string(candidate.Weighting),
				CVScore:       candidate.CVScore,
				TrainAccuracy: candidate.TrainAccuracy,
				ValAccuracy:   candidate.ValAccuracy,
			})
			return nil
		})
		if err != nil {
			return err
		}
	}

	err = r.Jobs.Run("compare", "rank models by validation accuracy", func(job *jobs.Job) error {
		ranked := SelectBest(res.Candidates)
		res.Best = ranked[0]
		rows := make([]report.ComparisonRow, len(ranked))
		for i, c := range ranked {
			rows[i] = report.ComparisonRow{Name: c.Model.GetName(), Accuracy: c.ValAccuracy}
		}
		r.Reporter.Comparison(rows)
		r.Reporter.Success("Best model: %s (validation accuracy %.4f)", res.Best.Model.GetName(), res.Best.ValAccuracy)
		r.Reporter.TargetCheck(res.Best.ValAccuracy, cfg.Evaluation.TargetAccuracy)
		return nil
	})
	if err != nil {
		return err
	}

	err = r.Jobs.Run("evaluate", "score the best model on the test set", func(job *jobs.Job) error {
		ct := res.Transformer
		rep, err := Evaluate(cfg.Evaluation, res.Best, enc.XTest, enc.yTest, res.Labels.Classes(), ct.FeatureNames(), ct.SourceColumns())
		if err != nil {
			return err
		}
		res.Evaluation = rep
		meta.Best = persistence.BestMetadata{
			Family:           string(rep.Family),
			TrainAccuracy:    rep.TrainAccuracy,
			ValAccuracy:      rep.ValAccuracy,
			TestAccuracy:     rep.TestAccuracy,
			BalancedAccuracy: rep.Metrics.BalancedAccuracy,
			Diagnosis:        string(rep.Diagnosis),
		}

		r.Reporter.Section("FINAL EVALUATION: " + res.Best.Model.GetName())
		r.Reporter.Diagnosis(rep.TrainAccuracy, rep.TestAccuracy, rep.Gap, string(rep.Diagnosis))
		r.Reporter.Metrics(rep.Metrics)
		names, scores := rankingColumns(rep.Ranking)
		r.Reporter.Ranking(rankingTitle(rep, cfg.Evaluation.TopK), names, scores, signedRanking(rep))
		return nil
	})
	if err != nil {
		return err
	}

	err = r.Jobs.Run("plots", "render confusion matrix and feature ranking", func(job *jobs.Job) error {
		rep := res.Evaluation
		name := res.Best.Model.GetName()
		if path := cfg.Output.ConfusionMatrixPlot; path != "" {
			if err := report.PlotConfusionMatrix(path, rep.Metrics.ConfusionMatrix, rep.Metrics.ClassNames, "Confusion Matrix - "+name); err != nil {
				return err
			}
			meta.Plots = append(meta.Plots, path)
		}
		if path := cfg.Output.FeatureImportancePlot; path != "" && len(rep.Ranking) > 0 {
			names, scores := rankingColumns(rep.Ranking)
			title := fmt.Sprintf("Top %d Feature Importances - %s", cfg.Evaluation.TopK, name)
			if rep.Capability == models.CapabilityCoefficients {
				title = fmt.Sprintf("Top %d Feature Coefficients (absolute) - %s", cfg.Evaluation.TopK, name)
				for i := range scores {
					scores[i] = math.Abs(scores[i])
				}
			}
			if err := report.PlotFeatureRanking(path, names, scores, title); err != nil {
				return err
			}
			meta.Plots = append(meta.Plots, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	artifacts := append([]string(nil), meta.Plots...)
	if cfg.Output.Metadata != "" {
		artifacts = append(artifacts, cfg.Output.Metadata)
	}
	r.Reporter.FinalSummary(report.Summary{
		BestModel:     res.Best.Model.GetName(),
		ValAccuracy:   res.Evaluation.ValAccuracy,
		TestAccuracy:  res.Evaluation.TestAccuracy,
		TargetReached: res.Evaluation.ValAccuracy >= cfg.Evaluation.TargetAccuracy,
		CVFolds:       cfg.Training.CVFolds,
		Artifacts:     artifacts,
	})

	if cfg.Output.Metadata == "" {
		return nil
	}
	return r.Jobs.Run("metadata", "write run metadata", func(job *jobs.Job) error {
		r.recordStages(meta)
		return meta.Save(cfg.Output.Metadata)
	})
}

func (r *Runner) recordStages(meta *persistence.RunMetadata) {
	meta.Stages = meta.Stages[:0]
	for _, job := range r.Jobs.ListJobs() {
		meta.Stages = append(meta.Stages, persistence.StageMetadata{
			Stage:    job.Stage,
			Status:   string(job.GetStatus()),
			Duration: job.Duration().String(),
		})
	}
}

func rankingColumns(ranking []FeatureScore) ([]string, []float64) {
	names := make([]string, len(ranking))
	scores := make([]float64, len(ranking))
	for i, f := range ranking {
		names[i] = f.Name
		scores[i] = f.Score
	}
	return names, scores
}

func signedRanking(rep *EvaluationReport) bool {
	return rep.Capability == models.CapabilityCoefficients && len(rep.Metrics.Classes) == 2
}

func rankingTitle(rep *EvaluationReport, topK int) string {
	switch rep.Capability {
	case models.CapabilityCoefficients:
		if signedRanking(rep) {
			return fmt.Sprintf("Top %d Feature Coefficients", topK)
		}
		return fmt.Sprintf("Top %d Features (mean |coefficient| over classes)", topK)
	default:
		return fmt.Sprintf("Top %d Feature Importances", topK)
	}
}

// StageSummary lists every stage with its status, for the command-line tools.
func (r *Runner) StageSummary() string {
	var b strings.Builder
	for _, job := range r.Jobs.ListJobs() {
		fmt.Fprintf(&b, "%-28s %-10s %s\n", job.ID, job.GetStatus(), job.Duration().Round(time.Millisecond))
	}
	return b.String()
}
