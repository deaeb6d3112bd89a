package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"ermpipeline/internal/experiment"
	"ermpipeline/internal/log"
	"ermpipeline/internal/report"

	"github.com/alexflint/go-arg"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

type args struct {
	Input    string  `arg:"-i,--input,env:ERM_INPUT" help:"CSV dataset (default patient_dataset_5000_realistic.csv)"`
	Config   string  `arg:"-c,--config,env:ERM_CONFIG" help:"YAML run configuration"`
	Target   string  `arg:"-t,--target,env:ERM_TARGET" help:"target column, overrides detection"`
	Seed     *int64  `arg:"--seed,env:ERM_SEED" help:"random seed for splits, folds and models"`
	Workers  int     `arg:"-w,--workers,env:ERM_WORKERS" help:"parallel cross-validation fits"`
	Folds    int     `arg:"--folds,env:ERM_CV_FOLDS" help:"cross-validation folds"`
	Accuracy float64 `arg:"--target-accuracy,env:ERM_TARGET_ACCURACY" help:"validation accuracy goal"`
	Metadata string  `arg:"--metadata,env:ERM_METADATA" help:"run metadata output path"`
	LogFile  string  `arg:"--log-file,env:ERM_LOG_FILE" help:"rotating log file, stderr when unset, /dev/null to discard"`
	LogLevel string  `arg:"--log-level,env:ERM_LOG_LEVEL" help:"debug, info, warn or error"`
	Quiet    bool    `arg:"-q,--quiet" help:"suppress the console report"`
}

func (args) Description() string {
	return "Train logistic regression, random forest and gradient boosting classifiers on a CSV\n" +
		"dataset by empirical risk minimization and report the best model."
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "%s .env: %v\n", color.YellowString("⚠"), err)
	}

	var a args
	arg.MustParse(&a)

	cfg, err := buildConfig(a)
	if err != nil {
		fail(err)
	}
	if err := log.InitLogger(cfg.Log.File, cfg.Log.Level); err != nil {
		fail(err)
	}

	runner := experiment.NewRunner(cfg, report.NewReporter(os.Stdout, cfg.Output.Quiet))
	if _, err := runner.Run(); err != nil {
		fmt.Fprint(os.Stderr, runner.StageSummary())
		fail(err)
	}
}

func buildConfig(a args) (experiment.RunConfig, error) {
	cfg := experiment.DefaultRunConfig()
	if a.Config != "" {
		var err error
		if cfg, err = experiment.LoadRunConfig(a.Config); err != nil {
			return cfg, err
		}
	}

	if a.Input != "" {
		cfg.Input = a.Input
	}
	if a.Target != "" {
		cfg.Target = a.Target
	}
	if a.Seed != nil {
		cfg.Seed = *a.Seed
	}
	if a.Workers > 0 {
		cfg.Training.Workers = a.Workers
	}
	if a.Folds > 0 {
		cfg.Training.CVFolds = a.Folds
	}
	if a.Accuracy > 0 {
		cfg.Evaluation.TargetAccuracy = a.Accuracy
	}
	if a.Metadata != "" {
		cfg.Output.Metadata = a.Metadata
	}
	if a.LogFile != "" {
		cfg.Log.File = a.LogFile
	}
	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
	if a.Quiet {
		cfg.Output.Quiet = true
	}
	return cfg, cfg.Validate()
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("✗"), err)
	os.Exit(1)
}
