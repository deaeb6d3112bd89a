package main

import (
	"fmt"
	"os"

	"ermpipeline/internal/data"
	"ermpipeline/internal/experiment"
	"ermpipeline/internal/log"
	"ermpipeline/internal/report"

	"github.com/alexflint/go-arg"
	"github.com/fatih/color"
)

type args struct {
	Input       string `arg:"positional" help:"CSV dataset (default patient_dataset_5000_realistic.csv)"`
	MaxDistinct int    `arg:"--max-distinct" default:"20" help:"list columns with fewer distinct values as possible targets"`
	ListValues  int    `arg:"--list-values" default:"15" help:"print the values of columns with at most this many distinct values"`
	Rows        int    `arg:"-n,--rows" default:"3" help:"sample rows to print"`
}

func (args) Description() string {
	return "Profile a CSV dataset and list columns that could serve as a classification target."
}

func main() {
	var a args
	arg.MustParse(&a)
	if a.Input == "" {
		a.Input = experiment.DefaultInput
	}
	if err := log.InitLogger("/dev/null", "error"); err != nil {
		fail(err)
	}

	ds, err := data.Load(a.Input)
	if err != nil {
		fail(err)
	}
	if err := data.NewDataValidator().ValidateDataset(ds); err != nil {
		fail(fmt.Errorf("%s: %w", a.Input, err))
	}

	r := report.NewReporter(os.Stdout, false)
	r.Banner("COMPLETE DATASET ANALYSIS")
	r.Profile(data.Profile(ds, a.ListValues))
	r.Sample(ds, a.Rows)
	r.Candidates(data.ExploreCandidates(ds, data.DefaultIdentifierColumns, a.MaxDistinct))

	choice := data.IdentifyTarget(ds, data.DefaultIdentifierColumns)
	if choice.Fallback {
		r.Warn("Training would fall back to the last column: %s", choice.Column)
	} else {
		r.Success("Training would use target column: %s", choice.Column)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("✗"), err)
	os.Exit(1)
}
