package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"ermpipeline/internal/data"
	"ermpipeline/internal/evaluation"
	"ermpipeline/internal/models"
	"ermpipeline/internal/preprocessing"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

const width = 78

// Suggestions are printed when the best model misses the accuracy target.
var Suggestions = []string{
	"Feature engineering (polynomial features, interactions)",
	"Advanced text processing for 'Symptoms' column",
	"Ensemble methods (stacking, voting)",
	"More hyperparameter tuning iterations",
	"Address class imbalance with SMOTE/ADASYN",
}

// Reporter writes the human-readable run transcript.
type Reporter struct {
	out   io.Writer
	quiet bool

	green  func(a ...interface{}) string
	red    func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	bold   func(a ...interface{}) string
}

func NewReporter(out io.Writer, quiet bool) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		out:    out,
		quiet:  quiet,
		green:  color.New(color.FgGreen).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan).SprintFunc(),
		bold:   color.New(color.Bold).SprintFunc(),
	}
}

// Writer is where progress bars should go, or nil when quiet.
func (r *Reporter) Writer() io.Writer {
	if r.quiet {
		return nil
	}
	return r.out
}

func (r *Reporter) printf(format string, args ...interface{}) {
	if r.quiet {
		return
	}
	fmt.Fprintf(r.out, format, args...)
}

func (r *Reporter) Banner(lines ...string) {
	rule := strings.Repeat("═", width-2)
	r.printf("%s\n", r.cyan("╔"+rule+"╗"))
	for _, line := range lines {
		pad := width - 2 - len([]rune(line))
		if pad < 0 {
			pad = 0
		}
		left := pad / 2
		r.printf("%s%s%s\n", r.cyan("║"), strings.Repeat(" ", left)+line+strings.Repeat(" ", pad-left), r.cyan("║"))
	}
	r.printf("%s\n", r.cyan("╚"+rule+"╝"))
}

func (r *Reporter) Section(title string) {
	r.printf("\n%s\n%s\n%s\n", strings.Repeat("=", width), r.bold(title), strings.Repeat("=", width))
}

func (r *Reporter) Success(format string, args ...interface{}) {
	r.printf("%s %s\n", r.green("✓"), fmt.Sprintf(format, args...))
}

func (r *Reporter) Warn(format string, args ...interface{}) {
	r.printf("%s %s\n", r.yellow("⚠"), fmt.Sprintf(format, args...))
}

func (r *Reporter) Fail(format string, args ...interface{}) {
	r.printf("%s %s\n", r.red("✗"), fmt.Sprintf(format, args...))
}

func (r *Reporter) Line(format string, args ...interface{}) {
	r.printf(format+"\n", args...)
}

func (r *Reporter) Loaded(path string, ds *data.Dataset) {
	r.Success("Loaded %s: %d rows x %d columns", path, ds.NumRows(), ds.NumCols())
}

// Structure lists every column with its kind, then the columns holding
// missing values.
func (r *Reporter) Structure(ds *data.Dataset) {
	if r.quiet {
		return
	}
	r.Line("\nColumns:")
	for _, c := range data.Profile(ds, 0).Columns {
		r.Line("  %-30s %s", c.Name, c.Kind)
	}

	r.Line("\nMissing values:")
	found := false
	for _, c := range ds.Columns() {
		if n := c.MissingCount(); n > 0 {
			r.Line("  %s: %d missing", c.Name, n)
			found = true
		}
	}
	if !found {
		r.Success("No missing values detected")
	}
}

func (r *Reporter) TargetCandidates(choice data.TargetChoice, override bool) {
	r.Section("TARGET IDENTIFICATION")
	for _, c := range choice.Candidates {
		parts := make([]string, len(c.Distribution))
		for i, vc := range c.Distribution {
			parts[i] = fmt.Sprintf("%s: %d", vc.Value, vc.Count)
		}
		r.Line("  %-30s %d classes  {%s}", c.Column, c.Distinct, strings.Join(parts, ", "))
	}
	switch {
	case override:
		r.Success("Target column (configured): %s", choice.Column)
	case choice.Fallback:
		r.Warn("No column with 2-10 classes, using last column: %s", choice.Column)
	default:
		r.Success("Target column: %s", choice.Column)
	}
}

func (r *Reporter) SplitSummary(s *evaluation.Split) {
	r.Section("DATA SPLITTING")
	if len(s.DroppedColumns) > 0 {
		r.Line("Dropped identifier columns: %s", strings.Join(s.DroppedColumns, ", "))
	}
	if s.DroppedRows > 0 {
		r.Warn("Dropped %d rows with a missing target", s.DroppedRows)
	}
	total := float64(len(s.YTrain) + len(s.YVal) + len(s.YTest))
	for _, set := range []struct {
		name string
		y    []string
	}{{"Training", s.YTrain}, {"Validation", s.YVal}, {"Test", s.YTest}} {
		r.Line("%-11s set: %5d samples (%.1f%%)", set.name, len(set.y), 100*float64(len(set.y))/total)
	}
	if !s.Stratified {
		r.Warn("Target has one row per value, split is not stratified")
	}

	r.Line("\nClass distribution:")
	for _, set := range []struct {
		name string
		y    []string
	}{{"Train", s.YTrain}, {"Val", s.YVal}, {"Test", s.YTest}} {
		r.Line("  %-5s %s", set.name, proportions(set.y))
	}
}

func proportions(labels []string) string {
	counts := make(map[string]int)
	var order []string
	for _, l := range labels {
		if counts[l] == 0 {
			order = append(order, l)
		}
		counts[l]++
	}
	sort.Strings(order)
	parts := make([]string, len(order))
	for i, l := range order {
		parts[i] = fmt.Sprintf("%s: %.3f", l, float64(counts[l])/float64(len(labels)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (r *Reporter) FeatureTypes(ft preprocessing.FeatureTypes, encoded int) {
	r.Section("FEATURE TYPES")
	r.Line("Numerical features (%d): %s", len(ft.Numerical), strings.Join(ft.Numerical, ", "))
	r.Line("Categorical features (%d): %s", len(ft.Categorical), strings.Join(ft.Categorical, ", "))
	for _, name := range ft.Numerical {
		if n := ft.Coerced[name]; n > 0 {
			r.Warn("%s: %d held-out values were not numeric and are treated as missing", name, n)
		}
	}
	r.Success("Preprocessed feature count: %d", encoded)
}

func (r *Reporter) TrainingStart(name string, grid evaluation.ParamGrid, folds int, weighting string) {
	r.Section("Training: " + name)
	r.Line("ERM Principle: Minimizing empirical risk on training data")
	r.Line("Loss function: Log loss (cross-entropy)")
	r.Line("Search space: %d combinations x %d folds", grid.Size(), folds)
	for _, key := range sortedKeys(grid) {
		r.Line("  %-18s %v", key, formatValues(grid[key]))
	}
	if weighting != "" && weighting != "none" {
		r.Line("Class weighting: %s", weighting)
	}
}

func (r *Reporter) FallbackNote(requested, used models.Family) {
	r.Warn("Note: %s not available, using %s instead", requested, used)
}

func (r *Reporter) TrainingResult(params models.Params, train, val, cv, cvStd float64) {
	r.Success("Best parameters: %s", params.String())
	r.Line("  Training accuracy:   %.4f", train)
	r.Line("  Validation accuracy: %.4f", val)
	r.Line("  Best CV score:       %.4f (+/- %.4f)", cv, cvStd)
}

type ComparisonRow struct {
	Name     string
	Accuracy float64
}

// Comparison prints one bar per model, one block per two percentage points.
func (r *Reporter) Comparison(rows []ComparisonRow) {
	r.Section("MODEL COMPARISON (validation accuracy)")
	for _, row := range rows {
		pct := row.Accuracy * 100
		r.Line("%-20s %6.2f%% %s", row.Name, pct, strings.Repeat("█", int(pct/2)))
	}
}

func (r *Reporter) TargetCheck(best, target float64) {
	if best >= target {
		r.Success("Target accuracy of %.0f%% reached (%.2f%%)", target*100, best*100)
		return
	}
	r.Warn("Best validation accuracy %.2f%% is %.2f points below the %.0f%% target", best*100, (target-best)*100, target*100)
	r.Line("Suggestions for improvement:")
	for i, s := range Suggestions {
		r.Line("  %d. %s", i+1, s)
	}
}

func (r *Reporter) Diagnosis(train, test, gap float64, diagnosis string) {
	r.Line("Training accuracy: %.4f", train)
	r.Line("Test accuracy:     %.4f", test)
	r.Line("Train-test gap:    %.2f%%", gap*100)
	switch diagnosis {
	case "good generalization":
		r.Success("Model shows good generalization")
	default:
		r.Warn("Model shows signs of %s", diagnosis)
	}
}

func (r *Reporter) Metrics(m *evaluation.ClassificationMetrics) {
	if r.quiet {
		return
	}
	r.Line("\nClassification report:")
	m.WriteReport(r.out)
	r.Line("Balanced accuracy: %.4f", m.BalancedAccuracy)

	r.Line("\nConfusion matrix (rows: true, columns: predicted):")
	table := tablewriter.NewWriter(r.out)
	table.SetHeader(append([]string{""}, m.ClassNames...))
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, row := range m.ConfusionMatrix {
		cells := []string{m.ClassNames[i]}
		for _, v := range row {
			cells = append(cells, strconv.Itoa(v))
		}
		table.Append(cells)
	}
	table.Render()
}

// Ranking prints importances, or signed coefficients when signed is set.
func (r *Reporter) Ranking(title string, names []string, scores []float64, signed bool) {
	if len(names) == 0 {
		r.Line("Feature ranking not available for this model")
		return
	}
	r.Line("\n%s:", title)
	for i, name := range names {
		if signed {
			r.Line("%2d. %-30s %+.4f", i+1, name, scores[i])
		} else {
			r.Line("%2d. %-30s %.4f", i+1, name, scores[i])
		}
	}
}

type Summary struct {
	BestModel     string
	ValAccuracy   float64
	TestAccuracy  float64
	TargetReached bool
	CVFolds       int
	Artifacts     []string
}

func (r *Reporter) FinalSummary(s Summary) {
	r.Section("FINAL SUMMARY")
	r.Line("Best model:          %s", s.BestModel)
	r.Line("Validation accuracy: %.2f%%", s.ValAccuracy*100)
	r.Line("Test accuracy:       %.2f%%", s.TestAccuracy*100)
	if s.TargetReached {
		r.Success("Target accuracy reached")
	} else {
		r.Warn("Target accuracy not reached")
	}
	r.Line("\nERM approach:")
	r.Line("  - Loss function: Cross-entropy (log loss)")
	r.Line("  - Objective: minimize empirical risk on training data")
	r.Line("  - Regularization: L1/L2 penalties and tree constraints")
	r.Line("  - Model selection: %d-fold stratified cross-validation", s.CVFolds)
	if len(s.Artifacts) > 0 {
		r.Line("\nSaved:")
		for _, a := range s.Artifacts {
			r.Line("  %s", a)
		}
	}
}

// Profile prints a per-column overview of a dataset.
func (r *Reporter) Profile(p data.DatasetProfile) {
	if r.quiet {
		return
	}
	r.Section(fmt.Sprintf("DATASET PROFILE: %d rows x %d columns, %d missing cells", p.Rows, p.Cols, p.TotalMissing()))
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"Column", "Kind", "Missing", "Distinct", "Non-numeric", "Min", "Max", "Mean"})
	table.SetBorder(false)
	for _, c := range p.Columns {
		table.Append([]string{
			c.Name,
			string(c.Kind),
			strconv.Itoa(c.Missing),
			strconv.Itoa(c.Distinct),
			strconv.Itoa(c.NonNumeric),
			nullDecimal(c.Min.Valid, c.Min.Decimal.StringFixed(2)),
			nullDecimal(c.Max.Valid, c.Max.Decimal.StringFixed(2)),
			nullDecimal(c.Mean.Valid, c.Mean.Decimal.StringFixed(2)),
		})
	}
	table.Render()

	for _, c := range p.Columns {
		if c.EmptyStrings > 0 || c.WhitespaceOnly > 0 {
			r.Warn("%s: %d empty and %d whitespace-only cells", c.Name, c.EmptyStrings, c.WhitespaceOnly)
		}
		if len(c.Values) > 0 {
			r.Line("  %s: %s", c.Name, strings.Join(c.Values, ", "))
		}
	}
}

// Sample prints the first rows of a dataset.
func (r *Reporter) Sample(ds *data.Dataset, n int) {
	if r.quiet {
		return
	}
	r.Line("\nSample data (first %d rows):", n)
	table := tablewriter.NewWriter(r.out)
	table.SetHeader(ds.Names())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(ds.Head(n))
	table.Render()
}

func (r *Reporter) Candidates(cands []data.TargetCandidate) {
	r.Section("POSSIBLE TARGET COLUMNS")
	if len(cands) == 0 {
		r.Warn("No low-cardinality columns found")
		return
	}
	for _, c := range cands {
		r.Line("%s (%d values)", r.bold(c.Column), c.Distinct)
		for _, vc := range c.Distribution {
			r.Line("  %-24s %d", vc.Value, vc.Count)
		}
	}
}

func sortedKeys(grid evaluation.ParamGrid) []string {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			parts[i] = "None"
		} else {
			parts[i] = fmt.Sprint(v)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func nullDecimal(valid bool, s string) string {
	if !valid {
		return "-"
	}
	return s
}
