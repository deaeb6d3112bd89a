package report

import (
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// countGrid adapts a confusion matrix to plotter.GridXYZ. Row 0 is drawn at
// the top, matching the printed matrix.
type countGrid struct {
	counts [][]int
}

func (g countGrid) Dims() (c, r int) { return len(g.counts), len(g.counts) }

func (g countGrid) Z(c, r int) float64 {
	return float64(g.counts[len(g.counts)-1-r][c])
}

func (g countGrid) X(c int) float64 { return float64(c) }

func (g countGrid) Y(r int) float64 { return float64(r) }

// PlotConfusionMatrix saves a labelled heat map of cm to path.
func PlotConfusionMatrix(path string, cm [][]int, labels []string, title string) error {
	n := len(cm)
	if n == 0 || len(labels) != n {
		return fmt.Errorf("confusion matrix is %dx%d with %d labels", n, n, len(labels))
	}

	maxCount := 0
	for _, row := range cm {
		if len(row) != n {
			return fmt.Errorf("confusion matrix is not square")
		}
		for _, v := range row {
			if v > maxCount {
				maxCount = v
			}
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "True"

	hm := plotter.NewHeatMap(countGrid{counts: cm}, palette.Heat(16, 1))
	hm.Min = 0
	hm.Max = float64(maxCount)
	if maxCount == 0 {
		hm.Max = 1
	}
	p.Add(hm)

	cells := plotter.XYLabels{}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(c), Y: float64(n - 1 - r)})
			cells.Labels = append(cells.Labels, strconv.Itoa(cm[r][c]))
		}
	}
	text, err := plotter.NewLabels(cells)
	if err != nil {
		return fmt.Errorf("confusion matrix labels: %w", err)
	}
	for i := range text.TextStyle {
		text.TextStyle[i].XAlign = -0.5
		text.TextStyle[i].YAlign = -0.5
	}
	p.Add(text)

	reversed := make([]string, n)
	for i, l := range labels {
		reversed[n-1-i] = l
	}
	p.NominalX(labels...)
	p.NominalY(reversed...)

	size := vg.Length(2+n) * vg.Inch
	if size > 10*vg.Inch {
		size = 10 * vg.Inch
	}
	if err := p.Save(size, size, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// PlotFeatureRanking saves a horizontal bar chart with the first name on top.
func PlotFeatureRanking(path string, names []string, scores []float64, title string) error {
	if len(names) == 0 || len(names) != len(scores) {
		return fmt.Errorf("%d feature names for %d scores", len(names), len(scores))
	}

	n := len(names)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i := range names {
		values[n-1-i] = scores[i]
		labels[n-1-i] = names[i]
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Score"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return fmt.Errorf("feature bars: %w", err)
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(labels...)

	height := vg.Length(n)*vg.Points(18) + 1.5*vg.Inch
	if err := p.Save(8*vg.Inch, height, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
