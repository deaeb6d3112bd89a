package evaluation

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

type ClassificationMetrics struct {
	Accuracy          float64              `yaml:"accuracy"`
	BalancedAccuracy  float64              `yaml:"balanced_accuracy"`
	MacroPrecision    float64              `yaml:"macro_precision"`
	MacroRecall       float64              `yaml:"macro_recall"`
	MacroF1           float64              `yaml:"macro_f1"`
	WeightedPrecision float64              `yaml:"weighted_precision"`
	WeightedRecall    float64              `yaml:"weighted_recall"`
	WeightedF1        float64              `yaml:"weighted_f1"`
	PerClassMetrics   map[int]ClassMetrics `yaml:"-"`
	ConfusionMatrix   [][]int              `yaml:"confusion_matrix"`
	Classes           []int                `yaml:"-"`
	ClassNames        []string             `yaml:"classes"`
	NumSamples        int                  `yaml:"num_samples"`
	NumClasses        int                  `yaml:"num_classes"`
}

type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1Score   float64
	Support   int
}

// Accuracy is the fraction of positions where the labels agree.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i, pred := range yPred {
		if pred == yTrue[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// CalculateMetrics computes per-class and averaged metrics. classes fixes the
// row/column order of the confusion matrix; names labels them in reports and
// defaults to the class numbers.
func CalculateMetrics(yTrue, yPred []int, classes []int, names []string) (*ClassificationMetrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%d true labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("cannot compute metrics on zero samples")
	}
	if names == nil {
		names = make([]string, len(classes))
		for i, c := range classes {
			names[i] = strconv.Itoa(c)
		}
	}
	if len(names) != len(classes) {
		return nil, fmt.Errorf("%d class names for %d classes", len(names), len(classes))
	}

	numClasses := len(classes)
	confusionMatrix := buildConfusionMatrix(yTrue, yPred, classes)

	perClassMetrics := make(map[int]ClassMetrics)
	var macroPrec, macroRec, macroF1 float64
	var weightedPrec, weightedRec, weightedF1 float64
	totalSupport := 0

	for i, class := range classes {
		tp := confusionMatrix[i][i]
		fp, fn, support := 0, 0, 0

		for j := range classes {
			support += confusionMatrix[i][j]
			if j != i {
				fp += confusionMatrix[j][i]
				fn += confusionMatrix[i][j]
			}
		}

		precision := safeDivide(float64(tp), float64(tp+fp))
		recall := safeDivide(float64(tp), float64(tp+fn))
		f1 := safeDivide(2*precision*recall, precision+recall)

		perClassMetrics[class] = ClassMetrics{
			Precision: precision,
			Recall:    recall,
			F1Score:   f1,
			Support:   support,
		}

		macroPrec += precision
		macroRec += recall
		macroF1 += f1

		weightedPrec += precision * float64(support)
		weightedRec += recall * float64(support)
		weightedF1 += f1 * float64(support)
		totalSupport += support
	}

	return &ClassificationMetrics{
		Accuracy:          Accuracy(yTrue, yPred),
		BalancedAccuracy:  safeDivide(macroRec, float64(numClasses)),
		MacroPrecision:    safeDivide(macroPrec, float64(numClasses)),
		MacroRecall:       safeDivide(macroRec, float64(numClasses)),
		MacroF1:           safeDivide(macroF1, float64(numClasses)),
		WeightedPrecision: safeDivide(weightedPrec, float64(totalSupport)),
		WeightedRecall:    safeDivide(weightedRec, float64(totalSupport)),
		WeightedF1:        safeDivide(weightedF1, float64(totalSupport)),
		PerClassMetrics:   perClassMetrics,
		ConfusionMatrix:   confusionMatrix,
		Classes:           classes,
		ClassNames:        names,
		NumSamples:        len(yTrue),
		NumClasses:        numClasses,
	}, nil
}

func buildConfusionMatrix(yTrue, yPred []int, classes []int) [][]int {
	numClasses := len(classes)
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}

	classToIdx := make(map[int]int)
	for i, class := range classes {
		classToIdx[class] = i
	}

	for i := range yTrue {
		trueIdx, trueOk := classToIdx[yTrue[i]]
		predIdx, predOk := classToIdx[yPred[i]]
		if trueOk && predOk {
			matrix[trueIdx][predIdx]++
		}
	}

	return matrix
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0.0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0.0
	}
	return result
}

// WriteReport renders the per-class table with macro and weighted averages.
func (m *ClassificationMetrics) WriteReport(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Class", "Precision", "Recall", "F1-score", "Support"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)

	for i, class := range m.Classes {
		cm := m.PerClassMetrics[class]
		table.Append([]string{
			m.ClassNames[i],
			fmt.Sprintf("%.2f", cm.Precision),
			fmt.Sprintf("%.2f", cm.Recall),
			fmt.Sprintf("%.2f", cm.F1Score),
			strconv.Itoa(cm.Support),
		})
	}
	table.Append([]string{"accuracy", "", "", fmt.Sprintf("%.2f", m.Accuracy), strconv.Itoa(m.NumSamples)})
	table.Append([]string{"macro avg",
		fmt.Sprintf("%.2f", m.MacroPrecision),
		fmt.Sprintf("%.2f", m.MacroRecall),
		fmt.Sprintf("%.2f", m.MacroF1),
		strconv.Itoa(m.NumSamples),
	})
	table.Append([]string{"weighted avg",
		fmt.Sprintf("%.2f", m.WeightedPrecision),
		fmt.Sprintf("%.2f", m.WeightedRecall),
		fmt.Sprintf("%.2f", m.WeightedF1),
		strconv.Itoa(m.NumSamples),
	})
	table.Render()
}
