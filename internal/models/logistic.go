package models

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	SolverLBFGS = "lbfgs"
	SolverSAGA  = "saga"
)

// LogisticRegression is an L2-regularised linear classifier. Binary problems use
// a single sigmoid output, multiclass problems a softmax over one row per class.
// The objective is 0.5*||W||^2 + C * sum(w_i * loss_i), scaled by the total weight.
type LogisticRegression struct {
	BaseModel
	C         float64
	Solver    string
	MaxIter   int
	Tol       float64
	Seed      int64
	Weights   *mat.Dense
	Intercept []float64
	Converged bool
	Iters     int
}

func NewLogisticRegression(params Params, seed int64) (*LogisticRegression, error) {
	c, err := params.Float("C", 1.0)
	if err != nil {
		return nil, err
	}
	solver, err := params.Str("solver", SolverLBFGS)
	if err != nil {
		return nil, err
	}
	maxIter, err := params.Int("max_iter", 100)
	if err != nil {
		return nil, err
	}
	tol, err := params.Float("tol", 1e-4)
	if err != nil {
		return nil, err
	}
	if c <= 0 {
		return nil, fmt.Errorf("C must be positive, got %v", c)
	}
	if solver != SolverLBFGS && solver != SolverSAGA {
		return nil, fmt.Errorf("unknown solver %q", solver)
	}

	return &LogisticRegression{
		C:       c,
		Solver:  solver,
		MaxIter: maxIter,
		Tol:     tol,
		Seed:    seed,
		BaseModel: BaseModel{
			Name:   "LogisticRegression",
			Family: FamilyLogistic,
			Params: params.Clone(),
		},
	}, nil
}

// logisticProblem holds the training data in the layout the solvers share.
type logisticProblem struct {
	X     *mat.Dense
	y     []int
	omega []float64
	n     int
	p     int
	nOut  int
	alpha float64
}

func (lr *LogisticRegression) Fit(X [][]float64, y []int, sampleWeight []float64) error {
	if err := checkFitInput(X, y, sampleWeight); err != nil {
		return err
	}
	lr.Classes = ExtractClasses(y)
	pos := classIndex(lr.Classes)
	n, p := len(X), len(X[0])

	nOut := len(lr.Classes)
	if nOut == 2 {
		nOut = 1
	}
	lr.Weights = mat.NewDense(nOut, p, nil)
	lr.Intercept = make([]float64, nOut)
	if len(lr.Classes) < 2 {
		lr.Converged = true
		return nil
	}

	flat := make([]float64, 0, n*p)
	for _, row := range X {
		flat = append(flat, row...)
	}
	w := uniformWeights(n, sampleWeight)
	total := floats.Sum(w)
	if total <= 0 {
		return fmt.Errorf("sample weights sum to %v", total)
	}
	omega := make([]float64, n)
	for i := range w {
		omega[i] = w[i] * float64(n) / total
	}
	yPos := make([]int, n)
	for i, label := range y {
		yPos[i] = pos[label]
	}

	prob := &logisticProblem{
		X:     mat.NewDense(n, p, flat),
		y:     yPos,
		omega: omega,
		n:     n,
		p:     p,
		nOut:  nOut,
		alpha: 1 / (lr.C * float64(n)),
	}

	var theta []float64
	var err error
	switch lr.Solver {
	case SolverSAGA:
		theta = lr.fitSAGA(prob)
	default:
		theta, err = lr.fitLBFGS(prob)
		if err != nil {
			return err
		}
	}

	lr.Weights = mat.NewDense(nOut, p, theta[:nOut*p])
	copy(lr.Intercept, theta[nOut*p:])
	return nil
}

// fitLBFGS accepts the last iterate when the optimiser stops early; the run is
// then reported as not converged instead of failing.
func (lr *LogisticRegression) fitLBFGS(prob *logisticProblem) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			return prob.lossGrad(theta, nil)
		},
		Grad: func(grad, theta []float64) {
			prob.lossGrad(theta, grad)
		},
	}
	init := make([]float64, prob.nOut*(prob.p+1))
	settings := &optimize.Settings{
		MajorIterations:   lr.MaxIter,
		GradientThreshold: lr.Tol * 1e-2,
	}

	result, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if result == nil {
		return nil, fmt.Errorf("lbfgs: %w", err)
	}
	lr.Iters = result.MajorIterations
	lr.Converged = err == nil && result.Status != optimize.IterationLimit
	return result.X, nil
}

// fitSAGA runs the SAGA incremental gradient method with a seeded sample order.
func (lr *LogisticRegression) fitSAGA(prob *logisticProblem) []float64 {
	n, p, nOut := prob.n, prob.p, prob.nOut
	theta := make([]float64, nOut*(p+1))
	memory := make([]float64, n*nOut)
	sumGrad := make([]float64, nOut*(p+1))

	maxSq := 0.0
	for i := 0; i < n; i++ {
		row := prob.X.RawRowView(i)
		sq := (floats.Dot(row, row) + 1) * prob.omega[i]
		if sq > maxSq {
			maxSq = sq
		}
	}
	lipschitz := 0.25 * maxSq
	if nOut > 1 {
		lipschitz = 0.5 * maxSq
	}
	step := 1 / (3 * (lipschitz + prob.alpha))

	rng := rand.New(rand.NewSource(lr.Seed))
	scores := make([]float64, nOut)
	residual := make([]float64, nOut)
	prev := make([]float64, len(theta))

	lr.Converged = false
	for epoch := 0; epoch < lr.MaxIter; epoch++ {
		copy(prev, theta)
		for t := 0; t < n; t++ {
			i := rng.Intn(n)
			row := prob.X.RawRowView(i)
			prob.scores(theta, row, scores)
			prob.residual(scores, prob.y[i], residual)

			old := memory[i*nOut : (i+1)*nOut]
			for k := 0; k < nOut; k++ {
				r := prob.omega[i] * residual[k]
				delta := r - old[k]
				base := k * p
				for j, x := range row {
					g := delta*x + sumGrad[base+j]/float64(n) + prob.alpha*theta[base+j]
					theta[base+j] -= step * g
					sumGrad[base+j] += delta * x
				}
				b := nOut*p + k
				theta[b] -= step * (delta + sumGrad[b]/float64(n))
				sumGrad[b] += delta
				old[k] = r
			}
		}

		lr.Iters = epoch + 1
		maxChange, maxWeight := 0.0, 0.0
		for j := range theta {
			maxChange = math.Max(maxChange, math.Abs(theta[j]-prev[j]))
			maxWeight = math.Max(maxWeight, math.Abs(theta[j]))
		}
		if maxWeight > 0 && maxChange/maxWeight < lr.Tol {
			lr.Converged = true
			break
		}
	}
	return theta
}

// scores writes the linear outputs for one row.
func (prob *logisticProblem) scores(theta, row, out []float64) {
	for k := 0; k < prob.nOut; k++ {
		out[k] = floats.Dot(theta[k*prob.p:(k+1)*prob.p], row) + theta[prob.nOut*prob.p+k]
	}
}

// residual writes d loss / d score for one sample and returns its loss.
func (prob *logisticProblem) residual(scores []float64, label int, out []float64) float64 {
	if prob.nOut == 1 {
		pr := sigmoid(scores[0])
		target := float64(label)
		out[0] = pr - target
		return logLoss(pr, target)
	}
	softmaxInto(scores, out)
	loss := -math.Log(math.Max(out[label], 1e-15))
	out[label] -= 1
	return loss
}

// lossGrad evaluates the scaled objective and, when grad is non-nil, its gradient.
func (prob *logisticProblem) lossGrad(theta, grad []float64) float64 {
	n, p, nOut := prob.n, prob.p, prob.nOut
	W := mat.NewDense(nOut, p, theta[:nOut*p])
	b := theta[nOut*p:]

	var Z mat.Dense
	Z.Mul(prob.X, W.T())

	R := mat.NewDense(n, nOut, nil)
	residual := make([]float64, nOut)
	loss := 0.0
	for i := 0; i < n; i++ {
		scores := Z.RawRowView(i)
		for k := range scores {
			scores[k] += b[k]
		}
		loss += prob.omega[i] * prob.residual(scores, prob.y[i], residual)
		for k, r := range residual {
			R.Set(i, k, prob.omega[i]*r/float64(n))
		}
	}
	f := loss/float64(n) + 0.5*prob.alpha*floats.Dot(theta[:nOut*p], theta[:nOut*p])

	if grad != nil {
		gW := mat.NewDense(nOut, p, grad[:nOut*p])
		gW.Mul(R.T(), prob.X)
		floats.AddScaled(grad[:nOut*p], prob.alpha, theta[:nOut*p])
		for k := 0; k < nOut; k++ {
			grad[nOut*p+k] = floats.Sum(mat.Col(nil, k, R))
		}
	}
	return f
}

func (lr *LogisticRegression) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	nOut, _ := lr.Weights.Dims()
	scores := make([]float64, nOut)

	for i, row := range X {
		if len(lr.Classes) < 2 {
			proba[i] = []float64{1}
			continue
		}
		for k := 0; k < nOut; k++ {
			scores[k] = mat.Dot(lr.Weights.RowView(k), mat.NewVecDense(len(row), row)) + lr.Intercept[k]
		}
		if nOut == 1 {
			pr := sigmoid(scores[0])
			proba[i] = []float64{1 - pr, pr}
			continue
		}
		proba[i] = make([]float64, nOut)
		softmaxInto(scores, proba[i])
	}
	return proba
}

func (lr *LogisticRegression) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, p := range lr.PredictProba(X) {
		predictions[i] = lr.Classes[argmax(p)]
	}
	return predictions
}

// Inspect reports one coefficient row per output: a single signed row for binary
// problems, one row per class otherwise.
func (lr *LogisticRegression) Inspect() Inspection {
	nOut, _ := lr.Weights.Dims()
	coef := make([][]float64, nOut)
	for k := range coef {
		coef[k] = mat.Row(nil, k, lr.Weights)
	}
	return Inspection{
		Family:       lr.Family,
		Params:       lr.Params,
		Capability:   CapabilityCoefficients,
		Coefficients: coef,
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func logLoss(p, y float64) float64 {
	p = math.Min(math.Max(p, 1e-15), 1-1e-15)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

func softmaxInto(scores, out []float64) {
	maxScore := floats.Max(scores)
	sum := 0.0
	for k, s := range scores {
		out[k] = math.Exp(s - maxScore)
		sum += out[k]
	}
	for k := range out {
		out[k] /= sum
	}
}
