package linear

import (
	"errors"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Defaults used by the optimizers when a field is left zero.
const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-6
	DefaultLearningRate  = 0.5
)

// Objective is a differentiable function of a flat parameter vector.
type Objective struct {
	// Func returns the objective value at x.
	Func func(x []float64) float64
	// Grad writes the gradient at x into dst. len(dst) == len(x).
	Grad func(dst, x []float64)
}

// Result reports how a minimization ended. Converged is false when the
// iteration cap was reached first; X then holds the best parameters found.
type Result struct {
	X          []float64
	Iterations int
	Converged  bool
}

// Optimizer minimizes a differentiable objective starting from x0.
type Optimizer interface {
	Minimize(obj Objective, x0 []float64) (*Result, error)
}

// LBFGS minimizes via gonum's limited-memory BFGS. It is the default
// optimizer for SoftmaxRegression.
type LBFGS struct {
	MaxIterations int
	Tolerance     float64 // gradient norm threshold
}

func (o *LBFGS) Minimize(obj Objective, x0 []float64) (*Result, error) {
	maxIter := o.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := o.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	problem := optimize.Problem{Func: obj.Func, Grad: obj.Grad}
	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: tol,
	}
	res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if res == nil || len(res.X) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, errors.New("linear: optimizer returned no solution")
	}
	// A line-search stall or iteration cap leaves best-so-far parameters in
	// res.X; both are reported as non-convergence rather than failure.
	converged := err == nil && res.Status != optimize.IterationLimit
	return &Result{
		X:          res.X,
		Iterations: res.Stats.MajorIterations,
		Converged:  converged,
	}, nil
}

// GradientDescent minimizes by full-batch gradient descent with an optional
// multiplicative learning-rate decay per iteration.
type GradientDescent struct {
	LearningRate  float64
	Decay         float64 // per-iteration multiplier, 1 keeps the rate constant
	MaxIterations int
	Tolerance     float64 // stop when the gradient infinity norm falls below
	LogEvery      int     // log the objective every LogEvery iterations, 0 disables
}

func (o *GradientDescent) Minimize(obj Objective, x0 []float64) (*Result, error) {
	maxIter := o.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := o.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	lr := o.LearningRate
	if lr <= 0 {
		lr = DefaultLearningRate
	}
	decay := o.Decay
	if decay <= 0 {
		decay = 1
	}

	x := append([]float64(nil), x0...)
	grad := make([]float64, len(x))
	for it := 1; it <= maxIter; it++ {
		obj.Grad(grad, x)
		if floats.Norm(grad, math.Inf(1)) < tol {
			return &Result{X: x, Iterations: it, Converged: true}, nil
		}
		floats.AddScaled(x, -lr, grad)
		lr *= decay
		if o.LogEvery > 0 && it%o.LogEvery == 0 {
			log.Printf("gd: iter=%d loss=%.6f", it, obj.Func(x))
		}
	}
	return &Result{X: x, Iterations: maxIter, Converged: false}, nil
}
