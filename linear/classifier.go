// Package linear implements multinomial logistic regression: a linear score
// function per class trained by maximum likelihood, with prediction via the
// arg-max of the softmax class probabilities.
package linear

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultLambda is the L2 regularization strength applied to the weights
// (the bias column is never penalized).
const DefaultLambda = 1e-4

// SoftmaxRegression is a multinomial logistic regression classifier over a
// fixed number of classes and features. Fit estimates one weight vector plus
// bias per class; each call to Fit overwrites the previous parameters.
type SoftmaxRegression struct {
	weights *mat.Dense    // (numClasses x numFeatures)
	bias    *mat.VecDense // (numClasses)

	numClasses  int
	numFeatures int

	lambda  float64
	seed    int64
	workers int
	opt     Optimizer

	fitted    bool
	converged bool
	iters     int
	loss      float64
}

// Option configures a SoftmaxRegression.
type Option func(*SoftmaxRegression)

// WithLambda sets the L2 regularization strength.
func WithLambda(lambda float64) Option {
	return func(m *SoftmaxRegression) { m.lambda = lambda }
}

// WithOptimizer replaces the default L-BFGS optimizer.
func WithOptimizer(opt Optimizer) Option {
	return func(m *SoftmaxRegression) { m.opt = opt }
}

// WithSeed sets the seed for the random parameter initialization, making
// training fully deterministic for a fixed dataset and optimizer.
func WithSeed(seed int64) Option {
	return func(m *SoftmaxRegression) { m.seed = seed }
}

// WithWorkers bounds the number of goroutines used for per-row softmax
// evaluation. Rows are independent, so the result is identical to the
// sequential computation.
func WithWorkers(workers int) Option {
	return func(m *SoftmaxRegression) { m.workers = workers }
}

// NewSoftmaxRegression creates an unfitted classifier for numClasses classes
// over numFeatures-dimensional feature vectors.
func NewSoftmaxRegression(numClasses, numFeatures int, opts ...Option) *SoftmaxRegression {
	m := &SoftmaxRegression{
		numClasses:  numClasses,
		numFeatures: numFeatures,
		lambda:      DefaultLambda,
		seed:        1,
		workers:     1,
		opt:         &LBFGS{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fit estimates the parameters by maximizing the multinomial log-likelihood
// of labels y under the softmax of the linear scores (equivalently, by
// minimizing the mean negative log-likelihood plus the L2 penalty).
//
// Reaching the optimizer's iteration cap is not an error: the best
// parameters found are kept and Converged reports false.
func (m *SoftmaxRegression) Fit(X mat.Matrix, y []int) error {
	n, d := X.Dims()
	if n == 0 {
		return fmt.Errorf("%w: empty training set", ErrInvalidInput)
	}
	if d != m.numFeatures {
		return fmt.Errorf("%w: features have dimension %d, model expects %d", ErrInvalidInput, d, m.numFeatures)
	}
	if len(y) != n {
		return fmt.Errorf("%w: %d feature rows but %d labels", ErrInvalidInput, n, len(y))
	}
	if err := checkLabels(y, m.numClasses); err != nil {
		return err
	}

	obj := m.objective(X, y)
	res, err := m.opt.Minimize(obj, m.initParams(d))
	if err != nil {
		return fmt.Errorf("linear: fit: %w", err)
	}

	k := m.numClasses
	m.weights = mat.NewDense(k, d, res.X[:k*d])
	m.bias = mat.NewVecDense(k, res.X[k*d:])
	m.iters = res.Iterations
	m.converged = res.Converged
	m.loss = obj.Func(res.X)
	m.fitted = true
	if !m.converged {
		log.Printf("linear: optimizer stopped after %d iterations without converging; keeping best parameters", res.Iterations)
	}
	return nil
}

// PredictProba returns an n x numClasses matrix of class probabilities, one
// row per input row. Every row sums to 1 and all entries lie in [0,1].
func (m *SoftmaxRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	_, d := X.Dims()
	if d != m.numFeatures {
		return nil, fmt.Errorf("%w: features have dimension %d, model expects %d", ErrInvalidInput, d, m.numFeatures)
	}
	scores := m.decisionFunction(X)
	softmaxRows(scores, m.workers)
	return scores, nil
}

// Predict returns the most probable class per input row. Ties are broken in
// favor of the lowest class index.
func (m *SoftmaxRegression) Predict(X mat.Matrix) ([]int, error) {
	probs, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := probs.Dims()
	preds := make([]int, n)
	for i := 0; i < n; i++ {
		preds[i] = argmax(probs.RawRowView(i))
	}
	return preds, nil
}

// Score returns the fraction of rows whose predicted label equals y.
func (m *SoftmaxRegression) Score(X mat.Matrix, y []int) (float64, error) {
	preds, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	if len(y) != len(preds) {
		return 0, fmt.Errorf("%w: %d feature rows but %d labels", ErrInvalidInput, len(preds), len(y))
	}
	if err := checkLabels(y, m.numClasses); err != nil {
		return 0, err
	}
	correct := 0
	for i, p := range preds {
		if p == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(preds)), nil
}

// Converged reports whether the last Fit reached the optimizer's convergence
// criterion before its iteration cap.
func (m *SoftmaxRegression) Converged() bool { return m.converged }

// NIterations returns the number of optimizer iterations the last Fit ran.
func (m *SoftmaxRegression) NIterations() int { return m.iters }

// Loss returns the regularized mean negative log-likelihood at the fitted
// parameters.
func (m *SoftmaxRegression) Loss() float64 { return m.loss }

// IsFitted reports whether Fit has completed on this instance.
func (m *SoftmaxRegression) IsFitted() bool { return m.fitted }

// NumClasses returns K, the number of classes.
func (m *SoftmaxRegression) NumClasses() int { return m.numClasses }

// NumFeatures returns d, the feature dimension.
func (m *SoftmaxRegression) NumFeatures() int { return m.numFeatures }

// Weights returns a copy of the fitted (numClasses x numFeatures) weight
// matrix, or nil before Fit.
func (m *SoftmaxRegression) Weights() *mat.Dense {
	if !m.fitted {
		return nil
	}
	return mat.DenseCopyOf(m.weights)
}

// Bias returns a copy of the fitted per-class bias vector, or nil before Fit.
func (m *SoftmaxRegression) Bias() *mat.VecDense {
	if !m.fitted {
		return nil
	}
	return mat.VecDenseCopyOf(m.bias)
}

// decisionFunction computes the n x numClasses matrix of linear scores
// X*Wᵀ + b.
func (m *SoftmaxRegression) decisionFunction(X mat.Matrix) *mat.Dense {
	return scoresFor(X, m.weights, m.bias)
}

func scoresFor(X mat.Matrix, w *mat.Dense, b *mat.VecDense) *mat.Dense {
	n, _ := X.Dims()
	k, _ := w.Dims()
	scores := mat.NewDense(n, k, nil)
	scores.Mul(X, w.T())
	for i := 0; i < n; i++ {
		row := scores.RawRowView(i)
		for c := range row {
			row[c] += b.AtVec(c)
		}
	}
	return scores
}

// objective builds the regularized mean negative log-likelihood and its
// gradient over a flat parameter vector laid out as the row-major
// (numClasses x d) weight block followed by the numClasses biases.
func (m *SoftmaxRegression) objective(X mat.Matrix, y []int) Objective {
	n, d := X.Dims()
	k := m.numClasses

	value := func(x []float64) float64 {
		w := mat.NewDense(k, d, x[:k*d])
		b := mat.NewVecDense(k, x[k*d:])
		probs := scoresFor(X, w, b)
		softmaxRows(probs, m.workers)
		loss := 0.0
		for i, yi := range y {
			p := probs.At(i, yi)
			if p < 1e-15 {
				p = 1e-15
			}
			loss -= math.Log(p)
		}
		loss /= float64(n)
		loss += 0.5 * m.lambda * floats.Dot(x[:k*d], x[:k*d])
		return loss
	}

	grad := func(dst, x []float64) {
		w := mat.NewDense(k, d, x[:k*d])
		b := mat.NewVecDense(k, x[k*d:])
		probs := scoresFor(X, w, b)
		softmaxRows(probs, m.workers)
		// dScores = (P - Y) / n, using the one-hot identity per row.
		for i, yi := range y {
			probs.Set(i, yi, probs.At(i, yi)-1)
		}
		probs.Scale(1/float64(n), probs)

		gw := mat.NewDense(k, d, dst[:k*d])
		gw.Mul(probs.T(), X)
		for idx, wi := range x[:k*d] {
			dst[idx] += m.lambda * wi
		}

		gb := dst[k*d:]
		for c := range gb {
			gb[c] = 0
		}
		for i := 0; i < n; i++ {
			row := probs.RawRowView(i)
			for c := 0; c < k; c++ {
				gb[c] += row[c]
			}
		}
	}

	return Objective{Func: value, Grad: grad}
}

// initParams draws small seeded random weights and zero biases.
func (m *SoftmaxRegression) initParams(d int) []float64 {
	rng := rand.New(rand.NewSource(m.seed))
	x := make([]float64, m.numClasses*(d+1))
	for i := 0; i < m.numClasses*d; i++ {
		x[i] = 0.01 * rng.NormFloat64()
	}
	return x
}

// softmaxRows replaces each row of scores with its softmax. Scores are
// shifted by the row maximum before exponentiation so large scores cannot
// overflow.
func softmaxRows(scores *mat.Dense, workers int) {
	n, _ := scores.Dims()
	forEachRow(n, workers, func(i int) {
		row := scores.RawRowView(i)
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		sum := 0.0
		for c := range row {
			row[c] = math.Exp(row[c] - max)
			sum += row[c]
		}
		for c := range row {
			row[c] /= sum
		}
	})
}

// argmax returns the index of the largest entry, lowest index on ties.
func argmax(row []float64) int {
	best := 0
	for c, v := range row {
		if v > row[best] {
			best = c
		}
	}
	return best
}

func checkLabels(y []int, numClasses int) error {
	for i, label := range y {
		if label < 0 || label >= numClasses {
			return fmt.Errorf("%w: label %d at index %d outside [0, %d)", ErrInvalidInput, label, i, numClasses)
		}
	}
	return nil
}
