package linear

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// toyDataset builds a deterministic 3-class, 4-feature dataset.
func toyDataset(n int) (*mat.Dense, []int) {
	X := mat.NewDense(n, 4, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		class := i % 3
		y[i] = class
		for j := 0; j < 4; j++ {
			// Class-dependent offset plus a deterministic wobble.
			X.Set(i, j, float64(class)*0.5+0.1*math.Sin(float64(i*4+j)))
		}
	}
	return X, y
}

// separableDataset replicates the two 1-D points x=0 (label 0) and x=1
// (label 1).
func separableDataset(copies int) (*mat.Dense, []int) {
	X := mat.NewDense(2*copies, 1, nil)
	y := make([]int, 2*copies)
	for i := 0; i < copies; i++ {
		X.Set(2*i, 0, 0)
		y[2*i] = 0
		X.Set(2*i+1, 0, 1)
		y[2*i+1] = 1
	}
	return X, y
}

func fitToy(t *testing.T, opts ...Option) (*SoftmaxRegression, *mat.Dense, []int) {
	t.Helper()
	X, y := toyDataset(30)
	opts = append([]Option{WithOptimizer(&GradientDescent{MaxIterations: 200})}, opts...)
	m := NewSoftmaxRegression(3, 4, opts...)
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	return m, X, y
}

func TestPredictProbaRowsSumToOne(t *testing.T) {
	m, X, _ := fitToy(t)
	probs, err := m.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba returned error: %v", err)
	}
	n, k := probs.Dims()
	if k != 3 {
		t.Fatalf("PredictProba columns = %d; want 3", k)
	}
	for i := 0; i < n; i++ {
		sum := 0.0
		for c := 0; c < k; c++ {
			p := probs.At(i, c)
			if p < 0 || p > 1 {
				t.Errorf("probs[%d][%d] = %v; want within [0,1]", i, c, p)
			}
			sum += p
		}
		if diff := sum - 1.0; diff < -1e-6 || diff > 1e-6 {
			t.Errorf("row %d sums to %v; want approx 1", i, sum)
		}
	}
}

func TestPredictProbaLargeScoresDoNotOverflow(t *testing.T) {
	m, _, _ := fitToy(t)
	// Extreme feature values push the linear scores far from zero; the
	// row-max shift must keep the softmax finite.
	X := mat.NewDense(2, 4, []float64{
		1e4, 1e4, 1e4, 1e4,
		-1e4, -1e4, -1e4, -1e4,
	})
	probs, err := m.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba returned error: %v", err)
	}
	for i := 0; i < 2; i++ {
		sum := 0.0
		for c := 0; c < 3; c++ {
			p := probs.At(i, c)
			if math.IsNaN(p) || math.IsInf(p, 0) {
				t.Fatalf("probs[%d][%d] = %v; want finite", i, c, p)
			}
			sum += p
		}
		if diff := sum - 1.0; diff < -1e-6 || diff > 1e-6 {
			t.Errorf("row %d sums to %v; want approx 1", i, sum)
		}
	}
}

func TestPredictMatchesArgmax(t *testing.T) {
	m, X, _ := fitToy(t)
	probs, err := m.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba returned error: %v", err)
	}
	preds, err := m.Predict(X)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	n, k := probs.Dims()
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if probs.At(i, c) > probs.At(i, best) {
				best = c
			}
		}
		if preds[i] != best {
			t.Errorf("Predict[%d] = %d; argmax of PredictProba = %d", i, preds[i], best)
		}
	}
}

func TestScorePermutationInvariance(t *testing.T) {
	m, X, y := fitToy(t)
	base, err := m.Score(X, y)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}

	// Reverse rows and labels together.
	n, d := X.Dims()
	Xp := mat.NewDense(n, d, nil)
	yp := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			Xp.Set(i, j, X.At(n-1-i, j))
		}
		yp[i] = y[n-1-i]
	}
	permuted, err := m.Score(Xp, yp)
	if err != nil {
		t.Fatalf("Score on permuted data returned error: %v", err)
	}
	if base != permuted {
		t.Errorf("Score = %v on original, %v on permuted data; want equal", base, permuted)
	}
}

func TestSeparableDatasetReachesPerfectAccuracy(t *testing.T) {
	X, y := separableDataset(10)
	m := NewSoftmaxRegression(2, 1)
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	acc, err := m.Score(X, y)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if acc != 1.0 {
		t.Errorf("training accuracy = %v; want 1.0 on a separable dataset", acc)
	}
}

func TestFitMismatchedLengths(t *testing.T) {
	X := mat.NewDense(5, 2, nil)
	y := []int{0, 1, 0, 1} // one label short
	m := NewSoftmaxRegression(2, 2)
	err := m.Fit(X, y)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Fit with 5 rows and 4 labels: err = %v; want ErrInvalidInput", err)
	}
}

func TestFitLabelOutOfRange(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{0, 1, 1, 0, 1, 1})
	for _, y := range [][]int{{0, 1, 10}, {0, -1, 1}} {
		m := NewSoftmaxRegression(10, 2)
		if err := m.Fit(X, y); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Fit with labels %v: err = %v; want ErrInvalidInput", y, err)
		}
	}
}

func TestFitDimensionMismatch(t *testing.T) {
	X := mat.NewDense(4, 3, nil)
	y := []int{0, 1, 0, 1}
	m := NewSoftmaxRegression(2, 2)
	if err := m.Fit(X, y); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Fit with 3-dimensional features on a 2-feature model: err = %v; want ErrInvalidInput", err)
	}
}

func TestPredictBeforeFit(t *testing.T) {
	m := NewSoftmaxRegression(2, 2)
	if _, err := m.Predict(mat.NewDense(1, 2, nil)); !errors.Is(err, ErrNotFitted) {
		t.Errorf("Predict before Fit: err = %v; want ErrNotFitted", err)
	}
	if _, err := m.PredictProba(mat.NewDense(1, 2, nil)); !errors.Is(err, ErrNotFitted) {
		t.Errorf("PredictProba before Fit: err = %v; want ErrNotFitted", err)
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	m, _, _ := fitToy(t)
	if _, err := m.Predict(mat.NewDense(2, 7, nil)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Predict with 7-dimensional features: err = %v; want ErrInvalidInput", err)
	}
}

func TestUnconvergedModelStillPredicts(t *testing.T) {
	X, y := separableDataset(5)
	m := NewSoftmaxRegression(2, 1, WithOptimizer(&GradientDescent{MaxIterations: 1}))
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if m.Converged() {
		t.Error("Converged() = true after a single iteration; want false")
	}
	preds, err := m.Predict(X)
	if err != nil {
		t.Fatalf("Predict after non-convergence returned error: %v", err)
	}
	if len(preds) != len(y) {
		t.Errorf("Predict returned %d labels; want %d", len(preds), len(y))
	}
}

func TestRefitOverwritesParameters(t *testing.T) {
	X, y := separableDataset(10)
	m := NewSoftmaxRegression(2, 1)
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("first Fit returned error: %v", err)
	}
	first := m.Weights()

	// Retrain with the labels flipped; the parameters must be replaced.
	flipped := make([]int, len(y))
	for i, label := range y {
		flipped[i] = 1 - label
	}
	if err := m.Fit(X, flipped); err != nil {
		t.Fatalf("second Fit returned error: %v", err)
	}
	second := m.Weights()
	if mat.Equal(first, second) {
		t.Error("Weights unchanged after refitting on flipped labels")
	}
	acc, err := m.Score(X, flipped)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if acc != 1.0 {
		t.Errorf("accuracy on flipped labels after refit = %v; want 1.0", acc)
	}
}

func TestDeterministicGivenSeed(t *testing.T) {
	X, y := toyDataset(30)
	opt := func() Option { return WithOptimizer(&GradientDescent{MaxIterations: 50}) }

	a := NewSoftmaxRegression(3, 4, opt(), WithSeed(7))
	b := NewSoftmaxRegression(3, 4, opt(), WithSeed(7))
	if err := a.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if !mat.Equal(a.Weights(), b.Weights()) {
		t.Error("two fits with the same seed produced different weights")
	}
}

func TestWorkersMatchSequential(t *testing.T) {
	X, y := toyDataset(30)
	seq := NewSoftmaxRegression(3, 4, WithOptimizer(&GradientDescent{MaxIterations: 50}))
	par := NewSoftmaxRegression(3, 4, WithOptimizer(&GradientDescent{MaxIterations: 50}), WithWorkers(4))
	if err := seq.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if err := par.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	ps, err := seq.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba returned error: %v", err)
	}
	pp, err := par.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba returned error: %v", err)
	}
	if !mat.EqualApprox(ps, pp, 1e-12) {
		t.Error("parallel softmax evaluation diverged from the sequential result")
	}
}
