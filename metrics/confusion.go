// Package metrics provides evaluation helpers for classification runs.
package metrics

import (
	"errors"
	"fmt"
)

// ErrInvalidInput reports mismatched label slices or out-of-range labels.
var ErrInvalidInput = errors.New("metrics: invalid input")

// ConfusionMatrix is a K x K cross-tabulation of true versus predicted
// labels: entry (i, j) counts samples with true label i predicted as j.
type ConfusionMatrix struct {
	k      int
	counts []int // row-major, rows are true labels
}

// Confusion counts the confusion matrix for aligned true and predicted label
// slices with values in [0, numClasses).
func Confusion(yTrue, yPred []int, numClasses int) (*ConfusionMatrix, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("%w: numClasses must be positive, got %d", ErrInvalidInput, numClasses)
	}
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%w: %d true labels but %d predictions", ErrInvalidInput, len(yTrue), len(yPred))
	}
	cm := &ConfusionMatrix{k: numClasses, counts: make([]int, numClasses*numClasses)}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= numClasses {
			return nil, fmt.Errorf("%w: true label %d at index %d outside [0, %d)", ErrInvalidInput, t, i, numClasses)
		}
		if p < 0 || p >= numClasses {
			return nil, fmt.Errorf("%w: predicted label %d at index %d outside [0, %d)", ErrInvalidInput, p, i, numClasses)
		}
		cm.counts[t*numClasses+p]++
	}
	return cm, nil
}

// NumClasses returns K.
func (c *ConfusionMatrix) NumClasses() int { return c.k }

// At returns the count of samples with the given true label predicted as
// predLabel.
func (c *ConfusionMatrix) At(trueLabel, predLabel int) int {
	return c.counts[trueLabel*c.k+predLabel]
}

// RowSum returns the number of samples whose true label is trueLabel.
func (c *ConfusionMatrix) RowSum(trueLabel int) int {
	sum := 0
	for p := 0; p < c.k; p++ {
		sum += c.counts[trueLabel*c.k+p]
	}
	return sum
}

// Total returns the number of samples counted.
func (c *ConfusionMatrix) Total() int {
	sum := 0
	for _, v := range c.counts {
		sum += v
	}
	return sum
}

// Dims, Z, X and Y expose the matrix as a unit-spaced grid (predicted label
// on x, true label on y) so it can be handed directly to a heatmap plotter.
func (c *ConfusionMatrix) Dims() (cols, rows int) { return c.k, c.k }

func (c *ConfusionMatrix) Z(col, row int) float64 { return float64(c.At(row, col)) }

func (c *ConfusionMatrix) X(col int) float64 { return float64(col) }

func (c *ConfusionMatrix) Y(row int) float64 { return float64(row) }

// Accuracy returns the fraction of predictions equal to the true label.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("%w: %d true labels but %d predictions", ErrInvalidInput, len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, fmt.Errorf("%w: no samples", ErrInvalidInput)
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}
