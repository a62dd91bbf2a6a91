package linear

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// modelWeights is the on-disk JSON form of a fitted model.
type modelWeights struct {
	ModelType   string      `json:"model_type"`
	NumClasses  int         `json:"num_classes"`
	NumFeatures int         `json:"num_features"`
	Weights     [][]float64 `json:"weights"`
	Bias        []float64   `json:"bias"`
	Lambda      float64     `json:"lambda"`
}

const modelType = "SoftmaxRegression"

// Save writes the fitted parameters to path as JSON.
func (m *SoftmaxRegression) Save(path string) error {
	if !m.fitted {
		return ErrNotFitted
	}
	mw := modelWeights{
		ModelType:   modelType,
		NumClasses:  m.numClasses,
		NumFeatures: m.numFeatures,
		Weights:     make([][]float64, m.numClasses),
		Bias:        make([]float64, m.numClasses),
		Lambda:      m.lambda,
	}
	for c := 0; c < m.numClasses; c++ {
		mw.Weights[c] = append([]float64(nil), m.weights.RawRowView(c)...)
		mw.Bias[c] = m.bias.AtVec(c)
	}
	data, err := json.MarshalIndent(&mw, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load restores parameters previously written by Save. The stored shape must
// match the receiver's class and feature counts.
func (m *SoftmaxRegression) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var mw modelWeights
	if err := json.Unmarshal(data, &mw); err != nil {
		return err
	}
	if mw.ModelType != modelType {
		return fmt.Errorf("%w: model type %q, want %q", ErrInvalidInput, mw.ModelType, modelType)
	}
	if mw.NumClasses != m.numClasses || mw.NumFeatures != m.numFeatures {
		return fmt.Errorf("%w: stored shape (%d, %d) does not match model (%d, %d)",
			ErrInvalidInput, mw.NumClasses, mw.NumFeatures, m.numClasses, m.numFeatures)
	}
	if len(mw.Weights) != mw.NumClasses || len(mw.Bias) != mw.NumClasses {
		return fmt.Errorf("%w: stored parameters have %d weight rows and %d biases, want %d",
			ErrInvalidInput, len(mw.Weights), len(mw.Bias), mw.NumClasses)
	}

	weights := mat.NewDense(m.numClasses, m.numFeatures, nil)
	for c, row := range mw.Weights {
		if len(row) != mw.NumFeatures {
			return fmt.Errorf("%w: weight row %d has %d entries, want %d", ErrInvalidInput, c, len(row), mw.NumFeatures)
		}
		weights.SetRow(c, row)
	}
	m.weights = weights
	m.bias = mat.NewVecDense(m.numClasses, append([]float64(nil), mw.Bias...))
	m.lambda = mw.Lambda
	m.fitted = true
	return nil
}
