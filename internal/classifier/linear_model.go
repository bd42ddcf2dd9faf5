package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/window"
)

// LinearModel is a softmax regression over the flattened window:
// p = softmax(W·x + b). W is LabelCount×FeatureLength.
type LinearModel struct {
	weights *mat.Dense
	bias    *mat.VecDense
}

// linearModelFile is the on-disk JSON form of a LinearModel.
type linearModelFile struct {
	Labels  []string    `json:"labels"`
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// NewLinearModel validates dimensions and builds a model.
func NewLinearModel(weights [][]float64, bias []float64) (*LinearModel, error) {
	if len(weights) != activity.LabelCount {
		return nil, fmt.Errorf("linear model: %d weight rows, want %d", len(weights), activity.LabelCount)
	}
	if len(bias) != activity.LabelCount {
		return nil, fmt.Errorf("linear model: %d bias values, want %d", len(bias), activity.LabelCount)
	}

	data := make([]float64, 0, activity.LabelCount*window.FeatureLength)
	for i, row := range weights {
		if len(row) != window.FeatureLength {
			return nil, fmt.Errorf("linear model: weight row %d has %d columns, want %d", i, len(row), window.FeatureLength)
		}
		data = append(data, row...)
	}

	b := make([]float64, len(bias))
	copy(b, bias)
	return &LinearModel{
		weights: mat.NewDense(activity.LabelCount, window.FeatureLength, data),
		bias:    mat.NewVecDense(activity.LabelCount, b),
	}, nil
}

// LoadLinearModel reads a model from a JSON file with "weights", "bias" and
// an optional "labels" list that must match the activity schema order.
func LoadLinearModel(path string) (*LinearModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var f linearModelFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}

	if len(f.Labels) > 0 {
		if len(f.Labels) != activity.LabelCount {
			return nil, fmt.Errorf("model file %s: %d labels, want %d", path, len(f.Labels), activity.LabelCount)
		}
		for i, l := range f.Labels {
			if l != activity.Labels[i] {
				return nil, fmt.Errorf("model file %s: label %d is %q, want %q", path, i, l, activity.Labels[i])
			}
		}
	}

	return NewLinearModel(f.Weights, f.Bias)
}

// Predict implements Model. It only reads the model, so concurrent calls
// are safe.
func (m *LinearModel) Predict(features []float32) ([]float32, error) {
	if len(features) != window.FeatureLength {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureLength, len(features), window.FeatureLength)
	}

	x := make([]float64, len(features))
	for i, v := range features {
		x[i] = float64(v)
	}

	var z mat.VecDense
	z.MulVec(m.weights, mat.NewVecDense(len(x), x))
	z.AddVec(&z, m.bias)

	return softmax(z.RawVector().Data), nil
}

func softmax(z []float64) []float32 {
	maxZ := math.Inf(-1)
	for _, v := range z {
		if v > maxZ {
			maxZ = v
		}
	}

	sum := 0.0
	exp := make([]float64, len(z))
	for i, v := range z {
		exp[i] = math.Exp(v - maxZ)
		sum += exp[i]
	}

	out := make([]float32, len(z))
	for i := range exp {
		out[i] = float32(exp[i] / sum)
	}
	return out
}

// UniformModel assigns every label the same probability. It stands in for
// the local model when none is configured.
func UniformModel() Model {
	return ModelFunc(func(features []float32) ([]float32, error) {
		out := make([]float32, activity.LabelCount)
		for i := range out {
			out[i] = 1 / float32(activity.LabelCount)
		}
		return out, nil
	})
}
