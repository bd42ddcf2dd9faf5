package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/window"
)

func requireModelFailure(t *testing.T, err error) {
	t.Helper()
	var cerr *ClassificationError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Equal(t, ModelFailure, cerr.Kind)
	assert.Equal(t, "local", cerr.Backend)
}

func TestLocalClassifier_Delegates(t *testing.T) {
	var got []float32
	lc := NewLocalClassifier(ModelFunc(func(f []float32) ([]float32, error) {
		got = f
		return []float32{0, 0, 0, 1, 0, 0}, nil
	}))

	fv := testVector()
	pv, err := lc.Classify(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, activity.ProbabilityVector{0, 0, 0, 1, 0, 0}, pv)
	assert.Equal(t, []float32(fv), got)
	assert.Equal(t, "local", lc.Name())
}

func TestLocalClassifier_Failures(t *testing.T) {
	boom := errors.New("tensor shape mismatch")
	tests := []struct {
		name  string
		model ModelFunc
		fv    window.FeatureVector
	}{
		{"model error", func([]float32) ([]float32, error) { return nil, boom }, testVector()},
		{"wrong output length", func([]float32) ([]float32, error) { return []float32{1}, nil }, testVector()},
		{"panic", func([]float32) ([]float32, error) { panic("native crash") }, testVector()},
		{"wrong input length", func([]float32) ([]float32, error) { return make([]float32, 6), nil }, window.FeatureVector{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pv, err := NewLocalClassifier(tt.model).Classify(context.Background(), tt.fv)
			assert.Nil(t, pv)
			requireModelFailure(t, err)
		})
	}
}

func TestLocalClassifier_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	lc := NewLocalClassifier(ModelFunc(func([]float32) ([]float32, error) {
		called = true
		return make([]float32, 6), nil
	}))
	_, err := lc.Classify(ctx, testVector())
	requireModelFailure(t, err)
	assert.False(t, called)
}

// standingModel puts all weight on the Standing row's bias.
func standingModel() ([][]float64, []float64) {
	weights := make([][]float64, activity.LabelCount)
	for i := range weights {
		weights[i] = make([]float64, window.FeatureLength)
	}
	bias := []float64{0, 0, 0, 10, 0, 0}
	return weights, bias
}

func TestLinearModel_Predict(t *testing.T) {
	weights, bias := standingModel()
	m, err := NewLinearModel(weights, bias)
	require.NoError(t, err)

	out, err := m.Predict(testVector())
	require.NoError(t, err)
	require.Len(t, out, activity.LabelCount)

	sum := float32(0)
	for _, p := range out {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Equal(t, 3, activity.WinnerIndex(out))

	_, err = m.Predict([]float32{1, 2})
	assert.ErrorIs(t, err, ErrFeatureLength)
}

func TestLinearModel_WeightsApplied(t *testing.T) {
	weights, bias := standingModel()
	bias[3] = 0
	// Walking responds to the mean of the z block.
	for i := 2 * window.Size; i < window.FeatureLength; i++ {
		weights[5][i] = 1.0 / window.Size
	}
	m, err := NewLinearModel(weights, bias)
	require.NoError(t, err)

	fv := make([]float32, window.FeatureLength)
	for i := 2 * window.Size; i < window.FeatureLength; i++ {
		fv[i] = 9.8
	}
	out, err := m.Predict(fv)
	require.NoError(t, err)
	assert.Equal(t, 5, activity.WinnerIndex(out))
}

func TestNewLinearModel_Validation(t *testing.T) {
	weights, bias := standingModel()

	_, err := NewLinearModel(weights[:5], bias)
	assert.ErrorContains(t, err, "weight rows")

	_, err = NewLinearModel(weights, bias[:2])
	assert.ErrorContains(t, err, "bias values")

	weights[2] = weights[2][:10]
	_, err = NewLinearModel(weights, bias)
	assert.ErrorContains(t, err, "row 2")
}

func TestLoadLinearModel(t *testing.T) {
	weights, bias := standingModel()
	dir := t.TempDir()

	write := func(name string, v interface{}) string {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		return path
	}

	good := write("good.json", linearModelFile{Labels: activity.Labels[:], Weights: weights, Bias: bias})
	m, err := LoadLinearModel(good)
	require.NoError(t, err)

	lc := NewLocalClassifier(m)
	pv, err := lc.Classify(context.Background(), testVector())
	require.NoError(t, err)
	assert.Equal(t, 3, activity.WinnerIndex(pv))

	swapped := append([]string(nil), activity.Labels[:]...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	bad := write("bad.json", linearModelFile{Labels: swapped, Weights: weights, Bias: bias})
	_, err = LoadLinearModel(bad)
	assert.ErrorContains(t, err, "label 0")

	_, err = LoadLinearModel(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{"), 0o644))
	_, err = LoadLinearModel(garbage)
	assert.Error(t, err)
}
