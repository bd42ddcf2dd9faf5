package classifier

import (
	"context"
	"fmt"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/window"
)

// Model is an on-device activity model. Predict receives a flattened window
// and returns one probability per activity label. Implementations must be
// safe for concurrent use.
type Model interface {
	Predict(features []float32) ([]float32, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(features []float32) ([]float32, error)

// Predict calls f.
func (f ModelFunc) Predict(features []float32) ([]float32, error) { return f(features) }

// LocalClassifier runs a Model in-process.
type LocalClassifier struct {
	model Model
}

// NewLocalClassifier wraps model as a Backend.
func NewLocalClassifier(model Model) *LocalClassifier {
	return &LocalClassifier{model: model}
}

// Name implements Backend.
func (l *LocalClassifier) Name() string { return "local" }

// Classify implements Backend. The model call is not cancellable, so ctx is
// only checked before it starts.
func (l *LocalClassifier) Classify(ctx context.Context, fv window.FeatureVector) (pv activity.ProbabilityVector, err error) {
	if err := checkFeatures(fv); err != nil {
		return nil, l.fail("invalid input", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, l.fail("not started", err)
	}

	defer func() {
		if r := recover(); r != nil {
			pv = nil
			err = l.fail("model panic", fmt.Errorf("%v", r))
		}
	}()

	out, err := l.model.Predict(fv)
	if err != nil {
		return nil, l.fail("predict", err)
	}
	if len(out) != activity.LabelCount {
		return nil, l.fail("predict", fmt.Errorf("model returned %d probabilities, want %d", len(out), activity.LabelCount))
	}
	return activity.ProbabilityVector(out), nil
}

func (l *LocalClassifier) fail(detail string, err error) error {
	return &ClassificationError{Kind: ModelFailure, Backend: l.Name(), Detail: detail, Err: err}
}
