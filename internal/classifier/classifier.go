// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package classifier provides the two interchangeable classification
// backends: an in-process model (LocalClassifier) and an HTTP prediction
// service (RemoteClassifier).
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/window"
)

// ErrFeatureLength is wrapped by ClassificationError when the input vector
// is not window.FeatureLength long.
var ErrFeatureLength = errors.New("feature vector has wrong length")

// Backend classifies one flattened window into a probability vector.
// Implementations must be safe for concurrent use: several dispatches may
// be in flight at once.
type Backend interface {
	Name() string
	Classify(ctx context.Context, fv window.FeatureVector) (activity.ProbabilityVector, error)
}

// Kind distinguishes local from remote classification failures.
type Kind int

const (
	ModelFailure Kind = iota
	RemoteFailure
)

func (k Kind) String() string {
	switch k {
	case ModelFailure:
		return "model failure"
	case RemoteFailure:
		return "remote failure"
	default:
		return "unknown"
	}
}

// ClassificationError is returned by every Backend on failure.
type ClassificationError struct {
	Kind    Kind
	Backend string
	Detail  string
	Err     error
}

func (e *ClassificationError) Error() string {
	msg := fmt.Sprintf("classify (%s): %s", e.Backend, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClassificationError) Unwrap() error { return e.Err }

func checkFeatures(fv window.FeatureVector) error {
	if len(fv) != window.FeatureLength {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureLength, len(fv), window.FeatureLength)
	}
	return nil
}
