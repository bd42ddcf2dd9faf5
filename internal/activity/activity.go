// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package activity turns classifier probability vectors into labeled,
// presentation-ready inference results.
package activity

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Labels is the fixed activity schema. Every ProbabilityVector is
// index-aligned to it.
var Labels = [...]string{"Downstairs", "Jogging", "Sitting", "Standing", "Upstairs", "Walking"}

// LabelCount is the number of activity labels.
const LabelCount = len(Labels)

// ProbabilityVector holds one probability per label, in Labels order.
type ProbabilityVector []float32

// InferenceResult is the outcome of one classified window.
type InferenceResult struct {
	Probabilities ProbabilityVector `json:"probabilities"` // rounded to 2 decimals
	Raw           ProbabilityVector `json:"raw"`
	Label         string            `json:"label"`
	Probability   float32           `json:"probability"` // unrounded winner probability
	Elapsed       time.Duration     `json:"-"`
	ElapsedMillis int64             `json:"elapsed_ms"`
}

// ResolutionErrorKind enumerates why a vector could not be resolved.
type ResolutionErrorKind int

const (
	EmptyVector ResolutionErrorKind = iota
	LabelMismatch
)

func (k ResolutionErrorKind) String() string {
	switch k {
	case EmptyVector:
		return "empty vector"
	case LabelMismatch:
		return "label mismatch"
	default:
		return "unknown"
	}
}

// ResolutionError is returned by Resolve when no winner can be chosen.
type ResolutionError struct {
	Kind   ResolutionErrorKind
	Length int
}

func (e *ResolutionError) Error() string {
	if e.Kind == LabelMismatch {
		return fmt.Sprintf("resolve: %s: got %d probabilities, want %d", e.Kind, e.Length, LabelCount)
	}
	return fmt.Sprintf("resolve: %s", e.Kind)
}

// Resolve rounds pv for presentation and selects the winning label.
// The winner is the first index holding the maximum of the unrounded vector.
func Resolve(pv ProbabilityVector, elapsed time.Duration) (InferenceResult, error) {
	if len(pv) == 0 {
		return InferenceResult{}, &ResolutionError{Kind: EmptyVector}
	}
	if len(pv) != LabelCount {
		return InferenceResult{}, &ResolutionError{Kind: LabelMismatch, Length: len(pv)}
	}

	idx := WinnerIndex(pv)

	raw := make(ProbabilityVector, len(pv))
	copy(raw, pv)
	rounded := make(ProbabilityVector, len(pv))
	for i, p := range pv {
		rounded[i] = Round(p, 2)
	}

	return InferenceResult{
		Probabilities: rounded,
		Raw:           raw,
		Label:         Labels[idx],
		Probability:   pv[idx],
		Elapsed:       elapsed,
		ElapsedMillis: elapsed.Milliseconds(),
	}, nil
}

// WinnerIndex returns the index of the maximum value, keeping the lowest
// index on ties. pv must not be empty.
func WinnerIndex(pv ProbabilityVector) int {
	wide := make([]float64, len(pv))
	for i, p := range pv {
		wide[i] = float64(p)
	}
	return floats.MaxIdx(wide)
}
