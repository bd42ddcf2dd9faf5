// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package window accumulates accelerometer samples into fixed-size
// classification windows.
package window

import (
	"errors"
	"sync"

	"github.com/relabs-tech/inertial_activity/internal/imu"
)

// Size is the number of samples in one classification window.
const Size = 200

// FeatureLength is the length of a flattened window.
const FeatureLength = 3 * Size

// ErrNotFull is returned by Drain when the window holds fewer than Size samples.
var ErrNotFull = errors.New("window: not full")

// FeatureVector is a flattened window laid out as all x values, then all y,
// then all z, each block in arrival order. Both classifier backends depend
// on this layout.
type FeatureVector []float32

// Window is a fixed-capacity triaxial sample buffer. Append and Drain share
// one mutex so a sample is either drained or retained, never both.
type Window struct {
	mu      sync.Mutex
	x, y, z [Size]float32
	n       int
	dropped uint64
}

// New returns an empty window.
func New() *Window {
	return &Window{}
}

// Append adds s and reports whether the window is full afterwards.
// A sample appended to an already-full window is counted as dropped and
// not retained.
func (w *Window) Append(s imu.Sample) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.n == Size {
		w.dropped++
		return true
	}
	w.x[w.n] = s.X
	w.y[w.n] = s.Y
	w.z[w.n] = s.Z
	w.n++
	return w.n == Size
}

// IsFull reports whether the window holds Size samples.
func (w *Window) IsFull() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n == Size
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Dropped returns how many samples were rejected because the window was full.
func (w *Window) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Drain flattens a full window and resets it to empty.
func (w *Window) Drain() (FeatureVector, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.n != Size {
		return nil, ErrNotFull
	}

	fv := make(FeatureVector, FeatureLength)
	copy(fv[0:Size], w.x[:])
	copy(fv[Size:2*Size], w.y[:])
	copy(fv[2*Size:], w.z[:])
	w.n = 0
	return fv, nil
}
