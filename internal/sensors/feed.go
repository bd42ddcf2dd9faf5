// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides the accelerometer feeds that drive the
// classification pipeline.
package sensors

import (
	"context"

	"github.com/relabs-tech/inertial_activity/internal/imu"
)

// SampleFunc receives samples in arrival order. Feeds call it from a
// single goroutine.
type SampleFunc func(imu.Sample)

// Feed delivers accelerometer samples until ctx is done. Run returns nil
// on cancellation and an error if the feed cannot continue.
type Feed interface {
	Name() string
	Run(ctx context.Context, fn SampleFunc) error
}
