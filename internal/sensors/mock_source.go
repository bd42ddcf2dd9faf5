// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/inertial_activity/internal/imu"
	"github.com/relabs-tech/inertial_activity/internal/timeutil"
)

// mockCadence is the step frequency of the synthetic gait, in Hz.
const mockCadence = 1.8

// mockAccelRange is ±4g, enough headroom for the synthetic signal.
const mockAccelRange = 1

type mockSource struct {
	clock timeutil.Clock
	start time.Time
}

// NewMockSource creates a raw source that generates a smooth walking-like
// accelerometer signal.
func NewMockSource(clock timeutil.Clock) imu.IMURawSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &mockSource{clock: clock, start: clock.Now()}
}

func (m *mockSource) sample() imu.Sample {
	phase := 2 * math.Pi * mockCadence * m.clock.Since(m.start).Seconds()

	return imu.Sample{
		X: float32(2 * math.Sin(phase)),
		Y: float32(imu.StandardGravity + 3*math.Sin(2*phase)),
		Z: float32(1.5 * math.Cos(phase)),
	}
}

func (m *mockSource) NextRaw() (imu.IMURaw, error) {
	return imu.FromSample(m.sample(), "mock", mockAccelRange)
}
