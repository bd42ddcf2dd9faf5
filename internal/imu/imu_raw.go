// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"math"
)

// StandardGravity is 1 g in m/s².
const StandardGravity = 9.80665

// IMURaw represents a single raw IMU sample as published on MQTT by the
// IMU producer. Accelerometer values are in raw counts.
type IMURaw struct {
	Source string `json:"source"` // e.g. "left", "mock"

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	// AccelRange is the full-scale setting the counts were captured with:
	// 0=±2g, 1=±4g, 2=±8g, 3=±16g.
	AccelRange byte `json:"accel_range"`
}

// Sample is one triaxial accelerometer reading in m/s².
type Sample struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// IMURawSource is anything that can produce raw IMU readings.
type IMURawSource interface {
	NextRaw() (IMURaw, error)
}

// AccelScale returns the m/s² per count for an MPU-9250 accel range code.
func AccelScale(accelRange byte) (float64, error) {
	if accelRange > 3 {
		return 0, fmt.Errorf("accel range must be 0-3, got %d", accelRange)
	}
	fullScaleG := float64(int(2) << accelRange) // 2, 4, 8, 16
	return fullScaleG * StandardGravity / 32768.0, nil
}

// ToSample converts the raw accelerometer counts to a Sample in m/s².
func (r IMURaw) ToSample() (Sample, error) {
	scale, err := AccelScale(r.AccelRange)
	if err != nil {
		return Sample{}, fmt.Errorf("%s IMU: %w", r.Source, err)
	}
	return Sample{
		X: float32(float64(r.Ax) * scale),
		Y: float32(float64(r.Ay) * scale),
		Z: float32(float64(r.Az) * scale),
	}, nil
}

// FromSample converts s back to raw counts at the given accel range,
// saturating at the int16 limits like the sensor does.
func FromSample(s Sample, source string, accelRange byte) (IMURaw, error) {
	scale, err := AccelScale(accelRange)
	if err != nil {
		return IMURaw{}, fmt.Errorf("%s IMU: %w", source, err)
	}
	return IMURaw{
		Source:     source,
		Ax:         toCounts(s.X, scale),
		Ay:         toCounts(s.Y, scale),
		Az:         toCounts(s.Z, scale),
		AccelRange: accelRange,
	}, nil
}

func toCounts(v float32, scale float64) int16 {
	c := math.Round(float64(v) / scale)
	switch {
	case c > math.MaxInt16:
		return math.MaxInt16
	case c < math.MinInt16:
		return math.MinInt16
	}
	return int16(c)
}
