// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"time"

	"github.com/relabs-tech/inertial_activity/internal/imu"
	"github.com/relabs-tech/inertial_activity/internal/monitoring"
)

// RawFeed polls an IMURawSource at a fixed interval.
type RawFeed struct {
	name     string
	src      imu.IMURawSource
	interval time.Duration
}

// NewRawFeed creates a feed reading src every interval.
func NewRawFeed(name string, src imu.IMURawSource, interval time.Duration) *RawFeed {
	return &RawFeed{name: name, src: src, interval: interval}
}

func (f *RawFeed) Name() string { return f.name }

// Run reads and converts one sample per tick. Read errors are logged and
// the tick is skipped.
func (f *RawFeed) Run(ctx context.Context, fn SampleFunc) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		raw, err := f.src.NextRaw()
		if err != nil {
			monitoring.Logf("%s feed: read error: %v", f.name, err)
			continue
		}
		s, err := raw.ToSample()
		if err != nil {
			monitoring.Logf("%s feed: %v", f.name, err)
			continue
		}
		fn(s)
	}
}
