// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline connects a sample feed to the window and the dispatcher.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/relabs-tech/inertial_activity/internal/classifier"
	"github.com/relabs-tech/inertial_activity/internal/dispatch"
	"github.com/relabs-tech/inertial_activity/internal/imu"
	"github.com/relabs-tech/inertial_activity/internal/monitoring"
	"github.com/relabs-tech/inertial_activity/internal/sensors"
	"github.com/relabs-tech/inertial_activity/internal/window"
)

// ErrNoRemote is returned by SetRemote when no remote backend is configured.
var ErrNoRemote = errors.New("pipeline: no remote backend configured")

// Pipeline owns the window. OnSample must be called from a single goroutine.
type Pipeline struct {
	win    *window.Window
	disp   *dispatch.Dispatcher
	local  classifier.Backend
	remote classifier.Backend

	inference atomic.Bool
	useRemote atomic.Bool
	windows   atomic.Uint64
}

// New creates a pipeline with inference enabled and the local backend
// selected. remote may be nil.
func New(d *dispatch.Dispatcher, local, remote classifier.Backend) *Pipeline {
	p := &Pipeline{
		win:    window.New(),
		disp:   d,
		local:  local,
		remote: remote,
	}
	p.inference.Store(true)
	return p
}

// OnSample appends s to the window. When the window fills it is drained
// and dispatched to the currently selected backend; the returned task is
// nil otherwise. Samples are ignored while inference is disabled.
func (p *Pipeline) OnSample(s imu.Sample) *dispatch.Task {
	if !p.inference.Load() {
		return nil
	}
	if !p.win.Append(s) {
		return nil
	}

	fv, err := p.win.Drain()
	if err != nil {
		monitoring.Logf("pipeline: drain: %v", err)
		return nil
	}
	p.windows.Add(1)
	return p.disp.Dispatch(fv, p.Backend())
}

// Run feeds samples from f into the pipeline until ctx is done or the feed
// stops.
func (p *Pipeline) Run(ctx context.Context, f sensors.Feed) error {
	monitoring.Logf("pipeline: reading samples from %s feed", f.Name())
	return f.Run(ctx, func(s imu.Sample) {
		p.OnSample(s)
	})
}

// Backend returns the backend the next dispatch will use.
func (p *Pipeline) Backend() classifier.Backend {
	if p.useRemote.Load() && p.remote != nil {
		return p.remote
	}
	return p.local
}

// SetInferenceEnabled toggles sample accumulation. A partially filled
// window is kept while disabled.
func (p *Pipeline) SetInferenceEnabled(on bool) {
	if p.inference.Swap(on) != on {
		monitoring.Logf("pipeline: inference enabled=%v", on)
	}
}

func (p *Pipeline) InferenceEnabled() bool { return p.inference.Load() }

// SetRemote selects the remote backend for subsequent dispatches. Tasks
// already in flight keep the backend they started with.
func (p *Pipeline) SetRemote(on bool) error {
	if on && p.remote == nil {
		return ErrNoRemote
	}
	if p.useRemote.Swap(on) != on {
		monitoring.Logf("pipeline: backend switched to %s", p.Backend().Name())
	}
	return nil
}

func (p *Pipeline) Remote() bool { return p.useRemote.Load() }

// Buffered returns the number of samples waiting in the window.
func (p *Pipeline) Buffered() int { return p.win.Len() }

// Windows returns the number of windows dispatched so far.
func (p *Pipeline) Windows() uint64 { return p.windows.Load() }

// Dispatcher returns the dispatcher windows are sent to.
func (p *Pipeline) Dispatcher() *dispatch.Dispatcher { return p.disp }
