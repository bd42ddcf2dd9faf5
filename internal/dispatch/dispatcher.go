// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package dispatch runs window classifications off the sampling path and
// delivers their outcomes, in completion order, to a single handler.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/classifier"
	"github.com/relabs-tech/inertial_activity/internal/monitoring"
	"github.com/relabs-tech/inertial_activity/internal/timeutil"
	"github.com/relabs-tech/inertial_activity/internal/window"
)

// Outcome is what a finished task reports: either Result or Err is set.
type Outcome struct {
	ID      uuid.UUID
	Backend string
	Result  activity.InferenceResult
	Err     error
	Elapsed time.Duration
}

// Handler receives every outcome. Calls are serialized.
type Handler func(Outcome)

// Task is one in-flight classification.
type Task struct {
	ID      uuid.UUID
	Backend string

	done    chan struct{}
	outcome Outcome
}

// Done is closed once the outcome has been delivered to the handler.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes and returns its result or error.
func (t *Task) Wait() (activity.InferenceResult, error) {
	<-t.done
	return t.outcome.Result, t.outcome.Err
}

// Outcome blocks until the task finishes and returns its full outcome.
func (t *Task) Outcome() Outcome {
	<-t.done
	return t.outcome
}

// Dispatcher launches one goroutine per dispatched window.
type Dispatcher struct {
	clock   timeutil.Clock
	handler Handler
	sem     *semaphore.Weighted

	inFlight   atomic.Int64
	dispatched atomic.Uint64
	failed     atomic.Uint64

	deliverMu sync.Mutex
	wg        sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the clock used to time backend calls.
func WithClock(c timeutil.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithMaxInFlight caps concurrent backend calls. Tasks over the cap wait
// inside their own goroutine; Dispatch itself never blocks. n <= 0 means
// unbounded.
func WithMaxInFlight(n int64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.sem = semaphore.NewWeighted(n)
		} else {
			d.sem = nil
		}
	}
}

// New creates a Dispatcher delivering outcomes to handler. A nil handler
// discards outcomes; callers can still use Task.Wait.
func New(handler Handler, opts ...Option) *Dispatcher {
	if handler == nil {
		handler = func(Outcome) {}
	}
	d := &Dispatcher{
		clock:   timeutil.RealClock{},
		handler: handler,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch classifies fv with backend asynchronously. backend is captured
// here, so later selection changes do not affect this task.
func (d *Dispatcher) Dispatch(fv window.FeatureVector, backend classifier.Backend) *Task {
	t := &Task{
		ID:      uuid.New(),
		Backend: backend.Name(),
		done:    make(chan struct{}),
	}

	d.inFlight.Add(1)
	d.dispatched.Add(1)
	d.wg.Add(1)

	start := d.clock.Now()
	go d.run(t, fv, backend, start)
	return t
}

func (d *Dispatcher) run(t *Task, fv window.FeatureVector, backend classifier.Backend, start time.Time) {
	defer d.wg.Done()
	defer close(t.done)

	out := d.classify(t, fv, backend, start)
	d.inFlight.Add(-1)
	t.outcome = out

	if out.Err != nil {
		d.failed.Add(1)
		monitoring.Logf("dispatch: %s (%s) failed after %v: %v", t.ID, t.Backend, out.Elapsed, out.Err)
	}
	d.deliver(out)
}

func (d *Dispatcher) classify(t *Task, fv window.FeatureVector, backend classifier.Backend, start time.Time) (out Outcome) {
	out = Outcome{ID: t.ID, Backend: t.Backend}

	defer func() {
		if r := recover(); r != nil {
			kind := classifier.ModelFailure
			if t.Backend == classifier.RemoteName {
				kind = classifier.RemoteFailure
			}
			out.Result = activity.InferenceResult{}
			out.Elapsed = d.clock.Since(start)
			out.Err = &classifier.ClassificationError{
				Kind:    kind,
				Backend: t.Backend,
				Detail:  "backend panic",
				Err:     fmt.Errorf("%v", r),
			}
		}
	}()

	ctx := context.Background()
	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			out.Err = err
			return out
		}
		defer d.sem.Release(1)
	}

	pv, err := backend.Classify(ctx, fv)
	out.Elapsed = d.clock.Since(start)
	if err != nil {
		out.Err = err
		return out
	}

	res, err := activity.Resolve(pv, out.Elapsed)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = res
	return out
}

func (d *Dispatcher) deliver(out Outcome) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("dispatch: handler panic for %s: %v", out.ID, r)
		}
	}()
	d.handler(out)
}

// InFlight returns the number of tasks that have not finished classifying.
func (d *Dispatcher) InFlight() int64 { return d.inFlight.Load() }

// Dispatched returns the total number of dispatched tasks.
func (d *Dispatcher) Dispatched() uint64 { return d.dispatched.Load() }

// Failed returns the number of tasks that ended in an error.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

// Wait blocks until every dispatched task has delivered its outcome.
func (d *Dispatcher) Wait() { d.wg.Wait() }
