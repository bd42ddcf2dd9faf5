// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/dispatch"
	"github.com/relabs-tech/inertial_activity/internal/timeutil"
)

// ResultMessage is the wire form of one dispatch outcome, shared by the
// MQTT topic, the websocket stream and the JSON API.
type ResultMessage struct {
	ID            string                     `json:"id,omitempty"`
	Backend       string                     `json:"backend,omitempty"`
	Time          string                     `json:"time"`
	Labels        []string                   `json:"labels"`
	Probabilities activity.ProbabilityVector `json:"probabilities"`
	Label         string                     `json:"label,omitempty"`
	Probability   float32                    `json:"probability"`
	ElapsedMillis int64                      `json:"elapsed_ms"`
	InFlight      int64                      `json:"in_flight"`
	Error         string                     `json:"error,omitempty"`
}

// OK reports whether the message carries a result.
func (m ResultMessage) OK() bool { return m.Error == "" && m.Label != "" }

// ZeroMessage is shown before the first result arrives.
func ZeroMessage() ResultMessage {
	return ResultMessage{
		Labels:        activity.Labels[:],
		Probabilities: make(activity.ProbabilityVector, activity.LabelCount),
	}
}

// NewResultMessage builds the message for o.
func NewResultMessage(o dispatch.Outcome, inFlight int64, now time.Time) ResultMessage {
	msg := ResultMessage{
		ID:            o.ID.String(),
		Backend:       o.Backend,
		Time:          now.Format(time.RFC3339),
		Labels:        activity.Labels[:],
		ElapsedMillis: o.Elapsed.Milliseconds(),
		InFlight:      inFlight,
	}
	if o.Err != nil {
		msg.Error = o.Err.Error()
		return msg
	}
	msg.Probabilities = o.Result.Probabilities
	msg.Label = o.Result.Label
	msg.Probability = o.Result.Probability
	msg.ElapsedMillis = o.Result.ElapsedMillis
	return msg
}

// Presenter shows results somewhere. Present is never called concurrently.
type Presenter interface {
	Present(msg ResultMessage)
}

// Stats is the dispatcher view presenters report on.
type Stats interface {
	InFlight() int64
	Dispatched() uint64
	Failed() uint64
}

// Fanout turns dispatch outcomes into messages for every presenter.
type Fanout struct {
	clock timeutil.Clock

	mu         sync.RWMutex
	presenters []Presenter
	stats      Stats
}

// NewFanout creates a Fanout over presenters.
func NewFanout(presenters ...Presenter) *Fanout {
	return &Fanout{clock: timeutil.RealClock{}, presenters: presenters}
}

// Add registers another presenter.
func (f *Fanout) Add(p Presenter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presenters = append(f.presenters, p)
}

// Bind sets the stats source used for the in-flight count.
func (f *Fanout) Bind(stats Stats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = stats
}

// Handle is a dispatch.Handler.
func (f *Fanout) Handle(o dispatch.Outcome) {
	var inFlight int64
	f.mu.RLock()
	if f.stats != nil {
		inFlight = f.stats.InFlight()
	}
	presenters := f.presenters
	f.mu.RUnlock()

	msg := NewResultMessage(o, inFlight, f.clock.Now())
	for _, p := range presenters {
		p.Present(msg)
	}
}

// LogPresenter writes one line per outcome.
type LogPresenter struct{}

func (LogPresenter) Present(msg ResultMessage) {
	if !msg.OK() {
		log.Printf("classifier: %s (%s) failed after %dms: %s", msg.ID, msg.Backend, msg.ElapsedMillis, msg.Error)
		return
	}
	log.Printf("classifier: %s (%s) %s p=%.2f %v in %dms, %d in flight",
		msg.ID, msg.Backend, msg.Label, msg.Probability, msg.Probabilities, msg.ElapsedMillis, msg.InFlight)
}
