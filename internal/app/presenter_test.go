package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/dispatch"
	"github.com/relabs-tech/inertial_activity/internal/mqttutil"
)

type fakeStats struct {
	inFlight   int64
	dispatched uint64
	failed     uint64
}

func (s *fakeStats) InFlight() int64    { return s.inFlight }
func (s *fakeStats) Dispatched() uint64 { return s.dispatched }
func (s *fakeStats) Failed() uint64    { return s.failed }

type capturePresenter struct {
	mu   sync.Mutex
	msgs []ResultMessage
}

func (c *capturePresenter) Present(msg ResultMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func standingOutcome(t *testing.T) dispatch.Outcome {
	t.Helper()
	res, err := activity.Resolve(activity.ProbabilityVector{0.01, 0.02, 0.03, 0.875, 0.05, 0.015}, 42*time.Millisecond)
	require.NoError(t, err)
	return dispatch.Outcome{ID: uuid.New(), Backend: "local", Result: res, Elapsed: 42 * time.Millisecond}
}

func TestZeroMessage(t *testing.T) {
	msg := ZeroMessage()
	assert.False(t, msg.OK())
	assert.Equal(t, activity.Labels[:], msg.Labels)
	assert.Equal(t, activity.ProbabilityVector{0, 0, 0, 0, 0, 0}, msg.Probabilities)
}

func TestNewResultMessage(t *testing.T) {
	o := standingOutcome(t)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	msg := NewResultMessage(o, 3, now)
	assert.True(t, msg.OK())
	assert.Equal(t, o.ID.String(), msg.ID)
	assert.Equal(t, "Standing", msg.Label)
	assert.Equal(t, float32(0.875), msg.Probability)
	assert.Equal(t, float32(0.88), msg.Probabilities[3])
	assert.Equal(t, int64(42), msg.ElapsedMillis)
	assert.Equal(t, int64(3), msg.InFlight)
	assert.Equal(t, "2026-10-18T12:00:00Z", msg.Time)

	failed := NewResultMessage(dispatch.Outcome{ID: uuid.New(), Backend: "remote", Err: errors.New("read timeout"), Elapsed: time.Second}, 0, now)
	assert.False(t, failed.OK())
	assert.Equal(t, "read timeout", failed.Error)
	assert.Equal(t, int64(1000), failed.ElapsedMillis)
	assert.Empty(t, failed.Label)
}

func TestFanout_DeliversToAllPresenters(t *testing.T) {
	a, b := &capturePresenter{}, &capturePresenter{}
	fan := NewFanout(a)
	fan.Add(b)
	fan.Bind(&fakeStats{inFlight: 2})

	fan.Handle(standingOutcome(t))

	require.Len(t, a.msgs, 1)
	require.Len(t, b.msgs, 1)
	assert.Equal(t, a.msgs[0], b.msgs[0])
	assert.Equal(t, int64(2), a.msgs[0].InFlight)
}

func TestMQTTPresenter_Publishes(t *testing.T) {
	client := mqttutil.NewMockClient()
	p := NewMQTTPresenter(client, "inertial/activity")

	p.Present(NewResultMessage(standingOutcome(t), 0, time.Now()))
	p.Present(NewResultMessage(dispatch.Outcome{Backend: "remote", Err: errors.New("boom")}, 0, time.Now()))

	pub := client.Published()
	require.Len(t, pub, 2)
	assert.Equal(t, "inertial/activity", pub[0].Topic)
	assert.True(t, pub[0].Retained)
	assert.False(t, pub[1].Retained)

	var got ResultMessage
	require.NoError(t, json.Unmarshal(pub[0].Payload, &got))
	assert.Equal(t, "Standing", got.Label)
	assert.Len(t, got.Probabilities, activity.LabelCount)
}

func TestMQTTPresenter_PublishErrorIsLogged(t *testing.T) {
	client := mqttutil.NewMockClient()
	client.PublishErr = errors.New("not connected")
	NewMQTTPresenter(client, "inertial/activity").Present(ZeroMessage())
	assert.Empty(t, client.Published())
}
