// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_activity/internal/imu"
	"github.com/relabs-tech/inertial_activity/internal/monitoring"
)

// MQTTFeed subscribes to IMURaw JSON published by the IMU producer.
type MQTTFeed struct {
	client mqtt.Client
	topic  string
}

// NewMQTTFeed creates a feed on an already connected client.
func NewMQTTFeed(client mqtt.Client, topic string) *MQTTFeed {
	return &MQTTFeed{client: client, topic: topic}
}

func (f *MQTTFeed) Name() string { return "mqtt" }

// Run subscribes to the topic and blocks until ctx is done. paho delivers
// messages for a subscription in order on one goroutine.
func (f *MQTTFeed) Run(ctx context.Context, fn SampleFunc) error {
	token := f.client.Subscribe(f.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s, err := DecodeIMUPayload(msg.Payload())
		if err != nil {
			monitoring.Logf("mqtt feed: %v", err)
			return
		}
		fn(s)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt feed: subscribe %s: %w", f.topic, token.Error())
	}
	monitoring.Logf("mqtt feed: subscribed to %s", f.topic)

	<-ctx.Done()
	f.client.Unsubscribe(f.topic).Wait()
	return nil
}

// DecodeIMUPayload converts an IMURaw JSON message into a Sample.
func DecodeIMUPayload(payload []byte) (imu.Sample, error) {
	var raw imu.IMURaw
	if err := json.Unmarshal(payload, &raw); err != nil {
		return imu.Sample{}, fmt.Errorf("imu payload unmarshal: %w", err)
	}
	return raw.ToSample()
}
