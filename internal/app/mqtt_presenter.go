// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_activity/internal/mqttutil"
)

// MQTTPresenter publishes every message as JSON on a topic. Results are
// retained so late subscribers see the current activity.
type MQTTPresenter struct {
	client mqtt.Client
	topic  string
}

func NewMQTTPresenter(client mqtt.Client, topic string) *MQTTPresenter {
	return &MQTTPresenter{client: client, topic: topic}
}

func (p *MQTTPresenter) Present(msg ResultMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("classifier: activity marshal error: %v", err)
		return
	}
	if err := mqttutil.Publish(p.client, p.topic, msg.OK(), payload); err != nil {
		log.Printf("classifier: %v", err)
	}
}
