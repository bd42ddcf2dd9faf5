package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_activity/internal/config"
	"github.com/relabs-tech/inertial_activity/internal/mqttutil"
)

func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("console: config not initialized")
	}

	client, err := mqttutil.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeActivity(client, cfg.TopicActivity, func(line string) { fmt.Println(line) }); err != nil {
		return err
	}
	log.Printf("console: subscribed to %s", cfg.TopicActivity)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func subscribeActivity(client mqtt.Client, topic string, emit func(string)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m ResultMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("console: activity unmarshal error: %v", err)
			return
		}
		emit(FormatResultLine(m))
	})
	token.Wait()
	return token.Error()
}

// FormatResultLine renders one console line for m.
func FormatResultLine(m ResultMessage) string {
	if m.Error != "" {
		return fmt.Sprintf("[ERR ] %s backend=%s after %dms: %s", m.Time, m.Backend, m.ElapsedMillis, m.Error)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[ACT ] %s %-10s p=%.2f backend=%s %4dms inflight=%d |",
		m.Time, m.Label, m.Probability, m.Backend, m.ElapsedMillis, m.InFlight)
	for i, label := range m.Labels {
		if i < len(m.Probabilities) {
			fmt.Fprintf(&b, " %s=%.2f", label, m.Probabilities[i])
		}
	}
	return b.String()
}
