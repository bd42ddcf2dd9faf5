package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_activity/internal/config"
	"github.com/relabs-tech/inertial_activity/internal/imu"
	"github.com/relabs-tech/inertial_activity/internal/mqttutil"
	"github.com/relabs-tech/inertial_activity/internal/sensors"
)

// producerLogEvery controls how often the publish loop logs a tick.
const producerLogEvery = 250

// RunIMUProducer reads the MPU-9250 (or the mock source) and publishes raw
// readings to TOPIC_IMU.
func RunIMUProducer() error {
	log.Println("starting inertial-activity IMU producer")

	cfg := config.Get()
	if cfg == nil {
		return errors.New("imu producer: config not initialized")
	}

	// --- Choose source (mock vs real IMU) ---
	var src imu.IMURawSource
	if cfg.FeedSource == config.FeedIMU {
		s, err := sensors.NewIMUSource("left", sensors.IMUConfig{
			SPIDevice:  cfg.IMUSPIDevice,
			CSPin:      cfg.IMUCSPin,
			AccelRange: cfg.IMUAccelRange,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize IMU: %w", err)
		}
		src = s
		log.Println("using SPI IMU source")
	} else {
		src = sensors.NewMockSource(nil)
		log.Println("using mock IMU source")
	}

	// --- connect to MQTT ---
	client, err := mqttutil.Connect(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Println("connected to MQTT, starting publish loop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := produceRaw(ctx, src, client, cfg.TopicIMU, cfg.SampleInterval())
	log.Printf("imu producer: published %d samples", n)
	return nil
}

// produceRaw publishes one reading per tick until ctx is done and returns
// the number of readings published.
func produceRaw(ctx context.Context, src imu.IMURawSource, client mqtt.Client, topic string, interval time.Duration) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	published := 0
	for {
		select {
		case <-ctx.Done():
			return published
		case t := <-ticker.C:
			raw, err := src.NextRaw()
			if err != nil {
				log.Printf("error reading IMU: %v", err)
				continue
			}

			payload, err := json.Marshal(raw)
			if err != nil {
				log.Printf("IMU marshal error: %v", err)
				continue
			}
			if err := mqttutil.Publish(client, topic, false, payload); err != nil {
				log.Printf("MQTT publish error (imu): %v", err)
				continue
			}
			published++

			if published%producerLogEvery == 0 {
				log.Printf("%s tick %d: accel ax=%d ay=%d az=%d | gyro gx=%d gy=%d gz=%d",
					t.Format(time.RFC3339), published,
					raw.Ax, raw.Ay, raw.Az, raw.Gx, raw.Gy, raw.Gz)
			}
		}
	}
}
