// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_activity/internal/classifier"
	"github.com/relabs-tech/inertial_activity/internal/config"
	"github.com/relabs-tech/inertial_activity/internal/dispatch"
	"github.com/relabs-tech/inertial_activity/internal/mqttutil"
	"github.com/relabs-tech/inertial_activity/internal/pipeline"
	"github.com/relabs-tech/inertial_activity/internal/sensors"
)

// shutdownGrace bounds how long shutdown waits for in-flight dispatches.
const shutdownGrace = 10 * time.Second

// RunClassifier runs the sampling pipeline and presenters until SIGINT or
// SIGTERM.
func RunClassifier() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("classifier: config not initialized")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local, err := buildLocalBackend(cfg)
	if err != nil {
		return err
	}
	remote := buildRemoteBackend(cfg)

	// --- MQTT (required for the mqtt feed, optional for publishing) ---
	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		client, err = mqttutil.Connect(cfg.MQTTBroker, cfg.MQTTClientIDClassifier)
		if err != nil {
			if cfg.FeedSource == config.FeedMQTT {
				return err
			}
			log.Printf("classifier: WARNING: %v; results will not be published", err)
			client = nil
		} else {
			log.Printf("classifier: connected to MQTT broker at %s", cfg.MQTTBroker)
			defer client.Disconnect(250)
		}
	}

	fan := NewFanout(LogPresenter{})
	if client != nil && cfg.TopicActivity != "" {
		fan.Add(NewMQTTPresenter(client, cfg.TopicActivity))
	}

	d := dispatch.New(fan.Handle, dispatch.WithMaxInFlight(int64(cfg.MaxInFlight)))
	fan.Bind(d)

	p := pipeline.New(d, local, remote)
	p.SetInferenceEnabled(cfg.InferenceEnabled)
	if cfg.InferenceBackend == config.BackendRemote {
		if err := p.SetRemote(true); err != nil {
			return fmt.Errorf("classifier: %w", err)
		}
	}

	if cfg.DisplayEnabled {
		display, err := NewDisplayPresenter(cfg.DisplayI2CBus)
		if err != nil {
			log.Printf("classifier: WARNING: display disabled: %v", err)
		} else {
			defer display.Close()
			fan.Add(display)
		}
	}

	var srv *http.Server
	if cfg.WebServerPort > 0 {
		web := NewWebPresenter(p, d)
		defer web.Close()
		fan.Add(web)

		srv = &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.WebServerPort),
			Handler:           web.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("classifier: web server listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("classifier: web server error: %v", err)
			}
		}()
	}

	feed, err := buildFeed(cfg, client)
	if err != nil {
		return err
	}

	log.Printf("classifier: feed=%s backend=%s inference=%v max_in_flight=%d",
		feed.Name(), p.Backend().Name(), p.InferenceEnabled(), cfg.MaxInFlight)

	runErr := p.Run(ctx, feed)
	stop()

	log.Printf("classifier: shutting down, %d dispatch(es) in flight", d.InFlight())
	waitDispatches(d, shutdownGrace)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("classifier: web server shutdown: %v", err)
		}
	}

	log.Printf("classifier: %d windows dispatched, %d failed", d.Dispatched(), d.Failed())
	return runErr
}

func buildLocalBackend(cfg *config.Config) (classifier.Backend, error) {
	if cfg.ModelPath == "" {
		log.Println("classifier: WARNING: MODEL_PATH not set, local backend returns uniform probabilities")
		return classifier.NewLocalClassifier(classifier.UniformModel()), nil
	}
	model, err := classifier.LoadLinearModel(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	log.Printf("classifier: loaded model from %s", cfg.ModelPath)
	return classifier.NewLocalClassifier(model), nil
}

func buildRemoteBackend(cfg *config.Config) classifier.Backend {
	if cfg.RemoteEndpoint == "" {
		return nil
	}
	connect, write, read := cfg.RemoteTimeouts()
	return classifier.NewRemoteClassifier(cfg.RemoteEndpoint, classifier.Timeouts{
		Connect: connect,
		Write:   write,
		Read:    read,
	})
}

func buildFeed(cfg *config.Config, client mqtt.Client) (sensors.Feed, error) {
	switch cfg.FeedSource {
	case config.FeedMQTT:
		if client == nil {
			return nil, errors.New("classifier: mqtt feed needs a broker connection")
		}
		return sensors.NewMQTTFeed(client, cfg.TopicIMU), nil
	case config.FeedSerial:
		return sensors.NewSerialFeed(cfg.SerialPort, cfg.SerialBaudRate), nil
	case config.FeedIMU:
		src, err := sensors.NewIMUSource("imu", sensors.IMUConfig{
			SPIDevice:  cfg.IMUSPIDevice,
			CSPin:      cfg.IMUCSPin,
			AccelRange: cfg.IMUAccelRange,
		})
		if err != nil {
			return nil, err
		}
		return sensors.NewRawFeed("imu", src, cfg.SampleInterval()), nil
	default:
		return sensors.NewRawFeed("mock", sensors.NewMockSource(nil), cfg.SampleInterval()), nil
	}
}

func waitDispatches(d *dispatch.Dispatcher, grace time.Duration) {
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		log.Printf("classifier: gave up waiting for %d dispatch(es)", d.InFlight())
	}
}
