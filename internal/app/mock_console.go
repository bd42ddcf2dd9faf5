// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/relabs-tech/inertial_activity/internal/classifier"
	"github.com/relabs-tech/inertial_activity/internal/dispatch"
	"github.com/relabs-tech/inertial_activity/internal/pipeline"
	"github.com/relabs-tech/inertial_activity/internal/sensors"
)

// mockConsoleInterval feeds samples faster than real time so a window
// completes every second.
const mockConsoleInterval = 5 * time.Millisecond

// consolePresenter prints one line per result to stdout.
type consolePresenter struct {
	onResult func()
}

func (c consolePresenter) Present(msg ResultMessage) {
	fmt.Println(FormatResultLine(msg))
	if c.onResult != nil {
		c.onResult()
	}
}

// RunMockConsole classifies the mock feed locally, without MQTT or the
// web server. windows > 0 stops after that many results.
func RunMockConsole(modelPath string, windows int) error {
	var model classifier.Model = classifier.UniformModel()
	if modelPath != "" {
		m, err := classifier.LoadLinearModel(modelPath)
		if err != nil {
			return err
		}
		model = m
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var seen atomic.Int64
	fan := NewFanout(consolePresenter{onResult: func() {
		if windows > 0 && seen.Add(1) >= int64(windows) {
			stop()
		}
	}})
	d := dispatch.New(fan.Handle)
	fan.Bind(d)
	p := pipeline.New(d, classifier.NewLocalClassifier(model), nil)

	feed := sensors.NewRawFeed("mock", sensors.NewMockSource(nil), mockConsoleInterval)
	err := p.Run(ctx, feed)
	waitDispatches(d, shutdownGrace)
	return err
}
