// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/inertial_activity/internal/imu"
	"github.com/relabs-tech/inertial_activity/internal/monitoring"
)

// SerialFeed reads "x,y,z" lines (m/s²) from a serial accelerometer.
type SerialFeed struct {
	opts serial.OpenOptions
	open func(serial.OpenOptions) (io.ReadWriteCloser, error)
}

// NewSerialFeed creates a feed on port at baud, 8N1.
func NewSerialFeed(port string, baud uint) *SerialFeed {
	return &SerialFeed{
		opts: serial.OpenOptions{
			PortName:              port,
			BaudRate:              baud,
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 0,
		},
		open: serial.Open,
	}
}

func (f *SerialFeed) Name() string { return "serial" }

// Run opens the port and reads lines until ctx is done or the port fails.
func (f *SerialFeed) Run(ctx context.Context, fn SampleFunc) error {
	port, err := f.open(f.opts)
	if err != nil {
		return fmt.Errorf("serial feed: open %s: %w", f.opts.PortName, err)
	}
	defer port.Close()
	monitoring.Logf("serial feed: port opened on %s at %d baud", f.opts.PortName, f.opts.BaudRate)

	// Closing the port is the only way to unblock a pending read.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-stop:
		}
	}()

	err = ReadSamples(port, fn)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serial feed: %w", err)
	}
	return fmt.Errorf("serial feed: %s: %w", f.opts.PortName, io.EOF)
}

// ReadSamples parses CSV sample lines from r until EOF. Blank lines and
// lines starting with '#' are skipped; malformed lines are logged and
// skipped.
func ReadSamples(r io.Reader, fn SampleFunc) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		s, err := ParseSampleLine(line)
		if err != nil {
			monitoring.Logf("serial feed: line %d: %v", lineNum, err)
			continue
		}
		fn(s)
	}
	return scanner.Err()
}

// ParseSampleLine parses "x,y,z".
func ParseSampleLine(line string) (imu.Sample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return imu.Sample{}, fmt.Errorf("expected 3 fields, got %d in %q", len(parts), line)
	}

	var v [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return imu.Sample{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v[i] = float32(f)
	}
	return imu.Sample{X: v[0], Y: v[1], Z: v[2]}, nil
}
