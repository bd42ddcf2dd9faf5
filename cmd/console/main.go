// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/inertial_activity/internal/app"
)

func main() {
	modelPath := flag.String("model", "", "linear model JSON (empty = uniform)")
	windows := flag.Int("windows", 0, "stop after this many windows (0 = run until Ctrl+C)")
	flag.Parse()

	log.Println("starting inertial-activity (mock console)")

	if err := app.RunMockConsole(*modelPath, *windows); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
