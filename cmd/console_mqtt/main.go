package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/inertial_activity/internal/app"
	"github.com/relabs-tech/inertial_activity/internal/config"
)

func main() {
	configPath := flag.String("config", "./classifier_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting inertial-activity console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
