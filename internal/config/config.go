package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Feed sources.
const (
	FeedMock   = "mock"
	FeedMQTT   = "mqtt"
	FeedSerial = "serial"
	FeedIMU    = "imu"
)

// Inference backends.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDClassifier string
	MQTTClientIDProducer   string
	MQTTClientIDConsole    string

	// Topics
	TopicIMU      string
	TopicActivity string

	// Feed
	FeedSource     string // "mock", "mqtt", "serial" or "imu"
	SerialPort     string
	SerialBaudRate uint

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange     byte
	IMUSampleInterval int // milliseconds

	// Inference
	InferenceEnabled     bool
	InferenceBackend     string // "local" or "remote"
	RemoteEndpoint       string
	RemoteConnectTimeout int // seconds
	RemoteWriteTimeout   int // seconds
	RemoteReadTimeout    int // seconds
	MaxInFlight          int // 0 = unbounded
	ModelPath            string

	// Web Server
	WebServerPort int

	// Display
	DisplayEnabled bool
	DisplayI2CBus  string // "" = first available bus
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientIDClassifier: "inertial-activity-classifier",
		MQTTClientIDProducer:   "inertial-activity-producer",
		MQTTClientIDConsole:    "inertial-activity-console",
		TopicIMU:               "inertial/imu",
		TopicActivity:          "inertial/activity",
		FeedSource:             FeedMock,
		SerialBaudRate:         115200,
		IMUSPIDevice:           "/dev/spidev6.0",
		IMUCSPin:               "18",
		IMUSampleInterval:      20,
		InferenceEnabled:       true,
		InferenceBackend:       BackendLocal,
		RemoteConnectTimeout:   30,
		RemoteWriteTimeout:     30,
		RemoteReadTimeout:      30,
		WebServerPort:          8080,
	}
}

// Load reads the configuration file and returns a Config struct. Files
// ending in .yaml or .yml are decoded as a YAML mapping of the same keys;
// anything else is read as KEY=VALUE lines.
func Load(configPath string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return loadYAML(configPath)
	default:
		return loadText(configPath)
	}
}

func loadText(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg := Default()
	for key, value := range values {
		if err := cfg.setValue(strings.ToUpper(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config key %s: %w", key, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CLASSIFIER":
		c.MQTTClientIDClassifier = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_ACTIVITY":
		c.TopicActivity = value

	// Feed
	case "FEED_SOURCE":
		switch value {
		case FeedMock, FeedMQTT, FeedSerial, FeedIMU:
			c.FeedSource = value
		default:
			return fmt.Errorf("FEED_SOURCE must be mock, mqtt, serial or imu, got %q", value)
		}
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		baud, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = uint(baud)

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.IMUSampleInterval = interval

	// Inference
	case "INFERENCE_ENABLED":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid INFERENCE_ENABLED %q: %w", value, err)
		}
		c.InferenceEnabled = on
	case "INFERENCE_BACKEND":
		switch value {
		case BackendLocal, BackendRemote:
			c.InferenceBackend = value
		default:
			return fmt.Errorf("INFERENCE_BACKEND must be local or remote, got %q", value)
		}
	case "REMOTE_ENDPOINT":
		c.RemoteEndpoint = value
	case "REMOTE_CONNECT_TIMEOUT":
		return setSeconds(&c.RemoteConnectTimeout, key, value)
	case "REMOTE_WRITE_TIMEOUT":
		return setSeconds(&c.RemoteWriteTimeout, key, value)
	case "REMOTE_READ_TIMEOUT":
		return setSeconds(&c.RemoteReadTimeout, key, value)
	case "MAX_IN_FLIGHT":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAX_IN_FLIGHT %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("MAX_IN_FLIGHT must be >= 0, got %d", n)
		}
		c.MaxInFlight = n
	case "MODEL_PATH":
		c.ModelPath = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", port)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_ENABLED":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
		c.DisplayEnabled = on
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func setSeconds(dst *int, key, value string) error {
	secs, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if secs <= 0 {
		return fmt.Errorf("%s must be > 0 seconds, got %d", key, secs)
	}
	*dst = secs
	return nil
}

// validate checks cross-field requirements.
func (c *Config) validate() error {
	if c.MQTTBroker == "" && c.FeedSource == FeedMQTT {
		return fmt.Errorf("MQTT_BROKER is required when FEED_SOURCE=mqtt")
	}
	if c.IMUSampleInterval <= 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL must be > 0, got %d", c.IMUSampleInterval)
	}
	if c.InferenceBackend == BackendRemote && c.RemoteEndpoint == "" {
		return fmt.Errorf("REMOTE_ENDPOINT is required when INFERENCE_BACKEND=remote")
	}
	switch c.FeedSource {
	case FeedSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required when FEED_SOURCE=serial")
		}
		if c.SerialBaudRate == 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE is required when FEED_SOURCE=serial")
		}
	case FeedIMU:
		if c.IMUSPIDevice == "" || c.IMUCSPin == "" {
			return fmt.Errorf("IMU_SPI_DEVICE and IMU_CS_PIN are required when FEED_SOURCE=imu")
		}
	case FeedMQTT:
		if c.TopicIMU == "" {
			return fmt.Errorf("TOPIC_IMU is required when FEED_SOURCE=mqtt")
		}
	}
	return nil
}

// SampleInterval is IMUSampleInterval as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.IMUSampleInterval) * time.Millisecond
}

// RemoteTimeouts returns the connect, write and read timeouts.
func (c *Config) RemoteTimeouts() (connect, write, read time.Duration) {
	return time.Duration(c.RemoteConnectTimeout) * time.Second,
		time.Duration(c.RemoteWriteTimeout) * time.Second,
		time.Duration(c.RemoteReadTimeout) * time.Second
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
