package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the host application configuration.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Controller ControllerConfig `yaml:"controller"`
	Mock       MockConfig       `yaml:"mock"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Store      StoreConfig      `yaml:"store"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ControllerConfig contains the timing of the control loop.
// The firmware uses the same defaults as compile-time constants; the mocked
// device builds its controller from this section.
type ControllerConfig struct {
	DAQPeriod      time.Duration `yaml:"daq_period"`      // Sensor sampling period (>= 1s for the BME280)
	FlashDuration  time.Duration `yaml:"flash_duration"`  // Indicator flash dwell time
	ConnectRetries int           `yaml:"connect_retries"` // Connection attempts per sensor channel
	RetryDelay     time.Duration `yaml:"retry_delay"`     // Pause between connection attempts
}

// MockConfig contains mocked device configuration (simulated enclosure).
type MockConfig struct {
	AmbientHumidity float64       `yaml:"ambient_humidity"` // %RH the enclosure drifts to when idle
	HumidHumidity   float64       `yaml:"humid_humidity"`   // %RH approached with valve 1 + pump
	DryHumidity     float64       `yaml:"dry_humidity"`     // %RH approached with valve 2 + pump
	TimeConstant    time.Duration `yaml:"time_constant"`    // First-order response time of the enclosure
	Temperature     float64       `yaml:"temperature"`      // °C
	Pressure        float64       `yaml:"pressure"`         // Pa
	NoiseLevel      float64       `yaml:"noise_level"`      // Amplitude of simulated noise (%RH)
	Offline         []int         `yaml:"offline"`          // Sensor channels (1 or 2) that never connect
}

// LoggingConfig contains logger configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error
}

// MetricsConfig contains the Prometheus exporter configuration.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // Empty disables the exporter
}

// StoreConfig contains data logging configuration.
type StoreConfig struct {
	SQLitePath     string `yaml:"sqlite_path"`     // Empty disables the SQLite store
	TSVPath        string `yaml:"tsv_path"`        // Empty disables the tab-separated log file
	TSVComments    string `yaml:"tsv_comments"`    // Free-form text for the [HEADER] section
	AverageSamples int    `yaml:"average_samples"` // Moving average window (0 = disabled)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Controller: ControllerConfig{
			DAQPeriod:      time.Second,
			FlashDuration:  100 * time.Millisecond,
			ConnectRetries: 3,
			RetryDelay:     time.Second,
		},
		Mock: MockConfig{
			AmbientHumidity: 45,
			HumidHumidity:   95,
			DryHumidity:     5,
			TimeConstant:    60 * time.Second,
			Temperature:     21.5,
			Pressure:        101325,
			NoiseLevel:      0.05,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Listen: "",
		},
		Store: StoreConfig{},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	// The BME280 must not be read faster than once per second
	if c.Controller.DAQPeriod < def.Controller.DAQPeriod {
		c.Controller.DAQPeriod = def.Controller.DAQPeriod
	}
	if c.Controller.FlashDuration == 0 {
		c.Controller.FlashDuration = def.Controller.FlashDuration
	}
	if c.Controller.ConnectRetries <= 0 {
		c.Controller.ConnectRetries = def.Controller.ConnectRetries
	}
	if c.Controller.RetryDelay == 0 {
		c.Controller.RetryDelay = def.Controller.RetryDelay
	}

	if c.Mock.AmbientHumidity == 0 {
		c.Mock.AmbientHumidity = def.Mock.AmbientHumidity
	}
	if c.Mock.HumidHumidity == 0 {
		c.Mock.HumidHumidity = def.Mock.HumidHumidity
	}
	if c.Mock.DryHumidity == 0 {
		c.Mock.DryHumidity = def.Mock.DryHumidity
	}
	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}
	if c.Mock.Temperature == 0 {
		c.Mock.Temperature = def.Mock.Temperature
	}
	if c.Mock.Pressure == 0 {
		c.Mock.Pressure = def.Mock.Pressure
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}
