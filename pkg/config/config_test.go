package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, time.Second, cfg.Controller.DAQPeriod)
	assert.Equal(t, 100*time.Millisecond, cfg.Controller.FlashDuration)
	assert.Equal(t, 3, cfg.Controller.ConnectRetries)
	assert.Equal(t, time.Second, cfg.Controller.RetryDelay)
	assert.Equal(t, float64(45), cfg.Mock.AmbientHumidity)
	assert.Equal(t, float64(101325), cfg.Mock.Pressure)
	assert.Empty(t, cfg.Mock.Offline)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Metrics.Listen)
	assert.Empty(t, cfg.Store.SQLitePath)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
  baud_rate: 9600

controller:
  daq_period: 2s
  flash_duration: 50ms
  connect_retries: 5
  retry_delay: 500ms

mock:
  ambient_humidity: 60
  time_constant: 10s
  offline: [2]

logging:
  level: debug

metrics:
  listen: ":9100"

store:
  sqlite_path: "humidistat.db"
  tsv_path: "humidistat.tsv"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 2*time.Second, cfg.Controller.DAQPeriod)
	assert.Equal(t, 50*time.Millisecond, cfg.Controller.FlashDuration)
	assert.Equal(t, 5, cfg.Controller.ConnectRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Controller.RetryDelay)
	assert.Equal(t, float64(60), cfg.Mock.AmbientHumidity)
	assert.Equal(t, 10*time.Second, cfg.Mock.TimeConstant)
	assert.Equal(t, []int{2}, cfg.Mock.Offline)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.Equal(t, "humidistat.db", cfg.Store.SQLitePath)
	assert.Equal(t, "humidistat.tsv", cfg.Store.TSVPath)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
controller:
  daq_period: 200ms
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)             // default
	assert.Equal(t, time.Second, cfg.Controller.DAQPeriod)   // clamped to the sensor minimum
	assert.Equal(t, 3, cfg.Controller.ConnectRetries)        // default
	assert.Equal(t, float64(21.5), cfg.Mock.Temperature)     // default
	assert.Equal(t, 60*time.Second, cfg.Mock.TimeConstant)   // default
	assert.Equal(t, "info", cfg.Logging.Level)               // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Controller.DAQPeriod = 5 * time.Second

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 5*time.Second, loaded.Controller.DAQPeriod)
}
