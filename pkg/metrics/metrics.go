package metrics

import (
	"net/http"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itohio/humidistat/pkg/sample"
)

const metricPrefix = "humidistat_"

// Metrics holds the humidistat collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	humidity    *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	pressure    *prometheus.GaugeVec
	actuator    *prometheus.GaugeVec
	sensorUp    *prometheus.GaugeVec

	samples  prometheus.Counter
	messages prometheus.Counter
	commands *prometheus.CounterVec
}

// New creates and registers the humidistat collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		humidity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "humidity_percent",
				Help: "Relative humidity by sensor channel",
			},
			[]string{"sensor"},
		),
		temperature: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "temperature_celsius",
				Help: "Temperature by sensor channel",
			},
			[]string{"sensor"},
		),
		pressure: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "pressure_mbar",
				Help: "Pressure by sensor channel",
			},
			[]string{"sensor"},
		),
		actuator: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "actuator_on",
				Help: "Applied actuator state (1 on, 0 off)",
			},
			[]string{"actuator"},
		),
		sensorUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sensor_up",
				Help: "Whether the sensor channel delivered a valid reading",
			},
			[]string{"sensor"},
		),
		samples: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reports_total",
				Help: "Total report lines received from the device",
			},
		),
		messages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "messages_total",
				Help: "Total non-report lines received from the device",
			},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_total",
				Help: "Total command lines from the operator by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.humidity,
		m.temperature,
		m.pressure,
		m.actuator,
		m.sensorUp,
		m.samples,
		m.messages,
		m.commands,
	)
	return m
}

// Registry returns the registry holding the humidistat collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records a received sample. NaN readings leave the previous gauge
// value untouched and mark the channel down.
func (m *Metrics) Observe(s sample.Sample) {
	m.samples.Inc()

	m.actuator.WithLabelValues("valve_1").Set(boolToFloat(s.Valve1))
	m.actuator.WithLabelValues("valve_2").Set(boolToFloat(s.Valve2))
	m.actuator.WithLabelValues("pump").Set(boolToFloat(s.Pump))

	for i := range s.Humidity {
		ch := strconv.Itoa(i + 1)
		up := true
		up = setIfValid(m.humidity.WithLabelValues(ch), s.Humidity[i]) && up
		up = setIfValid(m.temperature.WithLabelValues(ch), s.Temperature[i]) && up
		up = setIfValid(m.pressure.WithLabelValues(ch), s.Pressure[i]) && up
		m.sensorUp.WithLabelValues(ch).Set(boolToFloat(up))
	}
}

// Message counts a non-report line from the device.
func (m *Metrics) Message() {
	m.messages.Inc()
}

// Command counts an operator command line; rejected lines did not parse.
func (m *Metrics) Command(accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.commands.WithLabelValues(result).Inc()
}

func setIfValid(g prometheus.Gauge, v float32) bool {
	if math32.IsNaN(v) {
		return false
	}
	g.Set(float64(v))
	return true
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
