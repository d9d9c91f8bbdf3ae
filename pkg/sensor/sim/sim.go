package sim

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/itohio/humidistat/pkg/config"
	"github.com/itohio/humidistat/pkg/sensor"
)

// ErrOffline is returned by channels configured as unreachable.
var ErrOffline = errors.New("simulated sensor offline")

// Enclosure simulates the humidity of the regulated volume. Opening valve 1
// with the pump running pushes humid air in, valve 2 with the pump pushes dry
// air in; otherwise the enclosure drifts towards ambient humidity.
type Enclosure struct {
	cfg config.MockConfig
	now func() time.Time

	mu       sync.Mutex
	humidity float64
	last     time.Time
	valve1   bool
	valve2   bool
	pump     bool
}

// NewEnclosure creates an Enclosure starting at ambient humidity.
func NewEnclosure(cfg config.MockConfig, now func() time.Time) *Enclosure {
	if now == nil {
		now = time.Now
	}
	return &Enclosure{
		cfg:      cfg,
		now:      now,
		humidity: cfg.AmbientHumidity,
		last:     now(),
	}
}

// SetActuators updates the simulated actuator states.
func (e *Enclosure) SetActuators(valve1, valve2, pump bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.advance()
	e.valve1, e.valve2, e.pump = valve1, valve2, pump
}

// Humidity returns the current simulated humidity (%RH).
func (e *Enclosure) Humidity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.advance()
	return e.humidity
}

// target returns the humidity the enclosure currently approaches.
func (e *Enclosure) target() float64 {
	switch {
	case e.pump && e.valve1 && !e.valve2:
		return e.cfg.HumidHumidity
	case e.pump && e.valve2 && !e.valve1:
		return e.cfg.DryHumidity
	case e.pump && e.valve1 && e.valve2:
		return (e.cfg.HumidHumidity + e.cfg.DryHumidity) / 2
	}
	return e.cfg.AmbientHumidity
}

// advance integrates the first-order response up to now. Must hold mu.
func (e *Enclosure) advance() {
	now := e.now()
	dt := now.Sub(e.last).Seconds()
	e.last = now
	if dt <= 0 {
		return
	}

	tau := e.cfg.TimeConstant.Seconds()
	alpha := 1.0
	if tau > 0 {
		alpha = 1 - math.Exp(-dt/tau)
	}
	e.humidity += alpha * (e.target() - e.humidity)
}

// Channel is a simulated BME280 reading the enclosure.
type Channel struct {
	enc     *Enclosure
	index   int
	offline bool
	reads   int
}

var _ sensor.Sensor = (*Channel)(nil)

// NewChannel creates simulated channel n (1 or 2). Channels listed in
// cfg.Offline never connect.
func NewChannel(enc *Enclosure, n int) *Channel {
	ch := &Channel{enc: enc, index: n}
	for _, off := range enc.cfg.Offline {
		if off == n {
			ch.offline = true
		}
	}
	return ch
}

// Connect simulates probing the sensor.
func (c *Channel) Connect() error {
	if c.offline {
		return ErrOffline
	}
	return nil
}

// Read returns the enclosure state with a small per-channel offset and noise.
func (c *Channel) Read() (sensor.Reading, error) {
	if c.offline {
		return sensor.Reading{}, ErrOffline
	}
	c.reads++

	noise := (math.Sin(float64(c.reads)*0.7+float64(c.index)) +
		math.Cos(float64(c.reads)*1.3)) * c.enc.cfg.NoiseLevel * 0.5
	offset := 0.2 * float64(c.index-1)

	humidity := clamp(c.enc.Humidity()+offset+noise, 0, 100)
	return sensor.Reading{
		Temperature: float32(c.enc.cfg.Temperature + offset),
		Humidity:    float32(humidity),
		Pressure:    float32(c.enc.cfg.Pressure - 10*offset),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
