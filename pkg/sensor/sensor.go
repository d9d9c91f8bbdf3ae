package sensor

import (
	"io"
	"strconv"
	"time"

	"github.com/chewxy/math32"
)

const (
	// DefaultRetries is the number of connection attempts per channel.
	DefaultRetries = 3
	// DefaultRetryDelay is the pause between connection attempts.
	DefaultRetryDelay = time.Second
	// NumChannels is the number of sensor channels of the humidistat.
	NumChannels = 2
)

// Reading is a single temperature/humidity/pressure measurement.
type Reading struct {
	Temperature float32 // °C
	Humidity    float32 // %RH
	Pressure    float32 // Pa
}

// Invalid returns a reading with all values set to NaN.
func Invalid() Reading {
	nan := math32.NaN()
	return Reading{Temperature: nan, Humidity: nan, Pressure: nan}
}

// Valid reports whether all values of r are numbers.
func (r Reading) Valid() bool {
	return !math32.IsNaN(r.Temperature) && !math32.IsNaN(r.Humidity) && !math32.IsNaN(r.Pressure)
}

// Sensor is one environmental sensor channel (e.g. a BME280).
type Sensor interface {
	// Connect probes and configures the sensor.
	Connect() error
	// Read performs one measurement.
	Read() (Reading, error)
}

// Gateway drives both sensor channels: connection with bounded retries and
// reads that degrade to NaN for channels that are unavailable.
type Gateway struct {
	sensors    [NumChannels]Sensor
	connected  [NumChannels]bool
	retries    int
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetries sets the number of connection attempts and the pause between them.
func WithRetries(retries int, delay time.Duration) Option {
	return func(g *Gateway) {
		if retries > 0 {
			g.retries = retries
		}
		if delay >= 0 {
			g.retryDelay = delay
		}
	}
}

// WithSleep replaces the function used to wait between connection attempts.
func WithSleep(sleep func(time.Duration)) Option {
	return func(g *Gateway) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// NewGateway creates a Gateway for two sensor channels.
func NewGateway(s1, s2 Sensor, opts ...Option) *Gateway {
	g := &Gateway{
		sensors:    [NumChannels]Sensor{s1, s2},
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Connect (re)connects both channels independently. Channels that cannot be
// reached after all retries are reported on diag as free-form text and stay
// disconnected. Afterwards one reading is taken and discarded because the
// first measurement after configuration tends to be off.
// Connect blocks for up to retries*retryDelay per failing channel.
func (g *Gateway) Connect(diag io.Writer) {
	for i, s := range g.sensors {
		g.connected[i] = g.connect(s)
		if !g.connected[i] && diag != nil {
			_, _ = io.WriteString(diag, "Could not find sensor #"+strconv.Itoa(i+1)+"\n")
		}
	}
	g.Read()
}

func (g *Gateway) connect(s Sensor) bool {
	if s == nil {
		return false
	}
	for try := 0; try < g.retries; try++ {
		if err := s.Connect(); err == nil {
			return true
		}
		if try < g.retries-1 {
			g.sleep(g.retryDelay)
		}
	}
	return false
}

// Connected reports whether channel i (0-based) is connected.
func (g *Gateway) Connected(i int) bool {
	return i >= 0 && i < NumChannels && g.connected[i]
}

// Read measures both channels. Disconnected channels and failed reads yield NaN.
func (g *Gateway) Read() [NumChannels]Reading {
	var out [NumChannels]Reading
	for i, s := range g.sensors {
		out[i] = Invalid()
		if !g.connected[i] {
			continue
		}
		r, err := s.Read()
		if err != nil {
			continue
		}
		out[i] = r
	}
	return out
}
