package control

import (
	"context"
	"image/color"
	"io"
	"time"

	"github.com/itohio/humidistat/pkg/command"
	"github.com/itohio/humidistat/pkg/indicator"
	"github.com/itohio/humidistat/pkg/report"
	"github.com/itohio/humidistat/pkg/sensor"
)

const (
	// DefaultDAQPeriod is the sampling period in ms. The BME280 must not be
	// read out faster than once per second.
	DefaultDAQPeriod = 1000
	// DefaultFlashDuration is how long the indicator flashes per measurement, in ms.
	DefaultFlashDuration = 100
	// DefaultID is the reply to the identification query.
	DefaultID = "TinyGo, Humidistat v1"
)

// Clock is a free-running millisecond counter that wraps at 2^32.
type Clock interface {
	Millis() uint32
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() uint32

func (f ClockFunc) Millis() uint32 { return f() }

// SystemClock counts milliseconds since it was created. It wraps after
// about 49.7 days like a microcontroller millis() counter.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a SystemClock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

// Lines yields complete command lines without blocking. *command.Scanner implements it.
type Lines interface {
	Poll() (string, bool)
}

// Sensors is the sensor gateway. *sensor.Gateway implements it.
type Sensors interface {
	Connect(diag io.Writer)
	Read() [sensor.NumChannels]sensor.Reading
}

// Hardware groups the collaborators the controller drives.
type Hardware struct {
	Clock     Clock
	Commands  Lines
	Outputs   Outputs
	Sensors   Sensors
	Indicator indicator.Indicator // optional
	Serial    io.Writer           // reports, replies and diagnostics
}

// Options configures the control loop timing.
type Options struct {
	DAQPeriod     uint32        // ms
	FlashDuration uint32        // ms
	ID            string        // identification reply
	Pause         time.Duration // sleep between iterations in Run
}

// Controller is the single-threaded control loop of the humidistat. It owns
// the requested and applied actuator states, the latest sensor readings, the
// burst timer, the DAQ clock and the indicator flash. None of its methods
// are safe for concurrent use.
type Controller struct {
	opts Options
	hw   Hardware

	reports *report.Writer

	request  Actuators
	state    Actuators
	readings [sensor.NumChannels]sensor.Reading
	burst    burst
	daq      daqClock
	flash    flash
}

// New creates a Controller. Zero option values take the defaults.
func New(hw Hardware, opts Options) *Controller {
	if opts.DAQPeriod == 0 {
		opts.DAQPeriod = DefaultDAQPeriod
	}
	if opts.FlashDuration == 0 {
		opts.FlashDuration = DefaultFlashDuration
	}
	if opts.ID == "" {
		opts.ID = DefaultID
	}
	if hw.Indicator == nil {
		hw.Indicator = indicator.Nop{}
	}
	if hw.Serial == nil {
		hw.Serial = io.Discard
	}

	c := &Controller{
		opts:    opts,
		hw:      hw,
		reports: report.NewWriter(hw.Serial),
		daq:     daqClock{period: opts.DAQPeriod},
	}
	for i := range c.readings {
		c.readings[i] = sensor.Invalid()
	}
	return c
}

// Setup drives the outputs to their initial (off) state, connects the
// sensors and starts the DAQ clock.
func (c *Controller) Setup() {
	for _, a := range AllActuators {
		c.hw.Outputs.Set(a, c.state.Get(a))
	}

	c.setColor(indicator.Setup)
	c.hw.Sensors.Connect(c.hw.Serial)
	c.setColor(indicator.Idle)

	c.daq.start(c.hw.Clock.Millis())
}

// Run executes Step until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.Step(c.hw.Clock.Millis())

		if c.opts.Pause > 0 {
			time.Sleep(c.opts.Pause)
		}
	}
}

// Step performs one loop iteration at time now (ms): take at most one
// command, expire the burst, grant requested actuator states, sample when
// due and retire the indicator flash.
func (c *Controller) Step(now uint32) {
	armed := false
	if line, ok := c.hw.Commands.Poll(); ok {
		if cmd, ok := command.Parse(line); ok {
			armed = c.dispatch(cmd, now)
		}
	}

	// A burst is never expired in the iteration that armed it so that even
	// a zero-length burst is applied and reported once.
	if !armed {
		c.burst.expire(now, &c.request)
	}

	if c.reconcile() {
		c.report(now)
	}

	if c.daq.due(now) {
		c.measure(now)
	}

	c.retireFlash(now)
}

// dispatch applies a command. Returns true if it armed a burst.
func (c *Controller) dispatch(cmd command.Command, now uint32) bool {
	switch cmd := cmd.(type) {
	case command.Identify:
		_, _ = io.WriteString(c.hw.Serial, c.opts.ID+"\n")
	case command.SetActuators:
		c.request = Actuators{Valve1: cmd.Valve1, Valve2: cmd.Valve2, Pump: cmd.Pump}
	case command.Burst:
		c.request = Actuators{Valve1: cmd.Valve1, Valve2: cmd.Valve2, Pump: cmd.Pump}
		c.burst.arm(now, cmd.Duration)
		return true
	case command.SetValve:
		switch cmd.Valve {
		case 1:
			c.request.Valve1 = cmd.On
		case 2:
			c.request.Valve2 = cmd.On
		}
	case command.SetPump:
		c.request.Pump = cmd.On
	case command.Reconnect:
		c.hw.Sensors.Connect(c.hw.Serial)
	}
	return false
}

// measure samples both sensor channels and reports.
func (c *Controller) measure(now uint32) {
	c.startFlash(now)
	c.readings = c.hw.Sensors.Read()
	c.report(now)
}

func (c *Controller) report(now uint32) {
	_ = c.reports.Write(c.Snapshot(now))
}

// Snapshot returns the applied state and latest readings as a report for time now.
func (c *Controller) Snapshot(now uint32) report.Report {
	r := report.Report{
		Elapsed: c.daq.elapsed(now),
		Valve1:  c.state.Valve1,
		Valve2:  c.state.Valve2,
		Pump:    c.state.Pump,
	}
	for i, rd := range c.readings {
		r.Humidity[i] = rd.Humidity
		r.Temperature[i] = rd.Temperature
		r.Pressure[i] = rd.Pressure
	}
	return r
}

// Request returns the requested actuator states.
func (c *Controller) Request() Actuators { return c.request }

// State returns the applied actuator states.
func (c *Controller) State() Actuators { return c.state }

// Readings returns the latest sensor readings.
func (c *Controller) Readings() [sensor.NumChannels]sensor.Reading { return c.readings }

func (c *Controller) setColor(col color.RGBA) {
	_ = c.hw.Indicator.SetColor(col)
}
