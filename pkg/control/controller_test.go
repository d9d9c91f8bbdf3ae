package control

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/itohio/humidistat/pkg/indicator"
	"github.com/itohio/humidistat/pkg/report"
	"github.com/itohio/humidistat/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineQueue struct {
	lines []string
}

func (q *lineQueue) Poll() (string, bool) {
	if len(q.lines) == 0 {
		return "", false
	}
	l := q.lines[0]
	q.lines = q.lines[1:]
	return l, true
}

func (q *lineQueue) send(lines ...string) { q.lines = append(q.lines, lines...) }

type write struct {
	actuator Actuator
	on       bool
}

type outputRecorder struct {
	writes []write
}

func (o *outputRecorder) Set(a Actuator, on bool) {
	o.writes = append(o.writes, write{a, on})
}

type fakeSensors struct {
	connects int
	reads    int
	online   bool
	reading  [sensor.NumChannels]sensor.Reading
}

func (s *fakeSensors) Connect(diag io.Writer) {
	s.connects++
	if !s.online {
		_, _ = io.WriteString(diag, "Could not find sensor #1\nCould not find sensor #2\n")
	}
}

func (s *fakeSensors) Read() [sensor.NumChannels]sensor.Reading {
	s.reads++
	if !s.online {
		return [sensor.NumChannels]sensor.Reading{sensor.Invalid(), sensor.Invalid()}
	}
	return s.reading
}

type harness struct {
	now     uint32
	queue   *lineQueue
	outputs *outputRecorder
	sensors *fakeSensors
	colors  []color.RGBA
	serial  *bytes.Buffer
	ctl     *Controller
}

func newHarness(t *testing.T, start uint32) *harness {
	t.Helper()

	h := &harness{
		now:     start,
		queue:   &lineQueue{},
		outputs: &outputRecorder{},
		sensors: &fakeSensors{
			online: true,
			reading: [sensor.NumChannels]sensor.Reading{
				{Temperature: 21.5, Humidity: 45.25, Pressure: 101325},
				{Temperature: 22.25, Humidity: 50.5, Pressure: 101300},
			},
		},
		serial: &bytes.Buffer{},
	}

	h.ctl = New(Hardware{
		Clock:    ClockFunc(func() uint32 { return h.now }),
		Commands: h.queue,
		Outputs:  h.outputs,
		Sensors:  h.sensors,
		Indicator: indicator.Func(func(c color.RGBA) error {
			h.colors = append(h.colors, c)
			return nil
		}),
		Serial: h.serial,
	}, Options{})

	return h
}

// step advances the clock to now, runs one iteration and returns the lines written.
func (h *harness) step(now uint32) []string {
	h.now = now
	h.serial.Reset()
	h.ctl.Step(now)
	out := strings.TrimSuffix(h.serial.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func parseReports(t *testing.T, lines []string) []report.Report {
	t.Helper()
	out := make([]report.Report, 0, len(lines))
	for _, l := range lines {
		r, err := report.Parse(l)
		require.NoError(t, err, "line %q", l)
		out = append(out, r)
	}
	return out
}

func TestSetup(t *testing.T) {
	h := newHarness(t, 100)
	h.ctl.Setup()

	assert.Equal(t, []write{{Valve1, false}, {Valve2, false}, {Pump, false}}, h.outputs.writes)
	assert.Equal(t, []color.RGBA{indicator.Setup, indicator.Idle}, h.colors)
	assert.Equal(t, 1, h.sensors.connects)
	assert.Empty(t, h.serial.String())

	// Readings stay NaN until the first DAQ tick
	for _, r := range h.ctl.Readings() {
		assert.False(t, r.Valid())
	}
}

func TestSetup_SensorsOffline(t *testing.T) {
	h := newHarness(t, 0)
	h.sensors.online = false
	h.ctl.Setup()

	assert.Equal(t, "Could not find sensor #1\nCould not find sensor #2\n", h.serial.String())
}

func TestStep_SetActuators(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()
	h.outputs.writes = nil

	h.queue.send("a101")
	lines := h.step(10)

	assert.Equal(t, Actuators{Valve1: true, Pump: true}, h.ctl.Request())
	assert.Equal(t, Actuators{Valve1: true, Pump: true}, h.ctl.State())
	assert.Equal(t, []write{{Valve1, true}, {Pump, true}}, h.outputs.writes)

	reports := parseReports(t, lines)
	require.Len(t, reports, 1)
	assert.Equal(t, uint32(10), reports[0].Elapsed)
	assert.True(t, reports[0].Valve1)
	assert.False(t, reports[0].Valve2)
	assert.True(t, reports[0].Pump)
}

func TestStep_IdempotentRequest(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()
	h.outputs.writes = nil

	h.queue.send("a101", "a101")
	assert.Len(t, h.step(10), 1)
	assert.Empty(t, h.step(20), "repeated request must not report")
	assert.Len(t, h.outputs.writes, 2)

	// The DAQ tick still reports unconditionally
	reports := parseReports(t, h.step(1000))
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Valve1)
	assert.True(t, reports[0].Pump)
}

func TestStep_SingleActuatorCommands(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	tests := []struct {
		cmd  string
		want Actuators
	}{
		{"v11", Actuators{Valve1: true}},
		{"v21", Actuators{Valve1: true, Valve2: true}},
		{"p1", Actuators{Valve1: true, Valve2: true, Pump: true}},
		{"v10", Actuators{Valve2: true, Pump: true}},
		{"p", Actuators{Valve2: true}},
		{"v2", Actuators{}},
	}

	now := uint32(1)
	for _, tt := range tests {
		h.queue.send(tt.cmd)
		lines := h.step(now)
		now++

		assert.Equal(t, tt.want, h.ctl.State(), tt.cmd)
		assert.Len(t, lines, 1, tt.cmd)
	}
}

func TestStep_OneCommandPerIteration(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	h.queue.send("v11", "p1")
	h.step(1)
	assert.Equal(t, Actuators{Valve1: true}, h.ctl.State())
	h.step(2)
	assert.Equal(t, Actuators{Valve1: true, Pump: true}, h.ctl.State())
}

func TestStep_UnknownCommandIgnored(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	h.queue.send("hello", "x", "rr")
	for i := uint32(1); i <= 3; i++ {
		assert.Empty(t, h.step(i))
	}
	assert.Equal(t, Actuators{}, h.ctl.Request())
}

func TestStep_Identify(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	h.queue.send("id?")
	assert.Equal(t, []string{DefaultID}, h.step(1))
}

func TestStep_Reconnect(t *testing.T) {
	h := newHarness(t, 0)
	h.sensors.online = false
	h.ctl.Setup()

	// Offline channels report NaN on every tick
	reports := parseReports(t, h.step(1000))
	require.Len(t, reports, 1)
	assert.True(t, math.IsNaN(float64(reports[0].Humidity[0])))
	assert.True(t, math.IsNaN(float64(reports[0].Pressure[1])))

	reports = parseReports(t, h.step(2000))
	require.Len(t, reports, 1)
	assert.True(t, math.IsNaN(float64(reports[0].Temperature[1])))

	// Sensors come back and a reconnect is requested
	h.sensors.online = true
	h.queue.send("r")
	assert.Empty(t, h.step(2500))
	assert.Equal(t, 2, h.sensors.connects)

	reports = parseReports(t, h.step(3000))
	require.Len(t, reports, 1)
	assert.Equal(t, float32(45.25), reports[0].Humidity[0])
	assert.Equal(t, float32(22.25), reports[0].Temperature[1])
	assert.Equal(t, float32(101300), reports[0].Pressure[1])
}

func TestBurst_Scenario(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	h.queue.send("b101500")
	h.now = 1000
	h.serial.Reset()
	h.ctl.Step(1000) // also the first DAQ tick
	assert.Equal(t, Actuators{Valve1: true, Pump: true}, h.ctl.Request())
	assert.Equal(t, Actuators{Valve1: true, Pump: true}, h.ctl.State())

	assert.Empty(t, h.step(1499))
	assert.Equal(t, Actuators{Valve1: true, Pump: true}, h.ctl.Request())

	reports := parseReports(t, h.step(1500))
	assert.Equal(t, Actuators{}, h.ctl.Request())
	assert.Equal(t, Actuators{}, h.ctl.State())
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Valve1)
	assert.False(t, reports[0].Valve2)
	assert.False(t, reports[0].Pump)

	// Disarmed: later requests are not cleared
	h.queue.send("p1")
	h.step(1600)
	h.step(5000)
	assert.Equal(t, Actuators{Pump: true}, h.ctl.Request())
}

func TestBurst_Durations(t *testing.T) {
	for _, d := range []uint32{0, 1, 2, 250, 1000, 60000} {
		h := newHarness(t, 0)
		h.ctl.Setup()

		const start = 10
		h.queue.send("b111" + strconv.FormatUint(uint64(d), 10))
		h.step(start)
		require.Equal(t, Actuators{Valve1: true, Valve2: true, Pump: true}, h.ctl.State(), "d=%d", d)

		if d > 0 {
			h.step(start + d - 1)
			assert.Equal(t, Actuators{Valve1: true, Valve2: true, Pump: true}, h.ctl.Request(), "d=%d", d)
		}

		h.step(start + d)
		assert.Equal(t, Actuators{}, h.ctl.Request(), "d=%d", d)
		assert.Equal(t, Actuators{}, h.ctl.State(), "d=%d", d)
	}
}

func TestBurst_ZeroDurationPulsesOnce(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()
	h.outputs.writes = nil

	h.queue.send("b1000")
	assert.Len(t, h.step(5), 1)
	assert.Len(t, h.step(5), 1)
	assert.Equal(t, []write{{Valve1, true}, {Valve1, false}}, h.outputs.writes)
}

func TestBurst_RearmOverwrites(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	h.queue.send("b100500")
	h.step(100)
	h.queue.send("b010500")
	h.step(400)
	assert.Equal(t, Actuators{Valve2: true}, h.ctl.State())

	h.step(600) // the first burst would have ended here
	assert.Equal(t, Actuators{Valve2: true}, h.ctl.Request())

	h.step(900)
	assert.Equal(t, Actuators{}, h.ctl.Request())
}

func TestBurst_DirectCommandDuringBurst(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	h.queue.send("b100500", "p1")
	h.step(100)
	h.step(200)
	assert.Equal(t, Actuators{Valve1: true, Pump: true}, h.ctl.State())

	// Expiry clears every actuator, including the directly requested pump
	h.step(600)
	assert.Equal(t, Actuators{}, h.ctl.State())
}

func TestDAQ_StrictInterval(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	// Iterations of irregular length; none stalls longer than one period
	measurements := 0
	var elapsed []uint32
	for now := uint32(0); now < 10_500; now += 1 + (now*7)%331 {
		lines := h.step(now)
		for _, r := range parseReports(t, lines) {
			measurements++
			elapsed = append(elapsed, r.Elapsed)
		}
		assert.LessOrEqual(t, len(lines), 1)
	}
	assert.Equal(t, 10, measurements)
	assert.Equal(t, 10, h.sensors.reads)
	for i, e := range elapsed {
		// Each tick is served in the first iteration at or after k*period
		assert.GreaterOrEqual(t, e, uint32(i+1)*DefaultDAQPeriod)
		assert.Less(t, e, uint32(i+1)*DefaultDAQPeriod+331)
	}
}

func TestDAQ_CatchUpOnePerIteration(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	// A stall of 3.5 periods: the ticks are served one per iteration
	assert.Len(t, h.step(3500), 1)
	assert.Len(t, h.step(3501), 1)
	assert.Len(t, h.step(3502), 1)
	assert.Empty(t, h.step(3503))
	assert.Len(t, h.step(4000), 1)
	assert.Equal(t, 4, h.sensors.reads)
}

func TestDAQ_ChangeAndTickInSameIteration(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	h.queue.send("v21")
	reports := parseReports(t, h.step(1000))
	require.Len(t, reports, 2, "actuator change and DAQ tick are reported separately")

	assert.True(t, reports[0].Valve2)
	assert.True(t, math.IsNaN(float64(reports[0].Humidity[0])), "change report precedes the new measurement")
	assert.True(t, reports[1].Valve2)
	assert.Equal(t, float32(45.25), reports[1].Humidity[0])
}

func TestFlash(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()
	h.colors = nil

	h.step(1000)
	assert.Equal(t, []color.RGBA{indicator.Sampling}, h.colors)
	h.step(1099)
	assert.Equal(t, []color.RGBA{indicator.Sampling}, h.colors)
	h.step(1100)
	assert.Equal(t, []color.RGBA{indicator.Sampling, indicator.Idle}, h.colors)
	h.step(1500)
	assert.Len(t, h.colors, 2)
}

func TestFlash_IndicatorErrorsIgnored(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.hw.Indicator = indicator.Func(func(color.RGBA) error { return io.ErrClosedPipe })
	h.ctl.Setup()

	assert.Len(t, h.step(1000), 1)
	h.step(1100)
	assert.False(t, h.ctl.flash.active)
}

func TestWraparound(t *testing.T) {
	start := uint32(math.MaxUint32 - 1200)
	h := newHarness(t, start)
	h.ctl.Setup()

	// DAQ tick across the wrap
	assert.Len(t, h.step(start+1000), 1)

	// Burst armed just before the wrap, ending after it
	h.queue.send("b001500")
	h.step(math.MaxUint32 - 100)
	assert.True(t, h.ctl.State().Pump)

	h.step(398) // 499 ms after arming
	assert.True(t, h.ctl.Request().Pump)

	reports := parseReports(t, h.step(399))
	assert.False(t, h.ctl.Request().Pump)
	require.NotEmpty(t, reports)
	assert.Equal(t, uint32(1600), reports[0].Elapsed)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, 0)
	h.ctl.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.ctl.Run(ctx)
	assert.Error(t, err)
}

func TestSystemClock(t *testing.T) {
	c := NewSystemClock()
	assert.Less(t, c.Millis(), uint32(1000))
}
