package sample

import (
	"time"

	"github.com/itohio/humidistat/pkg/logger"
	"github.com/itohio/humidistat/pkg/report"
)

// PascalPerMbar converts the device pressure unit to the host unit.
const PascalPerMbar = 100

// Sample represents a received report stamped with host time.
type Sample struct {
	Timestamp   time.Time     // Host receive time
	Elapsed     time.Duration // Device time since setup
	Valve1      bool
	Valve2      bool
	Pump        bool
	Humidity    [2]float32 // %RH
	Temperature [2]float32 // °C
	Pressure    [2]float32 // mbar
}

// Converter is a function type that converts a Report channel to a Sample channel.
type Converter func(in <-chan report.Report) <-chan Sample

// NewConverter creates a converter function that transforms Reports to Samples.
// now stamps each sample; nil means time.Now.
func NewConverter(log *logger.Logger, bufSize int, now func() time.Time) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}
	if log == nil {
		log = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}

	return func(in <-chan report.Report) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for r := range in {
				select {
				case out <- FromReport(r, now()):
				case <-time.After(time.Second):
					log.Warnw("converter output channel full, dropping sample", "elapsed", r.Elapsed)
				}
			}
		}()

		return out
	}
}

// FromReport converts a Report received at ts to a Sample.
func FromReport(r report.Report, ts time.Time) Sample {
	s := Sample{
		Timestamp:   ts,
		Elapsed:     time.Duration(r.Elapsed) * time.Millisecond,
		Valve1:      r.Valve1,
		Valve2:      r.Valve2,
		Pump:        r.Pump,
		Humidity:    r.Humidity,
		Temperature: r.Temperature,
	}
	for i, p := range r.Pressure {
		s.Pressure[i] = p / PascalPerMbar
	}
	return s
}
