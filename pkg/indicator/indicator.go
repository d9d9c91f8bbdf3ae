package indicator

import "image/color"

// Brightness levels of the status pixel [0-255].
const (
	Dim    = 3
	Bright = 6
)

// Status colors of the single-pixel indicator.
var (
	Setup    = color.RGBA{R: 0, G: 0, B: Bright, A: 255}      // Setting up
	Idle     = color.RGBA{R: 0, G: Dim, B: 0, A: 255}         // All okay and idling
	Sampling = color.RGBA{R: 0, G: Bright, B: Bright, A: 255} // Taking a measurement
)

// Indicator is a status light. Failures are not fatal to the caller.
type Indicator interface {
	SetColor(c color.RGBA) error
}

// Nop is an Indicator that does nothing.
type Nop struct{}

func (Nop) SetColor(color.RGBA) error { return nil }

// Func adapts a function to the Indicator interface.
type Func func(c color.RGBA) error

func (f Func) SetColor(c color.RGBA) error { return f(c) }

// Name returns a human readable name for the status colors.
func Name(c color.RGBA) string {
	switch c {
	case Setup:
		return "setup"
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	}
	return "custom"
}
