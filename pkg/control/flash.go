package control

import "github.com/itohio/humidistat/pkg/indicator"

type flash struct {
	active bool
	start  uint32 // ms
}

// startFlash lights the indicator for a measurement.
func (c *Controller) startFlash(now uint32) {
	c.flash.active = true
	c.flash.start = now
	c.setColor(indicator.Sampling)
}

// retireFlash returns the indicator to idle once the flash has been shown
// long enough.
func (c *Controller) retireFlash(now uint32) {
	if !c.flash.active || now-c.flash.start < c.opts.FlashDuration {
		return
	}
	c.flash.active = false
	c.setColor(indicator.Idle)
}
