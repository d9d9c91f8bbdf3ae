package control

// Actuator identifies one of the digital outputs.
type Actuator int

const (
	Valve1 Actuator = iota
	Valve2
	Pump
)

// AllActuators lists the actuators in report order.
var AllActuators = [...]Actuator{Valve1, Valve2, Pump}

func (a Actuator) String() string {
	switch a {
	case Valve1:
		return "valve_1"
	case Valve2:
		return "valve_2"
	case Pump:
		return "pump"
	}
	return "unknown"
}

// Actuators holds one on/off value per actuator. It is used both for the
// requested configuration and for the applied one.
type Actuators struct {
	Valve1 bool
	Valve2 bool
	Pump   bool
}

// Get returns the value for a.
func (s Actuators) Get(a Actuator) bool {
	switch a {
	case Valve1:
		return s.Valve1
	case Valve2:
		return s.Valve2
	case Pump:
		return s.Pump
	}
	return false
}

// Set updates the value for a.
func (s *Actuators) Set(a Actuator, on bool) {
	switch a {
	case Valve1:
		s.Valve1 = on
	case Valve2:
		s.Valve2 = on
	case Pump:
		s.Pump = on
	}
}

// Outputs drives the physical actuator lines (solid-state relays).
type Outputs interface {
	Set(a Actuator, on bool)
}

// OutputsFunc adapts a function to the Outputs interface.
type OutputsFunc func(a Actuator, on bool)

func (f OutputsFunc) Set(a Actuator, on bool) { f(a, on) }

// reconcile grants every requested actuator state that differs from the
// applied one. Outputs are only written on change. Returns whether anything
// changed.
func (c *Controller) reconcile() bool {
	changed := false
	for _, a := range AllActuators {
		want := c.request.Get(a)
		if want == c.state.Get(a) {
			continue
		}
		c.state.Set(a, want)
		c.hw.Outputs.Set(a, want)
		changed = true
	}
	return changed
}
