package control

// daqClock keeps a strict sampling interval: next advances by whole periods
// from t0 rather than from the time the tick was served, so the cadence does
// not drift with loop latency.
type daqClock struct {
	t0     uint32 // ms, reference for reported elapsed time
	next   uint32 // ms, start of the pending period
	period uint32 // ms
}

func (d *daqClock) start(now uint32) {
	d.t0 = now
	d.next = now
}

// due reports whether a tick is due and, if so, advances to the next period.
// At most one tick is served per call; a loop that fell several periods behind
// catches up one tick per iteration.
func (d *daqClock) due(now uint32) bool {
	if now-d.next < d.period {
		return false
	}
	d.next += d.period
	return true
}

func (d *daqClock) elapsed(now uint32) uint32 {
	return now - d.t0
}
