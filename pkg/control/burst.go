package control

// burst is a one-shot override: the request is set when it is armed and all
// actuators are requested off once the duration has elapsed.
type burst struct {
	armed    bool
	duration uint32 // ms
	start    uint32 // ms
}

// arm (re)starts the burst. An armed burst is overwritten, not queued.
func (b *burst) arm(now, duration uint32) {
	b.armed = true
	b.duration = duration
	b.start = now
}

// expire disarms the burst once it has run for its duration and forces the
// request off. Returns true when that happened.
func (b *burst) expire(now uint32, request *Actuators) bool {
	if !b.armed || now-b.start < b.duration {
		return false
	}
	b.armed = false
	*request = Actuators{}
	return true
}
