package command

import (
	"math"
	"strconv"
	"strings"
)

// Command is one of the instructions understood by the humidistat.
// The set is closed: Identify, SetActuators, Burst, SetValve, SetPump and Reconnect.
type Command interface {
	// String encodes the command as it is sent over the wire (without the terminator).
	String() string
	command()
}

// Identify asks the device for its identification string ("id?").
type Identify struct{}

// SetActuators requests all three actuator states at once ("a101").
type SetActuators struct {
	Valve1 bool
	Valve2 bool
	Pump   bool
}

// Burst requests the three actuator states for Duration milliseconds,
// after which all of them are requested off ("b101500").
type Burst struct {
	Valve1   bool
	Valve2   bool
	Pump     bool
	Duration uint32 // ms
}

// SetValve requests a single valve ("v11", "v20"). Valve is 1 or 2.
type SetValve struct {
	Valve int
	On    bool
}

// SetPump requests the pump ("p1").
type SetPump struct {
	On bool
}

// Reconnect asks the device to reconnect both sensor channels ("r").
type Reconnect struct{}

func (Identify) command()     {}
func (SetActuators) command() {}
func (Burst) command()        {}
func (SetValve) command()     {}
func (SetPump) command()      {}
func (Reconnect) command()    {}

func (Identify) String() string { return "id?" }

func (c SetActuators) String() string {
	return "a" + bits(c.Valve1, c.Valve2, c.Pump)
}

func (c Burst) String() string {
	return "b" + bits(c.Valve1, c.Valve2, c.Pump) + strconv.FormatUint(uint64(c.Duration), 10)
}

func (c SetValve) String() string {
	return "v" + strconv.Itoa(c.Valve) + bits(c.On)
}

func (c SetPump) String() string { return "p" + bits(c.On) }

func (Reconnect) String() string { return "r" }

// Parse decodes a command line. The first matching form wins; lines that
// match no form return false and are meant to be dropped without reply.
func Parse(line string) (Command, bool) {
	switch {
	case line == "id?":
		return Identify{}, true
	case strings.HasPrefix(line, "a"):
		return SetActuators{
			Valve1: ParseBool(line, 1),
			Valve2: ParseBool(line, 2),
			Pump:   ParseBool(line, 3),
		}, true
	case strings.HasPrefix(line, "b"):
		return Burst{
			Valve1:   ParseBool(line, 1),
			Valve2:   ParseBool(line, 2),
			Pump:     ParseBool(line, 3),
			Duration: ParseUint(line, 4),
		}, true
	case strings.HasPrefix(line, "v1"):
		return SetValve{Valve: 1, On: ParseBool(line, 2)}, true
	case strings.HasPrefix(line, "v2"):
		return SetValve{Valve: 2, On: ParseBool(line, 2)}, true
	case strings.HasPrefix(line, "p"):
		return SetPump{On: ParseBool(line, 1)}, true
	case line == "r":
		return Reconnect{}, true
	}
	return nil, false
}

// ParseBool reports whether the character at pos is exactly '1'.
// Positions past the end of s decode to false.
func ParseBool(s string, pos int) bool {
	return pos >= 0 && len(s) > pos && s[pos] == '1'
}

// ParseUint decodes the leading decimal digits of s[pos:].
// No digits decode to 0; values beyond uint32 saturate.
func ParseUint(s string, pos int) uint32 {
	if pos < 0 || len(s) <= pos {
		return 0
	}

	var v uint64
	for i := pos; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + uint64(c-'0')
		if v > math.MaxUint32 {
			return math.MaxUint32
		}
	}
	return uint32(v)
}

func bits(bs ...bool) string {
	var sb strings.Builder
	for _, b := range bs {
		if b {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
