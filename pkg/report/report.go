package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// NumFields is the number of tab-separated fields in a report line.
const NumFields = 10

// Report is one state line emitted by the device.
// Format: elapsed\tvalve_1\tvalve_2\tpump\thumi_1\thumi_2\ttemp_1\ttemp_2\tpres_1\tpres_2
// Example: 12000\t1\t0\t1\t45.12\t44.98\t21.50\t21.47\t101325\t101320
type Report struct {
	Elapsed     uint32     // ms since the device finished its setup (wraps)
	Valve1      bool       // Valve 1 state
	Valve2      bool       // Valve 2 state
	Pump        bool       // Pump state
	Humidity    [2]float32 // %RH per channel, NaN if unavailable
	Temperature [2]float32 // °C per channel, NaN if unavailable
	Pressure    [2]float32 // Pa per channel, NaN if unavailable
}

// AppendLine appends the newline-terminated wire form of r to dst.
func AppendLine(dst []byte, r Report) []byte {
	dst = strconv.AppendUint(dst, uint64(r.Elapsed), 10)
	dst = appendBool(append(dst, '\t'), r.Valve1)
	dst = appendBool(append(dst, '\t'), r.Valve2)
	dst = appendBool(append(dst, '\t'), r.Pump)
	dst = strconv.AppendFloat(append(dst, '\t'), float64(r.Humidity[0]), 'f', 2, 32)
	dst = strconv.AppendFloat(append(dst, '\t'), float64(r.Humidity[1]), 'f', 2, 32)
	dst = strconv.AppendFloat(append(dst, '\t'), float64(r.Temperature[0]), 'f', 2, 32)
	dst = strconv.AppendFloat(append(dst, '\t'), float64(r.Temperature[1]), 'f', 2, 32)
	dst = strconv.AppendFloat(append(dst, '\t'), float64(r.Pressure[0]), 'f', 0, 32)
	dst = strconv.AppendFloat(append(dst, '\t'), float64(r.Pressure[1]), 'f', 0, 32)
	return append(dst, '\n')
}

// Writer serializes reports to w, reusing an internal buffer.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter creates a report Writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, 96)}
}

// Write emits one report line.
func (rw *Writer) Write(r Report) error {
	rw.buf = AppendLine(rw.buf[:0], r)
	_, err := rw.w.Write(rw.buf)
	return err
}

// Parse decodes a report line. Any casing of "nan" is accepted for readings.
func Parse(line string) (Report, error) {
	parts := strings.Split(strings.TrimSpace(line), "\t")
	if len(parts) != NumFields {
		return Report{}, fmt.Errorf("invalid report: expected %d tab-separated values, got %d", NumFields, len(parts))
	}

	elapsed, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return Report{}, fmt.Errorf("invalid elapsed time: %w", err)
	}

	r := Report{Elapsed: uint32(elapsed)}
	for i, dst := range []*bool{&r.Valve1, &r.Valve2, &r.Pump} {
		switch parts[1+i] {
		case "0":
			*dst = false
		case "1":
			*dst = true
		default:
			return Report{}, fmt.Errorf("invalid actuator state %q in field %d", parts[1+i], 1+i)
		}
	}

	readings := []*float32{
		&r.Humidity[0], &r.Humidity[1],
		&r.Temperature[0], &r.Temperature[1],
		&r.Pressure[0], &r.Pressure[1],
	}
	for i, dst := range readings {
		v, err := parseReading(parts[4+i])
		if err != nil {
			return Report{}, fmt.Errorf("invalid reading in field %d: %w", 4+i, err)
		}
		*dst = v
	}

	return r, nil
}

func parseReading(s string) (float32, error) {
	if strings.EqualFold(s, "nan") {
		return math32.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func appendBool(dst []byte, b bool) []byte {
	if b {
		return append(dst, '1')
	}
	return append(dst, '0')
}
