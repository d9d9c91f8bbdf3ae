package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/itohio/humidistat/pkg/sample"
)

const tsvUnits = "[s]\t" +
	"[0/1]\t[0/1]\t[0/1]\t" +
	"[±3 pct]\t[±0.5 °C]\t[±1 mbar]\t" +
	"[±3 pct]\t[±0.5 °C]\t[±1 mbar]\n"

const tsvColumns = "time\t" +
	"valve_1\tvalve_2\tpump\t" +
	"humi_1\ttemp_1\tpres_1\t" +
	"humi_2\ttemp_2\tpres_2\n"

// TSV writes samples as a tab-separated log file: a [HEADER] section with
// free-form comments, then a [DATA] section with units, column names and one
// row per sample. The time column counts seconds since the first sample.
type TSV struct {
	mu       sync.Mutex
	w        *bufio.Writer
	closer   io.Closer
	comments string
	started  bool
	start    time.Time
}

var _ Sink = (*TSV)(nil)

// NewTSV writes the log to w. The header is written with the first sample.
func NewTSV(w io.Writer, comments string) *TSV {
	t := &TSV{w: bufio.NewWriter(w), comments: comments}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	return t
}

// CreateTSV creates (or truncates) the log file at path.
func CreateTSV(path, comments string) (*TSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create tsv log %q: %w", path, err)
	}
	return NewTSV(f, comments), nil
}

// Append writes one data row and flushes it.
func (t *TSV) Append(_ context.Context, s sample.Sample) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		t.started = true
		t.start = s.Timestamp
		t.writeHeader()
	}

	fmt.Fprintf(t.w, "%.0f\t%d\t%d\t%d\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\n",
		s.Timestamp.Sub(t.start).Seconds(),
		bit(s.Valve1), bit(s.Valve2), bit(s.Pump),
		s.Humidity[0], s.Temperature[0], s.Pressure[0],
		s.Humidity[1], s.Temperature[1], s.Pressure[1],
	)

	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("write tsv row: %w", err)
	}
	return nil
}

// Close flushes the log and closes the underlying file, if any.
func (t *TSV) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("flush tsv log: %w", err)
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

func (t *TSV) writeHeader() {
	t.w.WriteString("[HEADER]\n")
	t.w.WriteString(strings.TrimRight(t.comments, "\n"))
	t.w.WriteString("\n\n[DATA]\n")
	t.w.WriteString(tsvUnits)
	t.w.WriteString(tsvColumns)
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
