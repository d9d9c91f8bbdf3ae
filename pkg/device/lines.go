package device

import (
	"bytes"
	"context"
	"strings"

	"github.com/itohio/humidistat/pkg/logger"
	"github.com/itohio/humidistat/pkg/report"
)

// lineRouter sorts incoming lines into reports and free-form messages.
type lineRouter struct {
	ctx      context.Context
	log      *logger.Logger
	reports  chan report.Report
	messages chan string
}

func newLineRouter(ctx context.Context, log *logger.Logger, bufSize int) *lineRouter {
	return &lineRouter{
		ctx:      ctx,
		log:      log,
		reports:  make(chan report.Report, bufSize),
		messages: make(chan string, bufSize),
	}
}

// route handles one line. Returns false once the context is canceled.
func (r *lineRouter) route(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	rep, err := report.Parse(line)
	if err != nil {
		r.log.Debugw("device message", "line", line)
		select {
		case r.messages <- line:
		case <-r.ctx.Done():
			return false
		default:
			r.log.Warnw("messages channel full, dropping line", "line", line)
		}
		return true
	}

	select {
	case r.reports <- rep:
	case <-r.ctx.Done():
		return false
	default:
		r.log.Warnw("reports channel full, dropping report", "elapsed", rep.Elapsed)
	}
	return true
}

func (r *lineRouter) close() {
	close(r.reports)
	close(r.messages)
}

// lineWriter is an io.Writer that splits written bytes into lines.
type lineWriter struct {
	router *lineRouter
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := string(w.buf[:i])
		w.buf = w.buf[i+1:]
		w.router.route(line)
	}
	return len(p), nil
}
