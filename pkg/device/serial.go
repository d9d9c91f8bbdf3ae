package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/itohio/humidistat/pkg/command"
	"github.com/itohio/humidistat/pkg/logger"
	"github.com/itohio/humidistat/pkg/report"
)

const (
	// DefaultBaudRate is the baud rate of the humidistat USB serial link.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the reports and messages channel buffers.
	DefaultBufferSize = 100
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the humidistat over a serial port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	log      *logger.Logger

	conn      serial.Port
	router    *lineRouter
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Serial device with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int, log *logger.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		log:      log.Named("serial"),
		router:   newLineRouter(ctx, log, bufSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading lines.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true
	d.log.Infow("connected", "port", d.port, "baud", d.baudRate)

	go d.readLines(port)

	return nil
}

// Close closes the port and stops reading. The Reports and Messages channels
// are closed once the reader has exited.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if err := d.conn.Close(); err != nil {
		d.log.Warnw("error closing serial port", "err", err)
	}
	d.conn = nil
	d.connected = false

	<-d.done
	d.router.close()

	return nil
}

// Reports returns the channel of parsed report lines.
func (d *Serial) Reports() <-chan report.Report {
	return d.router.reports
}

// Messages returns the channel of non-report lines.
func (d *Serial) Messages() <-chan string {
	return d.router.messages
}

// Send writes a newline-terminated command.
func (d *Serial) Send(cmd command.Command) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := io.WriteString(d.conn, cmd.String()+"\n"); err != nil {
		return fmt.Errorf("failed to send command %q: %w", cmd.String(), err)
	}

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readLines reads lines from the port until it is closed.
func (d *Serial) readLines(r io.Reader) {
	defer close(d.done)
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Errorw("panic in readLines", "panic", rec)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if !d.router.route(scanner.Text()) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-d.ctx.Done():
		default:
			d.log.Errorw("error reading from serial port", "err", err)
		}
	}
}
