package device

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/itohio/humidistat/pkg/command"
	"github.com/itohio/humidistat/pkg/config"
	"github.com/itohio/humidistat/pkg/control"
	"github.com/itohio/humidistat/pkg/indicator"
	"github.com/itohio/humidistat/pkg/logger"
	"github.com/itohio/humidistat/pkg/report"
	"github.com/itohio/humidistat/pkg/sensor"
	"github.com/itohio/humidistat/pkg/sensor/sim"
)

// Mock simulates a humidistat by running the control loop in-process
// against simulated sensors and a simulated enclosure.
type Mock struct {
	cfg *config.Config
	log *logger.Logger

	router    *lineRouter
	inbox     *byteQueue
	enclosure *sim.Enclosure
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	// Applied actuator states, mirrored into the enclosure
	actuators control.Actuators
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.Config, log *logger.Logger) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:       cfg,
		log:       log.Named("mock"),
		router:    newLineRouter(ctx, log, DefaultBufferSize),
		inbox:     &byteQueue{},
		enclosure: sim.NewEnclosure(cfg.Mock, nil),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect starts the simulated device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	ctl := control.New(control.Hardware{
		Clock:    control.NewSystemClock(),
		Commands: command.NewScanner(m.inbox),
		Outputs:  control.OutputsFunc(m.setOutput),
		Sensors: sensor.NewGateway(
			sim.NewChannel(m.enclosure, 1),
			sim.NewChannel(m.enclosure, 2),
			sensor.WithRetries(m.cfg.Controller.ConnectRetries, m.cfg.Controller.RetryDelay),
		),
		Indicator: indicator.Func(m.setColor),
		Serial:    &lineWriter{router: m.router},
	}, control.Options{
		DAQPeriod:     uint32(m.cfg.Controller.DAQPeriod / time.Millisecond),
		FlashDuration: uint32(m.cfg.Controller.FlashDuration / time.Millisecond),
		Pause:         time.Millisecond,
	})

	m.connected = true

	go func() {
		defer close(m.done)
		ctl.Setup()
		_ = ctl.Run(m.ctx)
	}()

	return nil
}

// Close stops the mocked device and closes its channels.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false
	<-m.done
	m.router.close()

	return nil
}

// Reports returns the channel of parsed report lines.
func (m *Mock) Reports() <-chan report.Report {
	return m.router.reports
}

// Messages returns the channel of non-report lines.
func (m *Mock) Messages() <-chan string {
	return m.router.messages
}

// Send queues a command for the simulated controller.
func (m *Mock) Send(cmd command.Command) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return ErrNotConnected
	}

	m.inbox.write(cmd.String() + "\n")
	return nil
}

// IsConnected returns whether the mocked device is running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Humidity returns the true humidity of the simulated enclosure.
func (m *Mock) Humidity() float64 {
	return m.enclosure.Humidity()
}

// setOutput is called from the controller goroutine only.
func (m *Mock) setOutput(a control.Actuator, on bool) {
	m.actuators.Set(a, on)
	m.enclosure.SetActuators(m.actuators.Valve1, m.actuators.Valve2, m.actuators.Pump)
	m.log.Debugw("output", "actuator", a.String(), "on", on)
}

func (m *Mock) setColor(c color.RGBA) error {
	m.log.Debugw("indicator", "color", indicator.Name(c))
	return nil
}

// byteQueue is a goroutine-safe command.ByteSource fed by Send.
type byteQueue struct {
	mu   sync.Mutex
	data []byte
}

func (q *byteQueue) write(s string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.data = append(q.data, s...)
}

func (q *byteQueue) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

func (q *byteQueue) ReadByte() (byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return 0, fmt.Errorf("byte queue empty")
	}
	c := q.data[0]
	q.data = q.data[1:]
	return c, nil
}
