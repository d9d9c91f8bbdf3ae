package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/itohio/humidistat/pkg/command"
	"github.com/itohio/humidistat/pkg/report"
)

var (
	// ErrNotConnected is returned when a command is sent to a closed device.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by Connect on an open device.
	ErrAlreadyConnected = errors.New("already connected")
)

// Device defines the interface for humidistat devices (real or mocked).
type Device interface {
	Connect() error
	Close() error
	// Reports streams parsed report lines.
	Reports() <-chan report.Report
	// Messages streams every other line: identification replies and diagnostics.
	Messages() <-chan string
	Send(cmd command.Command) error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// SetActuators requests all actuator states at once.
func SetActuators(d Device, valve1, valve2, pump bool) error {
	return d.Send(command.SetActuators{Valve1: valve1, Valve2: valve2, Pump: pump})
}

// SetValve requests valve 1 or 2.
func SetValve(d Device, valve int, on bool) error {
	if valve != 1 && valve != 2 {
		return fmt.Errorf("invalid valve %d", valve)
	}
	return d.Send(command.SetValve{Valve: valve, On: on})
}

// SetPump requests the pump.
func SetPump(d Device, on bool) error {
	return d.Send(command.SetPump{On: on})
}

// Burst opens the given actuators for duration ms, after which the device closes all of them.
func Burst(d Device, valve1, valve2, pump bool, duration uint32) error {
	return d.Send(command.Burst{Valve1: valve1, Valve2: valve2, Pump: pump, Duration: duration})
}

// Reconnect asks the device to reconnect its sensors.
func Reconnect(d Device) error {
	return d.Send(command.Reconnect{})
}

// Identify queries the identification string and waits for the reply.
// Diagnostic lines received meanwhile are skipped.
func Identify(ctx context.Context, d Device) (string, error) {
	if err := d.Send(command.Identify{}); err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for identification: %w", ctx.Err())
		case msg, ok := <-d.Messages():
			if !ok {
				return "", ErrNotConnected
			}
			if strings.Contains(msg, "Humidistat") {
				return msg, nil
			}
		}
	}
}
