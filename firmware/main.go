//go:build tinygo

//go:generate tinygo flash -target=feather-m4

package main

import (
	"context"
	"errors"
	"image/color"
	"machine"

	"tinygo.org/x/drivers/bme280"
	"tinygo.org/x/drivers/ws2812"

	"github.com/itohio/humidistat/pkg/command"
	"github.com/itohio/humidistat/pkg/control"
	"github.com/itohio/humidistat/pkg/indicator"
	"github.com/itohio/humidistat/pkg/sensor"
)

var errNotFound = errors.New("bme280 not found")

// bmeChannel adapts a BME280 to sensor.Sensor.
type bmeChannel struct {
	dev bme280.Device
}

func newBMEChannel(bus *machine.I2C, address uint16) *bmeChannel {
	dev := bme280.New(bus)
	dev.Address = address
	return &bmeChannel{dev: dev}
}

func (b *bmeChannel) Connect() error {
	if !b.dev.Connected() {
		return errNotFound
	}
	b.dev.Configure()
	return nil
}

func (b *bmeChannel) Read() (sensor.Reading, error) {
	t, err := b.dev.ReadTemperature() // m°C
	if err != nil {
		return sensor.Invalid(), err
	}
	h, err := b.dev.ReadHumidity() // 0.01 %RH
	if err != nil {
		return sensor.Invalid(), err
	}
	p, err := b.dev.ReadPressure() // mPa
	if err != nil {
		return sensor.Invalid(), err
	}
	return sensor.Reading{
		Temperature: float32(t) / 1000,
		Humidity:    float32(h) / 100,
		Pressure:    float32(p) / 1000,
	}, nil
}

func main() {
	pins := [...]machine.Pin{
		control.Valve1: PIN_VALVE_1,
		control.Valve2: PIN_VALVE_2,
		control.Pump:   PIN_PUMP,
	}
	for _, pin := range pins {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}

	PIN_NEOPIXEL.Configure(machine.PinConfig{Mode: machine.PinOutput})
	neo := ws2812.New(PIN_NEOPIXEL)

	machine.I2C0.Configure(machine.I2CConfig{})

	uart := machine.Serial
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	ctl := control.New(control.Hardware{
		Clock:    control.NewSystemClock(),
		Commands: command.NewScanner(uart),
		Outputs: control.OutputsFunc(func(a control.Actuator, on bool) {
			pins[a].Set(on)
		}),
		Sensors: sensor.NewGateway(
			newBMEChannel(machine.I2C0, BME280_ADDRESS_1),
			newBMEChannel(machine.I2C0, BME280_ADDRESS_2),
		),
		Indicator: indicator.Func(func(c color.RGBA) error {
			return neo.WriteColors([]color.RGBA{c})
		}),
		Serial: uart,
	}, control.Options{})

	ctl.Setup()
	ctl.Run(context.Background())
}
