//go:build tinygo

package main

import "machine"

const (
	// Actuator pins
	PIN_VALVE_1 = machine.D12
	PIN_VALVE_2 = machine.D5
	PIN_PUMP    = machine.D13

	// On-board NeoPixel RGB LED
	PIN_NEOPIXEL = machine.NEOPIXEL

	// BME280 I2C addresses (SDO low / SDO high)
	BME280_ADDRESS_1 = 0x76
	BME280_ADDRESS_2 = 0x77

	// Serial configuration
	// Longest report: "4294967295\t1\t1\t1\t100.00\t100.00\t-40.00\t-40.00\t110000\t110000\n"
	// ~60 bytes once per second, so any baud rate will do. The USB CDC link
	// ignores it anyway.
	UART_BAUD_RATE = 9600
)
