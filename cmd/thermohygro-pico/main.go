// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build rp2040

// thermohygro-pico is the Raspberry Pi Pico build: a DHT11 on GP15 and a
// 16x2 LCD behind a PCF8574 backpack on I2C0 (SDA GP4, SCL GP5).
//
// Build with tinygo:
//
//	tinygo flash -target=pico ./cmd/thermohygro-pico
package main

import (
	"fmt"
	"machine"
	"time"

	"github.com/GermanBionicSystems/thermohygro/dht"
	"periph.io/x/conn/v3/gpio"
	"tinygo.org/x/drivers/hd44780i2c"
)

const (
	sensorPin    = machine.GP15
	variant      = dht.DHT11
	startupDelay = 5 * time.Second
	initNotice   = time.Second
	splash       = 2 * time.Second
	settle       = 2 * time.Second
	interval     = 1500 * time.Millisecond
)

// pin adapts a machine.Pin to dht.Line.
type pin struct {
	p machine.Pin
}

func (p *pin) Out(l gpio.Level) error {
	p.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.p.Set(bool(l))
	return nil
}

func (p *pin) In(pull gpio.Pull, edge gpio.Edge) error {
	mode := machine.PinInput
	switch pull {
	case gpio.PullUp:
		mode = machine.PinInputPullup
	case gpio.PullDown:
		mode = machine.PinInputPulldown
	}
	p.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (p *pin) Read() gpio.Level {
	return gpio.Level(p.p.Get())
}

func (p *pin) String() string {
	return "GP15"
}

// logger prints to the USB serial console.
type logger struct{}

func (logger) Debugf(format string, args ...interface{}) {}

func (logger) Warnf(format string, args ...interface{}) {
	println(fmt.Sprintf(format, args...))
}

func openLCD() (*hd44780i2c.Device, error) {
	if err := machine.I2C0.Configure(machine.I2CConfig{SDA: machine.GP4, SCL: machine.GP5}); err != nil {
		return nil, err
	}
	for _, a := range []uint8{0x27, 0x3F} {
		// The backpack acknowledges a write of its latch.
		if err := machine.I2C0.Tx(uint16(a), []byte{0x08}, nil); err != nil {
			continue
		}
		lcd := hd44780i2c.New(machine.I2C0, a)
		if err := lcd.Configure(hd44780i2c.Config{Width: 16, Height: 2}); err != nil {
			return nil, err
		}
		lcd.BacklightOn(true)
		return &lcd, nil
	}
	return nil, fmt.Errorf("no LCD at 0x27 or 0x3F")
}

func show(lcd *hd44780i2c.Device, lines ...string) {
	lcd.ClearDisplay()
	for i, l := range lines {
		lcd.SetCursor(0, uint8(i))
		lcd.Print([]byte(l))
	}
}

func main() {
	time.Sleep(startupDelay)
	lcd, err := openLCD()
	if err != nil {
		println("lcd:", err.Error())
		for {
			println("looping due to LCD init failure")
			time.Sleep(time.Second)
		}
	}
	show(lcd, "LCD Initialized", "SUCCEEDED.")
	time.Sleep(initNotice)
	show(lcd, "LCD OK")
	time.Sleep(splash)

	d := dht.New(&pin{p: sensorPin}, variant, &dht.Opts{Logger: logger{}})
	println(variant.String(), "sensor initialized")
	time.Sleep(settle)
	show(lcd, "Reading DHT...")

	for {
		r, err := d.Read()
		if err != nil {
			println("read:", err.Error())
			show(lcd, "DHT Read Error")
		} else {
			println(r.String())
			show(lcd, fmt.Sprintf("Temp: %5.1fC", r.Temperature), fmt.Sprintf("Hum:  %5.1f%%", r.Humidity))
		}
		time.Sleep(interval)
	}
}
