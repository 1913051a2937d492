// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pcf857x drives the TI/NXP PCF8574 and PCF8575 I²C I/O expanders.
// These chips provide 8 (PCF8574) or 16 (PCF8575) quasi-bidirectional pins
// and are the chip behind the I²C backpacks sold with LCD1602 and LCD2004
// character displays.
//
// # Datasheet
//
// https://www.ti.com/lit/ds/symlink/pcf8574.pdf
//
// A description of the LCD backpack wiring can be found here:
//
// https://www.handsontec.com/dataspecs/I2C_2004_LCD.pdf
//
// # Notes
//
// The chip has no registers. Writing 8 or 16 bits sets the pins; reading
// returns their state. A pin written Low sinks current to ground, a pin
// written High is weakly pulled up and can be read as an input.
//
// Backpacks come strapped at 0x27 (PCF8574) or 0x3F (PCF8574A). Discover
// resolves the address once, before the device is built.
package pcf857x

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

// Variant represents the actual chip model.
type Variant string

const (
	PCF8574 Variant = "PCF8574"
	PCF8575 Variant = "PCF8575"
)

const (
	// DefaultAddress is the address with A0..A2 tied low.
	DefaultAddress uint16 = 0x20
	// DefaultBackpackAddress is the usual address of a PCF8574 LCD backpack.
	DefaultBackpackAddress uint16 = 0x27
	// AltBackpackAddress is the usual address of a PCF8574A LCD backpack.
	AltBackpackAddress uint16 = 0x3f

	// backlightBit is P3 on the LCD backpacks.
	backlightBit byte = 0x08
	maxAddress   uint16 = 0x7f
)

var (
	// ErrNotFound is returned by Discover when nothing answers.
	ErrNotFound = errors.New("pcf857x: no device found")
	// ErrInvalidVariant is returned by New for an unknown chip.
	ErrInvalidVariant = errors.New("pcf857x: invalid variant")
)

// Dev is a PCF857x port. The last written value is latched so that writes
// which would not change any pin are skipped.
type Dev struct {
	variant Variant
	width   int
	mask    gpio.GPIOValue

	mu      sync.Mutex
	d       *i2c.Dev
	value   gpio.GPIOValue
	written bool
}

// New returns a Dev for the chip at address. No bus transaction is done
// until the first Out or Read.
func New(bus i2c.Bus, address uint16, chip Variant) (*Dev, error) {
	dev := &Dev{d: &i2c.Dev{Bus: bus, Addr: address}, variant: chip}
	switch chip {
	case PCF8574:
		dev.width = 8
	case PCF8575:
		dev.width = 16
	default:
		return nil, fmt.Errorf("%w %q", ErrInvalidVariant, chip)
	}
	if address > maxAddress {
		return nil, fmt.Errorf("pcf857x: invalid address 0x%x", address)
	}
	dev.mask = gpio.GPIOValue(1<<dev.width) - 1
	return dev, nil
}

// Width returns the number of pins, 8 or 16.
func (dev *Dev) Width() int {
	return dev.width
}

// Out sets the pins selected by mask to value. A zero mask selects all
// pins. Pins outside mask keep their latched level.
func (dev *Dev) Out(value, mask gpio.GPIOValue) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.write(value, mask)
}

// Read returns the level of the pins selected by mask. Those pins are first
// written High so that they act as inputs. A zero mask selects all pins.
func (dev *Dev) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if mask == 0 {
		mask = dev.mask
	}
	if err := dev.write(mask, mask); err != nil {
		return 0, err
	}
	r := make([]byte, dev.width/8)
	if err := dev.d.Tx(nil, r); err != nil {
		return 0, fmt.Errorf("pcf857x: %w", err)
	}
	var result gpio.GPIOValue
	for ix, b := range r {
		result |= gpio.GPIOValue(b) << (8 * ix)
	}
	return result & mask, nil
}

// Value returns the latched output value.
func (dev *Dev) Value() gpio.GPIOValue {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.value
}

// Halt returns every pin to its power-on state, High.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.write(dev.mask, dev.mask)
}

func (dev *Dev) String() string {
	return fmt.Sprintf("%s_%x", dev.variant, dev.d.Addr)
}

func (dev *Dev) write(value, mask gpio.GPIOValue) error {
	if mask == 0 {
		mask = dev.mask
	}
	wrValue := (dev.value &^ mask) | (value & mask & dev.mask)
	if dev.written && wrValue == dev.value {
		return nil
	}
	w := make([]byte, dev.width/8)
	for ix := range w {
		w[ix] = byte(wrValue >> (8 * ix))
	}
	if err := dev.d.Tx(w, nil); err != nil {
		return fmt.Errorf("pcf857x: %w", err)
	}
	dev.value = wrValue
	dev.written = true
	return nil
}

// Scan returns the 7 bit addresses answering a one byte read.
func Scan(bus i2c.Bus) []uint16 {
	var found []uint16
	var b [1]byte
	for addr := uint16(0); addr <= maxAddress; addr++ {
		if bus.Tx(addr, nil, b[:]) == nil {
			found = append(found, addr)
		}
	}
	return found
}

// Discover returns the address of an LCD backpack on bus. candidates are
// tried in order against the addresses found by Scan; the default list is
// DefaultBackpackAddress then AltBackpackAddress.
//
// Some clones do not answer reads. When no candidate shows up in the scan,
// DefaultBackpackAddress is probed with a write turning the backlight on;
// ErrNotFound is returned if that fails too.
func Discover(bus i2c.Bus, candidates ...uint16) (uint16, error) {
	if len(candidates) == 0 {
		candidates = []uint16{DefaultBackpackAddress, AltBackpackAddress}
	}
	found := map[uint16]bool{}
	for _, addr := range Scan(bus) {
		found[addr] = true
	}
	for _, addr := range candidates {
		if found[addr] {
			return addr, nil
		}
	}
	if err := bus.Tx(DefaultBackpackAddress, []byte{backlightBit}, nil); err != nil {
		return 0, fmt.Errorf("%w on %s: %v", ErrNotFound, bus, err)
	}
	return DefaultBackpackAddress, nil
}

var _ conn.Resource = &Dev{}
