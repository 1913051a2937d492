// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44780 controls character LCDs built on the Hitachi HD44780
// through an I/O expander in 4 bit mode, the way the common I²C backpacks
// wire them.
//
// # Datasheet
//
// https://www.sparkfun.com/datasheets/LCD/HD44780.pdf
package hd44780

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
)

// Port is a parallel output port the LCD is wired to. *pcf857x.Dev
// implements it, and so does any gpio.Group holding the LCD lines.
type Port interface {
	Out(value, mask gpio.GPIOValue) error
	String() string
}

var _ Port = gpio.Group(nil)

// Wiring maps the LCD signals to port bit numbers. The four data lines are
// D4..D7 of the controller.
type Wiring struct {
	RS, RW, E, Backlight uint8
	Data                 [4]uint8
}

func (w *Wiring) mask() gpio.GPIOValue {
	m := gpio.GPIOValue(1)<<w.RS | gpio.GPIOValue(1)<<w.RW | gpio.GPIOValue(1)<<w.E | gpio.GPIOValue(1)<<w.Backlight
	for _, d := range w.Data {
		m |= gpio.GPIOValue(1) << d
	}
	return m
}

// Instructions.
const (
	cmdClear        byte = 0x01
	cmdHome         byte = 0x02
	cmdEntryMode    byte = 0x04
	cmdControl      byte = 0x08
	cmdShift        byte = 0x10
	cmdFunction     byte = 0x20
	cmdSetDDRAMAddr byte = 0x80

	entryIncrement byte = 0x02
	ctlDisplayOn   byte = 0x04
	ctlCursorOn    byte = 0x02
	ctlBlinkOn     byte = 0x01
	shiftRight     byte = 0x04
	fnTwoLines     byte = 0x08
)

const (
	delayPowerOn  = 50 * time.Millisecond
	delayWakeup   = 4500 * time.Microsecond
	delayWakeup2  = 150 * time.Microsecond
	delayCommand  = 50 * time.Microsecond
	delayClearing = 2 * time.Millisecond
)

// sleep is replaced in tests.
var sleep = time.Sleep

// Dev is an HD44780 display.
//
// Implements display.TextDisplay and display.DisplayBacklight. Rows and
// columns are 1 based.
type Dev struct {
	mu        sync.Mutex
	port      Port
	w         Wiring
	mask      gpio.GPIOValue
	rows      int
	cols      int
	on        bool
	cursor    bool
	blink     bool
	backlight bool
}

// New initializes the display wired to port and returns it with the
// backlight on, the display on, the cursor off and the screen cleared.
func New(port Port, w Wiring, rows, cols int) (*Dev, error) {
	if rows < 1 || rows > 4 || cols < 1 || cols > 40 {
		return nil, fmt.Errorf("hd44780: invalid geometry %dx%d", rows, cols)
	}
	lcd := &Dev{port: port, w: w, mask: w.mask(), rows: rows, cols: cols, on: true, backlight: true}
	if err := lcd.init(); err != nil {
		return nil, fmt.Errorf("hd44780: init: %w", err)
	}
	return lcd, nil
}

// init runs the 4 bit initialization by instruction of the datasheet
// (figure 24).
func (lcd *Dev) init() error {
	sleep(delayPowerOn)
	if err := lcd.port.Out(lcd.bits(0, false, false), lcd.mask); err != nil {
		return err
	}
	for _, step := range []struct {
		nibble byte
		delay  time.Duration
	}{
		{0x03, delayWakeup},
		{0x03, delayWakeup2},
		{0x03, delayCommand},
		{0x02, delayCommand},
	} {
		if err := lcd.pulse(lcd.bits(step.nibble, false, true), lcd.bits(step.nibble, false, false)); err != nil {
			return err
		}
		sleep(step.delay)
	}
	fn := cmdFunction
	if lcd.rows > 1 {
		fn |= fnTwoLines
	}
	for _, c := range []byte{fn, lcd.control(), cmdEntryMode | entryIncrement} {
		if err := lcd.command(c); err != nil {
			return err
		}
	}
	if err := lcd.command(cmdClear); err != nil {
		return err
	}
	return lcd.command(cmdHome)
}

// AutoScroll is not supported.
func (lcd *Dev) AutoScroll(enabled bool) error {
	return display.ErrNotImplemented
}

// Clear clears the screen and moves the cursor home.
func (lcd *Dev) Clear() error {
	lcd.mu.Lock()
	defer lcd.mu.Unlock()
	return lcd.command(cmdClear)
}

// Cols returns the number of columns.
func (lcd *Dev) Cols() int {
	return lcd.cols
}

// Cursor sets the cursor mode. CursorOff can be combined with a later mode,
// e.g. Cursor(CursorOff, CursorUnderline).
func (lcd *Dev) Cursor(modes ...display.CursorMode) error {
	lcd.mu.Lock()
	defer lcd.mu.Unlock()
	for _, mode := range modes {
		switch mode {
		case display.CursorOff:
			lcd.cursor = false
			lcd.blink = false
		case display.CursorUnderline:
			lcd.cursor = true
		case display.CursorBlock, display.CursorBlink:
			lcd.blink = true
		default:
			return fmt.Errorf("hd44780: unexpected cursor mode %d", mode)
		}
	}
	return lcd.command(lcd.control())
}

// Home moves the cursor to (MinRow(), MinCol()).
func (lcd *Dev) Home() error {
	lcd.mu.Lock()
	defer lcd.mu.Unlock()
	return lcd.command(cmdHome)
}

// MinCol returns 1.
func (lcd *Dev) MinCol() int {
	return 1
}

// MinRow returns 1.
func (lcd *Dev) MinRow() int {
	return 1
}

// Move moves the cursor one position forward or backward. Up and Down are
// not supported by the controller.
func (lcd *Dev) Move(dir display.CursorDirection) error {
	lcd.mu.Lock()
	defer lcd.mu.Unlock()
	switch dir {
	case display.Backward:
		return lcd.command(cmdShift)
	case display.Forward:
		return lcd.command(cmdShift | shiftRight)
	case display.Up, display.Down:
		return fmt.Errorf("hd44780: %w", display.ErrNotImplemented)
	default:
		return fmt.Errorf("hd44780: invalid direction %d", dir)
	}
}

// MoveTo moves the cursor to row, col. Out of range positions are an error.
func (lcd *Dev) MoveTo(row, col int) error {
	if row < lcd.MinRow() || row > lcd.rows || col < lcd.MinCol() || col > lcd.cols {
		return fmt.Errorf("hd44780: MoveTo(%d, %d) out of range", row, col)
	}
	lcd.mu.Lock()
	defer lcd.mu.Unlock()
	return lcd.command(cmdSetDDRAMAddr | lcd.address(row, col))
}

// address returns the DDRAM address of a position. Rows 3 and 4 continue
// rows 1 and 2 in memory.
func (lcd *Dev) address(row, col int) byte {
	offsets := [4]byte{0x00, 0x40, byte(lcd.cols), 0x40 + byte(lcd.cols)}
	return offsets[row-1] + byte(col-1)
}

// Rows returns the number of rows.
func (lcd *Dev) Rows() int {
	return lcd.rows
}

func (lcd *Dev) String() string {
	return fmt.Sprintf("HD44780{%s, %dx%d}", lcd.port, lcd.rows, lcd.cols)
}

// Display turns the display on or off. The content is kept.
func (lcd *Dev) Display(on bool) error {
	lcd.mu.Lock()
	defer lcd.mu.Unlock()
	lcd.on = on
	return lcd.command(lcd.control())
}

// Write writes p at the cursor position. Bytes are sent as is; the ROM maps
// ASCII 0x20..0x7D to the usual glyphs.
func (lcd *Dev) Write(p []byte) (n int, err error) {
	lcd.mu.Lock()
	defer lcd.mu.Unlock()
	for _, b := range p {
		if err = lcd.send(b, true); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// WriteString writes text at the cursor position.
func (lcd *Dev) WriteString(text string) (int, error) {
	return lcd.Write([]byte(text))
}

// Backlight turns the backlight on for any non zero intensity.
func (lcd *Dev) Backlight(intensity display.Intensity) error {
	lcd.mu.Lock()
	defer lcd.mu.Unlock()
	lcd.backlight = intensity > 0
	return lcd.port.Out(lcd.bits(0, false, false), lcd.mask)
}

// Halt clears the display, turns the backlight off and the display off.
func (lcd *Dev) Halt() error {
	err := lcd.Clear()
	err = errors.Join(err, lcd.Backlight(0))
	return errors.Join(err, lcd.Display(false))
}

func (lcd *Dev) control() byte {
	c := cmdControl
	if lcd.on {
		c |= ctlDisplayOn
	}
	if lcd.cursor {
		c |= ctlCursorOn
	}
	if lcd.blink {
		c |= ctlBlinkOn
	}
	return c
}

func (lcd *Dev) command(c byte) error {
	if err := lcd.send(c, false); err != nil {
		return err
	}
	if c == cmdClear || c == cmdHome {
		sleep(delayClearing)
	} else {
		sleep(delayCommand)
	}
	return nil
}

// send writes b as two nibbles, high first. rs selects the data register.
func (lcd *Dev) send(b byte, rs bool) error {
	for _, nibble := range []byte{b >> 4, b & 0x0f} {
		if err := lcd.pulse(lcd.bits(nibble, rs, true), lcd.bits(nibble, rs, false)); err != nil {
			return err
		}
	}
	return nil
}

// pulse latches a nibble on the falling edge of E.
func (lcd *Dev) pulse(high, low gpio.GPIOValue) error {
	if err := lcd.port.Out(high, lcd.mask); err != nil {
		return err
	}
	return lcd.port.Out(low, lcd.mask)
}

// bits returns the port value for a nibble. RW is always low: the busy
// flag is not read, delays are used instead.
func (lcd *Dev) bits(nibble byte, rs, e bool) gpio.GPIOValue {
	var v gpio.GPIOValue
	for i, d := range lcd.w.Data {
		if nibble&(1<<i) != 0 {
			v |= gpio.GPIOValue(1) << d
		}
	}
	if rs {
		v |= gpio.GPIOValue(1) << lcd.w.RS
	}
	if e {
		v |= gpio.GPIOValue(1) << lcd.w.E
	}
	if lcd.backlight {
		v |= gpio.GPIOValue(1) << lcd.w.Backlight
	}
	return v
}

var _ display.TextDisplay = &Dev{}
var _ display.DisplayBacklight = &Dev{}
var _ conn.Resource = &Dev{}
