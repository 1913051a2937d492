// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/display/displaytest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

const (
	testRows = 2
	testCols = 16
)

// nibble is one 4 bit transfer latched by the controller.
type nibble struct {
	RS    bool
	Value byte
}

func init() {
	sleep = func(time.Duration) {}
}

func getLCD(t *testing.T) (*Dev, *i2ctest.Record) {
	t.Helper()
	bus := &i2ctest.Record{}
	lcd, err := NewPCF857xBackpack(bus, 0x27, testRows, testCols)
	if err != nil {
		t.Fatal(err)
	}
	return lcd, bus
}

// latched decodes the nibbles clocked by a falling edge of E (P2), starting
// at op.
func latched(t *testing.T, ops []i2ctest.IO) []nibble {
	t.Helper()
	var out []nibble
	prev := byte(0)
	for _, op := range ops {
		if len(op.W) != 1 {
			t.Fatalf("unexpected transaction %#v", op)
		}
		b := op.W[0]
		if prev&0x04 != 0 && b&0x04 == 0 {
			out = append(out, nibble{RS: prev&0x01 != 0, Value: prev >> 4})
		}
		prev = b
	}
	return out
}

func bytesOf(rs bool, values ...byte) []nibble {
	var out []nibble
	for _, v := range values {
		out = append(out, nibble{rs, v >> 4}, nibble{rs, v & 0x0f})
	}
	return out
}

func TestInit(t *testing.T) {
	_, bus := getLCD(t)
	if first := bus.Ops[0]; first.Addr != 0x27 || first.W[0] != 0x08 {
		t.Errorf("expected the backlight alone first, found %#v", first)
	}
	expected := []nibble{{false, 3}, {false, 3}, {false, 3}, {false, 2}}
	expected = append(expected, bytesOf(false, 0x28, 0x0c, 0x06, 0x01, 0x02)...)
	if diff := cmp.Diff(expected, latched(t, bus.Ops)); diff != "" {
		t.Errorf("init sequence mismatch (-want +got):\n%s", diff)
	}
	for _, op := range bus.Ops {
		if op.W[0]&0x02 != 0 {
			t.Fatalf("RW driven high: %#v", op)
		}
	}
}

// pinGroup records the state of eight GPIOs after every Out.
type pinGroup struct {
	gpio.Group
	state gpio.GPIOValue
	ops   []i2ctest.IO
}

func (g *pinGroup) Out(value, mask gpio.GPIOValue) error {
	g.state = g.state&^mask | value&mask
	g.ops = append(g.ops, i2ctest.IO{W: []byte{byte(g.state)}})
	return nil
}

func (g *pinGroup) String() string {
	return "pinGroup"
}

func TestNew_gpioGroup(t *testing.T) {
	g := &pinGroup{}
	var port gpio.Group = g
	lcd, err := New(port, PCF857xBackpack, testRows, testCols)
	if err != nil {
		t.Fatal(err)
	}
	g.ops = nil
	if _, err := lcd.WriteString("Hi"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(bytesOf(true, 'H', 'i'), latched(t, g.ops)); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	if s := lcd.String(); s != "HD44780{pinGroup, 2x16}" {
		t.Errorf("String() returned %q", s)
	}
}

func TestInit_oneLine(t *testing.T) {
	bus := &i2ctest.Record{}
	if _, err := NewPCF857xBackpack(bus, 0x3f, 1, 16); err != nil {
		t.Fatal(err)
	}
	got := latched(t, bus.Ops)
	if diff := cmp.Diff(bytesOf(false, 0x20), got[4:6]); diff != "" {
		t.Errorf("function set mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_geometry(t *testing.T) {
	for _, g := range [][2]int{{0, 16}, {5, 16}, {2, 0}, {2, 41}} {
		if _, err := NewPCF857xBackpack(&i2ctest.Record{}, 0x27, g[0], g[1]); err == nil {
			t.Errorf("expected an error for %dx%d", g[0], g[1])
		}
	}
}

func TestWrite(t *testing.T) {
	lcd, bus := getLCD(t)
	start := len(bus.Ops)
	n, err := lcd.WriteString("Hi")
	if err != nil || n != 2 {
		t.Fatalf("WriteString() returned %d, %v", n, err)
	}
	if err = lcd.MoveTo(2, 3); err != nil {
		t.Fatal(err)
	}
	expected := append(bytesOf(true, 'H', 'i'), bytesOf(false, 0x80|0x42)...)
	if diff := cmp.Diff(expected, latched(t, bus.Ops[start:])); diff != "" {
		t.Errorf("Write mismatch (-want +got):\n%s", diff)
	}
	for _, op := range bus.Ops[start:] {
		if op.W[0]&0x08 == 0 {
			t.Fatalf("backlight dropped while writing: %#v", op)
		}
	}
}

func TestMoveTo(t *testing.T) {
	bus := &i2ctest.Record{}
	lcd, err := NewPCF857xBackpack(bus, 0x27, 4, 20)
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		row, col int
		addr     byte
	}{
		{1, 1, 0x00},
		{2, 1, 0x40},
		{3, 1, 0x14},
		{4, 20, 0x54 + 19},
	} {
		start := len(bus.Ops)
		if err := lcd.MoveTo(test.row, test.col); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(bytesOf(false, 0x80|test.addr), latched(t, bus.Ops[start:])); diff != "" {
			t.Errorf("MoveTo(%d, %d) mismatch (-want +got):\n%s", test.row, test.col, diff)
		}
	}
	for _, p := range [][2]int{{0, 1}, {1, 0}, {5, 1}, {1, 21}} {
		if err := lcd.MoveTo(p[0], p[1]); err == nil {
			t.Errorf("MoveTo(%d, %d) expected an error", p[0], p[1])
		}
	}
}

func TestBacklight(t *testing.T) {
	lcd, bus := getLCD(t)
	if err := lcd.Backlight(0); err != nil {
		t.Fatal(err)
	}
	if last := bus.Ops[len(bus.Ops)-1].W[0]; last != 0x00 {
		t.Errorf("Backlight(0) wrote 0x%02x", last)
	}
	start := len(bus.Ops)
	_, _ = lcd.WriteString("x")
	for _, op := range bus.Ops[start:] {
		if op.W[0]&0x08 != 0 {
			t.Fatalf("backlight turned back on by a write: %#v", op)
		}
	}
	if err := lcd.Backlight(0xff); err != nil {
		t.Fatal(err)
	}
	if last := bus.Ops[len(bus.Ops)-1].W[0]; last != 0x08 {
		t.Errorf("Backlight(0xff) wrote 0x%02x", last)
	}
}

func TestCursor(t *testing.T) {
	lcd, bus := getLCD(t)
	for _, test := range []struct {
		modes    []display.CursorMode
		expected byte
	}{
		{[]display.CursorMode{display.CursorUnderline}, 0x0e},
		{[]display.CursorMode{display.CursorBlink}, 0x0f},
		{[]display.CursorMode{display.CursorOff}, 0x0c},
		{[]display.CursorMode{display.CursorOff, display.CursorBlock}, 0x0d},
	} {
		start := len(bus.Ops)
		if err := lcd.Cursor(test.modes...); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(bytesOf(false, test.expected), latched(t, bus.Ops[start:])); diff != "" {
			t.Errorf("Cursor(%v) mismatch (-want +got):\n%s", test.modes, diff)
		}
	}
	if err := lcd.Cursor(display.CursorBlink + 1); err == nil {
		t.Error("expected an error for an invalid cursor mode")
	}
}

func TestHalt(t *testing.T) {
	lcd, bus := getLCD(t)
	start := len(bus.Ops)
	if err := lcd.Halt(); err != nil {
		t.Fatal(err)
	}
	got := latched(t, bus.Ops[start:])
	if diff := cmp.Diff(append(bytesOf(false, 0x01), bytesOf(false, 0x08)...), got); diff != "" {
		t.Errorf("Halt() mismatch (-want +got):\n%s", diff)
	}
	if last := bus.Ops[len(bus.Ops)-1].W[0]; last&0x08 != 0 {
		t.Error("backlight still on after Halt()")
	}
}

func TestInterface(t *testing.T) {
	lcd, _ := getLCD(t)
	if s := lcd.String(); s != "HD44780{PCF8574_27, 2x16}" {
		t.Errorf("String() returned %q", s)
	}
	errs := displaytest.TestTextDisplay(lcd, false)
	for _, err := range errs {
		if !errors.Is(err, display.ErrNotImplemented) {
			t.Error(err)
		}
	}
}
