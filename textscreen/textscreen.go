// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package textscreen implements a character display.TextDisplay that outputs
// to the terminal.
//
// Useful while the I²C backpack is on its way, or to run the station on a
// host without an LCD. The frame is redrawn in place using ANSI codes when
// the output is a terminal, and appended as plain text otherwise.
package textscreen

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for this display.
type Opts struct {
	Rows, Cols int
	// W receives the frames. Default is a colorable stdout.
	W io.Writer
	// Color forces ANSI output. It is detected with isatty when W is nil.
	Color   bool
	Palette *ansi256.Palette
	// Lit and Unlit are the bezel colors with the backlight on and off.
	Lit, Unlit color.NRGBA

	_ struct{}
}

// Dev is a character LCD emulator.
type Dev struct {
	mu         sync.Mutex
	w          io.Writer
	color      bool
	palette    ansi256.Palette
	lit, unlit color.NRGBA

	rows, cols int
	cells      [][]byte
	row, col   int
	on         bool
	backlight  bool
	cursor     bool
	blink      bool
	autoScroll bool
	drawn      bool
	buf        bytes.Buffer
}

// New returns a Dev of opts.Rows x opts.Cols, 2x16 if zero.
func New(opts *Opts) *Dev {
	o := *opts
	if o.Rows <= 0 {
		o.Rows = 2
	}
	if o.Cols <= 0 {
		o.Cols = 16
	}
	if o.W == nil {
		o.W = colorable.NewColorableStdout()
		o.Color = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
	p := o.Palette
	if p == nil {
		p = ansi256.Default
	}
	if o.Lit == (color.NRGBA{}) {
		o.Lit = color.NRGBA{0x9b, 0xc7, 0x00, 0xff}
	}
	if o.Unlit == (color.NRGBA{}) {
		o.Unlit = color.NRGBA{0x30, 0x38, 0x20, 0xff}
	}
	d := &Dev{
		w:         o.W,
		color:     o.Color,
		palette:   *p,
		lit:       o.Lit,
		unlit:     o.Unlit,
		rows:      o.Rows,
		cols:      o.Cols,
		cells:     make([][]byte, o.Rows),
		on:        true,
		backlight: true,
	}
	for i := range d.cells {
		d.cells[i] = bytes.Repeat([]byte{' '}, o.Cols)
	}
	return d
}

func (d *Dev) String() string {
	return fmt.Sprintf("TextScreen{%dx%d}", d.rows, d.cols)
}

// Halt implements conn.Resource.
//
// It blanks the screen and resets the terminal colors.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clear()
	d.backlight = false
	if _, err := d.refresh(); err != nil {
		return err
	}
	if d.color {
		_, err := io.WriteString(d.w, "\033[0m\n")
		return err
	}
	return nil
}

// AutoScroll makes writes past the last column continue on the next row,
// scrolling the screen up at the bottom. When disabled the extra characters
// are dropped, as the LCD would write them off screen.
func (d *Dev) AutoScroll(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.autoScroll = enabled
	return nil
}

// Clear blanks the screen and moves the cursor home.
func (d *Dev) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clear()
	_, err := d.refresh()
	return err
}

// Cols returns the number of columns.
func (d *Dev) Cols() int {
	return d.cols
}

// Cursor sets the cursor mode. It shows in Snapshot only.
func (d *Dev) Cursor(modes ...display.CursorMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, mode := range modes {
		switch mode {
		case display.CursorOff:
			d.cursor, d.blink = false, false
		case display.CursorUnderline:
			d.cursor = true
		case display.CursorBlock, display.CursorBlink:
			d.blink = true
		default:
			return fmt.Errorf("textscreen: unexpected cursor mode %d", mode)
		}
	}
	return nil
}

// Home moves the cursor to the top left.
func (d *Dev) Home() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.row, d.col = 0, 0
	return nil
}

// MinCol returns 1.
func (d *Dev) MinCol() int {
	return 1
}

// MinRow returns 1.
func (d *Dev) MinRow() int {
	return 1
}

// Move moves the cursor by one cell. It stops at the edges.
func (d *Dev) Move(dir display.CursorDirection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch dir {
	case display.Backward:
		d.col = max(d.col-1, 0)
	case display.Forward:
		d.col = min(d.col+1, d.cols)
	case display.Up:
		d.row = max(d.row-1, 0)
	case display.Down:
		d.row = min(d.row+1, d.rows-1)
	default:
		return fmt.Errorf("textscreen: invalid direction %d", dir)
	}
	return nil
}

// MoveTo moves the cursor to row, col, both 1 based.
func (d *Dev) MoveTo(row, col int) error {
	if row < d.MinRow() || row > d.rows || col < d.MinCol() || col > d.cols {
		return fmt.Errorf("textscreen: MoveTo(%d, %d) out of range", row, col)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.row, d.col = row-1, col-1
	return nil
}

// Rows returns the number of rows.
func (d *Dev) Rows() int {
	return d.rows
}

// Display turns the display on or off. The content is kept.
func (d *Dev) Display(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on = on
	_, err := d.refresh()
	return err
}

// Backlight implements display.DisplayBacklight.
func (d *Dev) Backlight(intensity display.Intensity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backlight = intensity > 0
	_, err := d.refresh()
	return err
}

// Write writes p at the cursor and redraws the screen. All of p counts as
// written even when it falls off screen.
func (d *Dev) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range p {
		if d.col >= d.cols {
			if !d.autoScroll {
				continue
			}
			d.col = 0
			d.row++
		}
		if d.row >= d.rows {
			copy(d.cells, d.cells[1:])
			d.cells[d.rows-1] = bytes.Repeat([]byte{' '}, d.cols)
			d.row = d.rows - 1
		}
		if b < 0x20 || b > 0x7e {
			b = '?'
		}
		d.cells[d.row][d.col] = b
		d.col++
	}
	if _, err := d.refresh(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString writes text at the cursor.
func (d *Dev) WriteString(text string) (int, error) {
	return d.Write([]byte(text))
}

// Lines returns the content of each row. A display turned off shows blank
// rows.
func (d *Dev) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lines()
}

func (d *Dev) lines() []string {
	out := make([]string, d.rows)
	for i, r := range d.cells {
		if d.on {
			out[i] = string(r)
		} else {
			out[i] = strings.Repeat(" ", d.cols)
		}
	}
	return out
}

func (d *Dev) clear() {
	for _, r := range d.cells {
		for i := range r {
			r[i] = ' '
		}
	}
	d.row, d.col = 0, 0
}

// refresh draws the frame. In color mode the previous frame is overwritten.
func (d *Dev) refresh() (int, error) {
	d.buf.Reset()
	if !d.color {
		border := "+" + strings.Repeat("-", d.cols) + "+\n"
		_, _ = d.buf.WriteString(border)
		for _, l := range d.lines() {
			_, _ = d.buf.WriteString("|" + l + "|\n")
		}
		_, _ = d.buf.WriteString(border)
		_, err := d.buf.WriteTo(d.w)
		return d.rows * d.cols, err
	}
	if d.drawn {
		fmt.Fprintf(&d.buf, "\033[%dA", d.rows+2)
	}
	bezel := d.unlit
	if d.backlight {
		bezel = d.lit
	}
	// A block is one cell wide.
	edge := d.palette.Block(bezel)
	_, _ = d.buf.WriteString("\r\033[0m" + strings.Repeat(edge, d.cols+2) + "\033[0m\n")
	for _, l := range d.lines() {
		_, _ = d.buf.WriteString("\r\033[0m" + edge + "\033[0m" + l + edge + "\033[0m\n")
	}
	_, _ = d.buf.WriteString("\r\033[0m" + strings.Repeat(edge, d.cols+2) + "\033[0m\n")
	d.drawn = true
	_, err := d.buf.WriteTo(d.w)
	return d.rows * d.cols, err
}

var _ display.TextDisplay = &Dev{}
var _ display.DisplayBacklight = &Dev{}
var _ conn.Resource = &Dev{}
