// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
)

// Line is the part of a GPIO pin the protocol needs. Out switches the pin to
// output and drives it, In switches it back to input with the requested pull.
//
// Any gpio.PinIO implements Line.
type Line interface {
	Out(l gpio.Level) error
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// Clock provides monotonic time and sleeping. Read calls Now between every
// poll of the line, so it must be cheap.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// TickerClock is a Clock that also paces SenseContinuous. The host clock and
// dhttest.Sensor implement it; with any other Clock, SenseContinuous ticks on
// real time.
type TickerClock interface {
	Clock
	NewTicker(d time.Duration) clockwork.Ticker
}

// Logger receives protocol diagnostics. *logrus.Logger and *logrus.Entry
// implement it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// spinThreshold is the longest sleep done by spinning on the clock instead of
// handing the goroutine back to the scheduler.
const spinThreshold = time.Millisecond

// hostClock is the default Clock. The scheduler cannot be trusted with
// sub-millisecond sleeps, so those spin.
type hostClock struct {
	c clockwork.Clock
}

// NewHostClock returns the Clock used when Opts.Clock is nil.
func NewHostClock() Clock {
	return &hostClock{c: clockwork.NewRealClock()}
}

func (h *hostClock) Now() time.Time {
	return h.c.Now()
}

func (h *hostClock) NewTicker(d time.Duration) clockwork.Ticker {
	return h.c.NewTicker(d)
}

func (h *hostClock) Sleep(d time.Duration) {
	if d >= spinThreshold {
		h.c.Sleep(d)
		return
	}
	end := h.c.Now().Add(d)
	for h.c.Now().Before(end) {
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
