// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dhttest simulates a DHT sensor on a fake clock to test the
// single-wire protocol without hardware.
//
// A Sensor is both the dht.Line and the dht.Clock handed to dht.New. Time
// only moves when the driver sleeps or polls the line: every Read costs
// PollInterval. After a start pulse long enough for the configured variant,
// releasing the line plays the handshake and the frame as a list of timed
// levels.
package dhttest

import (
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/thermohygro/common"
	"github.com/GermanBionicSystems/thermohygro/dht"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
)

// Timing holds the pulse widths the Sensor emits.
type Timing struct {
	// ResponseDelay is how long the sensor leaves the line high after the
	// host released it.
	ResponseDelay time.Duration
	ResponseLow   time.Duration
	ResponseHigh  time.Duration
	// BitLow is the low preceding every data bit.
	BitLow  time.Duration
	ZeroBit time.Duration
	OneBit  time.Duration
	// EndLow is the low after the last bit, before the line idles high.
	EndLow time.Duration
}

// DatasheetTiming is the nominal timing of the DHT11 and DHT22.
var DatasheetTiming = Timing{
	ResponseDelay: 30 * time.Microsecond,
	ResponseLow:   80 * time.Microsecond,
	ResponseHigh:  80 * time.Microsecond,
	BitLow:        50 * time.Microsecond,
	ZeroBit:       27 * time.Microsecond,
	OneBit:        70 * time.Microsecond,
	EndLow:        50 * time.Microsecond,
}

// Fault alters the next transaction.
type Fault int

const (
	// NoFault plays the frame as configured.
	NoFault Fault = iota
	// Silent ignores the start pulse.
	Silent
	// StuckLow holds the line low forever after StuckBit bits.
	StuckLow
	// CorruptChecksum flips the low bit of the checksum byte.
	CorruptChecksum
	// StuckHigh holds the line high forever during the high pulse of bit
	// StuckBit.
	StuckHigh
	// NoResponseHigh holds the response low forever.
	NoResponseHigh
	// NoDataStart holds the response high forever.
	NoDataStart
)

// StuckBit is the index of the bit that never completes with StuckLow or
// StuckHigh.
const StuckBit = 20

type segment struct {
	level gpio.Level
	d     time.Duration
}

// Sensor is a simulated DHT sensor wired to a simulated GPIO line.
type Sensor struct {
	// Variant decides the minimum start pulse the sensor answers to.
	Variant dht.Variant
	// Frame is sent on every transaction.
	Frame [5]byte
	// Timing of the emitted pulses. DatasheetTiming is used if zero.
	Timing Timing
	// PollInterval is the time consumed by one Read. Default is 1µs.
	PollInterval time.Duration

	mu           sync.Mutex
	clock        clockwork.FakeClock
	driving      bool
	out          gpio.Level
	lowSince     time.Time
	held         time.Duration
	wave         []segment
	waveStart    time.Time
	faults       []Fault
	transactions int
	reads        int
}

// NewSensor returns a sensor answering with frame.
func NewSensor(v dht.Variant, frame [5]byte) *Sensor {
	return &Sensor{
		Variant: v,
		Frame:   frame,
		clock:   clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		out:     gpio.High,
	}
}

// NewFrame appends the checksum to four data bytes.
func NewFrame(data [4]byte) [5]byte {
	return [5]byte{data[0], data[1], data[2], data[3], common.Sum8(data[:])}
}

// Inject queues faults, one per upcoming transaction.
func (s *Sensor) Inject(faults ...Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, faults...)
}

// Transactions returns how many start pulses the sensor answered or ignored.
func (s *Sensor) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions
}

// Reads returns how many times the line was polled.
func (s *Sensor) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Sensor) String() string {
	return fmt.Sprintf("dhttest(%s)", s.Variant)
}

// Now implements dht.Clock.
func (s *Sensor) Now() time.Time {
	return s.clock.Now()
}

// Sleep implements dht.Clock. It advances the fake clock.
func (s *Sensor) Sleep(d time.Duration) {
	s.clock.Advance(d)
}

// NewTicker implements dht.TickerClock. The ticker runs on the sensor clock,
// so it fires when Sleep or Read move time past the interval.
func (s *Sensor) NewTicker(d time.Duration) clockwork.Ticker {
	return s.clock.NewTicker(d)
}

// Out implements dht.Line.
func (s *Sensor) Out(l gpio.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if l == gpio.Low && (!s.driving || s.out == gpio.High) {
		s.lowSince = now
	}
	if l == gpio.High && s.driving && s.out == gpio.Low {
		s.held = now.Sub(s.lowSince)
	}
	s.driving = true
	s.out = l
	s.wave = nil
	return nil
}

// In implements dht.Line. Releasing the line after a valid start pulse makes
// the sensor answer.
func (s *Sensor) In(pull gpio.Pull, edge gpio.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pull != gpio.PullUp {
		return fmt.Errorf("dhttest: the bus needs a pull-up, got %s", pull)
	}
	wasDriving := s.driving
	s.driving = false
	held := s.held
	s.held = 0
	if !wasDriving || held == 0 {
		return nil
	}
	s.transactions++
	fault := NoFault
	if len(s.faults) != 0 {
		fault = s.faults[0]
		s.faults = s.faults[1:]
	}
	if held < s.Variant.StartHold() || fault == Silent {
		return nil
	}
	s.wave = s.waveform(fault)
	s.waveStart = s.clock.Now()
	return nil
}

// Read implements dht.Line. It returns the level at the current time, then
// advances the clock by PollInterval.
func (s *Sensor) Read() gpio.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	l := s.levelAt(s.clock.Now())
	p := s.PollInterval
	if p <= 0 {
		p = time.Microsecond
	}
	s.clock.Advance(p)
	return l
}

func (s *Sensor) levelAt(t time.Time) gpio.Level {
	if s.driving {
		return s.out
	}
	offset := t.Sub(s.waveStart)
	for _, seg := range s.wave {
		if seg.d < 0 || offset < seg.d {
			return seg.level
		}
		offset -= seg.d
	}
	return gpio.High
}

func (s *Sensor) waveform(fault Fault) []segment {
	t := s.Timing
	if t == (Timing{}) {
		t = DatasheetTiming
	}
	frame := s.Frame
	if fault == CorruptChecksum {
		frame[4] ^= 1
	}
	w := []segment{{gpio.High, t.ResponseDelay}}
	switch fault {
	case NoResponseHigh:
		return append(w, segment{gpio.Low, -1})
	case NoDataStart:
		return append(w, segment{gpio.Low, t.ResponseLow}, segment{gpio.High, -1})
	}
	w = append(w, segment{gpio.Low, t.ResponseLow}, segment{gpio.High, t.ResponseHigh})
	for i := 0; i < 40; i++ {
		if fault == StuckLow && i == StuckBit {
			return append(w, segment{gpio.Low, -1})
		}
		w = append(w, segment{gpio.Low, t.BitLow})
		if fault == StuckHigh && i == StuckBit {
			return append(w, segment{gpio.High, -1})
		}
		if frame[i/8]&(0x80>>(i%8)) != 0 {
			w = append(w, segment{gpio.High, t.OneBit})
		} else {
			w = append(w, segment{gpio.High, t.ZeroBit})
		}
	}
	return append(w, segment{gpio.Low, t.EndLow})
}

var _ dht.Line = &Sensor{}
var _ dht.TickerClock = &Sensor{}
