// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the configuration options for the device.
type Opts struct {
	// Clock used for polling and for the start pulse. Default is the host
	// clock, which spins for sub-millisecond sleeps. A TickerClock also paces
	// SenseContinuous.
	Clock Clock
	// Logger receives diagnostics. nil discards them.
	Logger Logger
	// IncludeFractional adds the DHT11 decimal bytes to the reading. Ignored
	// for the DHT22.
	IncludeFractional bool
	// Timeout bounds each wait during bit capture. The handshake waits use
	// Timeout+HandshakeMargin. Default is 100µs.
	Timeout time.Duration
	// HandshakeMargin is added to Timeout for the 80µs response pulses.
	// Default is 50µs.
	HandshakeMargin time.Duration
	// Threshold is the high pulse length above which a bit is a 1. It sits
	// between the 27µs and 70µs nominal pulses. Default is 48µs.
	Threshold time.Duration
	// Settle is the delay between releasing the line and sampling it. Default
	// is 40µs.
	Settle time.Duration
	// MaxLine is the highest line number accepted by NewByNumber. Default is
	// 28, the last GPIO of the RP2040.
	MaxLine int
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	Timeout:         100 * time.Microsecond,
	HandshakeMargin: 50 * time.Microsecond,
	Threshold:       48 * time.Microsecond,
	Settle:          40 * time.Microsecond,
	MaxLine:         28,
}

// Dev is a DHT11 or DHT22 sensor on a dedicated line.
//
// A Dev owns its line. Read must not run concurrently with anything else
// driving the same pin.
type Dev struct {
	line    Line
	name    string
	variant Variant
	opts    Opts
	clock   Clock
	log     Logger
	cfgErr  error

	mu       sync.Mutex
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New returns a Dev reading a sensor of variant v on line l. The line is set
// to input with pull-up so the bus idles high. opts can be nil.
//
// An unknown variant does not fail construction: it is logged and every Read
// returns ErrInvalidConfiguration.
func New(l Line, v Variant, opts *Opts) *Dev {
	d := newDev(v, opts)
	d.line = l
	d.name = fmt.Sprint(l)
	if !v.valid() {
		d.invalidate(&Error{Kind: ErrInvalidConfiguration, Op: "new", Msg: fmt.Sprintf("unknown sensor %s", v)})
		return d
	}
	if err := l.In(gpio.PullUp, gpio.NoEdge); err != nil {
		d.invalidate(&Error{Kind: ErrInvalidConfiguration, Op: "claim line", Msg: err.Error()})
	}
	return d
}

// NewByNumber looks up the pin named GPIO<number> in gpioreg and returns a
// Dev on it. A number outside 0..MaxLine or an unregistered pin is logged and
// yields a Dev whose Read always returns ErrInvalidConfiguration.
func NewByNumber(number int, v Variant, opts *Opts) *Dev {
	d := newDev(v, opts)
	d.name = fmt.Sprintf("GPIO%d", number)
	if number < 0 || number > d.opts.MaxLine {
		d.invalidate(&Error{Kind: ErrInvalidConfiguration, Op: "new", Msg: fmt.Sprintf("invalid GPIO pin number %d, must be between 0 and %d", number, d.opts.MaxLine)})
		return d
	}
	p := gpioreg.ByName(d.name)
	if p == nil {
		d.invalidate(&Error{Kind: ErrInvalidConfiguration, Op: "new", Msg: fmt.Sprintf("%s not found", d.name)})
		return d
	}
	nd := New(p, v, opts)
	nd.name = p.Name()
	return nd
}

func newDev(v Variant, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{variant: v, opts: *opts}
	if d.opts.Timeout <= 0 {
		d.opts.Timeout = DefaultOpts.Timeout
	}
	if d.opts.HandshakeMargin <= 0 {
		d.opts.HandshakeMargin = DefaultOpts.HandshakeMargin
	}
	if d.opts.Threshold <= 0 {
		d.opts.Threshold = DefaultOpts.Threshold
	}
	if d.opts.Settle <= 0 {
		d.opts.Settle = DefaultOpts.Settle
	}
	if d.opts.MaxLine <= 0 {
		d.opts.MaxLine = DefaultOpts.MaxLine
	}
	d.clock = d.opts.Clock
	if d.clock == nil {
		d.clock = NewHostClock()
	}
	d.log = d.opts.Logger
	if d.log == nil {
		d.log = nopLogger{}
	}
	return d
}

func (d *Dev) invalidate(err error) {
	d.cfgErr = err
	d.log.Warnf("%s: %v", d, err)
}

// ConfigErr returns the reason the Dev is unusable, or nil.
func (d *Dev) ConfigErr() error {
	return d.cfgErr
}

// Variant returns the sensor model the Dev was built for.
func (d *Dev) Variant() Variant {
	return d.variant
}

// MaxBlocking returns the longest time Read can spend waiting on the line:
// the three handshake waits plus two waits per data bit. The start pulse and
// the settle delay come on top.
func (d *Dev) MaxBlocking() time.Duration {
	return 3*(d.opts.Timeout+d.opts.HandshakeMargin) + frameBits*2*d.opts.Timeout
}

// Read runs one transaction with the sensor.
//
// On failure the returned Reading is the zero value and must be ignored. A
// line that refuses to switch direction or level is reported as
// ErrInvalidConfiguration.
// Nothing is retried; wait at least Variant().MinInterval() between calls.
func (d *Dev) Read() (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.read()
}

func (d *Dev) read() (Reading, error) {
	if d.cfgErr != nil {
		return Reading{}, d.cfgErr
	}
	if !d.variant.valid() {
		return Reading{}, &Error{Kind: ErrInvalidConfiguration, Op: "start", Msg: fmt.Sprintf("unknown sensor %s", d.variant)}
	}
	var frame [5]byte

	// Start: hold low long enough for the sensor to notice, then release.
	if err := d.line.Out(gpio.Low); err != nil {
		return Reading{}, &Error{Kind: ErrInvalidConfiguration, Op: "drive line", Msg: err.Error()}
	}
	d.clock.Sleep(d.variant.StartHold())
	if err := d.line.Out(gpio.High); err != nil {
		return Reading{}, &Error{Kind: ErrInvalidConfiguration, Op: "drive line", Msg: err.Error()}
	}
	if err := d.line.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return Reading{}, &Error{Kind: ErrInvalidConfiguration, Op: "release line", Msg: err.Error()}
	}
	d.clock.Sleep(d.opts.Settle)

	// Handshake: 80µs low, 80µs high, then the low leading the first bit.
	handshake := d.opts.Timeout + d.opts.HandshakeMargin
	for _, step := range []struct {
		level gpio.Level
		op    string
	}{
		{gpio.Low, "wait response low"},
		{gpio.High, "wait response high"},
		{gpio.Low, "wait data start"},
	} {
		if _, ok := d.waitFor(step.level, handshake); !ok {
			err := &Error{Kind: ErrHandshakeTimeout, Op: step.op}
			d.log.Debugf("%s: %v", d, err)
			return Reading{}, err
		}
	}

	for i := 0; i < frameBits; i++ {
		start, ok := d.waitFor(gpio.High, d.opts.Timeout)
		if !ok {
			err := &Error{Kind: ErrBitTimeout, Op: "wait high of bit", Bit: i}
			d.log.Debugf("%s: %v", d, err)
			return Reading{}, err
		}
		end, ok := d.waitFor(gpio.Low, d.opts.Timeout)
		if !ok {
			err := &Error{Kind: ErrBitTimeout, Op: "wait low after bit", Bit: i}
			d.log.Debugf("%s: %v", d, err)
			return Reading{}, err
		}
		frame[i/8] <<= 1
		if Classify(end.Sub(start), d.opts.Threshold) {
			frame[i/8] |= 1
		}
	}

	if err := Verify(frame); err != nil {
		d.log.Debugf("%s: %v, data % x", d, err, frame[:4])
		return Reading{}, err
	}
	return Decode(frame, d.variant, d.opts.IncludeFractional)
}

// waitFor spins until the line reads l or timeout elapsed. It returns the
// time the level was observed.
func (d *Dev) waitFor(l gpio.Level, timeout time.Duration) (time.Time, bool) {
	start := d.clock.Now()
	for {
		if d.line.Read() == l {
			return d.clock.Now(), true
		}
		if d.clock.Now().Sub(start) > timeout {
			return time.Time{}, false
		}
	}
}

// Sense implements physic.SenseEnv. Pressure is not modified.
func (d *Dev) Sense(env *physic.Env) error {
	r, err := d.Read()
	if err != nil {
		return err
	}
	e := r.Env()
	env.Temperature = e.Temperature
	env.Humidity = e.Humidity
	return nil
}

// SenseContinuous implements physic.SenseEnv. interval must be at least
// Variant().MinInterval(). Failed reads are skipped. Call Halt to stop.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if d.cfgErr != nil {
		return nil, d.cfgErr
	}
	if interval < d.variant.MinInterval() {
		return nil, fmt.Errorf("dht: invalid duration %s. minimum %s", interval, d.variant.MinInterval())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown != nil {
		return nil, errors.New("dht: sense continuous already running")
	}
	d.shutdown = make(chan struct{})
	ch := make(chan physic.Env, 16)
	ticker := d.newTicker(interval)
	d.wg.Add(1)
	go func(shutdown <-chan struct{}) {
		defer d.wg.Done()
		defer close(ch)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.Chan():
				var e physic.Env
				if err := d.Sense(&e); err != nil {
					continue
				}
				select {
				case ch <- e:
				case <-shutdown:
					return
				}
			}
		}
	}(d.shutdown)
	return ch, nil
}

func (d *Dev) newTicker(interval time.Duration) clockwork.Ticker {
	if c, ok := d.clock.(TickerClock); ok {
		return c.NewTicker(interval)
	}
	return clockwork.NewRealClock().NewTicker(interval)
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(env *physic.Env) {
	env.Pressure = 0
	if d.variant == DHT11 && !d.opts.IncludeFractional {
		env.Temperature = physic.Kelvin
		env.Humidity = physic.PercentRH
		return
	}
	env.Temperature = physic.Kelvin / 10
	env.Humidity = physic.PercentRH / 10
}

// Halt stops SenseContinuous and leaves the line as an input with pull-up.
func (d *Dev) Halt() error {
	d.mu.Lock()
	if d.shutdown != nil {
		close(d.shutdown)
		d.shutdown = nil
	}
	d.mu.Unlock()
	d.wg.Wait()
	if d.line == nil {
		return nil
	}
	return d.line.In(gpio.PullUp, gpio.NoEdge)
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.variant, d.name)
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
