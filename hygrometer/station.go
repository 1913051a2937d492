// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hygrometer runs a thermohygrometer: it reads a DHT sensor at a
// fixed cadence and shows the result on a character display.
//
// A failed read shows "DHT Read Error" and is retried after the normal
// interval, forever. There is no backoff: the station is meant to run
// unattended and pick up again as soon as the sensor answers.
package hygrometer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/GermanBionicSystems/thermohygro/dht"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/display"
)

// Screen texts.
const (
	SplashText     = "LCD OK"
	WaitingText    = "Reading DHT..."
	ErrorText      = "DHT Read Error"
	InitFailedText = "Init Failed!"
)

// InitText confirms the display came up. It is shown before the splash.
var InitText = [2]string{"LCD Initialized", "SUCCEEDED."}

// Sensor is the part of *dht.Dev used by the station.
type Sensor interface {
	Read() (dht.Reading, error)
	Variant() dht.Variant
}

// Station ties a sensor to a display.
type Station struct {
	Sensor  Sensor
	Display display.TextDisplay
	// Clock paces the loop. Default is the real clock.
	Clock   clockwork.Clock
	Log     logrus.FieldLogger
	Metrics *Metrics

	Interval     time.Duration
	StartupDelay time.Duration
	InitNotice   time.Duration
	Splash       time.Duration
	Settle       time.Duration

	// OnUpdate is called after every screen update, e.g. to save a
	// snapshot. Optional.
	OnUpdate func() error
}

// NewStation returns a Station using the delays of cfg.
func NewStation(cfg *Config, s Sensor, d display.TextDisplay, log logrus.FieldLogger) *Station {
	return &Station{
		Sensor:       s,
		Display:      d,
		Clock:        clockwork.NewRealClock(),
		Log:          log,
		Interval:     cfg.ReadInterval(),
		StartupDelay: cfg.StartupDelay,
		InitNotice:   cfg.InitNotice,
		Splash:       cfg.Splash,
		Settle:       cfg.Settle,
	}
}

// FormatReading returns the two display rows for r.
func FormatReading(r dht.Reading) [2]string {
	return [2]string{
		fmt.Sprintf("Temp: %5.1fC", r.Temperature),
		fmt.Sprintf("Hum:  %5.1f%%", r.Humidity),
	}
}

// Start shows the splash screens with their delays. It returns early if ctx
// is done.
func (s *Station) Start(ctx context.Context) error {
	s.defaults()
	if err := s.wait(ctx, s.StartupDelay); err != nil {
		return err
	}
	s.Log.WithField("display", s.Display.String()).Info("display initialized")
	if err := s.show(InitText[0], InitText[1]); err != nil {
		return errors.Wrap(err, "splash")
	}
	if err := s.wait(ctx, s.InitNotice); err != nil {
		return err
	}
	if err := s.show(SplashText); err != nil {
		return errors.Wrap(err, "splash")
	}
	if err := s.wait(ctx, s.Splash); err != nil {
		return err
	}
	s.Log.WithField("sensor", s.Sensor).Infof("%s sensor initialized", s.Sensor.Variant())
	if err := s.wait(ctx, s.Settle); err != nil {
		return err
	}
	if err := s.show(WaitingText); err != nil {
		return errors.Wrap(err, "splash")
	}
	s.Log.Info("ready to read the sensor")
	return nil
}

// Step reads the sensor once and updates the display. It returns the read
// error; a display error is logged only.
func (s *Station) Step() error {
	s.defaults()
	r, err := s.Sensor.Read()
	s.Metrics.Observe(r, err)
	var derr error
	if err != nil {
		s.Log.WithField("result", Result(err)).Warnf("failed to read sensor: %v", err)
		derr = s.show(ErrorText)
	} else {
		s.Log.WithFields(logrus.Fields{
			"temperature": r.Temperature,
			"humidity":    r.Humidity,
		}).Info(r.String())
		lines := FormatReading(r)
		derr = s.show(lines[0], lines[1])
	}
	if derr != nil {
		s.Log.Errorf("failed to update display: %v", derr)
	}
	return err
}

// Run calls Start then Step every Interval until ctx is done. It returns
// ctx.Err() or a Start error.
func (s *Station) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	for {
		_ = s.Step()
		if err := s.wait(ctx, s.Interval); err != nil {
			return err
		}
	}
}

// Fail reports a display that did not come up. It shows InitFailedText with
// the backlight on if Display is set, then logs cause every second until ctx
// is done. It returns cause.
func (s *Station) Fail(ctx context.Context, cause error) error {
	s.defaults()
	s.Log.Errorf("display initialization failed: %v", cause)
	if s.Display != nil {
		if b, ok := s.Display.(display.DisplayBacklight); ok {
			_ = b.Backlight(display.Intensity(255))
		}
		if err := s.show(InitFailedText); err != nil {
			s.Log.Warnf("failed to update display: %v", err)
		}
	}
	for s.wait(ctx, time.Second) == nil {
		s.Log.WithError(cause).Warn("looping due to display initialization failure")
	}
	return cause
}

func (s *Station) defaults() {
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}
	if s.Log == nil {
		l := logrus.New()
		l.Out = io.Discard
		s.Log = l
	}
	if s.Interval <= 0 && s.Sensor != nil {
		cfg := Config{Sensor: SensorConfig{Variant: s.Sensor.Variant().String()}}
		s.Interval = cfg.ReadInterval()
	}
}

// show clears the display and writes one line per row from the top left.
func (s *Station) show(lines ...string) error {
	if err := s.Display.Clear(); err != nil {
		return err
	}
	for i, l := range lines {
		if i >= s.Display.Rows() {
			break
		}
		if err := s.Display.MoveTo(s.Display.MinRow()+i, s.Display.MinCol()); err != nil {
			return err
		}
		if _, err := s.Display.WriteString(l); err != nil {
			return err
		}
	}
	if s.OnUpdate != nil {
		return s.OnUpdate()
	}
	return nil
}

func (s *Station) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Clock.After(d):
		return nil
	}
}
