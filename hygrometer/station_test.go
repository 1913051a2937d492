// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hygrometer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GermanBionicSystems/thermohygro/dht"
	"github.com/GermanBionicSystems/thermohygro/dht/dhttest"
	"github.com/GermanBionicSystems/thermohygro/textscreen"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type result struct {
	r   dht.Reading
	err error
}

// fakeSensor returns queued results, then fails with a handshake timeout.
type fakeSensor struct {
	mu      sync.Mutex
	results []result
	reads   int
}

func (f *fakeSensor) Read() (dht.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.results) == 0 {
		return dht.Reading{}, &dht.Error{Kind: dht.ErrHandshakeTimeout, Op: "wait response low"}
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.r, r.err
}

func (f *fakeSensor) Variant() dht.Variant { return dht.DHT22 }

func (f *fakeSensor) String() string { return "fake" }

func TestFormatReading(t *testing.T) {
	var tests = []struct {
		r        dht.Reading
		expected [2]string
	}{
		{dht.Reading{Humidity: 54, Temperature: 26}, [2]string{"Temp:  26.0C", "Hum:   54.0%"}},
		{dht.Reading{Humidity: 5.6, Temperature: -26}, [2]string{"Temp: -26.0C", "Hum:    5.6%"}},
		{dht.Reading{Humidity: 100, Temperature: -0.1}, [2]string{"Temp:  -0.1C", "Hum:  100.0%"}},
	}
	for _, test := range tests {
		if diff := cmp.Diff(test.expected, FormatReading(test.r)); diff != "" {
			t.Errorf("FormatReading(%s) mismatch (-want +got):\n%s", test.r, diff)
		}
		for _, l := range FormatReading(test.r) {
			if len(l) > 16 {
				t.Errorf("%q does not fit a 16 column display", l)
			}
		}
	}
}

func newTestStation(t *testing.T, s Sensor) (*Station, *textscreen.Dev, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.Level = logrus.DebugLevel
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	scr := textscreen.New(&textscreen.Opts{W: &bytes.Buffer{}})
	cfg := DefaultConfig()
	cfg.Sensor.Variant = "dht22"
	st := NewStation(&cfg, s, scr, log)
	st.Metrics = m
	return st, scr, hook
}

func TestStep(t *testing.T) {
	sensor := &fakeSensor{results: []result{
		{r: dht.Reading{Humidity: 41, Temperature: 23.5}},
		{err: &dht.Error{Kind: dht.ErrChecksumMismatch, Op: "verify"}},
	}}
	st, scr, hook := newTestStation(t, sensor)

	if err := st.Step(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Temp:  23.5C    ", "Hum:   41.0%    "}, scr.Lines()); diff != "" {
		t.Errorf("display mismatch (-want +got):\n%s", diff)
	}
	if e := hook.LastEntry(); e.Level != logrus.InfoLevel || e.Message != "Temp: 23.5 C, Hum: 41.0 %" {
		t.Errorf("unexpected log entry %v %q", e.Level, e.Message)
	}

	err := st.Step()
	if !errors.Is(err, dht.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, received %v", err)
	}
	if diff := cmp.Diff([]string{"DHT Read Error  ", "                "}, scr.Lines()); diff != "" {
		t.Errorf("display mismatch (-want +got):\n%s", diff)
	}
	e := hook.LastEntry()
	if e.Level != logrus.WarnLevel || e.Data["result"] != ResultChecksumMismatch {
		t.Errorf("unexpected log entry %v %v", e.Level, e.Data)
	}
	if v := testutil.ToFloat64(st.Metrics.reads.WithLabelValues(ResultChecksumMismatch)); v != 1 {
		t.Errorf("checksum counter %v", v)
	}
}

// The station against the simulated sensor: a corrupted frame shows the
// error, the next transaction shows the reading.
func TestStep_dht(t *testing.T) {
	s := dhttest.NewSensor(dht.DHT22, dhttest.NewFrame([4]byte{0x02, 0x1c, 0x81, 0x04}))
	dev := dht.New(s, dht.DHT22, &dht.Opts{Clock: s})
	st, scr, _ := newTestStation(t, dev)
	s.Inject(dhttest.CorruptChecksum)
	if err := st.Step(); !errors.Is(err, dht.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, received %v", err)
	}
	if l := scr.Lines()[0]; !strings.HasPrefix(l, ErrorText) {
		t.Errorf("row 1 %q", l)
	}
	if err := st.Step(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Temp: -26.0C    ", "Hum:   54.0%    "}, scr.Lines()); diff != "" {
		t.Errorf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	sensor := &fakeSensor{results: []result{
		{r: dht.Reading{Humidity: 41, Temperature: 23.5}},
	}}
	st, scr, _ := newTestStation(t, sensor)
	fc := clockwork.NewFakeClock()
	st.Clock = fc
	updates := 0
	st.OnUpdate = func() error {
		updates++
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- st.Run(ctx) }()

	fc.BlockUntil(1)
	if l := scr.Lines()[0]; strings.TrimSpace(l) != "" {
		t.Errorf("display written during the startup delay: %q", l)
	}
	fc.Advance(5 * time.Second)
	fc.BlockUntil(1)
	if diff := cmp.Diff([]string{"LCD Initialized ", "SUCCEEDED.      "}, scr.Lines()); diff != "" {
		t.Errorf("init screen mismatch (-want +got):\n%s", diff)
	}
	fc.Advance(time.Second)
	fc.BlockUntil(1)
	if l := scr.Lines()[0]; !strings.HasPrefix(l, SplashText) {
		t.Errorf("expected the splash, found %q", l)
	}
	fc.Advance(2 * time.Second)
	fc.BlockUntil(1)
	fc.Advance(2 * time.Second)

	// First read, then waiting for the interval.
	fc.BlockUntil(1)
	if l := scr.Lines()[0]; l != "Temp:  23.5C    " {
		t.Errorf("expected the first reading, found %q", l)
	}
	fc.Advance(2500 * time.Millisecond)
	fc.BlockUntil(1)
	if l := scr.Lines()[0]; !strings.HasPrefix(l, ErrorText) {
		t.Errorf("expected the error screen, found %q", l)
	}
	// Failures are retried at the same cadence, without backoff.
	fc.Advance(2500 * time.Millisecond)
	fc.BlockUntil(1)

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() returned %v", err)
	}
	sensor.mu.Lock()
	defer sensor.mu.Unlock()
	if sensor.reads != 3 {
		t.Errorf("expected 3 reads, found %d", sensor.reads)
	}
	// Init notice, splash, waiting, then one per read.
	if updates != 6 {
		t.Errorf("expected 6 screen updates, found %d", updates)
	}
}

func TestFail(t *testing.T) {
	st, scr, hook := newTestStation(t, &fakeSensor{})
	fc := clockwork.NewFakeClock()
	st.Clock = fc
	cause := errors.New("hd44780: init: i2c: no ACK")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- st.Fail(ctx, cause) }()

	fc.BlockUntil(1)
	if l := scr.Lines()[0]; !strings.HasPrefix(l, InitFailedText) {
		t.Errorf("expected the failure screen, found %q", l)
	}
	fc.Advance(time.Second)
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	fc.BlockUntil(1)
	cancel()
	if err := <-done; err != cause {
		t.Errorf("Fail() returned %v", err)
	}
	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	if warnings != 2 {
		t.Errorf("expected one warning per second, found %d", warnings)
	}
}

func TestFail_noDisplay(t *testing.T) {
	st := &Station{Clock: clockwork.NewFakeClock()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cause := errors.New("no LCD")
	if err := st.Fail(ctx, cause); err != cause {
		t.Errorf("Fail() returned %v", err)
	}
}

func TestRun_cancelDuringStart(t *testing.T) {
	st, _, _ := newTestStation(t, &fakeSensor{})
	st.Clock = clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := st.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() returned %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(&buf, "warn")
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown")
	if s := buf.String(); strings.Contains(s, "hidden") || !strings.Contains(s, "shown") {
		t.Errorf("unexpected output %q", s)
	}
	if _, err := NewLogger(&buf, "loud"); err == nil {
		t.Error("expected error for an unknown level")
	}
}
