// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hygrometer

import (
	"errors"

	"github.com/GermanBionicSystems/thermohygro/dht"
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels of thermohygro_reads_total.
const (
	ResultOK                   = "ok"
	ResultInvalidConfiguration = "invalid_configuration"
	ResultHandshakeTimeout     = "handshake_timeout"
	ResultBitTimeout           = "bit_timeout"
	ResultChecksumMismatch     = "checksum_mismatch"
	ResultOther                = "other"
)

// Metrics holds the station collectors. A nil *Metrics records nothing.
type Metrics struct {
	reads       *prometheus.CounterVec
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thermohygro_reads_total",
			Help: "Sensor transactions by result.",
		}, []string{"result"}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermohygro_temperature_celsius",
			Help: "Air temperature of the last successful read (units: degrees Celsius)",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermohygro_humidity_percent",
			Help: "Relative humidity of the last successful read (units: %)",
		}),
	}
	for _, c := range []prometheus.Collector{m.reads, m.temperature, m.humidity} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	for _, r := range []string{ResultOK, ResultInvalidConfiguration, ResultHandshakeTimeout, ResultBitTimeout, ResultChecksumMismatch} {
		m.reads.WithLabelValues(r)
	}
	return m, nil
}

// Observe records the outcome of one read. The gauges keep the last good
// values on failure.
func (m *Metrics) Observe(r dht.Reading, err error) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(Result(err)).Inc()
	if err == nil {
		m.temperature.Set(r.Temperature)
		m.humidity.Set(r.Humidity)
	}
}

// Result returns the metric label for a read error.
func Result(err error) string {
	if err == nil {
		return ResultOK
	}
	switch kind := dht.KindOf(err); {
	case errors.Is(kind, dht.ErrInvalidConfiguration):
		return ResultInvalidConfiguration
	case errors.Is(kind, dht.ErrHandshakeTimeout):
		return ResultHandshakeTimeout
	case errors.Is(kind, dht.ErrBitTimeout):
		return ResultBitTimeout
	case errors.Is(kind, dht.ErrChecksumMismatch):
		return ResultChecksumMismatch
	default:
		return ResultOther
	}
}
