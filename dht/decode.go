// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"fmt"
	"time"

	"github.com/GermanBionicSystems/thermohygro/common"
	"periph.io/x/conn/v3/physic"
)

// frameBits is the number of bits the sensor sends after the handshake.
const frameBits = 40

// Reading is one decoded sample.
type Reading struct {
	// Relative humidity in percent.
	Humidity float64
	// Temperature in degrees Celsius.
	Temperature float64
}

func (r Reading) String() string {
	return fmt.Sprintf("Temp: %.1f C, Hum: %.1f %%", r.Temperature, r.Humidity)
}

// Env converts the reading to a physic.Env. Pressure is not measured.
func (r Reading) Env() physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(r.Temperature*float64(physic.Celsius)),
		Humidity:    physic.RelativeHumidity(r.Humidity * float64(physic.PercentRH)),
	}
}

// Classify returns the value of a data bit from the length of its high
// pulse. The sensor sends ~27µs for a 0 and ~70µs for a 1.
func Classify(high, threshold time.Duration) bool {
	return high > threshold
}

// Verify checks the last byte of frame against the sum of the four data
// bytes.
func Verify(frame [5]byte) error {
	if want := common.Sum8(frame[:4]); want != frame[4] {
		return &Error{Kind: ErrChecksumMismatch, Op: "verify", Got: frame[4], Want: want}
	}
	return nil
}

// Decode converts a verified frame to a Reading. The checksum is not checked
// again; the only failure is an unknown variant.
//
// For the DHT11, bytes 1 and 3 hold a decimal part that most parts always
// send as zero. They are added as tenths when includeFractional is set.
func Decode(frame [5]byte, v Variant, includeFractional bool) (Reading, error) {
	switch v {
	case DHT11:
		r := Reading{Humidity: float64(frame[0]), Temperature: float64(frame[2])}
		if includeFractional {
			r.Humidity += float64(frame[1]) / 10
			r.Temperature += float64(frame[3]) / 10
		}
		return r, nil
	case DHT22:
		h := uint16(frame[0])<<8 | uint16(frame[1])
		// Sign-magnitude, not two's complement.
		t := uint16(frame[2]&0x7f)<<8 | uint16(frame[3])
		r := Reading{Humidity: float64(h) / 10, Temperature: float64(t) / 10}
		if frame[2]&0x80 != 0 {
			r.Temperature = -r.Temperature
		}
		return r, nil
	default:
		return Reading{}, &Error{Kind: ErrInvalidConfiguration, Op: "decode", Msg: fmt.Sprintf("unknown sensor %s", v)}
	}
}
