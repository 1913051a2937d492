// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"fmt"
	"strings"
	"time"
)

// Variant identifies the sensor model. It selects the start pulse length, the
// minimum interval between samples and how the frame bytes are decoded.
type Variant int

const (
	// DHT11 reports whole-number humidity and temperature. Temperature is
	// never negative.
	DHT11 Variant = iota + 1
	// DHT22 reports 0.1 resolution humidity and a sign-magnitude temperature.
	DHT22
	// AM2302 is the wired package of the DHT22.
	AM2302 = DHT22
)

func (v Variant) String() string {
	switch v {
	case DHT11:
		return "DHT11"
	case DHT22:
		return "DHT22"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// StartHold returns how long the host must hold the line low to wake the
// sensor up.
func (v Variant) StartHold() time.Duration {
	switch v {
	case DHT11:
		return 18 * time.Millisecond
	case DHT22:
		return time.Millisecond
	default:
		return 0
	}
}

// MinInterval returns the datasheet's minimum time between two samples.
// Reading faster is allowed but the sensor is likely not to answer.
func (v Variant) MinInterval() time.Duration {
	switch v {
	case DHT11:
		return time.Second
	case DHT22:
		return 2 * time.Second
	default:
		return 0
	}
}

func (v Variant) valid() bool {
	return v == DHT11 || v == DHT22
}

// ParseVariant converts a model name (dht11, dht22 or am2302) to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dht11":
		return DHT11, nil
	case "dht22":
		return DHT22, nil
	case "am2302":
		return AM2302, nil
	}
	return 0, &Error{Kind: ErrInvalidConfiguration, Op: "parse variant", Msg: fmt.Sprintf("unknown sensor %q", s)}
}
