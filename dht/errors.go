// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"errors"
	"fmt"
)

// Kinds of failure returned by Read. All of them are recoverable by reading
// again after the variant's MinInterval.
var (
	// ErrInvalidConfiguration is returned by every Read of a Dev built with a
	// line number out of range, an unknown line or an unknown Variant.
	ErrInvalidConfiguration = errors.New("dht: invalid configuration")
	// ErrHandshakeTimeout means the sensor did not answer the start pulse: no
	// sensor, sensor busy or a wiring fault.
	ErrHandshakeTimeout = errors.New("dht: handshake timeout")
	// ErrBitTimeout means a data bit did not complete in time. Usually noise
	// or the polling goroutine was preempted mid frame.
	ErrBitTimeout = errors.New("dht: bit timeout")
	// ErrChecksumMismatch means the 40 bits were received but the checksum
	// byte does not match the data bytes.
	ErrChecksumMismatch = errors.New("dht: checksum mismatch")
)

// Error carries the failure kind and where it was detected. Use errors.Is
// with the Err* kinds to classify it.
type Error struct {
	// Kind is one of the Err* values above.
	Kind error
	// Op is the protocol phase, e.g. "wait response low" or "read bit".
	Op string
	// Bit is the index of the failing data bit for ErrBitTimeout.
	Bit int
	// Got and Want hold the received and computed checksums for
	// ErrChecksumMismatch.
	Got, Want byte
	// Msg is free form context.
	Msg string
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Kind, ErrBitTimeout):
		return fmt.Sprintf("%s: %s %d", e.Kind, e.Op, e.Bit)
	case errors.Is(e.Kind, ErrChecksumMismatch):
		return fmt.Sprintf("%s: got 0x%02x, calculated 0x%02x", e.Kind, e.Got, e.Want)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

// Unwrap returns the kind so that errors.Is works.
func (e *Error) Unwrap() error {
	return e.Kind
}

// KindOf returns the Err* kind carried by err, or nil if err did not come
// from this package.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
