// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dht reads the AOSONG DHT11 and DHT22 (AM2302) temperature/humidity
// sensors over their single-wire bus.
//
// The bus is not 1-wire compatible. The host pulls the line low to request a
// sample, the sensor answers with an 80µs low / 80µs high handshake and then
// clocks out 40 bits. Every bit starts with a ~50µs low; the length of the high
// pulse that follows carries the value: ~27µs for a 0, ~70µs for a 1. The
// five bytes are humidity high/low, temperature high/low and an additive
// checksum.
//
// There is no hardware assistance. Dev polls the line in a busy loop and reads
// a monotonic clock between samples, so the calling goroutine must not be
// descheduled for more than a few microseconds while Read runs. The polling
// is isolated behind the Line and Clock interfaces; an edge-capture
// implementation can be dropped in without touching the decoder.
//
// # Worst case latency
//
// A transaction has no cancellation. Read returns after at most
//
//	StartHold + Settle + 3*(Timeout+HandshakeMargin) + 40*2*Timeout
//
// plus one poll interval per wait. With the default timing that is 8.45ms of
// waiting on top of the start pulse: 18ms for a DHT11, 1ms for a DHT22.
// Dev.MaxBlocking returns the waiting part for the configured timing.
//
// # Datasheets
//
// https://www.mouser.com/datasheet/2/758/DHT11-Technical-Data-Sheet-Translated-Version-1143054.pdf
//
// https://cdn-shop.adafruit.com/datasheets/Digital+humidity+and+temperature+sensor+AM2302.pdf
package dht
