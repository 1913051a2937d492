// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thermohygro is a thermohygrometer built on periph: a DHT11 or
// DHT22 sensor on a single GPIO line and a character LCD behind a PCF8574
// I²C backpack.
//
// The sensor protocol lives in dht, the display in hd44780 and pcf857x, a
// terminal stand-in for the LCD in textscreen, and the read loop in
// hygrometer. cmd/thermohygro is the Linux binary; cmd/thermohygro-pico
// targets the Raspberry Pi Pico with tinygo.
package thermohygro
