// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"github.com/GermanBionicSystems/thermohygro/pcf857x"
	"periph.io/x/conn/v3/i2c"
)

// PCF857xBackpack is the wiring of the PCF8574 backpacks sold with LCD1602
// and LCD2004 modules.
//
// # Product Information
//
// https://www.handsontec.com/dataspecs/I2C_2004_LCD.pdf
var PCF857xBackpack = Wiring{RS: 0, RW: 1, E: 2, Backlight: 3, Data: [4]uint8{4, 5, 6, 7}}

// NewPCF857xBackpack returns a display behind a PCF8574 backpack at address.
// Use pcf857x.Discover first if the address is not known.
func NewPCF857xBackpack(bus i2c.Bus, address uint16, rows, cols int) (*Dev, error) {
	pcf, err := pcf857x.New(bus, address, pcf857x.PCF8574)
	if err != nil {
		return nil, err
	}
	return New(pcf, PCF857xBackpack, rows, cols)
}
