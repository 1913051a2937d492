// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "testing"

func TestSum8(t *testing.T) {
	var tests = []struct {
		bytes  []byte
		result byte
	}{
		{bytes: nil, result: 0},
		{bytes: []byte{0x32, 0x00, 0x18, 0x00}, result: 0x4a},
		{bytes: []byte{0x02, 0x1c, 0x81, 0x04}, result: 0xa3},
		{bytes: []byte{0xff, 0xff, 0xff, 0xff}, result: 0xfc},
		{bytes: []byte{0x80, 0x80}, result: 0x00},
	}
	for _, test := range tests {
		res := Sum8(test.bytes)
		if res != test.result {
			t.Errorf("Sum8(%#v)!=0x%x received 0x%x", test.bytes, test.result, res)
		}
	}
}
