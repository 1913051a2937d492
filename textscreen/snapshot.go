// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package textscreen

import (
	"fmt"
	"image"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const (
	fontSize = 24
	margin   = 12
)

var (
	faceOnce sync.Once
	face     font.Face
	faceErr  error
)

func monoFace() (font.Face, error) {
	faceOnce.Do(func() {
		var f *truetype.Font
		if f, faceErr = truetype.Parse(gomono.TTF); faceErr == nil {
			face = truetype.NewFace(f, &truetype.Options{Size: fontSize})
		}
	})
	return face, faceErr
}

// Snapshot renders the screen as it would look on a backlit STN panel:
// dark glyphs on the bezel color. The cursor is drawn as an underline or a
// block depending on the mode.
func (d *Dev) Snapshot() (image.Image, error) {
	f, err := monoFace()
	if err != nil {
		return nil, fmt.Errorf("textscreen: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	// gomono is fixed width; every cell has the advance of 'M'.
	adv, _ := f.GlyphAdvance('M')
	cw := float64(adv.Round())
	ch := float64(f.Metrics().Height.Round())
	w := int(cw*float64(d.cols)) + 2*margin
	h := int(ch*float64(d.rows)) + 2*margin

	dc := gg.NewContext(w, h)
	bg := d.unlit
	if d.backlight {
		bg = d.lit
	}
	dc.SetColor(bg)
	dc.Clear()
	if !d.on {
		return dc.Image(), nil
	}
	dc.SetFontFace(f)
	dc.SetRGB255(0x10, 0x18, 0x10)
	ascent := float64(f.Metrics().Ascent.Round())
	for r, l := range d.lines() {
		y := margin + ch*float64(r) + ascent
		for c := range l {
			if l[c] != ' ' {
				dc.DrawString(string(l[c]), margin+cw*float64(c), y)
			}
		}
	}
	if (d.cursor || d.blink) && d.col < d.cols {
		x := margin + cw*float64(d.col)
		y := margin + ch*float64(d.row)
		if d.blink {
			dc.DrawRectangle(x, y, cw, ch)
		} else {
			dc.DrawRectangle(x, y+ch-3, cw, 2)
		}
		dc.Fill()
	}
	return dc.Image(), nil
}

// SavePNG writes Snapshot to path.
func (d *Dev) SavePNG(path string) error {
	img, err := d.Snapshot()
	if err != nil {
		return err
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("textscreen: %w", err)
	}
	return nil
}
