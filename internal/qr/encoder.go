// Package qr adapts github.com/skip2/go-qrcode to the core.Encoder interface.
package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/JonMunkholm/labelqr/internal/core"
)

// ErrEmptyPayload is returned for an empty payload; QR symbols need data.
var ErrEmptyPayload = errors.New("empty payload")

// Encoder renders QR symbols as square PNG images.
type Encoder struct {
	// Margin is the quiet zone width in modules on each side.
	Margin int

	Foreground color.Color
	Background color.Color
}

// NewEncoder returns an encoder with a quiet zone of margin modules drawing
// black on white.
func NewEncoder(margin int) *Encoder {
	if margin < 0 {
		margin = 0
	}
	return &Encoder{
		Margin:     margin,
		Foreground: color.Black,
		Background: color.White,
	}
}

var _ core.Encoder = (*Encoder)(nil)

// recoveryLevels maps error-correction letters to go-qrcode levels.
var recoveryLevels = map[core.ECCLevel]qrcode.RecoveryLevel{
	core.ECCLow:      qrcode.Low,
	core.ECCMedium:   qrcode.Medium,
	core.ECCQuartile: qrcode.High,
	core.ECCHigh:     qrcode.Highest,
}

// Encode returns a PNG of payload. The image is opts.Size pixels square, or
// the smallest size that fits one pixel per module when opts.Size is smaller.
func (e *Encoder) Encode(payload string, opts core.RenderOptions) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	level, ok := recoveryLevels[opts.Level]
	if !ok {
		return nil, fmt.Errorf("unknown error-correction level %q", opts.Level)
	}

	code, err := qrcode.New(payload, level)
	if err != nil {
		return nil, err
	}
	code.DisableBorder = true

	img := e.rasterize(code.Bitmap(), opts.Size)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// rasterize scales the module bitmap plus quiet zone onto a size x size
// paletted image, mapping each pixel to its nearest module.
func (e *Encoder) rasterize(bitmap [][]bool, size int) *image.Paletted {
	modules := len(bitmap) + 2*e.Margin
	if size < modules {
		size = modules
	}

	fg, bg := e.Foreground, e.Background
	if fg == nil {
		fg = color.Black
	}
	if bg == nil {
		bg = color.White
	}

	img := image.NewPaletted(image.Rect(0, 0, size, size), color.Palette{bg, fg})
	scale := float64(modules) / float64(size)

	for y := 0; y < size; y++ {
		my := int(float64(y)*scale) - e.Margin
		if my < 0 || my >= len(bitmap) {
			continue
		}
		row := bitmap[my]
		for x := 0; x < size; x++ {
			mx := int(float64(x)*scale) - e.Margin
			if mx >= 0 && mx < len(row) && row[mx] {
				img.Pix[img.PixOffset(x, y)] = 1
			}
		}
	}
	return img
}
