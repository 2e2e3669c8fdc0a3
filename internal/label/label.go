// Package label composes printable label cards: a QR symbol with the
// record's identifier, label and quantity written underneath.
package label

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/JonMunkholm/labelqr/internal/core"
)

const (
	padding     = 8
	lineGap     = 4
	minWidth    = 120
	ellipsis    = "..."
	maxTextRune = 64
)

var (
	face      = basicfont.Face7x13
	textColor = image.NewUniform(color.Black)
	dimColor  = image.NewUniform(color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff})
)

// Lines returns the text printed under the symbol, skipping empty fields.
func Lines(rec core.Record) []string {
	lines := []string{rec.Identifier}
	if rec.Label != "" {
		lines = append(lines, rec.Label)
	}
	if rec.Quantity != "" {
		lines = append(lines, "Qty: "+rec.Quantity)
	}
	return lines
}

// Draw decodes qrPNG and lays out a white card with the symbol centered at
// the top and the record's lines centered beneath it. Lines wider than the
// card are shortened with an ellipsis.
func Draw(rec core.Record, qrPNG []byte) (image.Image, error) {
	symbol, err := png.Decode(bytes.NewReader(qrPNG))
	if err != nil {
		return nil, fmt.Errorf("decode qr image: %w", err)
	}
	return Compose(rec, symbol), nil
}

// Compose draws the card around an already decoded symbol.
func Compose(rec core.Record, symbol image.Image) *image.RGBA {
	sb := symbol.Bounds()
	lines := Lines(rec)

	width := sb.Dx()
	if width < minWidth {
		width = minWidth
	}
	width += 2 * padding

	lineHeight := face.Metrics().Height.Ceil() + lineGap
	height := padding + sb.Dy() + padding + len(lines)*lineHeight + padding

	card := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(card, card.Bounds(), image.White, image.Point{}, draw.Src)

	qrX := (width - sb.Dx()) / 2
	draw.Draw(card, image.Rect(qrX, padding, qrX+sb.Dx(), padding+sb.Dy()), symbol, sb.Min, draw.Src)

	d := &font.Drawer{Dst: card, Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	y := padding + sb.Dy() + padding + ascent
	for i, line := range lines {
		line = fit(d, line, width-2*padding)
		d.Src = textColor
		if i > 0 {
			d.Src = dimColor
		}
		x := (width - d.MeasureString(line).Ceil()) / 2
		d.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
		d.DrawString(line)
		y += lineHeight
	}

	return card
}

// fit shortens s until it measures at most maxWidth pixels.
func fit(d *font.Drawer, s string, maxWidth int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxTextRune {
		s = string(r[:maxTextRune])
	}
	if d.MeasureString(s).Ceil() <= maxWidth {
		return s
	}
	r := []rune(s)
	for len(r) > 0 {
		r = r[:len(r)-1]
		if cand := string(r) + ellipsis; d.MeasureString(cand).Ceil() <= maxWidth {
			return cand
		}
	}
	return ellipsis
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode label png: %w", err)
	}
	return nil
}
