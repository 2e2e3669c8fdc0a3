package label

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/image/font"

	"github.com/JonMunkholm/labelqr/internal/core"
)

func TestLines(t *testing.T) {
	tests := []struct {
		rec  core.Record
		want []string
	}{
		{core.Record{Identifier: "A1", Label: "Bolt", Quantity: "3"}, []string{"A1", "Bolt", "Qty: 3"}},
		{core.Record{Identifier: "A1"}, []string{"A1"}},
		{core.Record{Identifier: "A1", Quantity: "7"}, []string{"A1", "Qty: 7"}},
	}
	for _, tt := range tests {
		if got := Lines(tt.rec); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Lines(%+v) = %q, want %q", tt.rec, got, tt.want)
		}
	}
}

func solidSymbol(size int) []byte {
	img := image.NewGray(image.Rect(0, 0, size, size)) // all black
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestDraw_Layout(t *testing.T) {
	rec := core.Record{Identifier: "A1", Label: "Bolt", Quantity: "3"}
	img, err := Draw(rec, solidSymbol(96))
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	b := img.Bounds()
	if b.Dx() != 120+2*padding {
		t.Errorf("width = %d, want %d", b.Dx(), 120+2*padding)
	}
	lineHeight := face.Metrics().Height.Ceil() + lineGap
	if want := 3*padding + 96 + 3*lineHeight; b.Dy() != want {
		t.Errorf("height = %d, want %d", b.Dy(), want)
	}

	if !isWhite(img.At(0, 0)) {
		t.Error("card corner should be white")
	}
	qrX := (b.Dx() - 96) / 2
	if isWhite(img.At(qrX+48, padding+48)) {
		t.Error("symbol center should be dark")
	}
}

func TestDraw_InvalidPNG(t *testing.T) {
	if _, err := Draw(core.Record{Identifier: "A"}, []byte("not a png")); err == nil {
		t.Fatal("Draw() expected error for invalid image")
	}
}

func TestFit(t *testing.T) {
	d := &font.Drawer{Face: face}

	if got := fit(d, "short", 200); got != "short" {
		t.Errorf("fit(short) = %q", got)
	}

	long := strings.Repeat("W", 40)
	got := fit(d, long, 70)
	if !strings.HasSuffix(got, ellipsis) {
		t.Errorf("fit(long) = %q, want ellipsis suffix", got)
	}
	if w := d.MeasureString(got).Ceil(); w > 70 {
		t.Errorf("fit(long) width = %d, want <= 70", w)
	}
}

func TestEncodePNG(t *testing.T) {
	img := Compose(core.Record{Identifier: "A"}, image.NewGray(image.Rect(0, 0, 30, 30)))
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("bounds = %v, want %v", decoded.Bounds(), img.Bounds())
	}
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}
