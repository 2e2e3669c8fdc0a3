package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseRenderOptions(t *testing.T) {
	def := RenderOptions{Size: 96, Level: ECCMedium}

	tests := []struct {
		name    string
		size    string
		level   string
		def     RenderOptions
		maxSize int
		want    RenderOptions
	}{
		{"valid values", "128", "h", def, 0, RenderOptions{128, ECCHigh}},
		{"blank uses default", "", "", def, 0, def},
		{"garbage size", "big", "Q", def, 0, RenderOptions{96, ECCQuartile}},
		{"negative size", "-5", "L", def, 0, RenderOptions{96, ECCLow}},
		{"unknown level", "64", "X", def, 0, RenderOptions{64, ECCMedium}},
		{"capped", "5000", "M", def, 1024, RenderOptions{1024, ECCMedium}},
		{"zero default repaired", "", "", RenderOptions{}, 0, RenderOptions{DefaultSize, DefaultLevel}},
		{"whitespace trimmed", " 150 ", " q ", def, 0, RenderOptions{150, ECCQuartile}},
		{"unit suffix ignored", "96px", "M", RenderOptions{200, ECCMedium}, 0, RenderOptions{96, ECCMedium}},
		{"fraction truncated", "100.5", "M", def, 0, RenderOptions{100, ECCMedium}},
		{"explicit plus sign", "+120", "", def, 0, RenderOptions{120, ECCMedium}},
		{"sign without digits", "-px", "", def, 0, def},
		{"zero", "0", "", def, 0, def},
		{"overflow uses default", "99999999999999999999999", "", def, 0, def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRenderOptions(tt.size, tt.level, tt.def, tt.maxSize)
			if got != tt.want {
				t.Errorf("ParseRenderOptions(%q, %q) = %+v, want %+v", tt.size, tt.level, got, tt.want)
			}
		})
	}
}

func TestParseLayout(t *testing.T) {
	tests := []struct {
		in   string
		want LayoutMode
	}{
		{"table", LayoutTable},
		{"CARDS", LayoutCards},
		{" table ", LayoutTable},
		{"grid", LayoutCards},
		{"", LayoutCards},
	}
	for _, tt := range tests {
		if got := ParseLayout(tt.in, LayoutCards); got != tt.want {
			t.Errorf("ParseLayout(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultSettings(t *testing.T) {
	got := DefaultSettings()
	want := Settings{
		Render:      RenderOptions{Size: 96, Level: ECCMedium},
		Deduplicate: true,
		Layout:      LayoutCards,
	}
	if got != want {
		t.Errorf("DefaultSettings() = %+v, want %+v", got, want)
	}
}

func TestSheetCounts(t *testing.T) {
	sheet := &Sheet{Items: []Item{
		{Record: Record{Identifier: "A"}, Image: []byte{1}},
		{Record: Record{Identifier: ""}, Err: &ValidationError{Reason: "empty identifier"}},
		{Record: Record{Identifier: "C"}, Err: errors.New("boom")},
	}}

	if sheet.Empty() {
		t.Error("Empty() = true, want false")
	}
	if got := sheet.Processed(); got != 3 {
		t.Errorf("Processed() = %d, want 3", got)
	}
	if got := sheet.Failed(); got != 2 {
		t.Errorf("Failed() = %d, want 2", got)
	}
	want := []Record{{Identifier: "A"}, {Identifier: ""}, {Identifier: "C"}}
	if got := sheet.Records(); !reflect.DeepEqual(got, want) {
		t.Errorf("Records() = %+v, want %+v", got, want)
	}

	var nilSheet *Sheet
	if !nilSheet.Empty() || nilSheet.Processed() != 0 || nilSheet.Failed() != 0 || nilSheet.Records() != nil {
		t.Error("nil sheet should be empty with zero counts")
	}
}
