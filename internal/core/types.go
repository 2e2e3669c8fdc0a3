// Package core provides the business logic for turning delimited text into
// QR label sheets. This package has no UI dependencies and can be used by any
// frontend.
package core

import (
	"strconv"
	"strings"
)

// Record is one labeled row: the identifier is the payload encoded into the
// QR symbol and the deduplication key.
type Record struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Quantity   string `json:"quantity"`
}

// ECCLevel is the QR error-correction level.
type ECCLevel string

const (
	ECCLow      ECCLevel = "L"
	ECCMedium   ECCLevel = "M"
	ECCQuartile ECCLevel = "Q"
	ECCHigh     ECCLevel = "H"
)

// Valid reports whether l is one of L, M, Q, H.
func (l ECCLevel) Valid() bool {
	switch l {
	case ECCLow, ECCMedium, ECCQuartile, ECCHigh:
		return true
	}
	return false
}

// LayoutMode selects how a sheet is presented. Both modes show the same items.
type LayoutMode string

const (
	LayoutTable LayoutMode = "table"
	LayoutCards LayoutMode = "cards"
)

// Valid reports whether m is a known layout.
func (m LayoutMode) Valid() bool {
	return m == LayoutTable || m == LayoutCards
}

// Defaults used when a setting is missing or unusable.
const (
	DefaultSize   = 96
	DefaultLevel  = ECCMedium
	DefaultLayout = LayoutCards
	DefaultMargin = 2
)

// RenderOptions controls QR generation for one render pass.
type RenderOptions struct {
	Size  int      `json:"size"`
	Level ECCLevel `json:"level"`
}

// ParseRenderOptions builds options from raw form values. The size is read
// from its leading digits, so "96px" is 96 and "100.5" is 100. A size with no
// leading digits or that is not positive falls back to def.Size; an unknown
// level falls back to def.Level. maxSize caps the size when positive.
func ParseRenderOptions(size, level string, def RenderOptions, maxSize int) RenderOptions {
	opts := def
	if n, ok := leadingInt(size); ok && n > 0 {
		opts.Size = n
	}
	if l := ECCLevel(strings.ToUpper(strings.TrimSpace(level))); l.Valid() {
		opts.Level = l
	}
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if !opts.Level.Valid() {
		opts.Level = DefaultLevel
	}
	if maxSize > 0 && opts.Size > maxSize {
		opts.Size = maxSize
	}
	return opts
}

// leadingInt parses the optionally signed decimal prefix of s after leading
// whitespace.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	return n, err == nil
}

// Settings is the configuration injected into every pipeline call.
type Settings struct {
	Render      RenderOptions `json:"render"`
	Deduplicate bool          `json:"deduplicate"`
	Layout      LayoutMode    `json:"layout"`
}

// DefaultSettings returns size 96, level M, deduplication on, card layout.
func DefaultSettings() Settings {
	return Settings{
		Render:      RenderOptions{Size: DefaultSize, Level: DefaultLevel},
		Deduplicate: true,
		Layout:      DefaultLayout,
	}
}

// ParseLayout returns the layout named by s, or def when s is unknown.
func ParseLayout(s string, def LayoutMode) LayoutMode {
	m := LayoutMode(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m
	}
	return def
}

// Item is the render outcome for a single record. Image holds PNG bytes when
// Err is nil; otherwise the item is shown as an error placeholder.
type Item struct {
	Record Record
	Image  []byte
	Err    error
}

// OK reports whether the item rendered successfully.
func (it Item) OK() bool {
	return it.Err == nil
}

// Sheet is the output of one generate action.
type Sheet struct {
	ID         string
	Layout     LayoutMode
	Options    RenderOptions
	Items      []Item
	SourceText string // text equivalent of the input, one record per line
}

// Empty reports whether the empty-state indicator should be shown.
func (s *Sheet) Empty() bool {
	return s == nil || len(s.Items) == 0
}

// Processed returns the number of records that reached the renderer,
// including those shown with an error placeholder.
func (s *Sheet) Processed() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Failed returns the number of items rendered as placeholders.
func (s *Sheet) Failed() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, it := range s.Items {
		if !it.OK() {
			n++
		}
	}
	return n
}

// Records returns the records of the sheet in display order.
func (s *Sheet) Records() []Record {
	if s == nil {
		return nil
	}
	out := make([]Record, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Record
	}
	return out
}
