package core

// columns.go maps arbitrary CSV headers onto the three record fields.
//
// Each field has an ordered keyword set; a header matches when its folded
// name contains any keyword. Fields are resolved in table order and a header
// already bound to an earlier field is not offered to later ones. A field
// with no matching header falls back to its positional column.

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// RecordField names one of the three record fields.
type RecordField int

const (
	FieldIdentifier RecordField = iota
	FieldLabel
	FieldQuantity
)

// headerRule binds a record field to the keywords that identify its column.
type headerRule struct {
	field    RecordField
	keywords []string
}

// headerRules is tried in order; the position of each rule is also the
// positional fallback column for its field.
var headerRules = []headerRule{
	{field: FieldIdentifier, keywords: []string{"cod", "code", "id"}},
	{field: FieldLabel, keywords: []string{"nome", "name", "prod", "desc"}},
	{field: FieldQuantity, keywords: []string{"qt", "quant", "qtd", "quantity"}},
}

// foldHeader normalizes a header for keyword matching. A Caser keeps state,
// so callers pass their own.
func foldHeader(c cases.Caser, h string) string {
	return c.String(norm.NFKC.String(strings.TrimSpace(h)))
}

// ColumnMap holds the resolved column index of each field; -1 means absent.
type ColumnMap struct {
	Identifier int
	Label      int
	Quantity   int
}

// InferColumns resolves the identifier, label and quantity columns for header.
func InferColumns(header []string) ColumnMap {
	lower := cases.Lower(language.Und)
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = foldHeader(lower, h)
	}

	cols := [3]int{-1, -1, -1}
	claimed := make(map[int]bool, len(headerRules))

	for pos, rule := range headerRules {
		if idx := matchHeader(folded, rule.keywords, claimed); idx >= 0 {
			cols[rule.field] = idx
			claimed[idx] = true
			continue
		}
		if pos < len(header) {
			cols[rule.field] = pos
		}
	}

	return ColumnMap{
		Identifier: cols[FieldIdentifier],
		Label:      cols[FieldLabel],
		Quantity:   cols[FieldQuantity],
	}
}

// matchHeader returns the first unclaimed header containing any keyword.
func matchHeader(folded []string, keywords []string, claimed map[int]bool) int {
	for i, h := range folded {
		if claimed[i] {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

// Record builds a record from a data row using the resolved columns.
func (m ColumnMap) Record(row []string) Record {
	return Record{
		Identifier: field(row, m.Identifier),
		Label:      field(row, m.Label),
		Quantity:   field(row, m.Quantity),
	}
}
