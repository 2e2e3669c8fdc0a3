package core

// parse.go turns freeform delimited text into records.
//
// The delimiter is sniffed from the first non-empty line and applied to every
// line; fields beyond the third are ignored and missing fields become "".

import (
	"strings"
)

// DefaultDelimiter is returned when no candidate appears in the sample line.
const DefaultDelimiter = ';'

// delimiterCandidates is ordered by tie-break priority.
var delimiterCandidates = []rune{';', ',', '\t', '|'}

// DetectDelimiter returns the candidate separator that occurs most often in
// line. Ties go to the earlier candidate.
func DetectDelimiter(line string) rune {
	best, bestCount := DefaultDelimiter, 0
	for _, c := range delimiterCandidates {
		if n := strings.Count(line, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// ParseText splits text into one record per non-empty line, in input order.
// It never fails; malformed lines produce partially empty records.
func ParseText(text string) []Record {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return []Record{}
	}

	sep := string(DetectDelimiter(lines[0]))
	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		records = append(records, recordFromFields(strings.Split(line, sep)))
	}
	return records
}

// nonEmptyLines splits on \n and \r\n and drops lines that are blank after trimming.
func nonEmptyLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func recordFromFields(fields []string) Record {
	return Record{
		Identifier: field(fields, 0),
		Label:      field(fields, 1),
		Quantity:   field(fields, 2),
	}
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// RecordsToText renders records back into "identifier;label;quantity" lines
// for the text area. The result is for display and is not a lossless
// encoding: semicolons and line breaks inside a field become spaces so every
// record stays on one line with three fields.
func RecordsToText(records []Record) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(textField.Replace(r.Identifier))
		b.WriteByte(';')
		b.WriteString(textField.Replace(r.Label))
		b.WriteByte(';')
		b.WriteString(textField.Replace(r.Quantity))
	}
	return b.String()
}

var textField = strings.NewReplacer(";", " ", "\r\n", " ", "\n", " ", "\r", " ")
