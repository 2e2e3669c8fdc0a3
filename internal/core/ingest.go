package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

// AcceptFile reports whether an upload looks like a CSV file, judged by its
// declared content type or its file name extension.
func AcceptFile(contentType, fileName string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "text/csv" {
		return true
	}
	return strings.EqualFold(filepath.Ext(fileName), ".csv")
}

// IngestCSV reads a CSV file with a header row and returns one record per
// data row whose identifier is non-empty.
//
// The delimiter is sniffed from the header line. Any structural error in the
// file fails the whole ingestion with an *IngestionError; no partial result
// is returned. maxSize bounds the bytes read when positive.
func IngestCSV(r io.Reader, maxSize int64) ([]Record, error) {
	data, err := io.ReadAll(newSizeLimitReader(skipBOM(r), maxSize))
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, &IngestionError{Err: fmt.Errorf("read file: %w", err)}
	}
	data = sanitizeUTF8(data)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = DetectDelimiter(firstLine(data))
	// Leading-space trimming would swallow empty cells of whitespace-delimited
	// files; ColumnMap.Record trims values anyway.
	reader.TrimLeadingSpace = !unicode.IsSpace(reader.Comma)

	header, err := reader.Read()
	if err == io.EOF {
		return []Record{}, nil
	}
	if err != nil {
		return nil, newIngestionError(err)
	}

	cols := InferColumns(header)

	records := make([]Record, 0, 64)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newIngestionError(err)
		}
		if isEmptyRow(row) {
			continue
		}
		rec := cols.Record(row)
		if rec.Identifier == "" {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// firstLine returns the first non-blank line of data for delimiter sniffing.
func firstLine(data []byte) string {
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			data = nil
		}
		if s := strings.TrimSpace(string(line)); s != "" {
			return s
		}
	}
	return ""
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// newIngestionError wraps a csv reader error, keeping the line it reports.
func newIngestionError(err error) *IngestionError {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &IngestionError{Line: pe.Line, Err: pe.Err}
	}
	return &IngestionError{Err: err}
}
