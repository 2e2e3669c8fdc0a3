package core

import (
	"errors"
	"fmt"
)

// Batch-level errors: reported once, the action stops, nothing is rendered.
var (
	// ErrInputEmpty is returned when generation is requested with blank text.
	ErrInputEmpty = errors.New("input empty: enter some data first")

	// ErrUnsupportedFile is returned for uploads that are not CSV files.
	ErrUnsupportedFile = errors.New("unsupported file type: select a CSV file")

	// ErrFileTooLarge is returned when an upload exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when an upload request carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrSheetNotFound is returned by sheet stores for unknown IDs.
	ErrSheetNotFound = errors.New("sheet not found")
)

// IngestionError reports a structurally malformed CSV source.
type IngestionError struct {
	Line int // 1-based line of the first error, 0 if unknown
	Err  error
}

func (e *IngestionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid csv: %v", e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// ValidationError marks a record that cannot be rendered because its
// identifier is empty. It is confined to that record.
type ValidationError struct {
	Record Record
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid record: " + e.Reason
}

// RenderError wraps a failure of the QR encoder for one identifier.
type RenderError struct {
	Identifier string
	Err        error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("qr encode %q: %v", e.Identifier, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IsRecordError reports whether err is confined to a single record.
func IsRecordError(err error) bool {
	var ve *ValidationError
	var re *RenderError
	return errors.As(err, &ve) || errors.As(err, &re)
}
