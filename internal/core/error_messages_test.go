package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "empty input",
			err:         ErrInputEmpty,
			wantCode:    "IN001",
			wantMessage: "There is no data to generate codes from",
		},
		{
			name:        "wrapped file too large",
			err:         fmt.Errorf("upload: %w", ErrFileTooLarge),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "ingestion error carries reader message",
			err:         &IngestionError{Line: 3, Err: errors.New(`extraneous or missing " in quoted-field`)},
			wantCode:    "FILE002",
			wantMessage: `Error processing CSV: extraneous or missing " in quoted-field`,
		},
		{
			name:        "no file",
			err:         ErrNoFile,
			wantCode:    "FILE004",
			wantMessage: "No file was selected",
		},
		{
			name:        "unsupported file",
			err:         ErrUnsupportedFile,
			wantCode:    "FILE006",
			wantMessage: "Please select a valid CSV file",
		},
		{
			name:        "validation error",
			err:         &ValidationError{Reason: "empty identifier"},
			wantCode:    "VAL001",
			wantMessage: "Row has an empty code",
		},
		{
			name:        "render error",
			err:         &RenderError{Identifier: "X", Err: errors.New("content too long")},
			wantCode:    "QR001",
			wantMessage: "QR code could not be generated",
		},
		{
			name:        "busy",
			err:         ErrTooManyUploads,
			wantCode:    "UPL002",
			wantMessage: "System is busy processing other uploads",
		},
		{
			name:        "sheet not found",
			err:         fmt.Errorf("load sheet abc: %w", ErrSheetNotFound),
			wantCode:    "SHEET001",
			wantMessage: "Nothing to print",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("ingest: %w", context.DeadlineExceeded),
			wantCode:    "UPL005",
			wantMessage: "Request timed out",
		},
		{
			name:        "http body limit",
			err:         errors.New("http: request body too large"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("INVALID CSV: bad header"),
			wantCode:    "FILE002",
			wantMessage: "The CSV file could not be read",
		},
		{
			name:        "bare encoding error is not special-cased",
			err:         errors.New("encoding error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestIsRecordError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&ValidationError{Reason: "empty identifier"}, true},
		{&RenderError{Identifier: "A", Err: errors.New("boom")}, true},
		{fmt.Errorf("item 3: %w", &RenderError{Identifier: "A", Err: errors.New("boom")}), true},
		{ErrInputEmpty, false},
		{&IngestionError{Err: errors.New("bad")}, false},
	}

	for _, tt := range tests {
		if got := IsRecordError(tt.err); got != tt.want {
			t.Errorf("IsRecordError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
