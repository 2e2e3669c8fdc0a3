package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference.
//
// # Input Errors (IN001-IN099)
//
//	IN001 - Empty input: generation requested with no text
//	        Action: Paste or type some rows first
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: upload exceeds the configured size limit
//	          Action: Split the file into smaller chunks
//	FILE002 - Invalid CSV: the file is structurally malformed
//	          Action: Check quoting and that every row has the same columns
//	FILE004 - No file: the upload carried no file
//	          Action: Select a CSV file to upload
//	FILE006 - Unsupported type: the upload is not a CSV file
//	          Action: Select a file with a .csv extension
//
// # Record Errors (VAL001, QR001)
//
// These never stop a batch; they are shown inside the affected row.
//
//	VAL001 - Empty identifier: the row has no code to encode
//	QR001  - Encoding failed: the code could not be turned into a QR symbol
//
// # Upload and Sheet Errors
//
//	UPL002   - Busy: too many uploads are being processed
//	UPL004   - Request cancelled
//	UPL005   - Request timed out
//	SHEET001 - Nothing to print: the sheet does not exist or is empty
//	RATE001  - Too many requests
//	ERR000   - Fallback for anything else
//
// Typed errors are matched first with errors.Is / errors.As; the substring
// table catches wrapped or foreign errors. The first match wins.

import (
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgInputEmpty = UserMessage{
		Message: "There is no data to generate codes from",
		Action:  "Paste or type some rows first",
		Code:    "IN001",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgInvalidCSV = UserMessage{
		Message: "The CSV file could not be read",
		Action:  "Check quoting and that every row has the same number of columns",
		Code:    "FILE002",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Select a CSV file to upload",
		Code:    "FILE004",
	}
	msgUnsupportedFile = UserMessage{
		Message: "Please select a valid CSV file",
		Action:  "Select a file with a .csv extension",
		Code:    "FILE006",
	}
	msgEmptyIdentifier = UserMessage{
		Message: "Row has an empty code",
		Action:  "Fill in the code column for this row",
		Code:    "VAL001",
	}
	msgEncodeFailed = UserMessage{
		Message: "QR code could not be generated",
		Action:  "Shorten the code or lower the error-correction level",
		Code:    "QR001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgNothingToPrint = UserMessage{
		Message: "Nothing to print",
		Action:  "Generate the QR codes first",
		Code:    "SHEET001",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error substrings (case-insensitive) to user
// messages. More specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "input empty", msg: msgInputEmpty},
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "request body too large", msg: msgFileTooLarge},
	{pattern: "invalid csv", msg: msgInvalidCSV},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "unsupported file type", msg: msgUnsupportedFile},
	{pattern: "invalid record", msg: msgEmptyIdentifier},
	{pattern: "qr encode", msg: msgEncodeFailed},
	{pattern: "too many concurrent uploads", msg: msgBusy},
	{pattern: "sheet not found", msg: msgNothingToPrint},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		ie *IngestionError
		ve *ValidationError
		re *RenderError
	)
	switch {
	case errors.Is(err, ErrInputEmpty):
		return msgInputEmpty, true
	case errors.Is(err, ErrFileTooLarge):
		return msgFileTooLarge, true
	case errors.Is(err, ErrNoFile):
		return msgNoFile, true
	case errors.Is(err, ErrUnsupportedFile):
		return msgUnsupportedFile, true
	case errors.Is(err, ErrTooManyUploads):
		return msgBusy, true
	case errors.Is(err, ErrSheetNotFound):
		return msgNothingToPrint, true
	case errors.As(err, &ie):
		msg := msgInvalidCSV
		msg.Message = "Error processing CSV: " + ie.Err.Error()
		return msg, true
	case errors.As(err, &ve):
		return msgEmptyIdentifier, true
	case errors.As(err, &re):
		return msgEncodeFailed, true
	}
	return UserMessage{}, false
}
