// Package core provides the business logic for turning delimited text or CSV
// files into QR label sheets.
//
// This package contains all domain logic independent of any UI or transport
// layer. The web handlers use it through [Service]; tests call the pipeline
// stages directly.
//
// # Pipeline
//
// Text input flows through:
//
//  1. [DetectDelimiter] picks ";", ",", tab or "|" from the first line
//  2. [ParseText] splits every non-empty line into a [Record]
//  3. [Normalize] drops blank identifiers and optionally deduplicates
//  4. [Renderer.Render] encodes each identifier, one [Item] per record
//
// CSV uploads replace steps 1 and 2 with [IngestCSV], which skips a BOM,
// sniffs the delimiter from the header line and resolves columns by header
// name with [InferColumns].
//
// # Failure Isolation
//
// A record that cannot be rendered becomes an [Item] with Err set; the batch
// always completes and [Sheet.Processed] counts it. Only [ErrInputEmpty],
// [*IngestionError] and upload rejections stop a batch.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each message carries a code (e.g. "FILE002") for support reference.
//
// # Settings
//
// Rendering options, deduplication and layout arrive as an explicit
// [Settings] value on every call; the package never reads stored preferences.
package core
