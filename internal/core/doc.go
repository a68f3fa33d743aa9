// Package core provides the business logic for bulk invoice imports.
//
// This package turns a loosely formatted spreadsheet of invoice lines into
// issuance requests and drives their sequential submission. It is
// independent of any UI or transport layer and is used by the HTTP server,
// the CLI and tests alike.
//
// # Pipeline
//
// Parsing runs leaf-first:
//
//  1. A [Decoder] returns the first sheet as a [RawTable]
//  2. [LocateHeader] finds the first row carrying every mandatory column
//  3. [NormalizeRows] keys each non-empty row by normalized header
//  4. [Assembler.Assemble] coerces values, resolves vocabularies and builds
//     one [ParsedRow] per usable record
//
// Anomalies never fail a row silently: a missing point of sale or description
// drops the row with a warning, anything else gets a default and a warning.
// Only a missing header, an unreadable file or an empty result abort the
// parse, always as a [*FatalParseError].
//
// # Submission
//
// A [Batch] owns the rows of one session. [Batch.SubmitAll] sends eligible
// rows one at a time in file order; [Batch.SubmitOne] sends a single row. A
// one-slot [Gate] is the busy flag that keeps them from overlapping.
//
// # Sessions
//
// A [Service] holds one Batch per session and sweeps idle sessions.
package core
