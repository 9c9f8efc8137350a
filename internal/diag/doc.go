// Package diag defines the diagnostic model shared by the inference passes.
//
// Diagnostic is the central record: a Severity, a numeric Code with a stable
// string form (see codes.go), a short actionable Message, the Primary span
// and optional Notes pointing at related sites ("first moved here").
//
// Passes emit through a Reporter so they do not depend on storage. Use
// ReportError/ReportWarning/ReportInfo to build a diagnostic, chain WithNote
// and call Emit. BagReporter collects into a Bag, which supports limits,
// merging, sorting and deduplication. DedupReporter filters repeats, which
// the interprocedural rounds would otherwise produce.
//
// Rendering lives in internal/diagfmt; this package does no IO.
package diag
