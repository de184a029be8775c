// Package output formats review results for display or machine consumption.
//
// Three formats are supported:
//   - text     — human-readable terminal output (default)
//   - json     — full structured result with insights
//   - markdown — headings, a ratings table and escaped provider text
//
// Use [GetWriter] to obtain a [Writer] for a given format string, then call
// one of its methods with an [io.Writer]. [WriteResult], [WriteComparison]
// and [WriteBatch] handle destination selection (file path or stdout).
package output
