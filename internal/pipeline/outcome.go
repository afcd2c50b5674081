// Package pipeline runs the per-item analysis pipeline and fans it out
// across a bounded pool of workers.
package pipeline

import (
	"time"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/table"
)

// WorkItem is one input file considered for processing. The identifier is
// the file's base name, stable across runs.
type WorkItem struct {
	ID   string
	Path string
}

// ErrorKind classifies per-item failures.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not_found"
	KindEmpty          ErrorKind = "empty_file"
	KindTooLarge       ErrorKind = "too_large"
	KindBadExtension   ErrorKind = "bad_extension"
	KindCorruptArchive ErrorKind = "corrupt_archive"
	KindEngineError    ErrorKind = "engine_error"
	KindOther          ErrorKind = "other"
)

// Outcome is the result of processing one WorkItem. Exactly one of the
// success and failure halves is populated; failures carry a kind and a
// sanitized message instead of an error value, because per-item failures are
// data, not control flow.
type Outcome struct {
	ID      string
	Elapsed time.Duration

	Success   bool
	Row       table.Row
	HasBlocks bool

	Kind    ErrorKind
	Message string
}

func success(id string, row table.Row, hasBlocks bool, elapsed time.Duration) Outcome {
	return Outcome{ID: id, Success: true, Row: row, HasBlocks: hasBlocks, Elapsed: elapsed}
}

func failure(id string, kind ErrorKind, message string, elapsed time.Duration) Outcome {
	return Outcome{ID: id, Kind: kind, Message: message, Elapsed: elapsed}
}
