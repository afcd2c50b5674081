// Package table implements the append-only CSV sink with a schema fixed for
// the lifetime of one output file.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// Schema is the ordered column set of an output file. Once a Writer is
// opened, the schema never changes.
type Schema []string

// Row maps column names to cell values. A row written through the Writer
// must carry exactly the schema's columns.
type Row map[string]string

// ErrSchemaMismatch reports a row whose key set differs from the writer's
// schema. This is a programming-error-class failure: it indicates systemic
// schema drift and is fatal to the run, not to the single item.
var ErrSchemaMismatch = errors.New("row does not match schema")

// Writer appends rows to a CSV file under a fixed schema.
//
// The writer is owned by a single goroutine (the orchestrator); it performs
// no internal locking. Every Write flushes the underlying stream before
// returning so the caller can mark progress durable afterwards.
type Writer struct {
	f      *os.File
	cw     *csv.Writer
	schema Schema
}

// Open opens the output file. With appendMode false the file is created or
// truncated and the header is written. With appendMode true rows are appended;
// the header is written only when the file is new or empty, and an existing
// header must match the schema exactly.
func Open(path string, schema Schema, appendMode bool) (*Writer, error) {
	if len(schema) == 0 {
		return nil, errors.New("empty schema")
	}

	writeHeader := true
	if appendMode {
		existing, err := readHeader(path)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if !slices.Equal(existing, []string(schema)) {
				return nil, fmt.Errorf("existing file %s: header does not match schema: %w", path, ErrSchemaMismatch)
			}
			writeHeader = false
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}

	w := &Writer{f: f, cw: csv.NewWriter(f), schema: schema}
	if writeHeader {
		if err := w.cw.Write(schema); err != nil {
			_ = f.Close()
			return nil, err
		}
		w.cw.Flush()
		if err := w.cw.Error(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return w, nil
}

// Write appends one row and flushes the stream. The row's key set must equal
// the schema.
func (w *Writer) Write(row Row) error {
	if len(row) != len(w.schema) {
		return fmt.Errorf("row has %d columns, schema has %d: %w", len(row), len(w.schema), ErrSchemaMismatch)
	}
	record := make([]string, len(w.schema))
	for i, col := range w.schema {
		v, ok := row[col]
		if !ok {
			return fmt.Errorf("row missing column %q: %w", col, ErrSchemaMismatch)
		}
		record[i] = v
	}
	if err := w.cw.Write(record); err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.cw.Flush()
	err := w.cw.Error()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// readHeader returns the header record of an existing CSV file, or nil when
// the file is absent or empty.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read existing header of %s: %w", path, err)
	}
	return header, nil
}
