// Package app wires enumeration, dispatch, the result writer, and the
// progress store into one resumable batch run.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/config"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/metrics"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/pipeline"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/progress"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/scan"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/scratchapi"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/table"
)

// RunStats aggregates counters for one run.
type RunStats struct {
	AlreadyDone int
	Pending     int
	Successful  int
	Failed      int
	NoBlocks    int

	// ItemTime is the summed per-item processing time across workers;
	// Elapsed is wall-clock for the whole run.
	ItemTime time.Duration
	Elapsed  time.Duration

	FailuresByKind map[pipeline.ErrorKind]int
}

// Run executes one batch run to completion.
//
// ctx aborts hard: in-flight engine and metadata calls are cancelled. Closing
// stop requests a graceful drain instead: no new items are submitted, items
// already running finish and their rows are written, then the run finalizes.
// Fatal errors (bad configuration, unwritable output, schema drift) are
// returned; per-item failures are only counted.
func Run(ctx context.Context, stop <-chan struct{}, cfg config.Config, engine metrics.Engine, logger *log.Logger) (RunStats, error) {
	stats := RunStats{FailuresByKind: make(map[pipeline.ErrorKind]int)}
	start := time.Now()

	runID := fmt.Sprintf("run-%d", start.UnixNano())
	logf := func(format string, args ...any) {
		prefix := make([]any, 0, len(args)+1)
		prefix = append(prefix, runID)
		prefix = append(prefix, args...)
		logger.Printf("run=%s "+format, prefix...)
	}

	// Validating: configuration faults abort before any dispatch, so a fatal
	// exit here means no partial output exists from this run.
	if err := validatePaths(cfg); err != nil {
		return stats, err
	}

	store := progress.Load(cfg.ProgressPath, cfg.SaveInterval, cfg.Reprocess)
	stats.AlreadyDone = store.Len()
	if cfg.Reprocess {
		logf("reprocess mode: ignoring recorded progress, recreating output")
	}

	names, err := scan.List(cfg.InputDir, pipeline.DefaultExtension)
	if err != nil {
		return stats, err
	}
	var items []pipeline.WorkItem
	for _, name := range names {
		if store.Contains(name) {
			continue
		}
		items = append(items, pipeline.WorkItem{ID: name, Path: filepath.Join(cfg.InputDir, name)})
	}
	stats.Pending = len(items)

	logf("start: input=%s output=%s pending=%d done=%d workers=%d metadata=%t",
		cfg.InputDir, cfg.OutputPath, stats.Pending, stats.AlreadyDone, cfg.Workers, cfg.Metadata)

	if len(items) == 0 {
		logf("nothing to process")
		stats.Elapsed = time.Since(start)
		return stats, store.Flush()
	}

	var meta *scratchapi.Client
	if cfg.Metadata {
		meta, err = scratchapi.New(scratchapi.Options{
			BaseURL:      cfg.MetadataURL,
			Timeout:      cfg.MetadataTimeout,
			Retries:      cfg.MetadataRetries,
			RateLimitRPS: cfg.MetadataRPS,
		})
		if err != nil {
			return stats, err
		}
	}

	schema := metrics.Fieldnames(cfg.Metadata)
	writer, err := table.Open(cfg.OutputPath, schema, !cfg.Reprocess)
	if err != nil {
		return stats, err
	}

	proc := &pipeline.Processor{
		Engine:      engine,
		Meta:        meta,
		MaxFileSize: cfg.MaxFileSize,
	}

	// Dispatching. Submission stops when either the hard context or the
	// drain request fires; in-flight items always finish and deliver.
	subCtx, stopSubmitting := context.WithCancel(ctx)
	defer stopSubmitting()
	if stop != nil {
		go func() {
			select {
			case <-stop:
				logf("interrupt: draining in-flight items")
				stopSubmitting()
			case <-subCtx.Done():
			}
		}()
	}

	dispatchErr := pipeline.Dispatch(subCtx, items,
		func(item pipeline.WorkItem) pipeline.Outcome {
			return proc.Process(ctx, item)
		},
		func(out pipeline.Outcome) error {
			return consume(out, writer, store, &stats, logf)
		},
		pipeline.DispatchOptions{Workers: cfg.Workers, ChunkSize: cfg.ChunkSize},
	)

	// Finalizing: progress must hit disk even when the dispatch failed.
	if err := store.Flush(); err != nil && dispatchErr == nil {
		dispatchErr = err
	}
	if err := writer.Close(); err != nil && dispatchErr == nil {
		dispatchErr = err
	}
	// A drain (stop) finishes cleanly; a hard cancel is a failed run.
	if err := ctx.Err(); err != nil && dispatchErr == nil {
		dispatchErr = err
	}

	stats.Elapsed = time.Since(start)
	logSummary(&stats, logf)
	return stats, dispatchErr
}

// consume handles one outcome on the orchestrator goroutine. Ordering is
// load-bearing: the row is written and flushed before the identifier is
// marked done, so a crash between the two re-processes the item instead of
// losing its row.
func consume(out pipeline.Outcome, writer *table.Writer, store *progress.Store, stats *RunStats, logf func(string, ...any)) error {
	if !out.Success {
		stats.Failed++
		stats.FailuresByKind[out.Kind]++
		logf("< %s, ERROR [%s]: %s", out.ID, out.Kind, out.Message)
		return nil
	}

	if err := writer.Write(out.Row); err != nil {
		return fmt.Errorf("write row for %s: %w", out.ID, err)
	}
	store.MarkDone(out.ID)
	if store.NeedsFlush() {
		if err := store.Flush(); err != nil {
			return err
		}
	}

	stats.Successful++
	stats.ItemTime += out.Elapsed
	if out.HasBlocks {
		logf("> %s, %.2fs", out.ID, out.Elapsed.Seconds())
	} else {
		stats.NoBlocks++
		logf("> %s, %.2fs (no blocks)", out.ID, out.Elapsed.Seconds())
	}
	return nil
}

func validatePaths(cfg config.Config) error {
	fi, err := os.Stat(cfg.InputDir)
	if err != nil {
		return fmt.Errorf("input directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("input path %s is not a directory", cfg.InputDir)
	}

	outDir := filepath.Dir(cfg.OutputPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	probe, err := os.CreateTemp(outDir, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", outDir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	if err := os.MkdirAll(filepath.Dir(cfg.ProgressPath), 0o755); err != nil {
		return fmt.Errorf("create progress directory: %w", err)
	}
	return nil
}

func logSummary(stats *RunStats, logf func(string, ...any)) {
	logf("summary: successful=%d (with blocks=%d, without=%d) failed=%d elapsed=%.2fs",
		stats.Successful, stats.Successful-stats.NoBlocks, stats.NoBlocks, stats.Failed, stats.Elapsed.Seconds())
	for kind, n := range stats.FailuresByKind {
		logf("summary: failures[%s]=%d", kind, n)
	}
	if stats.Successful > 0 && stats.Elapsed > 0 {
		logf("summary: avg=%.2fs/item throughput=%.2f items/s",
			stats.ItemTime.Seconds()/float64(stats.Successful),
			float64(stats.Successful)/stats.Elapsed.Seconds())
	}
}
