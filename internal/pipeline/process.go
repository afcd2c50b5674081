package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/metrics"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/sb3"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/scratchapi"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/table"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/util"
)

// DefaultMaxFileSize rejects archives above 100 MiB: one oversized input must
// not exhaust memory and stall the whole run.
const DefaultMaxFileSize = 100 << 20

// DefaultExtension is the expected archive suffix.
const DefaultExtension = ".sb3"

// projectIDRe extracts the numeric project identifier from a file stem:
// the first run of three or more digits.
var projectIDRe = regexp.MustCompile(`\d{3,}`)

// Processor runs the full per-item pipeline: validate, decode, analyze,
// flatten, and optionally enrich. It is safe for concurrent use.
type Processor struct {
	Engine metrics.Engine

	// Meta enables metadata enrichment when non-nil. Enrichment is
	// best-effort: it can only ever fill columns, never fail the item.
	Meta *scratchapi.Client

	// MaxFileSize is the size ceiling in bytes. <=0 means DefaultMaxFileSize.
	MaxFileSize int64

	// Extension is the required file suffix. Empty means DefaultExtension.
	Extension string
}

// Process runs the pipeline for one item. It never returns an error and never
// panics past its boundary: every failure mode becomes a failure Outcome.
func (p *Processor) Process(ctx context.Context, item WorkItem) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			msg := util.Sanitize(fmt.Sprint(r))
			out = failure(item.ID, KindOther, "panic: "+msg, time.Since(start))
		}
	}()

	if kind, msg, ok := p.validate(item); !ok {
		return failure(item.ID, kind, msg, time.Since(start))
	}

	project, err := sb3.Load(item.Path)
	if err != nil {
		return failure(item.ID, KindCorruptArchive, util.Sanitize(err.Error()), time.Since(start))
	}

	var report *metrics.Report
	hasBlocks := project.CountBlocks() > 0
	if hasBlocks {
		report, err = p.Engine.Analyze(ctx, item.Path, project)
		if err != nil {
			return failure(item.ID, KindEngineError, util.Sanitize(err.Error()), time.Since(start))
		}
	} else {
		// A project with no executable content is a valid degenerate case,
		// not a failure: canonical zeroed row with the baseline label.
		report = metrics.EmptyReport(project.NumSprites())
	}

	row := report.Row(item.ID, hasBlocks)
	if p.Meta != nil {
		mergeMeta(row, p.enrich(ctx, item.ID))
	}

	return success(item.ID, row, hasBlocks, time.Since(start))
}

func (p *Processor) validate(item WorkItem) (ErrorKind, string, bool) {
	maxSize := p.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	ext := p.Extension
	if ext == "" {
		ext = DefaultExtension
	}

	fi, err := os.Stat(item.Path)
	if err != nil {
		return KindNotFound, "file not found", false
	}
	if fi.Size() == 0 {
		return KindEmpty, "empty file", false
	}
	if fi.Size() > maxSize {
		return KindTooLarge, fmt.Sprintf("file too large (%d bytes > %d)", fi.Size(), maxSize), false
	}
	if !strings.HasSuffix(strings.ToLower(item.ID), strings.ToLower(ext)) {
		return KindBadExtension, "invalid file extension", false
	}
	return "", "", true
}

// enrich fetches the metadata record for the item, deriving the numeric
// project id from the file name. Absence of an id is itself recorded as a
// marker, not an error.
func (p *Processor) enrich(ctx context.Context, id string) scratchapi.Record {
	stem := strings.TrimSuffix(id, filepath.Ext(id))
	m := projectIDRe.FindString(stem)
	if m == "" {
		return scratchapi.NullRecord("", "no project id in filename")
	}
	pid, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return scratchapi.NullRecord("", "no project id in filename")
	}
	return p.Meta.Fetch(ctx, pid)
}

func mergeMeta(row table.Row, rec scratchapi.Record) {
	row["project_id"] = rec.ProjectID
	row["Project title"] = rec.Title
	row["Author"] = rec.Author
	row["Creation date"] = rec.Created
	row["Modified date"] = rec.Modified
	row["Remix parent id"] = rec.RemixParentID
	row["Remix root id"] = rec.RemixRootID
	row["_meta_error"] = rec.Err
}
