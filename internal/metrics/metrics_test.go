package metrics_test

import (
	"slices"
	"testing"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/metrics"
)

func TestFieldnames(t *testing.T) {
	t.Parallel()

	base := metrics.Fieldnames(false)
	withMeta := metrics.Fieldnames(true)

	if len(withMeta) != len(base)+8 {
		t.Fatalf("expected 8 enrichment columns, got %d", len(withMeta)-len(base))
	}
	if !slices.Equal(base, withMeta[:len(base)]) {
		t.Fatalf("metric columns must be a prefix of the enriched schema")
	}
	if base[0] != "project" {
		t.Fatalf("first column must be project, got %q", base[0])
	}
	if withMeta[len(withMeta)-1] != "_meta_error" {
		t.Fatalf("last enriched column must be _meta_error, got %q", withMeta[len(withMeta)-1])
	}
	// Schema order is load-bearing for append-mode resumes; guard the skill block.
	for i, skill := range metrics.SkillNames {
		if base[5+i] != skill {
			t.Fatalf("column %d: expected skill %q, got %q", 5+i, skill, base[5+i])
		}
	}
}

func TestEmptyReportRow(t *testing.T) {
	t.Parallel()

	r := metrics.EmptyReport(3)
	row := r.Row("754492227.sb3", false)

	if row["project"] != "754492227.sb3" {
		t.Fatalf("unexpected project: %q", row["project"])
	}
	if row["total_blocks"] != "0" || row["mastery_total_points"] != "0" {
		t.Fatalf("empty report must zero metric fields: %v", row)
	}
	if row["mastery_competence"] != metrics.CompetenceBasic {
		t.Fatalf("empty report competence: %q", row["mastery_competence"])
	}
	if row["mastery_total_max"] != "36" {
		t.Fatalf("expected max 36, got %q", row["mastery_total_max"])
	}
	if row["babia_num_sprites"] != "3" {
		t.Fatalf("sprite count must survive for empty projects: %q", row["babia_num_sprites"])
	}
	if row["has_blocks"] != "false" {
		t.Fatalf("has_blocks: %q", row["has_blocks"])
	}
	for _, skill := range metrics.SkillNames {
		if row[skill] != "0" {
			t.Fatalf("skill %s must be zero, got %q", skill, row[skill])
		}
	}

	// Every schema column except the metadata block must be present.
	for _, col := range metrics.Fieldnames(false) {
		if _, ok := row[col]; !ok {
			t.Fatalf("row missing schema column %q", col)
		}
	}
}

func TestReportRow(t *testing.T) {
	t.Parallel()

	r := &metrics.Report{
		Mastery: metrics.Mastery{
			TotalBlocks: 42,
			TotalPoints: 17,
			MaxPoints:   metrics.MaxTotalPoints(),
			Competence:  "Developing",
			Skills:      map[string]int{"Logic": 3, "FlowControl": 2},
		},
		DuplicateScripts: 2,
		DeadCodeScripts:  1,
		Sprites:          metrics.SpriteStats{NumSprites: 5},
		SpriteNaming:     metrics.Naming{Count: 1, Offenders: []string{"Sprite1"}},
		BackdropNaming:   metrics.Naming{Count: 0},
	}
	row := r.Row("100.sb3", true)

	if row["total_blocks"] != "42" || row["Logic"] != "3" || row["FlowControl"] != "2" {
		t.Fatalf("unexpected row: %v", row)
	}
	if row["Abstraction"] != "0" {
		t.Fatalf("unscored skills must flatten to zero, got %q", row["Abstraction"])
	}
	if row["duplicateScripts"] != "2" || row["deadCode"] != "1" || row["spriteNaming"] != "1" {
		t.Fatalf("unexpected counts: %v", row)
	}
	if row["has_blocks"] != "true" {
		t.Fatalf("has_blocks: %q", row["has_blocks"])
	}
}
