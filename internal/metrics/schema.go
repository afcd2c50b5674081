package metrics

import (
	"strconv"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/table"
)

// Metadata enrichment columns, appended to the schema when enrichment is
// enabled. The names match the historical output format so existing result
// files stay append-compatible.
var metaColumns = []string{
	"project_id",
	"Project title",
	"Author",
	"Creation date",
	"Modified date",
	"Remix parent id",
	"Remix root id",
	"_meta_error",
}

// Fieldnames returns the full output schema for one run. The enrichment flag
// is the only input: there is exactly one schema per configuration, fixed
// before the first row is produced.
func Fieldnames(includeMeta bool) table.Schema {
	cols := []string{
		"project",
		"total_blocks",
		"mastery_total_points",
		"mastery_total_max",
		"mastery_competence",
	}
	cols = append(cols, SkillNames...)
	cols = append(cols,
		"duplicateScripts",
		"deadCode",
		"spriteNaming",
		"backdropNaming",
		"babia_num_sprites",
		"has_blocks",
	)
	if includeMeta {
		cols = append(cols, metaColumns...)
	}
	return table.Schema(cols)
}

// MetaColumns returns the enrichment column names in schema order.
func MetaColumns() []string {
	out := make([]string, len(metaColumns))
	copy(out, metaColumns)
	return out
}

// Row flattens a report into the metric portion of an output row. Enrichment
// columns, when enabled, are merged in by the pipeline afterwards.
func (r *Report) Row(projectName string, hasBlocks bool) table.Row {
	row := table.Row{
		"project":              projectName,
		"total_blocks":         strconv.Itoa(r.Mastery.TotalBlocks),
		"mastery_total_points": strconv.Itoa(r.Mastery.TotalPoints),
		"mastery_total_max":    strconv.Itoa(r.Mastery.MaxPoints),
		"mastery_competence":   r.Mastery.Competence,
		"duplicateScripts":     strconv.Itoa(r.DuplicateScripts),
		"deadCode":             strconv.Itoa(r.DeadCodeScripts),
		"spriteNaming":         strconv.Itoa(r.SpriteNaming.Count),
		"backdropNaming":       strconv.Itoa(r.BackdropNaming.Count),
		"babia_num_sprites":    strconv.Itoa(r.Sprites.NumSprites),
		"has_blocks":           strconv.FormatBool(hasBlocks),
	}
	for _, skill := range SkillNames {
		row[skill] = strconv.Itoa(r.Mastery.Skills[skill])
	}
	return row
}
