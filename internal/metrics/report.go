// Package metrics defines the metric families produced by the analysis
// engine and their flattening into output table rows.
package metrics

// SkillNames lists the mastery skills in stable column order.
var SkillNames = []string{
	"Abstraction",
	"Parallelization",
	"Logic",
	"Synchronization",
	"FlowControl",
	"UserInteractivity",
	"DataRepresentation",
	"MathOperators",
	"MotionOperators",
}

// PointsPerSkill is the maximum score attainable per skill.
const PointsPerSkill = 4

// CompetenceBasic is the baseline competence label, also used for projects
// with no executable content.
const CompetenceBasic = "Basic"

// MaxTotalPoints is the maximum aggregate mastery score.
func MaxTotalPoints() int {
	return len(SkillNames) * PointsPerSkill
}

// DefaultSkillPoints returns the per-skill maximum score table handed to the
// analysis engine.
func DefaultSkillPoints() map[string]int {
	m := make(map[string]int, len(SkillNames))
	for _, s := range SkillNames {
		m[s] = PointsPerSkill
	}
	return m
}

// Mastery is the skill-mastery metric family.
type Mastery struct {
	TotalBlocks int            `json:"total_blocks"`
	TotalPoints int            `json:"total_points"`
	MaxPoints   int            `json:"max_points"`
	Competence  string         `json:"competence"`
	Skills      map[string]int `json:"skills"`
}

// Naming is a naming-convention finding: a count of offending names plus the
// names themselves.
type Naming struct {
	Count     int      `json:"count"`
	Offenders []string `json:"offenders,omitempty"`
}

// SpriteStats carries sprite/stage statistics.
type SpriteStats struct {
	NumSprites int `json:"num_sprites"`
}

// Report bundles all metric families for one project.
type Report struct {
	Mastery          Mastery     `json:"mastery"`
	DuplicateScripts int         `json:"duplicate_scripts"`
	DeadCodeScripts  int         `json:"dead_code_scripts"`
	Sprites          SpriteStats `json:"sprites"`
	SpriteNaming     Naming      `json:"sprite_naming"`
	BackdropNaming   Naming      `json:"backdrop_naming"`
}

// EmptyReport is the canonical report for a project with no executable
// content: every metric zeroed and the baseline competence label. Sprite
// statistics are still meaningful for such projects, so the caller provides
// the sprite count from the decoded archive.
func EmptyReport(numSprites int) *Report {
	return &Report{
		Mastery: Mastery{
			TotalBlocks: 0,
			TotalPoints: 0,
			MaxPoints:   MaxTotalPoints(),
			Competence:  CompetenceBasic,
			Skills:      make(map[string]int, len(SkillNames)),
		},
		Sprites: SpriteStats{NumSprites: numSprites},
	}
}
