package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/sb3"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/util"
)

// ExecEngine invokes the external analysis engine as a subprocess.
//
// Protocol: one analysis request as JSON on stdin, one Report as JSON on
// stdout, non-zero exit on failure. Each Analyze call spawns a fresh process,
// so a crashing engine invocation never takes the run down with it.
type ExecEngine struct {
	// Command is the engine executable followed by fixed arguments.
	Command []string
	// Timeout bounds one invocation. Zero means no limit.
	Timeout time.Duration
	// SkillPoints is the per-skill maximum table passed to the engine.
	// Nil means DefaultSkillPoints.
	SkillPoints map[string]int
}

type execRequest struct {
	Path        string          `json:"path"`
	SkillPoints map[string]int  `json:"skill_points"`
	Project     json.RawMessage `json:"project"`
}

// Analyze runs the engine subprocess for one decoded project.
func (e *ExecEngine) Analyze(ctx context.Context, path string, project *sb3.Project) (*Report, error) {
	if len(e.Command) == 0 {
		return nil, fmt.Errorf("engine command is not configured")
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	skills := e.SkillPoints
	if skills == nil {
		skills = DefaultSkillPoints()
	}
	reqBody, err := json.Marshal(execRequest{
		Path:        path,
		SkillPoints: skills,
		Project:     project.Raw,
	})
	if err != nil {
		return nil, fmt.Errorf("encode engine request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Stdin = bytes.NewReader(reqBody)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := util.Sanitize(stderr.String()); msg != "" {
			return nil, fmt.Errorf("engine: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("engine: %w", err)
	}

	var report Report
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return nil, fmt.Errorf("decode engine output: %w", err)
	}
	return &report, nil
}
