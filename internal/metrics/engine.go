package metrics

import (
	"context"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/sb3"
)

// Engine computes all metric families for one decoded project. Engines must
// be safe for concurrent use from multiple workers.
type Engine interface {
	Analyze(ctx context.Context, path string, project *sb3.Project) (*Report, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, path string, project *sb3.Project) (*Report, error)

func (f EngineFunc) Analyze(ctx context.Context, path string, project *sb3.Project) (*Report, error) {
	return f(ctx, path, project)
}
