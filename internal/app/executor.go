package app

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// PipelineExecutor runs the registered stage lists for one job. Stages are
// stateless, so a runner is built per execution around the job's progress
// callback.
type PipelineExecutor struct {
	sequential []pipeline.Stage
	parallel   []pipeline.Stage
	final      []pipeline.Stage
	logger     arbor.ILogger
}

func NewPipelineExecutor(sequential, parallel, final []pipeline.Stage, logger arbor.ILogger) *PipelineExecutor {
	return &PipelineExecutor{
		sequential: sequential,
		parallel:   parallel,
		final:      final,
		logger:     logger,
	}
}

// Execute runs every stage over a fresh execution context
func (e *PipelineExecutor) Execute(ctx context.Context, jobID string, config *models.JobConfig, progress pipeline.ProgressCallback) (*pipeline.Context, error) {
	runner := pipeline.NewRunner(e.sequential, e.parallel, e.final, progress, e.logger)
	ec := pipeline.NewContext(jobID, config)

	if err := runner.Run(ctx, ec); err != nil {
		return nil, err
	}
	return ec, nil
}

// TotalStages reports the registered stage count
func (e *PipelineExecutor) TotalStages() int {
	return len(e.sequential) + len(e.parallel) + len(e.final)
}
