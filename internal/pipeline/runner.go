package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// Runner executes registered stages over one execution context: stages 0-3
// strictly in order, stages 4-9 as a concurrent fan-out over the shared
// context, then 10, 11 (conditional), 12 sequentially.
type Runner struct {
	sequential []Stage // Stages 0-3
	parallel   []Stage // Stages 4-9
	final      []Stage // Stages 10-12

	progress ProgressCallback
	logger   arbor.ILogger
}

// NewRunner creates a runner over the ordered stage registration lists
func NewRunner(sequential, parallel, final []Stage, progress ProgressCallback, logger arbor.ILogger) *Runner {
	if progress == nil {
		progress = func(string, int, bool) {}
	}
	return &Runner{
		sequential: sequential,
		parallel:   parallel,
		final:      final,
		progress:   progress,
		logger:     logger,
	}
}

// TotalStages returns the number of registered stages
func (r *Runner) TotalStages() int {
	return len(r.sequential) + len(r.parallel) + len(r.final)
}

// Run executes the full pipeline. It returns the first fatal error; failures
// in non-critical stages are absorbed by their fallbacks.
func (r *Runner) Run(ctx context.Context, ec *Context) error {
	for _, stage := range r.sequential {
		if err := r.runStage(ctx, ec, stage); err != nil {
			return err
		}
	}

	if err := r.runParallelPhase(ctx, ec); err != nil {
		return err
	}

	for _, stage := range r.final {
		if skipper, ok := stage.(Skipper); ok && skipper.ShouldSkip(ec) {
			r.logger.Debug().
				Str("job_id", ec.JobID).
				Str("stage", stage.StageName()).
				Msg("Stage skipped")
			r.progress(stage.StageName(), stage.StageNum(), true)
			continue
		}
		if err := r.runStage(ctx, ec, stage); err != nil {
			return err
		}
	}

	return nil
}

// runStage executes one stage, applying the fallback path for non-critical
// stages that fail.
func (r *Runner) runStage(ctx context.Context, ec *Context, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return Classify(err)
	}

	start := time.Now()
	r.logger.Debug().
		Str("job_id", ec.JobID).
		Int("stage_num", stage.StageNum()).
		Str("stage", stage.StageName()).
		Msg("Stage starting")

	err := stage.Execute(ctx, ec)
	if err != nil {
		classified := Classify(err)
		classified.Stage = stage.StageName()

		if !IsCritical(stage.StageNum()) {
			if fb, ok := stage.(Fallbacker); ok {
				r.logger.Warn().
					Str("job_id", ec.JobID).
					Str("stage", stage.StageName()).
					Str("category", string(classified.Category)).
					Err(classified.Err).
					Msg("Stage failed, applying fallback")

				if fbErr := fb.Fallback(ctx, ec, classified); fbErr == nil {
					r.progress(stage.StageName(), stage.StageNum(), true)
					return nil
				}
			}
		}

		r.logger.Error().
			Str("job_id", ec.JobID).
			Str("stage", stage.StageName()).
			Str("category", string(classified.Category)).
			Err(classified.Err).
			Msg("Stage failed")
		return classified
	}

	r.logger.Info().
		Str("job_id", ec.JobID).
		Int("stage_num", stage.StageNum()).
		Str("stage", stage.StageName()).
		Dur("duration", time.Since(start)).
		Msg("Stage completed")

	r.progress(stage.StageName(), stage.StageNum(), true)
	return nil
}

// runParallelPhase fans out the parallel stages over the shared context and
// awaits all of them. Each stage writes to its own scratchpad area, so no
// lock is needed beyond the scratchpad's own; disjointness of the merged
// keys is asserted by the fan-in stage's MergeInto.
func (r *Runner) runParallelPhase(ctx context.Context, ec *Context) error {
	if err := ctx.Err(); err != nil {
		return Classify(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(r.parallel))

	for i, stage := range r.parallel {
		wg.Add(1)
		go func(i int, stage Stage) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					errs[i] = NewInternalError(fmt.Errorf("panic in stage %s: %v", stage.StageName(), rec))
				}
			}()
			errs[i] = r.runStage(ctx, ec, stage)
		}(i, stage)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
