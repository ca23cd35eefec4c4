package pipeline

import "context"

// Stage is one pipeline step. Execute must be idempotent over an
// already-advanced context: re-running a completed stage may be a no-op or
// a re-derivation, never a destructive action.
type Stage interface {
	// StageNum is a small integer used for logging only, never for ordering
	StageNum() int

	// StageName is the human-readable stage identifier
	StageName() string

	// Execute advances the execution context
	Execute(ctx context.Context, ec *Context) error
}

// Fallbacker is implemented by non-critical stages that can degrade
// gracefully when Execute exhausts its retries.
type Fallbacker interface {
	// Fallback applies the degraded result for the stage
	Fallback(ctx context.Context, ec *Context, cause error) error
}

// Skipper is implemented by conditional stages
type Skipper interface {
	// ShouldSkip reports whether the stage is a no-op for this context
	ShouldSkip(ec *Context) bool
}

// ProgressCallback is invoked after each stage completes
type ProgressCallback func(stageName string, stageNum int, completed bool)

// criticalStages fail the job when they cannot complete; every other stage
// may degrade via its fallback.
var criticalStages = map[int]bool{
	0:  true,
	1:  true,
	2:  true,
	10: true,
	12: true,
}

// IsCritical reports whether a stage number is in the critical set
func IsCritical(stageNum int) bool {
	return criticalStages[stageNum]
}
