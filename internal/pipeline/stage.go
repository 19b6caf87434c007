package pipeline

import (
	"context"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/job"
)

// Stage is one pipeline step: a transformation over the job's working
// state. A stage must not mutate its input; it returns the advanced
// state, or the (possibly annotated) state plus a *job.Failure. Side
// effects are confined to calling an external service.
type Stage interface {
	Name() constants.StageName
	Run(ctx context.Context, st job.State) (job.State, error)
}

// invariant builds the failure for a stage that ran with missing
// prerequisite state. Treated as a bug, not a user-facing condition.
func invariant(stage constants.StageName, msg string) *job.Failure {
	return job.Failf(job.FailureInternal, "invariant violation in %s: %s", stage, msg)
}
