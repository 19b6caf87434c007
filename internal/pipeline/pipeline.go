package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/job"
)

// Pipeline runs the four stages in order against a stored job record.
// State is committed back to the store after every successful stage so
// pollers watch progress advance; the final stage's state is committed
// in the same update as the COMPLETED transition, so extracted data is
// never visible on a non-terminal record.
type Pipeline struct {
	stages        []Stage
	store         job.Store
	logger        *slog.Logger
	removeUploads bool
}

type Option func(*Pipeline)

// WithUploadCleanup removes the uploaded file once the job reaches a
// terminal status.
func WithUploadCleanup(enabled bool) Option {
	return func(p *Pipeline) { p.removeUploads = enabled }
}

func New(store job.Store, stages []Stage, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{stages: stages, store: store, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline for the given job. The returned error is
// nil when the job completed; a failed job returns the classified
// failure after it has been recorded on the job.
func (p *Pipeline) Run(ctx context.Context, id uuid.UUID) error {
	rec, err := p.store.Get(id)
	if err != nil {
		return err
	}
	if rec.Status.IsTerminal() {
		p.logger.Warn("pipeline.run.skipped", "job_id", id, "status", rec.Status)
		return nil
	}

	if err := p.store.Update(id, func(r *job.Record) error {
		return r.SetStatus(constants.JobStatusProcessing)
	}); err != nil {
		return err
	}

	log := p.logger.With("job_id", id.String())
	log.Info("pipeline.run.start", "filename", rec.State.Document.Filename)
	started := time.Now()

	st := rec.State
	for i, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return p.fail(id, st, classify(stage.Name(), err))
		}

		if err := p.store.Update(id, func(r *job.Record) error {
			return r.AdvanceStage(stage.Name())
		}); err != nil {
			return p.fail(id, st, job.NewFailure(job.FailureInternal, "stage bookkeeping failed", err))
		}

		stageStart := time.Now()
		next, err := runStage(ctx, stage, st)
		next.Metrics.RecordStageDuration(stage.Name(), time.Since(stageStart))
		st = next
		if err != nil {
			return p.fail(id, st, classify(stage.Name(), err))
		}

		last := i == len(p.stages)-1
		if last {
			break
		}
		if err := p.store.Update(id, func(r *job.Record) error {
			r.State = st
			return nil
		}); err != nil {
			return p.fail(id, st, job.NewFailure(job.FailureInternal, "state commit failed", err))
		}
	}

	if err := p.store.Update(id, func(r *job.Record) error {
		r.State = st
		return r.SetStatus(constants.JobStatusCompleted)
	}); err != nil {
		return err
	}
	p.cleanup(st)
	log.Info("pipeline.run.ok",
		"completeness", st.Quality.Completeness,
		"tokens", st.Metrics.TokensUsed,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// runStage contains a panicking stage so one bad document cannot take
// down a worker.
func runStage(ctx context.Context, stage Stage, st job.State) (out job.State, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = st
			err = job.Failf(job.FailureInternal, "stage %s panicked: %v", stage.Name(), rec)
		}
	}()
	return stage.Run(ctx, st)
}

func (p *Pipeline) fail(id uuid.UUID, st job.State, f *job.Failure) error {
	st.AddError("%s", f.Message)
	if err := p.store.Update(id, func(r *job.Record) error {
		r.State = st
		return r.Fail(f)
	}); err != nil {
		p.logger.Error("pipeline.fail.commit_failed", "job_id", id, "error", err)
		return err
	}
	p.cleanup(st)
	p.logger.Warn("pipeline.run.failed", "job_id", id, "kind", f.Kind, "message", f.Message)
	return f
}

func (p *Pipeline) cleanup(st job.State) {
	if !p.removeUploads || st.Document.Path == "" {
		return
	}
	if err := os.Remove(st.Document.Path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("pipeline.cleanup.failed", "path", st.Document.Path, "error", err)
	}
}

// classify maps a stage error onto a failure kind. Stage-authored
// failures pass through; deadline and cancellation become TIMEOUT,
// anything else is INTERNAL.
func classify(stage constants.StageName, err error) *job.Failure {
	var f *job.Failure
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return job.NewFailure(job.FailureTimeout, fmt.Sprintf("processing aborted during %s stage", stage), err)
	}
	return job.NewFailure(job.FailureInternal, fmt.Sprintf("unexpected error in %s stage", stage), err)
}
