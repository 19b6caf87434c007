package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/job"
)

// scriptStage is a configurable stage for runner tests.
type scriptStage struct {
	name  constants.StageName
	run   func(ctx context.Context, st job.State) (job.State, error)
	calls int
	mu    sync.Mutex
}

func (s *scriptStage) Name() constants.StageName { return s.name }

func (s *scriptStage) Run(ctx context.Context, st job.State) (job.State, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.run == nil {
		return st, nil
	}
	return s.run(ctx, st)
}

func (s *scriptStage) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func okStage(name constants.StageName) *scriptStage {
	return &scriptStage{name: name}
}

func newTestPipeline(t *testing.T, stages ...Stage) (*Pipeline, *job.MemStore, *job.Record) {
	t.Helper()
	store := job.NewMemStore(nil)
	t.Cleanup(store.Close)
	rec, err := store.Create(job.DocumentInfo{Filename: "doc.pdf", Path: "/tmp/x.pdf"})
	require.NoError(t, err)
	return New(store, stages, nil), store, rec
}

func allOKStages() []Stage {
	out := make([]Stage, 0, len(constants.PipelineOrder))
	for _, name := range constants.PipelineOrder {
		out = append(out, okStage(name))
	}
	return out
}

func TestPipeline_HappyPath(t *testing.T) {
	fields := &scriptStage{name: constants.StageFieldExtraction, run: func(_ context.Context, st job.State) (job.State, error) {
		st.ExtractedData = map[string]any{"document_type": "PASSPORT"}
		return st, nil
	}}
	stages := []Stage{
		okStage(constants.StageIngestion),
		okStage(constants.StageExtraction),
		okStage(constants.StageCleaning),
		fields,
	}
	p, store, rec := newTestPipeline(t, stages...)

	require.NoError(t, p.Run(context.Background(), rec.ID))

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, constants.StageFieldExtraction, got.Stage)
	assert.Equal(t, "PASSPORT", got.State.ExtractedData["document_type"])
	require.NotNil(t, got.CompletedAt)
	assert.Len(t, got.State.Metrics.StageMillis, 4)
}

func TestPipeline_ShortCircuitOnFailure(t *testing.T) {
	extraction := &scriptStage{name: constants.StageExtraction, run: func(_ context.Context, st job.State) (job.State, error) {
		return st, job.Failf(job.FailureNoExtractableText, "blank page")
	}}
	cleaning := okStage(constants.StageCleaning)
	fields := okStage(constants.StageFieldExtraction)
	p, store, rec := newTestPipeline(t,
		okStage(constants.StageIngestion), extraction, cleaning, fields)

	err := p.Run(context.Background(), rec.ID)
	require.Error(t, err)

	got, gerr := store.Get(rec.ID)
	require.NoError(t, gerr)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	require.NotNil(t, got.Failure)
	assert.Equal(t, job.FailureNoExtractableText, got.Failure.Kind)
	assert.Zero(t, cleaning.Calls(), "later stages must not run after a failure")
	assert.Zero(t, fields.Calls())
}

func TestPipeline_ExtractedDataHiddenUntilCompleted(t *testing.T) {
	// The last stage produces data, then blocks until released. While it
	// blocks, pollers must see PROCESSING with no extracted data.
	release := make(chan struct{})
	entered := make(chan struct{})
	fields := &scriptStage{name: constants.StageFieldExtraction, run: func(_ context.Context, st job.State) (job.State, error) {
		st.ExtractedData = map[string]any{"full_name": "JUAN PEREZ"}
		close(entered)
		<-release
		return st, nil
	}}
	p, store, rec := newTestPipeline(t,
		okStage(constants.StageIngestion),
		okStage(constants.StageExtraction),
		okStage(constants.StageCleaning),
		fields,
	)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), rec.ID) }()

	<-entered
	mid, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusProcessing, mid.Status)
	assert.Nil(t, mid.State.ExtractedData, "extracted data must not leak before COMPLETED")

	close(release)
	require.NoError(t, <-done)

	final, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, final.Status)
	assert.Equal(t, "JUAN PEREZ", final.State.ExtractedData["full_name"])
}

func TestPipeline_IncrementalStatePersistence(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	cleaning := &scriptStage{name: constants.StageCleaning, run: func(_ context.Context, st job.State) (job.State, error) {
		close(entered)
		<-release
		return st, nil
	}}
	extraction := &scriptStage{name: constants.StageExtraction, run: func(_ context.Context, st job.State) (job.State, error) {
		st.Text.RawText = "SOME TEXT"
		return st, nil
	}}
	p, store, rec := newTestPipeline(t,
		okStage(constants.StageIngestion), extraction, cleaning, okStage(constants.StageFieldExtraction))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), rec.ID) }()

	<-entered
	mid, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StageCleaning, mid.Stage)
	assert.Equal(t, "SOME TEXT", mid.State.Text.RawText, "earlier stage output is visible mid-run")

	close(release)
	require.NoError(t, <-done)
}

func TestPipeline_PanicContainment(t *testing.T) {
	boom := &scriptStage{name: constants.StageExtraction, run: func(_ context.Context, st job.State) (job.State, error) {
		panic("exploded while decoding")
	}}
	p, store, rec := newTestPipeline(t,
		okStage(constants.StageIngestion), boom, okStage(constants.StageCleaning), okStage(constants.StageFieldExtraction))

	err := p.Run(context.Background(), rec.ID)
	require.Error(t, err)

	got, gerr := store.Get(rec.ID)
	require.NoError(t, gerr)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	require.NotNil(t, got.Failure)
	assert.Equal(t, job.FailureInternal, got.Failure.Kind)
	assert.Contains(t, got.Failure.Message, "panic")
}

func TestPipeline_DeadlineBecomesTimeout(t *testing.T) {
	slow := &scriptStage{name: constants.StageExtraction, run: func(ctx context.Context, st job.State) (job.State, error) {
		<-ctx.Done()
		return st, ctx.Err()
	}}
	p, store, rec := newTestPipeline(t,
		okStage(constants.StageIngestion), slow, okStage(constants.StageCleaning), okStage(constants.StageFieldExtraction))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Run(ctx, rec.ID)
	require.Error(t, err)

	got, gerr := store.Get(rec.ID)
	require.NoError(t, gerr)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	require.NotNil(t, got.Failure)
	assert.Equal(t, job.FailureTimeout, got.Failure.Kind)
}

func TestPipeline_SkipsTerminalRecord(t *testing.T) {
	stage := okStage(constants.StageIngestion)
	p, store, rec := newTestPipeline(t, stage)

	require.NoError(t, store.Update(rec.ID, func(r *job.Record) error {
		return r.SetStatus(constants.JobStatusFailed)
	}))

	require.NoError(t, p.Run(context.Background(), rec.ID))
	assert.Zero(t, stage.Calls())
}

func TestPipeline_UnknownJob(t *testing.T) {
	p, _, _ := newTestPipeline(t, allOKStages()...)

	err := p.Run(context.Background(), [16]byte{0xde, 0xad})
	require.Error(t, err)
}
