package job

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/common"
)

func TestMemStore_CreateAndGet(t *testing.T) {
	s := NewMemStore(nil)
	defer s.Close()

	rec, err := s.Create(DocumentInfo{Filename: "dni.pdf", SizeBytes: 1024})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, constants.JobStatusPending, rec.Status)

	got, err := s.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "dni.pdf", got.State.Document.Filename)
}

func TestMemStore_CreateRequiresFilename(t *testing.T) {
	s := NewMemStore(nil)
	defer s.Close()

	_, err := s.Create(DocumentInfo{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestMemStore_GetNotFound(t *testing.T) {
	s := NewMemStore(nil)
	defer s.Close()

	_, err := s.Get(uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemStore_UpdateAtomicity(t *testing.T) {
	s := NewMemStore(nil)
	defer s.Close()

	rec, err := s.Create(DocumentInfo{Filename: "a.jpg"})
	require.NoError(t, err)

	err = s.Update(rec.ID, func(r *Record) error {
		if err := r.SetStatus(constants.JobStatusProcessing); err != nil {
			return err
		}
		return r.AdvanceStage(constants.StageIngestion)
	})
	require.NoError(t, err)

	got, err := s.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusProcessing, got.Status)
	assert.Equal(t, constants.StageIngestion, got.Stage)
}

func TestMemStore_TerminalRecordsImmutable(t *testing.T) {
	s := NewMemStore(nil)
	defer s.Close()

	rec, err := s.Create(DocumentInfo{Filename: "a.jpg"})
	require.NoError(t, err)
	require.NoError(t, s.Update(rec.ID, func(r *Record) error {
		return r.SetStatus(constants.JobStatusProcessing)
	}))
	require.NoError(t, s.Update(rec.ID, func(r *Record) error {
		return r.SetStatus(constants.JobStatusCompleted)
	}))

	err = s.Update(rec.ID, func(r *Record) error {
		r.State.AddMessage("late write")
		return nil
	})
	assert.ErrorIs(t, err, common.ErrTerminalRecord)
}

func TestMemStore_SnapshotsDoNotAlias(t *testing.T) {
	s := NewMemStore(nil)
	defer s.Close()

	rec, err := s.Create(DocumentInfo{Filename: "a.jpg"})
	require.NoError(t, err)

	snap, err := s.Get(rec.ID)
	require.NoError(t, err)
	snap.State.AddMessage("mutating a snapshot")
	snap.Status = constants.JobStatusFailed

	got, err := s.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, got.Status)
	assert.Empty(t, got.State.Diagnostics.Messages)
}

func TestMemStore_ListNewestFirst(t *testing.T) {
	s := NewMemStore(nil)
	defer s.Close()

	var last uuid.UUID
	for i := 0; i < 5; i++ {
		rec, err := s.Create(DocumentInfo{Filename: "f"})
		require.NoError(t, err)
		last = rec.ID
		time.Sleep(2 * time.Millisecond)
	}

	out := s.List(3)
	require.Len(t, out, 3)
	assert.Equal(t, last, out[0].ID)
	assert.True(t, out[0].CreatedAt.After(out[2].CreatedAt) || out[0].CreatedAt.Equal(out[2].CreatedAt))

	assert.Len(t, s.List(0), 5, "limit 0 returns everything")
}

func TestMemStore_Delete(t *testing.T) {
	s := NewMemStore(nil)
	defer s.Close()

	rec, err := s.Create(DocumentInfo{Filename: "a.jpg"})
	require.NoError(t, err)

	gone, err := s.Delete(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, gone.ID)

	_, err = s.Get(rec.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.Delete(rec.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemStore_Counts(t *testing.T) {
	s := NewMemStore(nil)
	defer s.Close()

	a, err := s.Create(DocumentInfo{Filename: "a"})
	require.NoError(t, err)
	_, err = s.Create(DocumentInfo{Filename: "b"})
	require.NoError(t, err)

	require.NoError(t, s.Update(a.ID, func(r *Record) error {
		return r.SetStatus(constants.JobStatusFailed)
	}))

	active, total := s.Counts()
	assert.Equal(t, 1, active)
	assert.Equal(t, 2, total)
}

func TestMemStore_EvictExpired(t *testing.T) {
	s := NewMemStore(nil, WithRetention(time.Hour))
	defer s.Close()

	old, err := s.Create(DocumentInfo{Filename: "old"})
	require.NoError(t, err)
	require.NoError(t, s.Update(old.ID, func(r *Record) error {
		return r.SetStatus(constants.JobStatusCompleted)
	}))

	fresh, err := s.Create(DocumentInfo{Filename: "fresh"})
	require.NoError(t, err)

	removed := s.EvictExpired(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, removed)

	_, err = s.Get(old.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.Get(fresh.ID)
	assert.NoError(t, err, "non-terminal records survive eviction")
}
