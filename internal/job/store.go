package job

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/common"
)

// Store is the registry of job state. All methods are safe for
// concurrent use; Update applies an atomic read-modify-write so pollers
// always observe fully-formed records.
type Store interface {
	Create(doc DocumentInfo) (*Record, error)
	Get(id uuid.UUID) (*Record, error)
	Update(id uuid.UUID, mutate func(*Record) error) error
	List(limit int) []*Record
	Delete(id uuid.UUID) (*Record, error)
	Counts() (active, total int)
}

// MemStore keeps records in process memory. Terminal records are
// retained until evicted by the retention janitor (or process restart).
type MemStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record

	logger    *slog.Logger
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

type StoreOption func(*MemStore)

// WithRetention enables eviction of terminal records older than ttl.
// Zero disables eviction.
func WithRetention(ttl time.Duration) StoreOption {
	return func(s *MemStore) { s.retention = ttl }
}

func NewMemStore(logger *slog.Logger, opts ...StoreOption) *MemStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemStore{
		records: make(map[uuid.UUID]*Record),
		logger:  logger,
		stop:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.retention > 0 {
		go s.janitor()
	}
	return s
}

// Create assigns a fresh id and inserts a PENDING record.
func (s *MemStore) Create(doc DocumentInfo) (*Record, error) {
	if doc.Filename == "" {
		return nil, common.ErrInvalidInput
	}
	rec := &Record{
		ID:        uuid.New(),
		Status:    constants.JobStatusPending,
		State:     State{Document: doc},
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()

	s.logger.Info("job created", "job_id", rec.ID, "filename", doc.Filename, "size_bytes", doc.SizeBytes)
	return rec.Clone(), nil
}

// Get returns a snapshot of the record, or ErrNotFound.
func (s *MemStore) Get(id uuid.UUID) (*Record, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.RUnlock()
		return nil, common.ErrNotFound
	}
	snap := rec.Clone()
	s.mu.RUnlock()
	return snap, nil
}

// Update applies mutate under the store lock. Mutating a terminal record
// is rejected so COMPLETED/FAILED jobs stay immutable.
func (s *MemStore) Update(id uuid.UUID, mutate func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return common.ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return common.ErrTerminalRecord
	}
	return mutate(rec)
}

// List returns up to limit records, newest first.
func (s *MemStore) List(limit int) []*Record {
	s.mu.RLock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Delete removes a record, returning its final snapshot or ErrNotFound.
func (s *MemStore) Delete(id uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	delete(s.records, id)
	return rec, nil
}

// Counts reports non-terminal and total record counts.
func (s *MemStore) Counts() (active, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if !rec.Status.IsTerminal() {
			active++
		}
	}
	return active, len(s.records)
}

// EvictExpired removes terminal records whose completion predates the
// retention window. Returns how many were removed.
func (s *MemStore) EvictExpired(now time.Time) int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.records {
		if rec.Status.IsTerminal() && rec.CompletedAt != nil && rec.CompletedAt.Before(cutoff) {
			delete(s.records, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("evicted expired jobs", "count", removed, "retention", s.retention)
	}
	return removed
}

// Close stops the retention janitor.
func (s *MemStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemStore) janitor() {
	interval := s.retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case t := <-ticker.C:
			s.EvictExpired(t)
		}
	}
}
