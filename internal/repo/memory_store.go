package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// MemoryStore is the in-process ResultStore used when Redis is disabled,
// and doubles as a RecordSource for batch and test workloads.
type MemoryStore struct {
	mu            sync.RWMutex
	records       map[string]models.Record
	results       map[string]models.CorrelateResult // window key -> result
	threads       map[string]models.Thread
	locks         map[string]lockEntry // window key -> holder
	disagreements map[string]models.DisagreementRecord
	now           func() time.Time
}

type lockEntry struct {
	runID   string
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:       make(map[string]models.Record),
		results:       make(map[string]models.CorrelateResult),
		threads:       make(map[string]models.Thread),
		locks:         make(map[string]lockEntry),
		disagreements: make(map[string]models.DisagreementRecord),
		now:           time.Now,
	}
}

// PutRecords loads records into the source side of the store. Later puts
// with the same id replace the earlier record.
func (s *MemoryStore) PutRecords(records ...models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		s.records[rec.ID] = rec
	}
}

// FetchRecords returns records with timestamps inside [start, end]. Records
// with a zero timestamp are always included so downstream stages can score
// them and report the omission.
func (s *MemoryStore) FetchRecords(_ context.Context, start, end time.Time) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Timestamp.IsZero() {
			out = append(out, rec)
			continue
		}
		if !start.IsZero() && rec.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && rec.Timestamp.After(end) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ReplaceWindowResult(_ context.Context, windowKey string, result models.CorrelateResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.results[windowKey]; ok {
		for _, t := range prev.Threads {
			delete(s.threads, t.ID)
		}
	}
	s.results[windowKey] = result
	for _, t := range result.Threads {
		s.threads[t.ID] = t
	}
	return nil
}

func (s *MemoryStore) WindowResult(_ context.Context, windowKey string) (models.CorrelateResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[windowKey]
	if !ok {
		return models.CorrelateResult{}, ErrNotFound
	}
	return result, nil
}

func (s *MemoryStore) Thread(_ context.Context, threadID string) (models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.threads[threadID]
	if !ok {
		return models.Thread{}, ErrNotFound
	}
	return thread, nil
}

func (s *MemoryStore) AcquireRunLock(_ context.Context, windowKey, runID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.locks[windowKey]; ok {
		if held.runID != runID && s.now().Before(held.expires) {
			return ErrRunInProgress
		}
	}
	s.locks[windowKey] = lockEntry{runID: runID, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) ReleaseRunLock(_ context.Context, windowKey, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.locks[windowKey]; ok && held.runID == runID {
		delete(s.locks, windowKey)
	}
	return nil
}

func (s *MemoryStore) AppendDisagreement(_ context.Context, rec models.DisagreementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rec.RecordID + "|" + rec.RunID
	if _, exists := s.disagreements[key]; exists {
		return nil
	}
	s.disagreements[key] = rec
	return nil
}

func (s *MemoryStore) Disagreements(_ context.Context, runID string) ([]models.DisagreementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DisagreementRecord, 0)
	for _, rec := range s.disagreements {
		if runID == "" || rec.RunID == runID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}
