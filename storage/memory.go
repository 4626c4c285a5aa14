package storage

import (
	"context"
	"sort"
	"sync"

	"nhs-data-pipeline/models"
)

// MemoryStore is an in-memory RecordStore with the same upsert semantics as
// the Postgres store. It backs tests and local dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.TransformedRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.TransformedRecord)}
}

// UpsertBatch inserts or overwrites each record under its composite key.
func (s *MemoryStore) UpsertBatch(ctx context.Context, records []*models.TransformedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.Key()] = r
	}
	return nil
}

// Clear removes every record.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*models.TransformedRecord)
	return nil
}

// FetchAll returns every record ordered by composite key.
func (s *MemoryStore) FetchAll(ctx context.Context) ([]*models.TransformedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]*models.TransformedRecord, 0, len(keys))
	for _, k := range keys {
		records = append(records, s.records[k])
	}
	return records, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) Close() error { return nil }
