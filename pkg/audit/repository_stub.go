package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type RepositoryStub struct {
	mu        sync.RWMutex
	records   []Record
	insertErr error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{}
}

func (r *RepositoryStub) Insert(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.records = append(r.records, record)
	return nil
}

func (r *RepositoryStub) Find(_ context.Context, filter Filter) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Record
	for _, rec := range r.records {
		if filter.EntityType != "" && rec.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityId != 0 && rec.EntityId != filter.EntityId {
			continue
		}
		if filter.ActorId != 0 && rec.ActorId != filter.ActorId {
			continue
		}
		if !filter.From.IsZero() && rec.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !rec.CreatedAt.Before(filter.To) {
			continue
		}
		result = append(result, rec)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > filter.limit() {
		result = result[:filter.limit()]
	}
	return result, nil
}

// FailInserts makes every following Insert return an error (for testing swallowed failures).
func (r *RepositoryStub) FailInserts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertErr = errors.New("audit store unavailable")
}

func (r *RepositoryStub) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Record, len(r.records))
	copy(result, r.records)
	return result
}

func (r *RepositoryStub) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.insertErr = nil
}
