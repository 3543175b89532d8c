package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StaticRegistry keeps borrowers in memory. Used by tests and by single-node
// setups that seed borrowers at startup.
type StaticRegistry struct {
	mu        sync.RWMutex
	borrowers map[uuid.UUID]Borrower
}

func NewStaticRegistry(borrowers ...Borrower) *StaticRegistry {
	r := &StaticRegistry{borrowers: make(map[uuid.UUID]Borrower, len(borrowers))}
	for _, b := range borrowers {
		r.borrowers[b.ID] = b
	}
	return r
}

func (r *StaticRegistry) GetBorrower(_ context.Context, id uuid.UUID) (*Borrower, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.borrowers[id]
	if !ok {
		return nil, NewBorrowerNotFoundError(id)
	}
	return &b, nil
}

func (r *StaticRegistry) UpsertBorrower(_ context.Context, b *Borrower) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.borrowers[b.ID] = *b
	return nil
}
