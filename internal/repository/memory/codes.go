// Package memory holds process-local stores for state that must not outlive
// the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/msomdec/modfusion-console/internal/domain"
)

// CodeStore is an in-process domain.CodeStore. Expired records are dropped
// lazily on access.
type CodeStore struct {
	mu      sync.Mutex
	records map[string]domain.CodeRecord
	now     func() time.Time
}

func NewCodeStore() *CodeStore {
	return &CodeStore{
		records: make(map[string]domain.CodeRecord),
		now:     time.Now,
	}
}

func (s *CodeStore) Save(_ context.Context, record *domain.CodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Email] = *record
	return nil
}

func (s *CodeStore) Get(_ context.Context, email string) (*domain.CodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(email)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (s *CodeStore) IncrementAttempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(email)
	if !ok {
		return 0, domain.ErrNotFound
	}
	rec.Attempts++
	s.records[email] = rec
	return rec.Attempts, nil
}

func (s *CodeStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, email)
	return nil
}

// live must be called with mu held.
func (s *CodeStore) live(email string) (domain.CodeRecord, bool) {
	rec, ok := s.records[email]
	if !ok {
		return domain.CodeRecord{}, false
	}
	if !s.now().Before(rec.ExpiresAt) {
		delete(s.records, email)
		return domain.CodeRecord{}, false
	}
	return rec, true
}
