package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu      sync.RWMutex
	byID    map[string]*domain.TransferRecord
	byOwner map[string][]*domain.TransferRecord
}

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		byID:    make(map[string]*domain.TransferRecord),
		byOwner: make(map[string][]*domain.TransferRecord),
	}
}

// Insert adds a new transfer record. Returns ErrDuplicateKey if id exists.
func (s *TransferStore) Insert(_ context.Context, r *domain.TransferRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	recCopy := *r
	s.byID[r.ID] = &recCopy
	s.byOwner[r.Owner] = append(s.byOwner[r.Owner], &recCopy)
	return nil
}

// GetByID retrieves a transfer by its ID. Returns ErrNotFound if not exists.
func (s *TransferStore) GetByID(_ context.Context, id string) (*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *r
	return &recCopy, nil
}

// ListByOwner retrieves transfers sent by owner, newest first.
func (s *TransferStore) ListByOwner(_ context.Context, owner string, limit int) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.byOwner[owner]
	result := make([]*domain.TransferRecord, 0, len(records))
	for _, r := range records {
		recCopy := *r
		result = append(result, &recCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.TransferStore = (*TransferStore)(nil)
