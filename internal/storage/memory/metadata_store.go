package memory

import (
	"context"
	"sync"
	"time"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/storage"
)

// MetadataStore is an in-memory implementation of storage.TokenMetadataStore.
type MetadataStore struct {
	mu     sync.RWMutex
	byMint map[string]*domain.TokenMetadata
	ttl    time.Duration
	now    func() time.Time
}

// MetadataOption configures a MetadataStore.
type MetadataOption func(*MetadataStore)

// WithTTL hides entries whose FetchedAt is older than ttl. Zero keeps
// entries forever.
func WithTTL(ttl time.Duration) MetadataOption {
	return func(s *MetadataStore) {
		s.ttl = ttl
	}
}

// NewMetadataStore creates a new in-memory token metadata store.
func NewMetadataStore(opts ...MetadataOption) *MetadataStore {
	s := &MetadataStore{
		byMint: make(map[string]*domain.TokenMetadata),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put inserts or replaces metadata for m.Mint.
func (s *MetadataStore) Put(_ context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metaCopy := *m
	s.byMint[m.Mint] = &metaCopy
	return nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *MetadataStore) GetByMint(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.byMint[mint]
	if !exists || storage.Expired(m, s.ttl, s.now()) {
		return nil, storage.ErrNotFound
	}

	metaCopy := *m
	return &metaCopy, nil
}

var _ storage.TokenMetadataStore = (*MetadataStore)(nil)
