package storage

import (
	"context"
	"time"

	"solana-token-transfer/internal/domain"
)

// TokenMetadataStore caches resolved token metadata by mint.
type TokenMetadataStore interface {
	// Put inserts or replaces the metadata for m.Mint.
	Put(ctx context.Context, m *domain.TokenMetadata) error

	// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// TransferStore provides access to transfers storage.
type TransferStore interface {
	// Insert adds a new transfer record. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, r *domain.TransferRecord) error

	// GetByID retrieves a transfer by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TransferRecord, error)

	// ListByOwner retrieves the most recent transfers sent by owner,
	// ordered by created_at DESC. A limit <= 0 returns all records.
	ListByOwner(ctx context.Context, owner string, limit int) ([]*domain.TransferRecord, error)
}

// Expired reports whether m was fetched more than ttl before now.
// A zero ttl never expires.
func Expired(m *domain.TokenMetadata, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(time.UnixMilli(m.FetchedAt)) > ttl
}
