package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/storage"
)

// MetadataStore implements storage.TokenMetadataStore using PostgreSQL.
// Rows older than the TTL stay in the table and are overwritten on the
// next Put.
type MetadataStore struct {
	pool *Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewMetadataStore creates a new MetadataStore. A zero ttl keeps entries
// forever.
func NewMetadataStore(pool *Pool, ttl time.Duration) *MetadataStore {
	return &MetadataStore{pool: pool, ttl: ttl, now: time.Now}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*MetadataStore)(nil)

// Put inserts or replaces metadata for m.Mint.
func (s *MetadataStore) Put(ctx context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_metadata (mint, found, name, symbol, uri, image, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mint) DO UPDATE SET
			found = EXCLUDED.found,
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			uri = EXCLUDED.uri,
			image = EXCLUDED.image,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		m.Mint,
		m.Found,
		m.Name,
		m.Symbol,
		m.URI,
		m.Image,
		m.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("put token metadata: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *MetadataStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	query := `
		SELECT mint, found, name, symbol, uri, image, fetched_at
		FROM token_metadata
		WHERE mint = $1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	m, err := scanMetadata(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata by mint: %w", err)
	}
	if storage.Expired(m, s.ttl, s.now()) {
		return nil, storage.ErrNotFound
	}
	return m, nil
}

func scanMetadata(row pgx.Row) (*domain.TokenMetadata, error) {
	var m domain.TokenMetadata
	err := row.Scan(
		&m.Mint,
		&m.Found,
		&m.Name,
		&m.Symbol,
		&m.URI,
		&m.Image,
		&m.FetchedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
