// Package redis implements the token metadata cache on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/storage"
)

const defaultKeyPrefix = "tokenxfer:metadata:"

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// MetadataStore implements storage.TokenMetadataStore on Redis.
// Entries expire after the configured TTL so renamed tokens are eventually re-read.
type MetadataStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewMetadataStore creates a MetadataStore. A zero ttl keeps entries forever.
func NewMetadataStore(client *goredis.Client, ttl time.Duration) *MetadataStore {
	return &MetadataStore{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
	}
}

var _ storage.TokenMetadataStore = (*MetadataStore)(nil)

func (s *MetadataStore) key(mint string) string {
	return s.prefix + mint
}

// Put inserts or replaces metadata for m.Mint.
func (s *MetadataStore) Put(ctx context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	val, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal token metadata: %w", err)
	}

	if err := s.client.Set(ctx, s.key(m.Mint), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("set token metadata: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound on a cache miss.
func (s *MetadataStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	val, err := s.client.Get(ctx, s.key(mint)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token metadata: %w", err)
	}

	var m domain.TokenMetadata
	if err := json.Unmarshal(val, &m); err != nil {
		return nil, fmt.Errorf("unmarshal token metadata: %w", err)
	}
	return &m, nil
}
