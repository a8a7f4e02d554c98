package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

const transferColumns = `id, owner, mint, source_account, destination, destination_account,
		amount, created_destination, signature, status, error, created_at`

// amount is NUMERIC(20,0) since uint64 does not fit BIGINT; it crosses the
// wire as text.
const selectTransferColumns = `id, owner, mint, source_account, destination, destination_account,
		amount::text, created_destination, signature, status, error, created_at`

// Insert adds a new transfer record. Returns ErrDuplicateKey if id exists.
func (s *TransferStore) Insert(ctx context.Context, r *domain.TransferRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.Owner,
		r.Mint,
		r.SourceAccount,
		r.Destination,
		r.DestinationAccount,
		strconv.FormatUint(r.Amount, 10),
		r.CreatedDestination,
		r.Signature,
		string(r.Status),
		r.Error,
		r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByID retrieves a transfer by its ID. Returns ErrNotFound if not exists.
func (s *TransferStore) GetByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	query := `
		SELECT ` + selectTransferColumns + `
		FROM transfers
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	r, err := scanTransfer(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transfer by id: %w", err)
	}
	return r, nil
}

// ListByOwner retrieves transfers sent by owner, newest first.
func (s *TransferStore) ListByOwner(ctx context.Context, owner string, limit int) ([]*domain.TransferRecord, error) {
	query := `
		SELECT ` + selectTransferColumns + `
		FROM transfers
		WHERE owner = $1
		ORDER BY created_at DESC, id ASC
	`
	args := []interface{}{owner}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers by owner: %w", err)
	}
	defer rows.Close()

	var result []*domain.TransferRecord
	for rows.Next() {
		r, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return result, nil
}

func scanTransfer(row pgx.Row) (*domain.TransferRecord, error) {
	var (
		r      domain.TransferRecord
		amount string
		status string
	)
	err := row.Scan(
		&r.ID,
		&r.Owner,
		&r.Mint,
		&r.SourceAccount,
		&r.Destination,
		&r.DestinationAccount,
		&amount,
		&r.CreatedDestination,
		&r.Signature,
		&status,
		&r.Error,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Amount, err = strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	r.Status = domain.TransferStatus(status)
	return &r, nil
}
