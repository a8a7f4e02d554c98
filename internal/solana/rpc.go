package solana

import "context"

// AccountReader fetches single accounts.
type AccountReader interface {
	// GetAccountInfo returns nil, nil when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}

// TokenAccountLister enumerates accounts held by an owner under a program.
type TokenAccountLister interface {
	GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]KeyedAccount, error)
}

// TransactionSender submits transactions and reports their status.
type TransactionSender interface {
	GetLatestBlockhash(ctx context.Context, commitment Commitment) (*Blockhash, error)
	SendTransaction(ctx context.Context, raw []byte) (string, error)
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error)
}

// RPCClient defines the Solana RPC HTTP interface used by this service.
type RPCClient interface {
	AccountReader
	TokenAccountLister
	TransactionSender
}
