package stub

import (
	"context"
	"fmt"
	"sync"

	"solana-token-transfer/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
// Every method call is counted, including failing ones.
type RPCClient struct {
	mu sync.Mutex

	Accounts      map[string]*solana.AccountInfo
	TokenAccounts map[string][]solana.KeyedAccount // keyed by owner
	Statuses      map[string]*solana.SignatureStatus
	Blockhash     string

	// Per-method injected errors.
	Errors map[string]error
	// Sent holds every raw transaction passed to SendTransaction.
	Sent [][]byte

	calls map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:      make(map[string]*solana.AccountInfo),
		TokenAccounts: make(map[string][]solana.KeyedAccount),
		Statuses:      make(map[string]*solana.SignatureStatus),
		Blockhash:     "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
		Errors:        make(map[string]error),
		calls:         make(map[string]int),
	}
}

func (c *RPCClient) enter(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	return c.Errors[method]
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (c *RPCClient) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

// GetAccountInfo returns the stored account or nil when absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := c.enter("getAccountInfo"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	infoCopy := *info
	return &infoCopy, nil
}

// GetTokenAccountsByOwner returns the accounts stored for owner.
func (c *RPCClient) GetTokenAccountsByOwner(_ context.Context, owner, _ string) ([]solana.KeyedAccount, error) {
	if err := c.enter("getTokenAccountsByOwner"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]solana.KeyedAccount(nil), c.TokenAccounts[owner]...), nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context, _ solana.Commitment) (*solana.Blockhash, error) {
	if err := c.enter("getLatestBlockhash"); err != nil {
		return nil, err
	}
	return &solana.Blockhash{Blockhash: c.Blockhash, LastValidBlockHeight: 100}, nil
}

// SendTransaction records the transaction and returns a deterministic signature.
func (c *RPCClient) SendTransaction(_ context.Context, raw []byte) (string, error) {
	if err := c.enter("sendTransaction"); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, append([]byte(nil), raw...))
	sig := fmt.Sprintf("sig%d", len(c.Sent))
	if _, ok := c.Statuses[sig]; !ok {
		c.Statuses[sig] = &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentConfirmed}
	}
	return sig, nil
}

// GetSignatureStatuses returns stored statuses, nil for unknown signatures.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures ...string) ([]*solana.SignatureStatus, error) {
	if err := c.enter("getSignatureStatuses"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		out[i] = c.Statuses[sig]
	}
	return out, nil
}

// AddAccount stores an account.
func (c *RPCClient) AddAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

// AddTokenAccount appends a token account for owner.
func (c *RPCClient) AddTokenAccount(owner string, acct solana.KeyedAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenAccounts[owner] = append(c.TokenAccounts[owner], acct)
}

var _ solana.RPCClient = (*RPCClient)(nil)
