package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/solana"
	"solana-token-transfer/internal/solana/stub"
	"solana-token-transfer/internal/storage/memory"
	"solana-token-transfer/internal/wallet"
)

type capturePublisher struct {
	mu      sync.Mutex
	records []*domain.TransferRecord
}

func (p *capturePublisher) Publish(_ context.Context, rec *domain.TransferRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	recCopy := *rec
	p.records = append(p.records, &recCopy)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type fixture struct {
	rpc       *stub.RPCClient
	signer    *wallet.KeypairSigner
	store     *memory.TransferStore
	publisher *capturePublisher
	service   *Service
	mint      solanago.PublicKey
	dest      solanago.PublicKey
	source    string
}

func newFixture(t *testing.T, withSigner bool) *fixture {
	t.Helper()

	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	f := &fixture{
		rpc:       stub.NewRPCClient(),
		signer:    wallet.NewKeypairSigner(key),
		store:     memory.NewTransferStore(),
		publisher: &capturePublisher{},
		mint:      solanago.NewWallet().PublicKey(),
		dest:      solanago.NewWallet().PublicKey(),
	}

	f.source, err = solana.FindAssociatedTokenAddress(f.signer.PublicKey().String(), f.mint.String())
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	opts := []Option{
		WithStore(f.store),
		WithPublisher(f.publisher),
		WithLogger(logger),
	}
	if withSigner {
		opts = append(opts, WithSigner(f.signer))
	}
	f.service = NewService(f.rpc, opts...)
	return f
}

func (f *fixture) holding(amount uint64) *domain.Holding {
	return &domain.Holding{
		Address: f.source,
		Mint:    f.mint.String(),
		Owner:   f.signer.PublicKey().String(),
		Amount:  amount,
	}
}

func (f *fixture) request(amount string) Request {
	return Request{
		Source:      f.holding(10_000_000_000),
		Destination: f.dest.String(),
		Amount:      decimal.RequireFromString(amount),
	}
}

func (f *fixture) markDestinationExists(t *testing.T) {
	t.Helper()
	_, destAccount, err := AssociatedAccounts(f.signer.PublicKey(), f.dest, f.mint)
	require.NoError(t, err)
	f.rpc.AddAccount(destAccount.String(), &solana.AccountInfo{Owner: solana.TokenProgramID})
}

func decodeSent(t *testing.T, raw []byte) *solanago.Transaction {
	t.Helper()
	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	return tx
}

func TestTransfer_NoIdentity(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.service.Transfer(context.Background(), f.request("1"))
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Equal(t, 0, f.rpc.TotalCalls())
}

func TestTransfer_NoSelection(t *testing.T) {
	f := newFixture(t, true)

	req := f.request("1")
	req.Source = nil
	_, err := f.service.Transfer(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, 0, f.rpc.TotalCalls())
}

func TestTransfer_ValidationBeforeNetwork(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name string
		req  func() Request
		want error
	}{
		{"bad destination", func() Request {
			r := f.request("1")
			r.Destination = "not-a-key"
			return r
		}, ErrInvalidDestination},
		{"zero amount", func() Request { return f.request("0") }, ErrInvalidAmount},
		{"too precise", func() Request { return f.request("0.0000000001") }, ErrInvalidAmount},
		{"over balance", func() Request { return f.request("10.000000001") }, ErrInsufficientBalance},
		{"undecodable source", func() Request {
			r := f.request("1")
			r.Source.DecodeErr = "account data too short"
			return r
		}, ErrInvalidSource},
		{"non-associated source", func() Request {
			r := f.request("1")
			r.Source.Address = solanago.NewWallet().PublicKey().String()
			return r
		}, ErrInvalidSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Transfer(context.Background(), tt.req())
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}

	assert.Equal(t, 0, f.rpc.TotalCalls())

	records, err := f.store.ListByOwner(context.Background(), f.signer.PublicKey().String(), 0)
	require.NoError(t, err)
	require.Len(t, records, len(tests))
	for _, r := range records {
		assert.Equal(t, domain.TransferRejected, r.Status)
		assert.Nil(t, r.Signature)
	}
}

func TestTransfer_CreatesDestinationAccount(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.service.Transfer(context.Background(), f.request("1.5"))
	require.NoError(t, err)

	assert.Equal(t, "sig1", res.Signature)
	assert.Equal(t, uint64(1_500_000_000), res.Amount)
	assert.True(t, res.CreatedDestination)

	assert.Equal(t, 1, f.rpc.Calls("getAccountInfo"))
	assert.Equal(t, 1, f.rpc.Calls("getLatestBlockhash"))
	assert.Equal(t, 1, f.rpc.Calls("sendTransaction"))

	require.Len(t, f.rpc.Sent, 1)
	tx := decodeSent(t, f.rpc.Sent[0])
	require.Len(t, tx.Message.Instructions, 2)
	assert.Equal(t, solanago.SPLAssociatedTokenAccountProgramID,
		tx.Message.AccountKeys[tx.Message.Instructions[0].ProgramIDIndex])
	assert.Equal(t, solanago.TokenProgramID,
		tx.Message.AccountKeys[tx.Message.Instructions[1].ProgramIDIndex])
	assert.Equal(t, f.signer.PublicKey(), tx.Message.AccountKeys[0], "sender pays")
	require.NoError(t, tx.VerifySignatures())

	rec, err := f.store.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferConfirmed, rec.Status)
	assert.True(t, rec.CreatedDestination)
	assert.Equal(t, "sig1", *rec.Signature)

	require.Len(t, f.publisher.records, 1)
	assert.Equal(t, res.ID, f.publisher.records[0].ID)
}

func TestTransfer_ExistingDestinationAccount(t *testing.T) {
	f := newFixture(t, true)
	f.markDestinationExists(t)

	res, err := f.service.Transfer(context.Background(), f.request("2"))
	require.NoError(t, err)
	assert.False(t, res.CreatedDestination)

	tx := decodeSent(t, f.rpc.Sent[0])
	require.Len(t, tx.Message.Instructions, 1)
	assert.Equal(t, solanago.TokenProgramID,
		tx.Message.AccountKeys[tx.Message.Instructions[0].ProgramIDIndex])
}

func TestTransfer_SendFailureNotRetried(t *testing.T) {
	f := newFixture(t, true)
	f.rpc.Errors["sendTransaction"] = &solana.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Error processing Instruction 0: insufficient funds",
	}

	_, err := f.service.Transfer(context.Background(), f.request("1"))
	require.Error(t, err)

	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "send", subErr.Stage)
	assert.Contains(t, err.Error(), "insufficient funds")
	assert.False(t, IsValidation(err))
	assert.Equal(t, 1, f.rpc.Calls("sendTransaction"))

	require.Len(t, f.publisher.records, 1)
	rec := f.publisher.records[0]
	assert.Equal(t, domain.TransferFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "insufficient funds")
}

func TestTransfer_ConfirmationFailure(t *testing.T) {
	f := newFixture(t, true)
	f.rpc.Statuses["sig1"] = &solana.SignatureStatus{
		Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
	}

	_, err := f.service.Transfer(context.Background(), f.request("1"))

	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "confirm", subErr.Stage)
	assert.Equal(t, "sig1", subErr.Signature)
	assert.ErrorIs(t, err, solana.ErrTransactionFailed)

	rec := f.publisher.records[0]
	assert.Equal(t, domain.TransferFailed, rec.Status)
	assert.Equal(t, "sig1", *rec.Signature)
}

func TestTransfer_DestinationLookupFailure(t *testing.T) {
	f := newFixture(t, true)
	f.rpc.Errors["getAccountInfo"] = errors.New("connection reset")

	_, err := f.service.Transfer(context.Background(), f.request("1"))

	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "lookup", subErr.Stage)
	assert.Equal(t, 0, f.rpc.Calls("sendTransaction"))
}

func TestTransfer_RejectsNonAssociatedSource(t *testing.T) {
	f := newFixture(t, true)

	// A large auxiliary account of the same mint must not stand in for the
	// associated account the transaction actually debits.
	req := f.request("1")
	req.Source.Address = solanago.NewWallet().PublicKey().String()
	req.Source.Amount = 1_000_000_000_000

	_, err := f.service.Transfer(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidSource)
	assert.Contains(t, err.Error(), req.Source.Address)
	assert.Equal(t, 0, f.rpc.TotalCalls())

	records, err := f.store.ListByOwner(context.Background(), f.signer.PublicKey().String(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TransferRejected, records[0].Status)
}
