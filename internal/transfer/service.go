// Package transfer moves SPL tokens from the connected wallet to another
// wallet, creating the recipient's associated token account when needed.
package transfer

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/notify"
	"solana-token-transfer/internal/observability"
	"solana-token-transfer/internal/solana"
	"solana-token-transfer/internal/storage"
	"solana-token-transfer/internal/wallet"
)

// Chain is the RPC surface a transfer needs.
type Chain interface {
	solana.AccountReader
	solana.TransactionSender
}

// Request is a transfer of Amount tokens of Source's mint to Destination.
type Request struct {
	Source      *domain.Holding
	Destination string
	Amount      decimal.Decimal
}

// Result describes a confirmed transfer.
type Result struct {
	ID                 string
	Signature          string
	SourceAccount      string
	DestinationAccount string
	Amount             uint64
	CreatedDestination bool
}

// Service submits transfers. It never retries a submission.
type Service struct {
	chain      Chain
	signer     wallet.Signer
	confirmer  solana.Confirmer
	commitment solana.Commitment
	store      storage.TransferStore
	publisher  notify.Publisher
	log        logrus.FieldLogger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSigner sets the wallet that authorises transfers.
func WithSigner(signer wallet.Signer) Option {
	return func(s *Service) {
		s.signer = signer
	}
}

// WithConfirmer overrides the default polling confirmer.
func WithConfirmer(c solana.Confirmer) Option {
	return func(s *Service) {
		s.confirmer = c
	}
}

// WithStore records every attempt in store.
func WithStore(store storage.TransferStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithPublisher publishes every attempt.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates a transfer service. Without WithSigner the service is
// read-only and every transfer reports ErrNoIdentity.
func NewService(chain Chain, opts ...Option) *Service {
	s := &Service{
		chain:      chain,
		commitment: solana.CommitmentConfirmed,
		log:        logrus.StandardLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.confirmer == nil {
		s.confirmer = solana.NewPollConfirmer(chain, 0, 0)
	}
	return s
}

// Signer returns the configured signer, or nil in read-only mode.
func (s *Service) Signer() wallet.Signer {
	return s.signer
}

// Transfer validates req, submits the transaction and waits for
// confirmed commitment.
func (s *Service) Transfer(ctx context.Context, req Request) (*Result, error) {
	if s.signer == nil {
		return nil, ErrNoIdentity
	}
	if req.Source == nil {
		return nil, ErrNoSelection
	}

	start := s.now()
	owner := s.signer.PublicKey()
	rec := &domain.TransferRecord{
		ID:          uuid.NewString(),
		Owner:       owner.String(),
		Mint:        req.Source.Mint,
		Destination: req.Destination,
		CreatedAt:   start.UnixMilli(),
	}

	log := s.log.WithFields(logrus.Fields{
		"transfer":    rec.ID,
		"owner":       rec.Owner,
		"mint":        rec.Mint,
		"destination": rec.Destination,
	})

	dest, mint, amount, err := validate(owner, req)
	if err != nil {
		rec.Status = domain.TransferRejected
		s.finish(ctx, log, rec, err, start)
		return nil, err
	}
	rec.Amount = amount

	res, err := s.submit(ctx, log, owner, dest, mint, amount, rec)
	if err != nil {
		rec.Status = domain.TransferFailed
		s.finish(ctx, log, rec, err, start)
		return nil, err
	}

	rec.Status = domain.TransferConfirmed
	s.finish(ctx, log, rec, nil, start)
	return res, nil
}

// validate checks the request without touching the network. The selected
// holding must be the owner's associated token account for its mint, since
// that is the account the transaction debits.
func validate(owner solanago.PublicKey, req Request) (dest, mint solanago.PublicKey, amount uint64, err error) {
	if req.Source.DecodeErr != "" || req.Source.Mint == "" {
		return dest, mint, 0, ErrInvalidSource
	}
	mint, err = solanago.PublicKeyFromBase58(req.Source.Mint)
	if err != nil {
		return dest, mint, 0, fmt.Errorf("%w: mint %s", ErrInvalidSource, req.Source.Mint)
	}

	dest, err = solanago.PublicKeyFromBase58(req.Destination)
	if err != nil {
		return dest, mint, 0, fmt.Errorf("%w: %q", ErrInvalidDestination, req.Destination)
	}

	source, _, err := AssociatedAccounts(owner, dest, mint)
	if err != nil {
		return dest, mint, 0, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if source.String() != req.Source.Address {
		return dest, mint, 0, fmt.Errorf("%w: selected account %s is not the associated token account %s",
			ErrInvalidSource, req.Source.Address, source.String())
	}

	amount, err = ScaleAmount(req.Amount)
	if err != nil {
		return dest, mint, 0, err
	}
	if amount > req.Source.Amount {
		return dest, mint, 0, fmt.Errorf("%w: %s > %s", ErrInsufficientBalance,
			req.Amount.String(), req.Source.UIAmount().String())
	}
	return dest, mint, amount, nil
}

func (s *Service) submit(
	ctx context.Context,
	log logrus.FieldLogger,
	owner, dest, mint solanago.PublicKey,
	amount uint64,
	rec *domain.TransferRecord,
) (*Result, error) {
	fail := func(stage string, err error) error {
		return &SubmissionError{Stage: stage, Signature: deref(rec.Signature), Err: err}
	}

	source, destAccount, err := AssociatedAccounts(owner, dest, mint)
	if err != nil {
		return nil, fail("derive", err)
	}
	rec.SourceAccount = source.String()
	rec.DestinationAccount = destAccount.String()

	info, err := s.chain.GetAccountInfo(ctx, destAccount.String())
	if err != nil {
		return nil, fail("lookup", fmt.Errorf("check destination account: %w", err))
	}

	plan, err := BuildPlan(owner, dest, mint, amount, info != nil)
	if err != nil {
		return nil, fail("build", err)
	}
	rec.CreatedDestination = plan.CreateDestination

	bh, err := s.chain.GetLatestBlockhash(ctx, s.commitment)
	if err != nil {
		return nil, fail("blockhash", fmt.Errorf("get recent blockhash: %w", err))
	}
	hash, err := solanago.HashFromBase58(bh.Blockhash)
	if err != nil {
		return nil, fail("blockhash", fmt.Errorf("parse blockhash: %w", err))
	}

	tx, err := solanago.NewTransaction(plan.Instructions, hash, solanago.TransactionPayer(owner))
	if err != nil {
		return nil, fail("build", fmt.Errorf("create transaction: %w", err))
	}
	if err := s.signer.Sign(tx); err != nil {
		return nil, fail("sign", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fail("build", fmt.Errorf("marshal transaction: %w", err))
	}

	sig, err := s.chain.SendTransaction(ctx, raw)
	if err != nil {
		return nil, fail("send", err)
	}
	rec.Signature = &sig
	log.WithFields(logrus.Fields{
		"signature":          sig,
		"create_destination": plan.CreateDestination,
		"instruction_count":  len(plan.Instructions),
	}).Info("transaction submitted")

	if err := s.confirmer.Confirm(ctx, sig, s.commitment); err != nil {
		return nil, fail("confirm", err)
	}

	return &Result{
		ID:                 rec.ID,
		Signature:          sig,
		SourceAccount:      rec.SourceAccount,
		DestinationAccount: rec.DestinationAccount,
		Amount:             amount,
		CreatedDestination: plan.CreateDestination,
	}, nil
}

// finish logs, records and publishes the attempt. Store and publisher
// failures are logged and do not change the transfer outcome.
func (s *Service) finish(ctx context.Context, log logrus.FieldLogger, rec *domain.TransferRecord, cause error, start time.Time) {
	outcome := "success"
	switch rec.Status {
	case domain.TransferRejected:
		outcome = "rejected"
	case domain.TransferFailed:
		outcome = "failed"
	}
	if cause != nil {
		msg := cause.Error()
		rec.Error = &msg
		log.WithError(cause).Warn("transfer " + outcome)
	} else {
		log.WithField("signature", deref(rec.Signature)).Info("transfer confirmed")
	}

	observability.RecordTransfer(outcome, s.now().Sub(start).Seconds(),
		rec.Status == domain.TransferConfirmed && rec.CreatedDestination)

	// Detach from the request context so a canceled request is still recorded.
	bg := context.WithoutCancel(ctx)
	if s.store != nil {
		err := s.store.Insert(bg, rec)
		observability.RecordStoreOp("transfers", "insert", err)
		if err != nil {
			log.WithError(err).Error("record transfer")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(bg, rec); err != nil {
			log.WithError(err).Error("publish transfer")
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
