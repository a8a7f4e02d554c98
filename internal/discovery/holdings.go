// Package discovery lists the token accounts held by a wallet.
package discovery

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/observability"
	"solana-token-transfer/internal/solana"
)

// ErrNoIdentity is returned when discovery is requested without an owner.
var ErrNoIdentity = domain.ErrNoIdentity

// Discoverer enumerates SPL token accounts owned by a wallet.
type Discoverer struct {
	rpc       solana.TokenAccountLister
	programID string
	log       logrus.FieldLogger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithProgramID overrides the token program filter.
func WithProgramID(programID string) Option {
	return func(d *Discoverer) {
		d.programID = programID
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Discoverer) {
		d.log = log
	}
}

// NewDiscoverer creates a Discoverer backed by rpc.
func NewDiscoverer(rpc solana.TokenAccountLister, opts ...Option) *Discoverer {
	d := &Discoverer{
		rpc:       rpc,
		programID: solana.TokenProgramID,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover returns every token account owned by owner, in node order.
// Account data is returned undecoded.
func (d *Discoverer) Discover(ctx context.Context, owner string) ([]domain.RawHolding, error) {
	if owner == "" {
		return nil, ErrNoIdentity
	}

	accounts, err := d.rpc.GetTokenAccountsByOwner(ctx, owner, d.programID)
	if err != nil {
		observability.RecordDiscovery(0, err)
		return nil, fmt.Errorf("list token accounts for %s: %w", owner, err)
	}

	holdings := make([]domain.RawHolding, 0, len(accounts))
	for _, acct := range accounts {
		holdings = append(holdings, domain.RawHolding{
			Address: acct.Pubkey,
			Data:    acct.Account.Data,
		})
	}

	observability.RecordDiscovery(len(holdings), nil)
	d.log.WithFields(logrus.Fields{
		"owner":    owner,
		"holdings": len(holdings),
	}).Debug("discovered token accounts")

	return holdings, nil
}
