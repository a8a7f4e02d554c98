package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTransactionFailed is returned when a transaction landed with an error.
var ErrTransactionFailed = errors.New("transaction failed")

// Confirmer waits until a submitted signature reaches a commitment level.
type Confirmer interface {
	Confirm(ctx context.Context, signature string, commitment Commitment) error
}

// Default polling values.
const (
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultConfirmTimeout = 60 * time.Second
)

// PollConfirmer confirms signatures by polling getSignatureStatuses.
type PollConfirmer struct {
	rpc      TransactionSender
	interval time.Duration
	timeout  time.Duration
}

// NewPollConfirmer creates a polling confirmer. Zero durations use defaults.
func NewPollConfirmer(rpc TransactionSender, interval, timeout time.Duration) *PollConfirmer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &PollConfirmer{rpc: rpc, interval: interval, timeout: timeout}
}

// Confirm blocks until the signature reaches commitment, fails on chain,
// or the timeout/context expires.
func (p *PollConfirmer) Confirm(ctx context.Context, signature string, commitment Commitment) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		statuses, err := p.rpc.GetSignatureStatuses(ctx, signature)
		if err != nil {
			return fmt.Errorf("get signature status: %w", err)
		}
		if len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, st.Err)
			}
			if st.ConfirmationStatus.Reaches(commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", signature, ctx.Err())
		case <-ticker.C:
		}
	}
}

// FallbackConfirmer confirms through a primary confirmer and switches to a
// fallback when the primary loses its connection. On-chain failures and
// caller cancellation are returned as is.
type FallbackConfirmer struct {
	primary  Confirmer
	fallback Confirmer
	log      logrus.FieldLogger
}

// NewFallbackConfirmer creates a FallbackConfirmer. log may be nil.
func NewFallbackConfirmer(primary, fallback Confirmer, log logrus.FieldLogger) *FallbackConfirmer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FallbackConfirmer{primary: primary, fallback: fallback, log: log}
}

// Confirm implements Confirmer.
func (f *FallbackConfirmer) Confirm(ctx context.Context, signature string, commitment Commitment) error {
	err := f.primary.Confirm(ctx, signature, commitment)
	if err == nil || ctx.Err() != nil {
		return err
	}
	if !errors.Is(err, ErrWSDisconnected) && !errors.Is(err, ErrWSClosed) {
		return err
	}

	f.log.WithError(err).WithField("signature", signature).Warn("websocket confirmation unavailable, polling")
	return f.fallback.Confirm(ctx, signature, commitment)
}

var (
	_ Confirmer = (*PollConfirmer)(nil)
	_ Confirmer = (*FallbackConfirmer)(nil)
)
