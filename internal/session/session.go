// Package session holds the per-user view state: the connected identity,
// the current holdings list and the selected holding.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/observability"
	"solana-token-transfer/internal/transfer"
)

var (
	// ErrStaleGeneration is returned when a refresh finished after the
	// identity changed. Its results were discarded.
	ErrStaleGeneration = errors.New("refresh superseded by a newer identity")

	// ErrInvalidSelection is returned for an out-of-range selection index.
	ErrInvalidSelection = errors.New("selection out of range")
)

// NoSelection is the index reported when nothing is selected.
const NoSelection = -1

// Discoverer lists raw token accounts for an owner.
type Discoverer interface {
	Discover(ctx context.Context, owner string) ([]domain.RawHolding, error)
}

// Enricher turns raw holdings into display holdings, preserving order.
type Enricher interface {
	Enrich(ctx context.Context, raws []domain.RawHolding) ([]domain.Holding, error)
}

// Transferer submits transfers.
type Transferer interface {
	Transfer(ctx context.Context, req transfer.Request) (*transfer.Result, error)
}

// NotificationType is the severity of a notification.
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
)

// Notification is a one-shot message shown to the user after an action.
type Notification struct {
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	Description string           `json:"description,omitempty"`
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Identity   string           `json:"identity"`
	Generation uint64           `json:"generation"`
	Holdings   []domain.Holding `json:"holdings"`
	Selected   int              `json:"selected"`
	Loaded     bool             `json:"loaded"`
}

// Session is safe for concurrent use.
type Session struct {
	discoverer Discoverer
	enricher   Enricher
	transferer Transferer
	log        logrus.FieldLogger

	mu           sync.Mutex
	identity     string
	generation   uint64
	holdings     []domain.Holding
	byAddress    map[string]int
	selected     int
	loaded       bool
	notification *Notification
}

// New creates a session with no identity.
func New(d Discoverer, e Enricher, t Transferer, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		discoverer: d,
		enricher:   e,
		transferer: t,
		log:        log,
		byAddress:  make(map[string]int),
		selected:   NoSelection,
	}
}

// SetIdentity switches the connected wallet. A different identity starts a
// new generation: holdings and selection are cleared and any refresh still
// running for the old identity will be discarded.
func (s *Session) SetIdentity(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner == s.identity {
		return
	}
	s.identity = owner
	s.generation++
	s.holdings = nil
	s.byAddress = make(map[string]int)
	s.selected = NoSelection
	s.loaded = false

	s.log.WithFields(logrus.Fields{
		"owner":      owner,
		"generation": s.generation,
	}).Info("identity changed")
}

// Identity returns the connected wallet, or "" when none.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Refresh runs discovery and enrichment for the current identity and
// installs the result. Installing a list starts a fresh selection cycle.
// If the identity changed while the refresh ran, the result is dropped
// and ErrStaleGeneration is returned.
func (s *Session) Refresh(ctx context.Context) ([]domain.Holding, error) {
	s.mu.Lock()
	owner, gen := s.identity, s.generation
	s.mu.Unlock()

	raws, err := s.discoverer.Discover(ctx, owner)
	if err != nil {
		return nil, err
	}
	holdings, err := s.enricher.Enrich(ctx, raws)
	if err != nil {
		return nil, fmt.Errorf("enrich holdings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		observability.RecordStaleRefresh()
		s.log.WithFields(logrus.Fields{
			"owner":      owner,
			"generation": gen,
			"current":    s.generation,
		}).Info("discarding stale refresh")
		return nil, ErrStaleGeneration
	}

	s.holdings = holdings
	s.byAddress = make(map[string]int, len(holdings))
	for i, h := range holdings {
		s.byAddress[h.Address] = i
	}
	s.selected = NoSelection
	s.loaded = true

	return cloneHoldings(holdings), nil
}

// Select marks the holding at index as the transfer source.
func (s *Session) Select(index int) (*domain.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.holdings) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidSelection, index, len(s.holdings))
	}
	s.selected = index
	h := s.holdings[index]
	return &h, nil
}

// SelectAddress selects the holding with the given token account address.
func (s *Session) SelectAddress(address string) (*domain.Holding, error) {
	s.mu.Lock()
	idx, ok := s.byAddress[address]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown holding %s", ErrInvalidSelection, address)
	}
	return s.Select(idx)
}

// Selected returns a copy of the selected holding, or nil.
func (s *Session) Selected() *domain.Holding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

func (s *Session) selectedLocked() *domain.Holding {
	if s.selected == NoSelection {
		return nil
	}
	h := s.holdings[s.selected]
	return &h
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Identity:   s.identity,
		Generation: s.generation,
		Holdings:   cloneHoldings(s.holdings),
		Selected:   s.selected,
		Loaded:     s.loaded,
	}
}

// Transfer sends amount of the selected holding's token to destination.
// The outcome also becomes the pending notification.
func (s *Session) Transfer(ctx context.Context, destination string, amount decimal.Decimal) (*transfer.Result, error) {
	s.mu.Lock()
	source := s.selectedLocked()
	s.mu.Unlock()

	res, err := s.transferer.Transfer(ctx, transfer.Request{
		Source:      source,
		Destination: destination,
		Amount:      amount,
	})

	if err != nil {
		s.notify(FailureNotification(err))
		return nil, err
	}

	s.notify(&Notification{
		Type:        NotifySuccess,
		Message:     "Transaction successful!",
		Description: res.Signature,
	})
	return res, nil
}

func (s *Session) notify(n *Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notification = n
}

// TakeNotification returns and clears the pending notification.
func (s *Session) TakeNotification() *Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.notification
	s.notification = nil
	return n
}

// FailureNotification is the page notification for a failed transfer.
func FailureNotification(err error) *Notification {
	switch {
	case errors.Is(err, transfer.ErrNoIdentity):
		return &Notification{Type: NotifyError, Message: "Please connect Wallet"}
	case errors.Is(err, transfer.ErrNoSelection):
		return &Notification{Type: NotifyError, Message: "No token selected!"}
	case transfer.IsValidation(err):
		return &Notification{Type: NotifyError, Message: "Invalid transfer!", Description: err.Error()}
	default:
		return &Notification{Type: NotifyError, Message: "Transaction failed!", Description: err.Error()}
	}
}

func cloneHoldings(in []domain.Holding) []domain.Holding {
	if in == nil {
		return nil
	}
	out := make([]domain.Holding, len(in))
	copy(out, in)
	return out
}
