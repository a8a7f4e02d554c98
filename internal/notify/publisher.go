// Package notify publishes transfer outcomes to interested consumers.
package notify

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"solana-token-transfer/internal/domain"
)

// Publisher delivers transfer records.
type Publisher interface {
	Publish(ctx context.Context, rec *domain.TransferRecord) error
	Close() error
}

// TransferEvent is the wire form of a transfer record.
type TransferEvent struct {
	ID                 string `json:"id"`
	Owner              string `json:"owner"`
	Mint               string `json:"mint"`
	SourceAccount      string `json:"source_account"`
	Destination        string `json:"destination"`
	DestinationAccount string `json:"destination_account"`
	Amount             string `json:"amount"` // base units, decimal string
	CreatedDestination bool   `json:"created_destination"`
	Signature          string `json:"signature,omitempty"`
	Status             string `json:"status"`
	Error              string `json:"error,omitempty"`
	CreatedAt          int64  `json:"created_at"`
}

// NewTransferEvent converts a record to its wire form.
func NewTransferEvent(rec *domain.TransferRecord) TransferEvent {
	ev := TransferEvent{
		ID:                 rec.ID,
		Owner:              rec.Owner,
		Mint:               rec.Mint,
		SourceAccount:      rec.SourceAccount,
		Destination:        rec.Destination,
		DestinationAccount: rec.DestinationAccount,
		Amount:             strconv.FormatUint(rec.Amount, 10),
		CreatedDestination: rec.CreatedDestination,
		Status:             string(rec.Status),
		CreatedAt:          rec.CreatedAt,
	}
	if rec.Signature != nil {
		ev.Signature = *rec.Signature
	}
	if rec.Error != nil {
		ev.Error = *rec.Error
	}
	return ev
}

// LogPublisher writes transfer records to the log.
type LogPublisher struct {
	log logrus.FieldLogger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish logs the record at info level, or warn level for failures.
func (p *LogPublisher) Publish(_ context.Context, rec *domain.TransferRecord) error {
	ev := NewTransferEvent(rec)
	entry := p.log.WithFields(logrus.Fields{
		"transfer":    ev.ID,
		"owner":       ev.Owner,
		"mint":        ev.Mint,
		"destination": ev.Destination,
		"amount":      ev.Amount,
		"status":      ev.Status,
	})
	if ev.Signature != "" {
		entry = entry.WithField("signature", ev.Signature)
	}

	if rec.Status == domain.TransferConfirmed {
		entry.Info("transfer confirmed")
		return nil
	}
	entry.WithField("error", ev.Error).Warn("transfer not completed")
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}

var _ Publisher = (*LogPublisher)(nil)
