package domain

import "github.com/shopspring/decimal"

// TransferIntent is a user-constructed transfer request.
type TransferIntent struct {
	Source      *Holding
	Destination string          // destination wallet address
	Amount      decimal.Decimal // token units, scaled by Decimals at submission
}

// TransferStatus is the outcome of a transfer attempt.
type TransferStatus string

const (
	TransferConfirmed TransferStatus = "CONFIRMED"
	TransferFailed    TransferStatus = "FAILED"
	TransferRejected  TransferStatus = "REJECTED" // precondition or validation failure
)

// TransferRecord is the persisted history of one transfer attempt.
// Corresponds to transfers table in PostgreSQL.
type TransferRecord struct {
	ID                 string // uuid
	Owner              string // sender wallet
	Mint               string
	SourceAccount      string
	Destination        string // destination wallet
	DestinationAccount string // destination token account
	Amount             uint64 // base units
	CreatedDestination bool
	Signature          *string // nil when nothing was submitted
	Status             TransferStatus
	Error              *string
	CreatedAt          int64 // ms
}
