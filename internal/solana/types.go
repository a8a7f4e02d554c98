package solana

// Commitment is the finality level requested from the node.
type Commitment string

// Commitment levels.
const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// rank orders commitment levels; unknown levels rank lowest.
func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// Reaches reports whether c is at least as final as target.
func (c Commitment) Reaches(target Commitment) bool {
	return c.rank() > 0 && c.rank() >= target.rank()
}

// AccountInfo represents Solana account information with decoded data.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// KeyedAccount is an account together with its address.
type KeyedAccount struct {
	Pubkey  string
	Account AccountInfo
}

// Blockhash from getLatestBlockhash.
type Blockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SignatureStatus from getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus Commitment  `json:"confirmationStatus"`
}
