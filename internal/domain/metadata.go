package domain

// TokenMetadata is the display metadata resolved for a mint.
// Corresponds to token_metadata table in PostgreSQL.
type TokenMetadata struct {
	Mint      string  // token mint address (PK)
	Found     bool    // false when no metadata account exists at the derived address
	Name      *string // on-chain name (nullable)
	Symbol    *string // on-chain symbol (nullable)
	URI       *string // off-chain JSON reference (nullable)
	Image     *string // image URL from the off-chain JSON (nullable)
	FetchedAt int64   // when metadata was fetched (ms)
}
