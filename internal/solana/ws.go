package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature subscribes to the status of one transaction signature.
	// The channel receives at most one notification and is then closed.
	SubscribeSignature(ctx context.Context, signature string, commitment Commitment) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification represents a signatureSubscribe message.
type SignatureNotification struct {
	Slot uint64
	Err  interface{}
}
