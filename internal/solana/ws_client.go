package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrWSClosed is returned after Close.
	ErrWSClosed = errors.New("websocket client closed")

	// ErrWSDisconnected is returned while the connection is down or when it
	// dropped before a signature notification arrived.
	ErrWSDisconnected = errors.New("websocket disconnected")
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription ID.
	SubscribeTimeout time.Duration
	// ConfirmTimeout bounds Confirm when the caller context has no deadline.
	ConfirmTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		ConfirmTimeout:    DefaultConfirmTimeout,
	}
}

// withDefaults fills zero fields from DefaultWSConfig.
func (cfg WSClientConfig) withDefaults() WSClientConfig {
	def := DefaultWSConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = max(def.MaxReconnectDelay, cfg.ReconnectDelay)
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = def.SubscribeTimeout
	}
	return cfg
}

// WSClientImpl implements WSClient using gorilla/websocket.
// A dropped connection is re-dialed in the background with exponential
// backoff. Signature subscriptions are one-shot, so the ones active at the
// time of the drop are failed with ErrWSDisconnected instead of restored.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn // nil while reconnecting
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to notification channel
	subs   map[int64]chan SignatureNotification
	subsMu sync.Mutex

	// pending maps request ID to channel waiting for subscription ID
	pending   map[uint64]chan wsSubscribeResult
	pendingMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

type wsSubscribeResult struct {
	subID int64
	ch    chan SignatureNotification
	err   error
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = config.withDefaults()
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		subs:     make(map[int64]chan SignatureNotification),
		pending:  make(map[uint64]chan wsSubscribeResult),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed.Load() {
		conn.Close()
		return ErrWSClosed
	}
	c.conn = conn
	return nil
}

// connected reports whether a connection is currently up.
func (c *WSClientImpl) connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// write sends v as JSON on the current connection.
func (c *WSClientImpl) write(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return ErrWSDisconnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", ErrWSDisconnected, err)
	}
	return nil
}

// lostErr is the error for a subscription whose channel was closed.
func (c *WSClientImpl) lostErr() error {
	if c.closed.Load() {
		return ErrWSClosed
	}
	return ErrWSDisconnected
}

// SubscribeSignature subscribes to a transaction signature.
func (c *WSClientImpl) SubscribeSignature(ctx context.Context, signature string, commitment Commitment) (<-chan SignatureNotification, error) {
	_, ch, err := c.subscribe(ctx, signature, commitment)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *WSClientImpl) subscribe(ctx context.Context, signature string, commitment Commitment) (int64, chan SignatureNotification, error) {
	if c.closed.Load() {
		return 0, nil, ErrWSClosed
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": string(commitment)},
		},
	}

	resultCh := make(chan wsSubscribeResult, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = resultCh
	c.pendingMu.Unlock()

	dropPending := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	if err := c.write(req); err != nil {
		dropPending()
		return 0, nil, fmt.Errorf("write subscribe: %w", err)
	}

	var res wsSubscribeResult
	select {
	case r, ok := <-resultCh:
		if !ok {
			return 0, nil, c.lostErr()
		}
		res = r
	case <-time.After(c.config.SubscribeTimeout):
		dropPending()
		return 0, nil, fmt.Errorf("%w: no subscription id after %s", ErrWSDisconnected, c.config.SubscribeTimeout)
	case <-c.done:
		return 0, nil, ErrWSClosed
	case <-ctx.Done():
		dropPending()
		// The response may have been handled already.
		select {
		case r, ok := <-resultCh:
			if ok && r.err == nil {
				c.unsubscribe(r.subID)
			}
		default:
		}
		return 0, nil, ctx.Err()
	}
	if res.err != nil {
		return 0, nil, res.err
	}
	return res.subID, res.ch, nil
}

// unsubscribe drops an active subscription and tells the node.
func (c *WSClientImpl) unsubscribe(subID int64) {
	c.subsMu.Lock()
	_, ok := c.subs[subID]
	delete(c.subs, subID)
	c.subsMu.Unlock()
	if !ok {
		return
	}

	// The response carries an unknown request ID and is ignored.
	_ = c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "signatureUnsubscribe",
		Params:  []interface{}{subID},
	})
}

// Confirm waits for the signature notification at the given commitment.
func (c *WSClientImpl) Confirm(ctx context.Context, signature string, commitment Commitment) error {
	if _, ok := ctx.Deadline(); !ok && c.config.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConfirmTimeout)
		defer cancel()
	}

	subID, ch, err := c.subscribe(ctx, signature, commitment)
	if err != nil {
		return fmt.Errorf("subscribe signature: %w", err)
	}

	select {
	case n, ok := <-ch:
		if !ok {
			return fmt.Errorf("confirm %s: %w", signature, c.lostErr())
		}
		if n.Err != nil {
			return fmt.Errorf("%w: %v", ErrTransactionFailed, n.Err)
		}
		return nil
	case <-ctx.Done():
		c.unsubscribe(subID)
		return fmt.Errorf("confirm %s: %w", signature, ctx.Err())
	}
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.wg.Wait()
	c.failAll()
	return nil
}

// failAll closes every pending and active subscription channel.
func (c *WSClientImpl) failAll() {
	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// readLoop reads messages until the client closes, handing dropped
// connections to reconnect.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.dropConn(conn)
			if !c.reconnecting.Swap(true) {
				c.wg.Add(1)
				go c.reconnect()
			}
			continue
		}
		c.handleMessage(message)
	}
}

// dropConn discards a failed connection and fails the subscriptions that
// were waiting on it.
func (c *WSClientImpl) dropConn(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	conn.Close()
	c.failAll()
}

// reconnect re-dials with exponential backoff until it succeeds or the
// client closes.
func (c *WSClientImpl) reconnect() {
	defer c.wg.Done()
	defer c.reconnecting.Store(false)

	delay := c.config.ReconnectDelay
	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.connect(ctx)
		cancel()
		if err == nil || errors.Is(err, ErrWSClosed) {
			return
		}

		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

func (c *WSClientImpl) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch {
	case msg.Method == "signatureNotification" && msg.Params != nil:
		c.handleSignatureNotification(msg.Params)
	case msg.ID != 0:
		c.handleResponse(&msg)
	}
}

func (c *WSClientImpl) handleResponse(msg *wsMessage) {
	c.pendingMu.Lock()
	ch, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.pendingMu.Unlock()
	if !ok {
		return
	}

	if msg.Error != nil {
		ch <- wsSubscribeResult{err: msg.Error}
		return
	}

	var subID int64
	if err := json.Unmarshal(msg.Result, &subID); err != nil {
		ch <- wsSubscribeResult{err: fmt.Errorf("decode subscription id: %w", err)}
		return
	}

	// The channel is registered before the reader moves on so a
	// notification that follows immediately is not lost.
	notifCh := make(chan SignatureNotification, 1)
	c.subsMu.Lock()
	c.subs[subID] = notifCh
	c.subsMu.Unlock()

	ch <- wsSubscribeResult{subID: subID, ch: notifCh}
}

func (c *WSClientImpl) handleSignatureNotification(params *wsNotificationParams) {
	c.subsMu.Lock()
	ch, ok := c.subs[params.Subscription]
	if ok {
		delete(c.subs, params.Subscription)
	}
	c.subsMu.Unlock()
	if !ok {
		return
	}

	n := SignatureNotification{Err: params.Result.Value.Err}
	if params.Result.Context != nil {
		n.Slot = params.Result.Context.Slot
	}
	ch <- n
	close(ch)
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A dead connection surfaces in readLoop.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsMessage struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id,omitempty"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *RPCError             `json:"error,omitempty"`
	Method  string                `json:"method,omitempty"`
	Params  *wsNotificationParams `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext       `json:"context"`
	Value   wsSignatureValue `json:"value"`
}

type wsContext struct {
	Slot uint64 `json:"slot"`
}

type wsSignatureValue struct {
	Err interface{} `json:"err"`
}

var (
	_ WSClient  = (*WSClientImpl)(nil)
	_ Confirmer = (*WSClientImpl)(nil)
)
