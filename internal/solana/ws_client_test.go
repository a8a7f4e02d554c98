package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// signatureNode is a websocket endpoint answering signatureSubscribe.
type signatureNode struct {
	send      bool        // send a notification after each subscription
	notifyErr interface{} // notification err value
	dropFirst int32       // connections closed right after upgrade

	dials   atomic.Int32
	mu      sync.Mutex
	methods []string
}

func (n *signatureNode) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.methods...)
}

func (n *signatureNode) serve(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		if n.dials.Add(1) <= n.dropFirst {
			return
		}

		var subID int64 = 42
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
				return
			}
			n.mu.Lock()
			n.methods = append(n.methods, req.Method)
			n.mu.Unlock()

			if req.Method != "signatureSubscribe" {
				c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": true})
				continue
			}

			c.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  subID,
			})
			if n.send {
				c.WriteJSON(map[string]interface{}{
					"jsonrpc": "2.0",
					"method":  "signatureNotification",
					"params": map[string]interface{}{
						"subscription": subID,
						"result": map[string]interface{}{
							"context": map[string]interface{}{"slot": 77},
							"value":   map[string]interface{}{"err": n.notifyErr},
						},
					},
				})
			}
			subID++
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func fastReconnect() *WSClientConfig {
	return &WSClientConfig{
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 40 * time.Millisecond,
		SubscribeTimeout:  time.Second,
		ConfirmTimeout:    2 * time.Second,
	}
}

func TestWSClient_SubscribeSignature(t *testing.T) {
	node := &signatureNode{send: true}
	server := node.serve(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(context.Background(), "sig", CommitmentConfirmed)
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without notification")
		}
		if n.Slot != 77 {
			t.Errorf("expected slot 77, got %d", n.Slot)
		}
		if n.Err != nil {
			t.Errorf("expected nil err, got %v", n.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_ConfirmFailure(t *testing.T) {
	node := &signatureNode{send: true, notifyErr: map[string]interface{}{"InstructionError": []interface{}{0, "InvalidAccountData"}}}
	server := node.serve(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	err = client.Confirm(context.Background(), "sig", CommitmentConfirmed)
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
}

func TestWSClient_ConfirmContextTimeoutUnsubscribes(t *testing.T) {
	node := &signatureNode{}
	server := node.serve(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = client.Confirm(ctx, "sig", CommitmentConfirmed)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	client.subsMu.Lock()
	remaining := len(client.subs)
	client.subsMu.Unlock()
	if remaining != 0 {
		t.Errorf("expected no active subscriptions, got %d", remaining)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		methods := node.seen()
		if len(methods) == 2 && methods[1] == "signatureUnsubscribe" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected signatureUnsubscribe, server saw %v", methods)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSClient_ReconnectsAfterDrop(t *testing.T) {
	node := &signatureNode{send: true, dropFirst: 1}
	server := node.serve(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), fastReconnect())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for node.dials.Load() < 2 || !client.connected() {
		if time.Now().After(deadline) {
			t.Fatalf("client did not reconnect (dials=%d)", node.dials.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		if err := client.Confirm(context.Background(), "sig", CommitmentConfirmed); err != nil {
			t.Fatalf("Confirm %d after reconnect: %v", i, err)
		}
	}
}

func TestWSClient_DisconnectedError(t *testing.T) {
	node := &signatureNode{dropFirst: 1 << 30}
	server := node.serve(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), fastReconnect())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	err = client.Confirm(context.Background(), "sig", CommitmentConfirmed)
	if !errors.Is(err, ErrWSDisconnected) {
		t.Fatalf("expected ErrWSDisconnected, got %v", err)
	}
}

func TestFallbackConfirmer_PollsWhenWebsocketDrops(t *testing.T) {
	node := &signatureNode{dropFirst: 1 << 30}
	server := node.serve(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), fastReconnect())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	sender := &fakeSender{statuses: []*SignatureStatus{{ConfirmationStatus: CommitmentConfirmed}}}
	log, _ := test.NewNullLogger()
	c := NewFallbackConfirmer(client, NewPollConfirmer(sender, time.Millisecond, time.Second), log)

	for i := 0; i < 3; i++ {
		if err := c.Confirm(context.Background(), "sig", CommitmentConfirmed); err != nil {
			t.Fatalf("Confirm %d: %v", i, err)
		}
	}
	if sender.calls != 3 {
		t.Errorf("expected 3 status polls, got %d", sender.calls)
	}
}

func TestWSClient_CloseIdempotent(t *testing.T) {
	node := &signatureNode{}
	server := node.serve(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := client.SubscribeSignature(context.Background(), "sig", CommitmentConfirmed); !errors.Is(err, ErrWSClosed) {
		t.Errorf("expected ErrWSClosed, got %v", err)
	}
}
