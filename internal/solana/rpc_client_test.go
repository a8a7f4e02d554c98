package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcServer(t *testing.T, handle func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetTokenAccountsByOwner(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})

	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getTokenAccountsByOwner" {
			t.Errorf("expected method getTokenAccountsByOwner, got %s", req.Method)
		}
		if req.Params[0] != "owner1" {
			t.Errorf("expected owner1, got %v", req.Params[0])
		}
		filter := req.Params[1].(map[string]interface{})
		if filter["programId"] != TokenProgramID {
			t.Errorf("expected token program filter, got %v", filter["programId"])
		}

		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": []map[string]interface{}{
				{
					"pubkey": "acct1",
					"account": map[string]interface{}{
						"lamports":   2039280,
						"owner":      TokenProgramID,
						"data":       []string{data, "base64"},
						"executable": false,
						"rentEpoch":  uint64(18446744073709551615),
					},
				},
				{
					"pubkey": "acct2",
					"account": map[string]interface{}{
						"lamports": 2039280,
						"owner":    TokenProgramID,
						"data":     []string{"", "base64"},
					},
				},
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	accounts, err := client.GetTokenAccountsByOwner(context.Background(), "owner1", TokenProgramID)
	if err != nil {
		t.Fatalf("GetTokenAccountsByOwner: %v", err)
	}

	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Pubkey != "acct1" || accounts[1].Pubkey != "acct2" {
		t.Errorf("order not preserved: %s, %s", accounts[0].Pubkey, accounts[1].Pubkey)
	}
	if string(accounts[0].Account.Data) != string([]byte{1, 2, 3}) {
		t.Errorf("unexpected data %v", accounts[0].Account.Data)
	}
	if accounts[1].Account.Data != nil {
		t.Errorf("expected nil data, got %v", accounts[1].Account.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value":   nil,
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for missing account, got %+v", info)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	raw := []byte{9, 8, 7}

	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "sendTransaction" {
			t.Errorf("expected sendTransaction, got %s", req.Method)
		}
		if req.Params[0] != base64.StdEncoding.EncodeToString(raw) {
			t.Errorf("unexpected payload %v", req.Params[0])
		}
		return "5sig"
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	sig, err := client.SendTransaction(context.Background(), raw)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "5sig" {
		t.Errorf("expected 5sig, got %s", sig)
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": map[string]interface{}{
				"blockhash":            "hash1",
				"lastValidBlockHeight": 200,
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	bh, err := client.GetLatestBlockhash(context.Background(), CommitmentConfirmed)
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if bh.Blockhash != "hash1" || bh.LastValidBlockHeight != 200 {
		t.Errorf("unexpected blockhash %+v", bh)
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": []interface{}{
				map[string]interface{}{"slot": 9, "confirmations": 1, "err": nil, "confirmationStatus": "confirmed"},
				nil,
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	statuses, err := client.GetSignatureStatuses(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0] == nil || statuses[0].ConfirmationStatus != CommitmentConfirmed {
		t.Errorf("unexpected status %+v", statuses[0])
	}
	if statuses[1] != nil {
		t.Errorf("expected nil status for unknown signature")
	}
}

func TestHTTPClient_RetryOnServerError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{"blockhash": "bh", "lastValidBlockHeight": 7},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithRetryDelay(10*time.Millisecond),
		WithMaxDelay(20*time.Millisecond),
	)

	bh, err := client.GetLatestBlockhash(context.Background(), CommitmentConfirmed)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if bh.Blockhash != "bh" {
		t.Errorf("unexpected blockhash %s", bh.Blockhash)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_SendTransactionNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "sig1",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(5*time.Millisecond),
	)

	sig, err := client.SendTransaction(context.Background(), []byte{1})
	if err == nil {
		t.Fatalf("expected error from the 502, got signature %q", sig)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 POST, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32002,
				"message": "Transaction simulation failed: insufficient funds",
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(10*time.Millisecond))

	_, err := client.SendTransaction(context.Background(), []byte{1})
	if err == nil {
		t.Fatal("expected error")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Code != -32002 {
		t.Errorf("unexpected code %d", rpcErr.Code)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(5*time.Millisecond),
	)

	_, err := client.GetAccountInfo(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error after retries")
	}
}
