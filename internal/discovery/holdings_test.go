package discovery

import (
	"context"
	"errors"
	"testing"

	"solana-token-transfer/internal/solana"
	"solana-token-transfer/internal/solana/stub"
)

func TestDiscover_NoIdentity(t *testing.T) {
	rpc := stub.NewRPCClient()
	d := NewDiscoverer(rpc)

	_, err := d.Discover(context.Background(), "")
	if !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	if rpc.TotalCalls() != 0 {
		t.Errorf("expected no network calls, got %d", rpc.TotalCalls())
	}
}

func TestDiscover_ReturnsAccountsInOrder(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTokenAccount("owner1", solana.KeyedAccount{Pubkey: "acctA", Account: solana.AccountInfo{Data: []byte{1}}})
	rpc.AddTokenAccount("owner1", solana.KeyedAccount{Pubkey: "acctB", Account: solana.AccountInfo{Data: []byte{2}}})
	rpc.AddTokenAccount("owner2", solana.KeyedAccount{Pubkey: "other"})

	d := NewDiscoverer(rpc)
	holdings, err := d.Discover(context.Background(), "owner1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(holdings))
	}
	if holdings[0].Address != "acctA" || holdings[1].Address != "acctB" {
		t.Errorf("unexpected order: %s, %s", holdings[0].Address, holdings[1].Address)
	}
	if holdings[1].Data[0] != 2 {
		t.Errorf("data not carried through")
	}
	if n := rpc.Calls("getTokenAccountsByOwner"); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestDiscover_Empty(t *testing.T) {
	d := NewDiscoverer(stub.NewRPCClient())

	holdings, err := d.Discover(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("expected no holdings, got %d", len(holdings))
	}
}

func TestDiscover_PropagatesRPCError(t *testing.T) {
	rpcErr := errors.New("connection refused")
	rpc := stub.NewRPCClient()
	rpc.Errors["getTokenAccountsByOwner"] = rpcErr

	d := NewDiscoverer(rpc)
	_, err := d.Discover(context.Background(), "owner1")
	if !errors.Is(err, rpcErr) {
		t.Fatalf("expected wrapped rpc error, got %v", err)
	}
}
