package solana

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSender struct {
	mu       sync.Mutex
	statuses []*SignatureStatus // returned in sequence, last one repeats
	calls    int
}

func (f *fakeSender) GetLatestBlockhash(context.Context, Commitment) (*Blockhash, error) {
	return &Blockhash{}, nil
}

func (f *fakeSender) SendTransaction(context.Context, []byte) (string, error) {
	return "", nil
}

func (f *fakeSender) GetSignatureStatuses(_ context.Context, _ ...string) ([]*SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.calls++
	return []*SignatureStatus{f.statuses[idx]}, nil
}

func TestCommitment_Reaches(t *testing.T) {
	tests := []struct {
		have, want Commitment
		ok         bool
	}{
		{CommitmentProcessed, CommitmentConfirmed, false},
		{CommitmentConfirmed, CommitmentConfirmed, true},
		{CommitmentFinalized, CommitmentConfirmed, true},
		{"", CommitmentProcessed, false},
	}
	for _, tt := range tests {
		if got := tt.have.Reaches(tt.want); got != tt.ok {
			t.Errorf("%q.Reaches(%q) = %v, want %v", tt.have, tt.want, got, tt.ok)
		}
	}
}

func TestPollConfirmer_WaitsForCommitment(t *testing.T) {
	sender := &fakeSender{statuses: []*SignatureStatus{
		nil,
		{ConfirmationStatus: CommitmentProcessed},
		{ConfirmationStatus: CommitmentConfirmed},
	}}

	c := NewPollConfirmer(sender, time.Millisecond, time.Second)
	if err := c.Confirm(context.Background(), "sig", CommitmentConfirmed); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if sender.calls != 3 {
		t.Errorf("expected 3 polls, got %d", sender.calls)
	}
}

func TestPollConfirmer_TransactionError(t *testing.T) {
	sender := &fakeSender{statuses: []*SignatureStatus{
		{Err: map[string]interface{}{"InstructionError": []interface{}{1, "Custom"}}},
	}}

	c := NewPollConfirmer(sender, time.Millisecond, time.Second)
	err := c.Confirm(context.Background(), "sig", CommitmentConfirmed)
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
}

func TestPollConfirmer_Timeout(t *testing.T) {
	sender := &fakeSender{statuses: []*SignatureStatus{nil}}

	c := NewPollConfirmer(sender, time.Millisecond, 20*time.Millisecond)
	err := c.Confirm(context.Background(), "sig", CommitmentConfirmed)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
