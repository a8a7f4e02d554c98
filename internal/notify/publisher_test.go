package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-transfer/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func record() *domain.TransferRecord {
	sig := "5sig"
	return &domain.TransferRecord{
		ID:          "t1",
		Owner:       "owner1",
		Mint:        "mint1",
		Destination: "dest1",
		Amount:      18446744073709551615,
		Signature:   &sig,
		Status:      domain.TransferConfirmed,
		CreatedAt:   1700000000000,
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), record()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "owner1", string(w.msgs[0].Key))

	var ev TransferEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "18446744073709551615", ev.Amount)
	assert.Equal(t, "5sig", ev.Signature)
	assert.Equal(t, "CONFIRMED", ev.Status)
	assert.Empty(t, ev.Error)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	cause := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: cause}}

	err := p.Publish(context.Background(), record())
	assert.ErrorIs(t, err, cause)
}

func TestLogPublisher(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewLogPublisher(logger)

	require.NoError(t, p.Publish(context.Background(), record()))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "5sig", hook.LastEntry().Data["signature"])

	msg := "insufficient funds"
	failed := record()
	failed.Status = domain.TransferFailed
	failed.Error = &msg
	require.NoError(t, p.Publish(context.Background(), failed))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, msg, hook.LastEntry().Data["error"])
}
