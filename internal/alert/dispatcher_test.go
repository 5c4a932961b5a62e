package alert

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/notify"
	"safeguard-bot/internal/notify/stub"
	"safeguard-bot/internal/storage/memory"
)

func recordedTx(t *testing.T, store *memory.TransactionStore) *domain.Transaction {
	t.Helper()
	tx := &domain.Transaction{
		TokenID:      1,
		Chain:        domain.ChainEthereum,
		TxHash:       "0xfeed",
		Wallet:       "0xabc",
		Direction:    domain.DirectionBuy,
		TokenAmount:  decimal.NewFromInt(10),
		NativeAmount: decimal.RequireFromString("0.1"),
	}
	require.NoError(t, store.Insert(context.Background(), tx))
	return tx
}

func TestDispatch_SendsAndMarks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	sender := stub.NewSender()
	d := NewDispatcher(DispatcherOptions{Sender: sender, Marker: store})

	tx := recordedTx(t, store)
	out, err := d.Dispatch(ctx, &domain.TrackedToken{ID: 1, ChannelID: 42, Symbol: "TKN"}, tx, GateDecision{Emit: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)
	assert.True(t, tx.AlertSent)

	msgs := sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(42), msgs[0].ChatID)

	stored, err := store.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.AlertSent)
}

func TestDispatch_Skips(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	sender := stub.NewSender()
	d := NewDispatcher(DispatcherOptions{Sender: sender, Marker: store})
	token := &domain.TrackedToken{ID: 1}

	tx := recordedTx(t, store)
	out, err := d.Dispatch(ctx, token, tx, GateDecision{Emit: false, Reason: ReasonDirection})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)

	tx.AlertSent = true
	out, err = d.Dispatch(ctx, token, tx, GateDecision{Emit: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)

	assert.Empty(t, sender.Messages())
}

func TestDispatch_UnreachableLeavesFlag(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	sender := stub.NewSender()
	sender.SetErr(fmt.Errorf("%w: chat 42: Forbidden", notify.ErrDestinationUnreachable))
	d := NewDispatcher(DispatcherOptions{Sender: sender, Marker: store})

	tx := recordedTx(t, store)
	out, err := d.Dispatch(ctx, &domain.TrackedToken{ID: 1, ChannelID: 42}, tx, GateDecision{Emit: true})
	assert.Equal(t, OutcomeFailed, out)
	assert.ErrorIs(t, err, notify.ErrDestinationUnreachable)
	assert.Equal(t, 1, sender.Attempts())

	stored, err := store.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, stored.AlertSent)
}

func TestDispatch_TransientFailure(t *testing.T) {
	store := memory.NewTransactionStore()
	sender := stub.NewSender()
	sender.SetErr(errors.New("connection reset"))
	d := NewDispatcher(DispatcherOptions{Sender: sender, Marker: store, RetryDelay: time.Millisecond})

	tx := recordedTx(t, store)
	out, err := d.Dispatch(context.Background(), &domain.TrackedToken{ID: 1}, tx, GateDecision{Emit: true})
	assert.Equal(t, OutcomeFailed, out)
	assert.Error(t, err)
	assert.False(t, tx.AlertSent)
	assert.Equal(t, 2, sender.Attempts())
}

func TestDispatch_RetriesTransientFailureOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	sender := stub.NewSender()
	sender.FailNext(1, errors.New("telegram send to 42: Too Many Requests: retry after 1"))
	d := NewDispatcher(DispatcherOptions{Sender: sender, Marker: store, RetryDelay: time.Millisecond})

	tx := recordedTx(t, store)
	out, err := d.Dispatch(ctx, &domain.TrackedToken{ID: 1, ChannelID: 42}, tx, GateDecision{Emit: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)
	assert.Equal(t, 2, sender.Attempts())
	require.Len(t, sender.Messages(), 1)

	stored, err := store.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.AlertSent)
}

func TestDispatch_NoRetryAfterCancel(t *testing.T) {
	store := memory.NewTransactionStore()
	sender := stub.NewSender()
	sender.FailNext(1, errors.New("connection reset"))
	d := NewDispatcher(DispatcherOptions{Sender: sender, Marker: store, RetryDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tx := recordedTx(t, store)
	out, err := d.Dispatch(ctx, &domain.TrackedToken{ID: 1}, tx, GateDecision{Emit: true})
	assert.Equal(t, OutcomeFailed, out)
	assert.Error(t, err)
	assert.Equal(t, 1, sender.Attempts())
}
