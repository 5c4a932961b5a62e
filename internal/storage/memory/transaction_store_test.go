package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

func newTestTx(hash string, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		TokenID:      1,
		Chain:        domain.ChainSolana,
		TxHash:       hash,
		Wallet:       "wallet1",
		Direction:    domain.DirectionBuy,
		TokenAmount:  decimal.NewFromInt(1000),
		NativeAmount: decimal.RequireFromString("1.5"),
		USDValue:     decimal.NewNullDecimal(decimal.NewFromInt(225)),
		Timestamp:    ts,
		BlockNumber:  100,
	}
}

func TestTransactionStore_InsertAndGet(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := newTestTx("sig1", time.Unix(1700000000, 0))
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if tx.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}

	got, err := store.GetByHash(ctx, domain.ChainSolana, "sig1")
	if err != nil {
		t.Fatalf("GetByHash failed: %v", err)
	}
	if got.ID != tx.ID || !got.TokenAmount.Equal(tx.TokenAmount) {
		t.Errorf("mismatch: got %+v", got)
	}

	byID, err := store.GetByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.TxHash != "sig1" {
		t.Errorf("expected sig1, got %s", byID.TxHash)
	}

	exists, _ := store.Exists(ctx, domain.ChainSolana, "sig1")
	if !exists {
		t.Error("expected sig1 to exist")
	}
	exists, _ = store.Exists(ctx, domain.ChainEthereum, "sig1")
	if exists {
		t.Error("same hash on another chain must not exist")
	}

	if _, err := store.GetByHash(ctx, domain.ChainSolana, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionStore_DuplicateKey(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newTestTx("sig1", time.Now())); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.Insert(ctx, newTestTx("sig1", time.Now())); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTransactionStore_ConcurrentInsert(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Insert(ctx, newTestTx("sig-race", time.Now())); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("expected exactly one insert to succeed, got %d", created)
	}
}

func TestTransactionStore_MarkAlertSent(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := newTestTx("sig1", time.Now())
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	flipped, err := store.MarkAlertSent(ctx, tx.ID)
	if err != nil || !flipped {
		t.Fatalf("expected first MarkAlertSent to flip, got %v %v", flipped, err)
	}
	flipped, err = store.MarkAlertSent(ctx, tx.ID)
	if err != nil || flipped {
		t.Errorf("expected second MarkAlertSent to be a no-op, got %v %v", flipped, err)
	}

	if _, err := store.MarkAlertSent(ctx, 999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionStore_ListByToken(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	for i, hash := range []string{"a", "b", "c"} {
		if err := store.Insert(ctx, newTestTx(hash, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	list, err := store.ListByToken(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListByToken failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2, got %d", len(list))
	}
	if list[0].TxHash != "c" || list[1].TxHash != "b" {
		t.Errorf("expected newest first, got %s, %s", list[0].TxHash, list[1].TxHash)
	}
}
