// Package publish emits newly recorded swaps to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"safeguard-bot/internal/domain"
)

// Publisher announces recorded transactions.
type Publisher interface {
	Publish(ctx context.Context, token *domain.TrackedToken, tx *domain.Transaction) error
	Close() error
}

// TransactionEvent is the wire form of a recorded swap.
type TransactionEvent struct {
	ID           int64               `json:"id"`
	TokenID      int64               `json:"token_id"`
	Chain        domain.Chain        `json:"chain"`
	Token        string              `json:"token"`
	Symbol       string              `json:"symbol,omitempty"`
	TxHash       string              `json:"tx_hash"`
	Wallet       string              `json:"wallet"`
	Direction    domain.Direction    `json:"direction"`
	TokenAmount  decimal.Decimal     `json:"token_amount"`
	NativeAmount decimal.Decimal     `json:"native_amount"`
	USDValue     decimal.NullDecimal `json:"usd_value"`
	BlockNumber  uint64              `json:"block_number"`
	Timestamp    time.Time           `json:"timestamp"`
}

// NewTransactionEvent builds the wire form of tx.
func NewTransactionEvent(token *domain.TrackedToken, tx *domain.Transaction) TransactionEvent {
	return TransactionEvent{
		ID:           tx.ID,
		TokenID:      tx.TokenID,
		Chain:        tx.Chain,
		Token:        token.Address,
		Symbol:       token.Symbol,
		TxHash:       tx.TxHash,
		Wallet:       tx.Wallet,
		Direction:    tx.Direction,
		TokenAmount:  tx.TokenAmount,
		NativeAmount: tx.NativeAmount,
		USDValue:     tx.USDValue,
		BlockNumber:  tx.BlockNumber,
		Timestamp:    tx.Timestamp,
	}
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, *domain.TrackedToken, *domain.Transaction) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// KafkaConfig holds Kafka connection configuration.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes events keyed by chain and token so events for
// one token stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka publisher: brokers and topic are required")
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: batchTimeout,
	}}, nil
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, token *domain.TrackedToken, tx *domain.Transaction) error {
	data, err := json.Marshal(NewTransactionEvent(token, tx))
	if err != nil {
		return fmt.Errorf("marshal transaction event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(string(tx.Chain) + ":" + token.Address),
		Value: data,
		Time:  tx.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("publish tx %s: %w", tx.TxHash, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
