// Package events publishes ledger changes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"portfolio-ledger/models"
)

const TransactionRecorded = "transaction.recorded"

// LedgerEvent announces a transaction appended to a user's ledger, with the
// net quantity of the pair after it.
type LedgerEvent struct {
	ID          string                 `json:"id"`
	Kind        string                 `json:"kind"`
	UserID      uint                   `json:"user_id"`
	Symbol      string                 `json:"symbol"`
	Type        models.TransactionType `json:"type"`
	Quantity    int64                  `json:"quantity"`
	Price       decimal.Decimal        `json:"price"`
	NetQuantity int64                  `json:"net_quantity"`
	Timestamp   time.Time              `json:"ts"`
}

// NewTransactionEvent describes tx.
func NewTransactionEvent(tx models.Transaction, netQuantity int64) LedgerEvent {
	return LedgerEvent{
		ID:          uuid.NewString(),
		Kind:        TransactionRecorded,
		UserID:      tx.UserID,
		Symbol:      tx.Symbol,
		Type:        tx.Type,
		Quantity:    tx.Quantity,
		Price:       tx.Price,
		NetQuantity: netQuantity,
		Timestamp:   tx.Timestamp,
	}
}

// Key partitions events by (user, symbol) so a pair stays ordered.
func (e LedgerEvent) Key() []byte { return []byte(fmt.Sprintf("%d|%s", e.UserID, e.Symbol)) }

type Publisher interface {
	Publish(ctx context.Context, e LedgerEvent) error
	Close() error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, LedgerEvent) error { return nil }
func (Nop) Close() error                               { return nil }

// Kafka writes events as JSON messages to a topic.
type Kafka struct {
	w *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	return &Kafka{w: kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Dialer:       dialer,
		BatchTimeout: 200 * time.Millisecond,
		RequiredAcks: int(kafka.RequireOne),
	})}
}

func (k *Kafka) Publish(ctx context.Context, e LedgerEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{Key: e.Key(), Value: b, Time: e.Timestamp}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }

var (
	_ Publisher = Nop{}
	_ Publisher = (*Kafka)(nil)
)
