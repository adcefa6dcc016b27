package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/securebank/ledger/internal/models"
	"github.com/segmentio/kafka-go"
)

// Publisher writes committed ledger events to a Kafka topic. Messages are
// keyed by account id so one account's events stay ordered on a partition.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, event models.LedgerEvent) error {
	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encodeEvent(event models.LedgerEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AccountID, 10)),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_kind", Value: []byte(event.Kind)},
		},
	}, nil
}
