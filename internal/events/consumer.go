package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads purchase events back from the topic, e.g. to follow
// purchases made from other sessions.
type Consumer struct {
	reader messageReader
	log    zerolog.Logger
}

func NewConsumer(topic, groupID string, log zerolog.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset, // new groups only see events from now on
		MaxBytes:    10e6,             // 10MB
	})
	return &Consumer{reader: reader, log: log}
}

// Run hands every decodable event to handle until ctx is done or handle
// fails. Malformed messages are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle func(PurchaseEvent) error) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to read purchase event: %w", err)
		}

		var event PurchaseEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			c.log.Warn().Err(err).Int64("offset", m.Offset).Msg("skipping malformed purchase event")
			continue
		}
		if err := handle(event); err != nil {
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
