package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const readBackoff = 500 * time.Millisecond

// MessageWriter is the subset of *kafka.Writer used for publishing.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MessageReader is the subset of *kafka.Reader used for consuming.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// NewWriter hashes on the message key so every record for one scope or rule
// keeps its order on a single partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 250 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        time.Second,
	})
}

func PublishJSON(ctx context.Context, writer MessageWriter, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now().UTC(),
	})
}

func ParseMessageJSON[T any](msg kafka.Message) (T, error) {
	var payload T
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return payload, fmt.Errorf("decode message at offset %d: %w", msg.Offset, err)
	}
	return payload, nil
}

// Consume decodes every message as T and hands it to handle until ctx is
// done. Undecodable messages are logged and skipped; read errors are retried
// after a short pause.
func Consume[T any](ctx context.Context, reader MessageReader, log zerolog.Logger, handle func(context.Context, T)) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info().Msg("consumer shutting down")
				return
			}
			log.Error().Err(err).Msg("read error")
			select {
			case <-ctx.Done():
				return
			case <-time.After(readBackoff):
			}
			continue
		}

		payload, err := ParseMessageJSON[T](msg)
		if err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic).Msg("skip message")
			continue
		}
		handle(ctx, payload)
	}
}
