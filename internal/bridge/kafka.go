package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"airguard/internal/config"
	"airguard/internal/model"
)

// KafkaSource reads JSON samples published by a remote sensor gateway.
type KafkaSource struct {
	reader *kafka.Reader
	wait   time.Duration
	logger *slog.Logger
}

func NewKafkaSource(cfg config.KafkaConfig, logger *slog.Logger) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1e6,
	})
	return &KafkaSource{reader: reader, wait: 500 * time.Millisecond, logger: logger}
}

// Fetch waits briefly for the next message; an empty topic is no data.
func (k *KafkaSource) Fetch(ctx context.Context) (*model.Sample, error) {
	ctxRead, cancel := context.WithTimeout(ctx, k.wait)
	defer cancel()
	m, err := k.reader.ReadMessage(ctxRead)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		if k.logger != nil {
			k.logger.Warn("kafka read error", "err", err)
		}
		return nil, err
	}
	return DecodeSample(m.Value)
}

func (k *KafkaSource) Close() error {
	return k.reader.Close()
}
