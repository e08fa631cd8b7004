// Package bridge connects the pipeline to the sensor hardware: a Source yields
// one sample per tick and a Display accepts the face code computed for it.
package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"airguard/internal/config"
	"airguard/internal/model"
)

// Source fetches the next sample. A nil sample with a nil error means no data
// this tick.
type Source interface {
	Fetch(ctx context.Context) (*model.Sample, error)
}

// Display shows a face code: "0" safe, "1" warning or warm-up, "2" alarm.
type Display interface {
	SetDisplay(ctx context.Context, code string) error
}

type Bridge struct {
	Source  Source
	Display Display
	closers []io.Closer
}

func (b *Bridge) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func New(cfg config.BridgeConfig, logger *slog.Logger) (*Bridge, error) {
	switch strings.ToLower(cfg.Driver) {
	case "http":
		hb := NewHTTPBridge(cfg.HTTP.Addr, cfg.HTTP.Timeout)
		if logger != nil {
			logger.Info("http bridge enabled", "addr", cfg.HTTP.Addr)
		}
		return &Bridge{Source: hb, Display: hb}, nil
	case "replay":
		src, err := OpenReplay(cfg.Replay.Path)
		if err != nil {
			return nil, fmt.Errorf("open replay: %w", err)
		}
		if logger != nil {
			logger.Info("replay bridge enabled", "path", cfg.Replay.Path)
		}
		return &Bridge{Source: src, Display: NewLogDisplay(logger), closers: []io.Closer{src}}, nil
	case "kafka":
		src := NewKafkaSource(cfg.Kafka, logger)
		if logger != nil {
			logger.Info("kafka bridge enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic, "group_id", cfg.Kafka.GroupID)
		}
		return &Bridge{Source: src, Display: NewLogDisplay(logger), closers: []io.Closer{src}}, nil
	default:
		return nil, fmt.Errorf("unsupported bridge driver %q", cfg.Driver)
	}
}

// LogDisplay records face codes in the log for sources with no physical
// display attached.
type LogDisplay struct {
	logger *slog.Logger
}

func NewLogDisplay(logger *slog.Logger) *LogDisplay {
	return &LogDisplay{logger: logger}
}

func (d *LogDisplay) SetDisplay(_ context.Context, code string) error {
	if d.logger != nil {
		d.logger.Debug("display", "code", code)
	}
	return nil
}
