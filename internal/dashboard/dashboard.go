// Package dashboard pushes a small subset of each record to a remote
// dashboard, at most once per configured interval. Pushes are best-effort:
// failures are logged and dropped.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"airguard/internal/config"
	"airguard/internal/model"
)

type Update struct {
	Timestamp    time.Time
	TemperatureC float64
	VOC          float64
	Status       string
	AlarmState   model.AlarmState
}

type Pusher interface {
	Push(ctx context.Context, u Update) error
}

type Syncer struct {
	pusher    Pusher
	sometimes *rate.Sometimes
	timeout   time.Duration
	logger    *slog.Logger
}

func NewSyncer(p Pusher, interval, timeout time.Duration, logger *slog.Logger) *Syncer {
	return &Syncer{
		pusher:    p,
		sometimes: &rate.Sometimes{Interval: interval},
		timeout:   timeout,
		logger:    logger,
	}
}

// New builds the configured syncer, or nil when the dashboard is disabled.
func New(cfg config.DashboardConfig, logger *slog.Logger) (*Syncer, error) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("dashboard disabled")
		}
		return nil, nil
	}
	var p Pusher
	switch strings.ToLower(cfg.Driver) {
	case "adafruit":
		p = NewAdafruit(cfg.Adafruit.BaseURL, cfg.Adafruit.Username, config.Secret(cfg.Adafruit.Key, cfg.Adafruit.KeyEnv), cfg.Timeout)
	case "influx":
		p = NewInflux(cfg.Influx.URL, config.Secret(cfg.Influx.Token, cfg.Influx.TokenEnv), cfg.Influx.Org, cfg.Influx.Bucket, cfg.Influx.Measurement)
	default:
		return nil, fmt.Errorf("unsupported dashboard driver %q", cfg.Driver)
	}
	if logger != nil {
		logger.Info("dashboard enabled", "driver", cfg.Driver, "interval", cfg.Interval.String())
	}
	return NewSyncer(p, cfg.Interval, cfg.Timeout, logger), nil
}

// Sync pushes rec if the interval since the last push has elapsed. It
// reports whether a push was attempted.
func (s *Syncer) Sync(ctx context.Context, rec model.OutputRecord) bool {
	if s == nil {
		return false
	}
	attempted := false
	s.sometimes.Do(func() {
		attempted = true
		if s.logger != nil {
			s.logger.Info("syncing dashboard")
		}
		pushCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			pushCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		err := s.pusher.Push(pushCtx, Update{
			Timestamp:    rec.Timestamp,
			TemperatureC: rec.TemperatureC,
			VOC:          rec.VOC,
			Status:       rec.Status,
			AlarmState:   rec.AlarmState,
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("dashboard push failed", "err", err)
		}
	})
	return attempted
}

func (s *Syncer) Close() {
	if s == nil {
		return
	}
	if c, ok := s.pusher.(interface{ Close() }); ok {
		c.Close()
	}
}
