// Package runner drives the sampling loop: fetch one sample, run it through
// the engine, update the display and fan the record out to the sinks. Each
// cycle completes before the next fetch.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"airguard/internal/alerts"
	"airguard/internal/bridge"
	"airguard/internal/dashboard"
	"airguard/internal/engine"
	"airguard/internal/metrics"
	"airguard/internal/model"
	"airguard/internal/recordlog"
	"airguard/internal/storage"
)

// Skip reasons reported to metrics.
const (
	SkipNoData    = "no_data"
	SkipMalformed = "malformed"
	SkipFetch     = "fetch_error"
	SkipPanic     = "panic"
)

const shutdownTimeout = 2 * time.Second

// RecalibrationStatus is the status recorded on the transition to SAFE
// forced by a recalibration.
const RecalibrationStatus = "Recalibrating"

// Sinks receive the outputs of calibrated cycles. Any of them may be nil.
type Sinks struct {
	RecordLog  *recordlog.Writer
	Storage    storage.Store
	Dashboard  *dashboard.Syncer
	Metrics    *metrics.Store
	Collectors *metrics.Collectors
	Alerts     *alerts.Store
}

type Runner struct {
	engine    *engine.Engine
	source    bridge.Source
	display   bridge.Display
	sinks     Sinks
	interval  time.Duration
	sessionID string
	logger    *slog.Logger
	now       func() time.Time
}

func New(eng *engine.Engine, source bridge.Source, display bridge.Display, sinks Sinks, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{
		engine:    eng,
		source:    source,
		display:   display,
		sinks:     sinks,
		interval:  interval,
		sessionID: uuid.NewString(),
		logger:    logger,
		now:       time.Now,
	}
}

func (r *Runner) SessionID() string {
	return r.sessionID
}

// Run loops until ctx is cancelled, then resets the display to SAFE and
// returns nil. Per-cycle failures never end the loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.logger != nil {
		r.logger.Info("sampling loop started", "session_id", r.sessionID, "interval", r.interval.String())
	}
	for ctx.Err() == nil {
		r.step(ctx)
		if !sleep(ctx, r.interval) {
			break
		}
	}
	r.shutdown()
	return nil
}

func (r *Runner) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.display.SetDisplay(ctx, model.AlarmSafe.DisplayCode()); err != nil && r.logger != nil {
		r.logger.Warn("display reset failed", "err", err)
	}
	if r.logger != nil {
		r.logger.Info("sampling loop stopped", "session_id", r.sessionID)
	}
}

func (r *Runner) step(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			if r.logger != nil {
				r.logger.Error("cycle panicked", "panic", fmt.Sprint(p))
			}
			r.skip(SkipPanic)
		}
	}()

	sample, err := r.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		reason := SkipFetch
		if errors.Is(err, bridge.ErrMalformedSample) {
			reason = SkipMalformed
		}
		if r.logger != nil {
			r.logger.Warn("sample skipped", "reason", reason, "err", err)
		}
		r.skip(reason)
		return
	}
	if sample == nil {
		r.skip(SkipNoData)
		return
	}

	res := r.engine.Process(*sample, r.now())
	if r.sinks.Metrics != nil {
		r.sinks.Metrics.IncCycles()
	}
	if err := r.display.SetDisplay(ctx, res.DisplayCode); err != nil && r.logger != nil {
		r.logger.Warn("display update failed", "code", res.DisplayCode, "err", err)
	}
	if res.Reset {
		r.recalibrated(ctx, res.PreviousState)
	}

	if !res.Calibrated {
		r.sinks.Collectors.ObserveWarmup(res.Progress, res.Total)
		if r.sinks.Metrics != nil {
			r.sinks.Metrics.SetCalibration(res.JustCalibrated, res.Progress, res.Total, r.baseline())
		}
		return
	}

	if res.Drift != nil {
		r.sinks.Collectors.ObserveDrift(res.Drift.ToOhms)
		if r.sinks.Metrics != nil {
			st := r.sinks.Metrics.Status()
			r.sinks.Metrics.SetCalibration(true, st.Progress, st.Total, r.baseline())
		}
	}
	r.dispatch(ctx, *res.Record, res.PreviousState)
}

func (r *Runner) dispatch(ctx context.Context, rec model.OutputRecord, previous model.AlarmState) {
	if r.logger != nil {
		r.logger.Info("reading",
			"env", fmt.Sprintf("%.1fC %.1f%%", rec.TemperatureC, rec.HumidityPct),
			"voc", rec.VOC,
			"trend", rec.Trend,
			"predicted_voc", rec.PredictedVOC,
			"ai", rec.Status,
			"alarm_state", rec.AlarmState,
		)
	}

	if r.sinks.RecordLog != nil {
		if err := r.sinks.RecordLog.Append(rec); err != nil && r.logger != nil {
			r.logger.Warn("record log write failed", "path", r.sinks.RecordLog.Path(), "err", err)
		}
	}
	if r.sinks.Storage != nil {
		if err := r.sinks.Storage.SaveRecord(ctx, r.sessionID, rec); err != nil && r.logger != nil {
			r.logger.Warn("storage save failed", "err", err)
		}
	}
	if r.sinks.Metrics != nil {
		r.sinks.Metrics.Add(rec)
	}
	r.sinks.Collectors.ObserveRecord(rec)

	if rec.AlarmState != previous {
		r.transition(ctx, model.AlarmTransition{
			Timestamp: rec.Timestamp,
			From:      previous,
			To:        rec.AlarmState,
			VOC:       rec.VOC,
			ZScore:    rec.ZScore,
			EventName: rec.EventName,
			Status:    rec.Status,
		})
	}

	r.sinks.Dashboard.Sync(ctx, rec)
}

// recalibrated closes out the alarm state the engine discarded, so the
// transition history and gauges do not keep reporting it through warm-up.
func (r *Runner) recalibrated(ctx context.Context, previous model.AlarmState) {
	if r.sinks.Metrics != nil {
		r.sinks.Metrics.SetAlarmState(model.AlarmSafe)
	}
	if previous == model.AlarmSafe {
		return
	}
	r.transition(ctx, model.AlarmTransition{
		Timestamp: r.now().UTC(),
		From:      previous,
		To:        model.AlarmSafe,
		Status:    RecalibrationStatus,
	})
}

func (r *Runner) transition(ctx context.Context, tr model.AlarmTransition) {
	if r.logger != nil {
		r.logger.Warn("alarm state changed",
			"from", tr.From,
			"to", tr.To,
			"voc", tr.VOC,
			"status", tr.Status,
		)
	}
	if r.sinks.Alerts != nil {
		r.sinks.Alerts.Add(tr)
	}
	r.sinks.Collectors.ObserveTransition(tr.To)
	if r.sinks.Storage != nil {
		if err := r.sinks.Storage.SaveTransition(ctx, r.sessionID, tr); err != nil && r.logger != nil {
			r.logger.Warn("storage save failed", "err", err)
		}
	}
}

func (r *Runner) baseline() *model.Baseline {
	b, ok := r.engine.Baseline()
	if !ok {
		return nil
	}
	return &b
}

func (r *Runner) skip(reason string) {
	r.sinks.Collectors.ObserveSkip(reason)
	if r.sinks.Metrics != nil {
		r.sinks.Metrics.IncSkipped()
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
