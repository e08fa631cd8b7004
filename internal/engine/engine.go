package engine

import (
	"log/slog"
	"sync/atomic"
	"time"

	"airguard/internal/config"
	"airguard/internal/model"
)

// WarmupDisplayCode is the neutral face shown while the baseline is learned.
const WarmupDisplayCode = "1"

// Engine runs the inference pipeline for one gas channel. It owns all
// pipeline state and is driven by a single goroutine through Process; only
// the policy thresholds may be swapped concurrently via UpdatePolicy, and a
// recalibration may be requested from any goroutine.
type Engine struct {
	logger      *slog.Logger
	cfg         *config.Config
	sigs        []model.Signature
	policy      atomic.Value
	recalibrate atomic.Bool
	smoother    *Smoother
	compensator *Compensator
	calibrator  *Calibrator
	drift       *DriftCorrector
	history     *History
	classifier  *Classifier
	alarm       *AlarmPolicy
}

// Result is the outcome of one cycle. Record is nil while warming up. Reset
// is set on the cycle that applied a recalibration request; PreviousState
// then holds the alarm state that was discarded.
type Result struct {
	Calibrated     bool
	JustCalibrated bool
	Reset          bool
	Progress       int
	Total          int
	DisplayCode    string
	PreviousState  model.AlarmState
	Record         *model.OutputRecord
	Drift          *DriftNotice
}

func NewEngine(cfg *config.Config, sigs []model.Signature, logger *slog.Logger) *Engine {
	e := &Engine{logger: logger, cfg: cfg, sigs: sigs}
	e.build()
	e.UpdatePolicy(cfg)
	return e
}

func (e *Engine) build() {
	cfg := e.cfg
	e.compensator = NewCompensator(cfg.Humidity)
	e.calibrator = NewCalibrator(cfg.Calibration.Steps)
	e.history = NewHistory(cfg.History.Size, cfg.History.Horizon, cfg.History.TrendEpsilon,
		cfg.History.TrendMinSamples, cfg.History.AnomalyMinSamples)
	e.classifier = NewClassifier(e.sigs, cfg.Classifier.HumidityScale, cfg.Classifier.VOCWeight)
	e.alarm = NewAlarmPolicy()
	e.smoother = nil
	if cfg.Calibration.Smoothing {
		e.smoother = NewSmoother(cfg.Calibration.SmoothingAlpha)
	}
	e.drift = nil
	if cfg.Drift.Enabled {
		e.drift = NewDriftCorrector(cfg.Drift.Window, cfg.Drift.Blend, cfg.Drift.ReportThresholdOhms)
	}
}

// Recalibrate discards the baseline and all rolling state before the next
// cycle, which then starts a fresh warm-up.
func (e *Engine) Recalibrate() {
	e.recalibrate.Store(true)
}

// UpdatePolicy swaps the alarm and match thresholds. Structural parameters
// (window sizes, calibration length, humidity model) keep their construction
// values.
func (e *Engine) UpdatePolicy(cfg *config.Config) {
	e.policy.Store(PolicyThresholds{
		AlarmHigh:      cfg.Alarm.High,
		AlarmLow:       cfg.Alarm.Low,
		ZThreshold:     cfg.Alarm.ZThreshold,
		MatchThreshold: cfg.Classifier.MatchThreshold,
		NominalName:    cfg.Classifier.NominalName,
	})
}

func (e *Engine) thresholds() PolicyThresholds {
	return e.policy.Load().(PolicyThresholds)
}

func (e *Engine) Process(s model.Sample, now time.Time) Result {
	reset := false
	previous := e.alarm.State()
	if e.recalibrate.CompareAndSwap(true, false) {
		e.build()
		reset = true
		if e.logger != nil {
			e.logger.Info("recalibration started", "previous_alarm_state", previous)
		}
	}
	raw := s.GasOhms
	filtered := raw
	if e.smoother != nil {
		filtered = e.smoother.Next(raw)
	}
	baseline := e.calibrator.Baseline()
	comp, humProxy := e.compensator.Compensate(filtered, s.TemperatureC, s.HumidityPct, baseline)

	if e.calibrator.State() != Calibrated {
		done := e.calibrator.Add(comp, s.TemperatureC, humProxy)
		count, total := e.calibrator.Progress()
		if e.logger != nil {
			e.logger.Info("warmup", "count", count, "total", total)
		}
		if done {
			b := e.calibrator.Baseline()
			if e.logger != nil {
				e.logger.Info("baseline set",
					"resistance_ohms", b.ResistanceOhms,
					"temperature_c", b.TemperatureC,
					"humidity_proxy", b.HumidityProxy,
				)
			}
		}
		return Result{
			JustCalibrated: done,
			Reset:          reset,
			Progress:       count,
			Total:          total,
			DisplayCode:    WarmupDisplayCode,
			PreviousState:  previous,
		}
	}

	res := Result{Calibrated: true, PreviousState: previous}
	if e.drift != nil {
		if notice, ok := e.drift.Observe(comp, baseline); ok {
			res.Drift = &notice
			if e.logger != nil {
				e.logger.Info("baseline drift corrected",
					"from_ohms", notice.FromOhms,
					"to_ohms", notice.ToOhms,
				)
			}
		}
	}

	t := e.thresholds()
	voc := EstimateVOC(comp, baseline.ResistanceOhms)
	e.history.Push(voc)
	trend := e.history.Trend(voc)
	anomaly := e.history.ZScore(voc, t.ZThreshold)
	match := e.classifier.Classify(s.TemperatureC, humProxy, voc, *baseline)
	decision := e.alarm.Evaluate(t, Signals{VOC: voc, Anomaly: anomaly, Match: match})

	res.DisplayCode = decision.State.DisplayCode()
	res.Record = &model.OutputRecord{
		Timestamp:          now.UTC(),
		TemperatureC:       s.TemperatureC,
		HumidityPct:        s.HumidityPct,
		PressureHPa:        s.PressureHPa,
		RawOhms:            raw,
		CompensatedOhms:    comp,
		BaselineOhms:       baseline.ResistanceOhms,
		VOC:                voc,
		EventName:          match.Name,
		ClassifierDistance: match.Distance,
		Matched:            decision.Matched,
		Trend:              trend.Direction,
		PredictedVOC:       trend.Forecast,
		ZScore:             anomaly.ZScore,
		Anomaly:            anomaly.Anomaly,
		AlarmState:         decision.State,
		Status:             decision.Status,
	}
	return res
}

func (e *Engine) CalibrationState() CalibrationState {
	return e.calibrator.State()
}

// Baseline returns a copy of the current baseline once calibrated.
func (e *Engine) Baseline() (model.Baseline, bool) {
	b := e.calibrator.Baseline()
	if b == nil {
		return model.Baseline{}, false
	}
	return *b, true
}

func (e *Engine) AlarmState() model.AlarmState {
	return e.alarm.State()
}

func (e *Engine) Signatures() []model.Signature {
	return e.classifier.Signatures()
}
