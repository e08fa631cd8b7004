package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"airguard/internal/model"
)

const namespace = "airguard"

// Collectors are the Prometheus series exported on /metrics. They live on a
// private registry so tests and multiple instances do not collide.
type Collectors struct {
	Registry *prometheus.Registry

	voc                 prometheus.Gauge
	predictedVOC        prometheus.Gauge
	zScore              prometheus.Gauge
	alarmState          prometheus.Gauge
	calibrationProgress prometheus.Gauge
	baselineOhms        prometheus.Gauge
	cycles              prometheus.Counter
	skipped             *prometheus.CounterVec
	driftCorrections    prometheus.Counter
	transitions         *prometheus.CounterVec
	detections          *prometheus.CounterVec
}

func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collectors{
		Registry: reg,
		voc: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voc_index",
			Help:      "Latest VOC index (baseline/compensated ratio scaled to 0.1 in clean air).",
		}),
		predictedVOC: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voc_index_predicted",
			Help:      "VOC index forecast at the trend horizon.",
		}),
		zScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voc_zscore",
			Help:      "Z-score of the latest VOC against the history window.",
		}),
		alarmState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_state",
			Help:      "Alarm state: 0 safe, 1 warning, 2 alarm.",
		}),
		calibrationProgress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_progress_ratio",
			Help:      "Fraction of warm-up samples collected.",
		}),
		baselineOhms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_resistance_ohms",
			Help:      "Current clean-air baseline resistance.",
		}),
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Samples processed by the engine.",
		}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Cycles skipped before reaching the engine.",
		}, []string{"reason"}),
		driftCorrections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_corrections_total",
			Help:      "Reported upward baseline drift corrections.",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_transitions_total",
			Help:      "Alarm state changes by destination state.",
		}, []string{"to"}),
		detections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Confident classifier matches by signature name.",
		}, []string{"event"}),
	}
}

func alarmValue(s model.AlarmState) float64 {
	switch s {
	case model.AlarmWarning:
		return 1
	case model.AlarmAlarm:
		return 2
	default:
		return 0
	}
}

func (c *Collectors) ObserveRecord(rec model.OutputRecord) {
	if c == nil {
		return
	}
	c.cycles.Inc()
	c.voc.Set(rec.VOC)
	c.predictedVOC.Set(rec.PredictedVOC)
	c.zScore.Set(rec.ZScore)
	c.alarmState.Set(alarmValue(rec.AlarmState))
	c.baselineOhms.Set(rec.BaselineOhms)
	if rec.Matched {
		c.detections.WithLabelValues(rec.EventName).Inc()
	}
}

func (c *Collectors) ObserveWarmup(progress, total int) {
	if c == nil {
		return
	}
	c.cycles.Inc()
	if total > 0 {
		c.calibrationProgress.Set(float64(progress) / float64(total))
	}
}

func (c *Collectors) ObserveSkip(reason string) {
	if c == nil {
		return
	}
	c.skipped.WithLabelValues(reason).Inc()
}

func (c *Collectors) ObserveDrift(toOhms float64) {
	if c == nil {
		return
	}
	c.driftCorrections.Inc()
	c.baselineOhms.Set(toOhms)
}

func (c *Collectors) ObserveTransition(to model.AlarmState) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(string(to)).Inc()
	c.alarmState.Set(alarmValue(to))
}
