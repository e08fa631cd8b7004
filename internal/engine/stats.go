package engine

import (
	"math"
	"time"

	"airguard/internal/model"
)

type TrendResult struct {
	Direction model.Trend
	Slope     float64
	Forecast  float64
}

type AnomalyResult struct {
	ZScore  float64
	Anomaly bool
}

// History holds the rolling VOC window shared by the trend forecaster and the
// z-score detector. Push must run once per calibrated cycle before either
// derived signal is read.
type History struct {
	window            *Window
	horizonSec        float64
	epsilon           float64
	trendMinSamples   int
	anomalyMinSamples int
}

func NewHistory(size int, horizon time.Duration, epsilon float64, trendMin, anomalyMin int) *History {
	return &History{
		window:            NewWindow(size),
		horizonSec:        horizon.Seconds(),
		epsilon:           epsilon,
		trendMinSamples:   trendMin,
		anomalyMinSamples: anomalyMin,
	}
}

func (h *History) Push(voc float64) {
	h.window.Add(voc)
}

func (h *History) Len() int {
	return h.window.Len()
}

func (h *History) Values() []float64 {
	return h.window.Values()
}

// Trend extrapolates the end-to-end slope of the window over the horizon.
// The slope is per sample; the loop runs at one sample per second so the
// horizon is applied in seconds.
func (h *History) Trend(current float64) TrendResult {
	n := h.window.Len()
	if n < h.trendMinSamples {
		return TrendResult{Direction: model.TrendStabilizing, Forecast: current}
	}
	slope := (h.window.Newest() - h.window.Oldest()) / float64(n)
	forecast := math.Max(0, current+slope*h.horizonSec)
	dir := model.TrendFlat
	switch {
	case slope > h.epsilon:
		dir = model.TrendRising
	case slope < -h.epsilon:
		dir = model.TrendFalling
	}
	return TrendResult{Direction: dir, Slope: slope, Forecast: forecast}
}

// ZScore scores current against the window's sample mean and sample standard
// deviation. A window of identical values scores zero.
func (h *History) ZScore(current float64, threshold float64) AnomalyResult {
	n := h.window.Len()
	if n < h.anomalyMinSamples || n < 2 {
		return AnomalyResult{}
	}
	values := h.window.Values()
	avg := mean(values)
	var ss float64
	for _, v := range values {
		d := v - avg
		ss += d * d
	}
	stdev := math.Sqrt(ss / float64(n-1))
	if stdev == 0 {
		return AnomalyResult{}
	}
	z := (current - avg) / stdev
	return AnomalyResult{ZScore: z, Anomaly: math.Abs(z) > threshold}
}
