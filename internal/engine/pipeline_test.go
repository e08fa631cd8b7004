package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airguard/internal/config"
	"airguard/internal/model"
)

func TestEstimateVOCFloorAtOrAboveBaseline(t *testing.T) {
	for _, r := range []float64{10000, 10000.5, 20000, 1e9} {
		assert.Equal(t, VOCFloor, EstimateVOC(r, 10000), "r=%v", r)
	}
	assert.Equal(t, VOCFloor, EstimateVOC(5000, 0), "unset baseline")
}

func TestEstimateVOCStrictlyDecreasingBelowBaseline(t *testing.T) {
	prev := math.Inf(1)
	for r := 500.0; r < 10000; r += 500 {
		v := EstimateVOC(r, 10000)
		assert.Less(t, v, prev, "r=%v", r)
		prev = v
	}
	assert.Equal(t, 0.2, EstimateVOC(5000, 10000))
	assert.Equal(t, 0.3, EstimateVOC(10000.0/3, 10000))
}

func TestCompensateRelative(t *testing.T) {
	c := NewCompensator(config.DefaultConfig().Humidity)
	comp, proxy := c.Compensate(10000, 22, 50, nil)
	assert.InDelta(t, 10000*(1+0.017*10), comp, 1e-9)
	assert.Equal(t, 50.0, proxy)

	comp, _ = c.Compensate(10000, 22, 0, nil)
	assert.Equal(t, 10000.0, comp, "zero humidity is a sensor fault")
}

func TestCompensateAbsolute(t *testing.T) {
	cfg := config.DefaultConfig().Humidity
	cfg.Model = config.HumidityAbsolute
	c := NewCompensator(cfg)

	ah := AbsoluteHumidity(20, 50)
	// ~8.6 g/m³ at 20°C and 50% RH
	assert.InDelta(t, 8.63, ah, 0.05)

	comp, proxy := c.Compensate(10000, 20, 50, nil)
	assert.Equal(t, 10000.0, comp, "raw until a baseline exists")
	assert.Equal(t, ah, proxy)

	b := &model.Baseline{ResistanceOhms: 10000, HumidityProxy: ah - 2}
	comp, _ = c.Compensate(10000, 20, 50, b)
	assert.InDelta(t, 10000*(1+0.025*2), comp, 1e-6)
}

func TestCalibratorTransitionsOnce(t *testing.T) {
	c := NewCalibrator(4)
	values := []float64{100, 200, 300, 400}
	for i, v := range values {
		done := c.Add(v, 20+float64(i), 40)
		assert.Equal(t, i == 3, done)
	}
	require.Equal(t, Calibrated, c.State())
	assert.InDelta(t, 250, c.Baseline().ResistanceOhms, 1e-9)
	assert.InDelta(t, 21.5, c.Baseline().TemperatureC, 1e-9)
	assert.InDelta(t, 40, c.Baseline().HumidityProxy, 1e-9)

	assert.False(t, c.Add(1000, 20, 40), "calibration completes exactly once")
	assert.InDelta(t, 250, c.Baseline().ResistanceOhms, 1e-9)
	count, total := c.Progress()
	assert.Equal(t, 4, count)
	assert.Equal(t, 4, total)
}

func TestWindowBoundAndOrder(t *testing.T) {
	w := NewWindow(5)
	for i := 1; i <= 12; i++ {
		w.Add(float64(i))
		require.LessOrEqual(t, w.Len(), 5)
	}
	assert.Equal(t, []float64{8, 9, 10, 11, 12}, w.Values())
	assert.Equal(t, 8.0, w.Oldest())
	assert.Equal(t, 12.0, w.Newest())
	assert.Equal(t, 12.0, w.Max())
	assert.True(t, w.Full())
}

func TestWindowPartial(t *testing.T) {
	w := NewWindow(5)
	w.Add(3)
	w.Add(1)
	assert.Equal(t, []float64{3, 1}, w.Values())
	assert.False(t, w.Full())
	assert.Equal(t, 3.0, w.Max())
}

func newTestHistory() *History {
	return NewHistory(20, 30*time.Second, 0.005, 5, 10)
}

func TestTrendDirections(t *testing.T) {
	cases := []struct {
		name string
		next func(i int) float64
		want model.Trend
	}{
		{"rising", func(i int) float64 { return 0.1 + 0.05*float64(i) }, model.TrendRising},
		{"falling", func(i int) float64 { return 1.0 - 0.05*float64(i) }, model.TrendFalling},
		{"flat", func(int) float64 { return 0.1 }, model.TrendFlat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHistory()
			var res TrendResult
			for i := 0; i < 6; i++ {
				v := tc.next(i)
				h.Push(v)
				res = h.Trend(v)
			}
			assert.Equal(t, tc.want, res.Direction)
			assert.GreaterOrEqual(t, res.Forecast, 0.0)
		})
	}
}

func TestTrendStabilizingBelowMinimum(t *testing.T) {
	h := newTestHistory()
	for i := 0; i < 4; i++ {
		h.Push(float64(i))
	}
	res := h.Trend(3)
	assert.Equal(t, model.TrendStabilizing, res.Direction)
	assert.Equal(t, 0.0, res.Slope)
}

func TestTrendForecastClampedNonNegative(t *testing.T) {
	h := newTestHistory()
	for _, v := range []float64{1.0, 0.8, 0.6, 0.4, 0.2} {
		h.Push(v)
	}
	res := h.Trend(0.2)
	assert.Equal(t, model.TrendFalling, res.Direction)
	assert.Equal(t, 0.0, res.Forecast)
}

func TestZScoreOutlier(t *testing.T) {
	h := newTestHistory()
	for i := 0; i < 10; i++ {
		h.Push(0.1)
		assert.Equal(t, AnomalyResult{}, h.ZScore(0.1, 3.0), "identical values score zero")
	}
	h.Push(5.0)
	res := h.ZScore(5.0, 3.0)
	assert.Greater(t, math.Abs(res.ZScore), 3.0)
	assert.True(t, res.Anomaly)
}

func TestZScoreNeedsTenSamples(t *testing.T) {
	h := newTestHistory()
	for i := 0; i < 8; i++ {
		h.Push(0.1)
	}
	h.Push(9)
	assert.Equal(t, AnomalyResult{}, h.ZScore(9, 3.0))
}

func TestClassifierExactMatch(t *testing.T) {
	c := NewClassifier([]model.Signature{{Name: "Normal Air", Vector: [3]float64{0, 0, 0.1}}}, 1, 1)
	m := c.Nearest([3]float64{0, 0, 0.1})
	assert.Equal(t, "Normal Air", m.Name)
	assert.Equal(t, 0.0, m.Distance)
}

func TestClassifierTieGoesToFirst(t *testing.T) {
	c := NewClassifier([]model.Signature{
		{Name: "A", Vector: [3]float64{1, 0, 0}},
		{Name: "B", Vector: [3]float64{-1, 0, 0}},
	}, 1, 1)
	assert.Equal(t, "A", c.Nearest([3]float64{0, 0, 0}).Name)
}

func TestClassifierUsesBaselineDeltas(t *testing.T) {
	c := NewClassifier([]model.Signature{
		{Name: "Normal Air", Vector: [3]float64{0, 0, 0.1}},
		{Name: "Shower", Vector: [3]float64{1, 20, 0.1}},
	}, 1, 1)
	m := c.Classify(23, 60, 0.1, model.Baseline{TemperatureC: 22, HumidityProxy: 40})
	assert.Equal(t, "Shower", m.Name)
	assert.InDelta(t, 0, m.Distance, 1e-9)
}

func TestClassifierVOCWeight(t *testing.T) {
	sigs := []model.Signature{
		{Name: "Normal Air", Vector: [3]float64{0, 0, 0.1}},
		{Name: "Solvent", Vector: [3]float64{1, 0, 0.5}},
	}
	// unweighted, the temperature axis dominates
	assert.Equal(t, "Normal Air", NewClassifier(sigs, 1, 1).Nearest([3]float64{0, 0, 0.45}).Name)
	assert.Equal(t, "Solvent", NewClassifier(sigs, 1, 50).Nearest([3]float64{0, 0, 0.45}).Name)
}

func TestClassifierEmptySetUsesFallback(t *testing.T) {
	c := NewClassifier(nil, 1, 1)
	require.Len(t, c.Signatures(), 1)
	assert.Equal(t, "Normal Air", c.Nearest([3]float64{0, 0, 0.1}).Name)
}

func testThresholds() PolicyThresholds {
	return PolicyThresholds{AlarmHigh: 0.45, AlarmLow: 0.25, ZThreshold: 3, MatchThreshold: 2.5, NominalName: "Normal Air"}
}

func TestAlarmHysteresis(t *testing.T) {
	p := NewAlarmPolicy()
	th := testThresholds()
	far := Match{Name: "Normal Air", Distance: 10}

	assert.Equal(t, model.AlarmSafe, p.Evaluate(th, Signals{VOC: 0.4, Match: far}).State)
	assert.Equal(t, model.AlarmAlarm, p.Evaluate(th, Signals{VOC: 0.46, Match: far}).State)
	for _, v := range []float64{0.44, 0.3, 0.26, 0.25} {
		assert.Equal(t, model.AlarmAlarm, p.Evaluate(th, Signals{VOC: v, Match: far}).State, "voc=%v", v)
	}
	assert.Equal(t, model.AlarmSafe, p.Evaluate(th, Signals{VOC: 0.24, Match: far}).State)
	assert.Equal(t, model.AlarmSafe, p.Evaluate(th, Signals{VOC: 0.44, Match: far}).State, "band does not engage")
}

func TestAlarmWarningSources(t *testing.T) {
	th := testThresholds()

	p := NewAlarmPolicy()
	d := p.Evaluate(th, Signals{VOC: 0.2, Anomaly: AnomalyResult{ZScore: 3.5, Anomaly: true}, Match: Match{Name: "Normal Air", Distance: 5}})
	assert.Equal(t, model.AlarmWarning, d.State)
	assert.Contains(t, d.Status, "Anomaly")

	p = NewAlarmPolicy()
	d = p.Evaluate(th, Signals{VOC: 0.2, Match: Match{Name: "Cooking", Distance: 1}})
	assert.Equal(t, model.AlarmWarning, d.State)
	assert.True(t, d.Matched)
	assert.Equal(t, "DETECTED: Cooking!", d.Status)

	p = NewAlarmPolicy()
	d = p.Evaluate(th, Signals{VOC: 0.2, Match: Match{Name: "Cooking", Distance: 3}})
	assert.Equal(t, model.AlarmSafe, d.State)
	assert.False(t, d.Matched)
	assert.Equal(t, "Clean (Closest: Cooking)", d.Status)
}

func TestAlarmTakesPrecedenceButMessageEscalates(t *testing.T) {
	p := NewAlarmPolicy()
	d := p.Evaluate(testThresholds(), Signals{
		VOC:     0.6,
		Anomaly: AnomalyResult{ZScore: 4, Anomaly: true},
		Match:   Match{Name: "Smoke", Distance: 0.5},
	})
	assert.Equal(t, model.AlarmAlarm, d.State)
	assert.Equal(t, "DETECTED: Smoke!", d.Status)
	assert.Equal(t, "2", d.State.DisplayCode())
}

func TestDriftOnlyRaisesBaseline(t *testing.T) {
	d := NewDriftCorrector(10, 0.01, 50)
	b := &model.Baseline{ResistanceOhms: 10000}
	// all below baseline: no correction
	for i := 0; i < 10; i++ {
		d.Observe(9000, b)
	}
	assert.Equal(t, 10000.0, b.ResistanceOhms)

	// tail above baseline
	prev := b.ResistanceOhms
	var notices int
	for i := 0; i < 50; i++ {
		if _, ok := d.Observe(11000, b); ok {
			notices++
		}
		require.GreaterOrEqual(t, b.ResistanceOhms, prev)
		prev = b.ResistanceOhms
	}
	assert.Greater(t, b.ResistanceOhms, 10000.0)
	assert.Less(t, b.ResistanceOhms, 11000.0)
	assert.Positive(t, notices)

	// back to polluted air: baseline holds while the clean tail is in the window, never drops
	for i := 0; i < 50; i++ {
		d.Observe(5000, b)
		require.GreaterOrEqual(t, b.ResistanceOhms, prev)
		prev = b.ResistanceOhms
	}
}

func TestDriftWaitsForFullWindow(t *testing.T) {
	d := NewDriftCorrector(10, 0.01, 50)
	b := &model.Baseline{ResistanceOhms: 10000}
	for i := 0; i < 9; i++ {
		d.Observe(20000, b)
	}
	assert.Equal(t, 10000.0, b.ResistanceOhms)
	d.Observe(20000, b)
	assert.InDelta(t, 10100, b.ResistanceOhms, 1e-9)
}

func TestSmootherSeedsWithFirstValue(t *testing.T) {
	s := NewSmoother(0.7)
	assert.Equal(t, 100.0, s.Next(100))
	assert.InDelta(t, 0.7*100+0.3*200, s.Next(200), 1e-9)
}
