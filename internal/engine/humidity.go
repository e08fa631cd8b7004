package engine

import (
	"math"

	"airguard/internal/config"
	"airguard/internal/model"
)

// Compensator removes humidity bias from raw gas resistance. The model is
// fixed at construction; the relative and absolute variants are never mixed
// within a run.
type Compensator struct {
	model       string
	k           float64
	referencePc float64
	kAbs        float64
}

func NewCompensator(cfg config.HumidityConfig) *Compensator {
	return &Compensator{
		model:       cfg.Model,
		k:           cfg.Coefficient,
		referencePc: cfg.ReferencePct,
		kAbs:        cfg.AbsoluteCoefficient,
	}
}

// Compensate returns the corrected resistance and the humidity proxy the rest
// of the pipeline compares against the baseline: relative humidity for the
// relative model, absolute humidity in g/m³ for the absolute model.
// baseline is nil until calibration completes.
func (c *Compensator) Compensate(rawOhms, tempC, humidityPct float64, baseline *model.Baseline) (float64, float64) {
	if c.model == config.HumidityAbsolute {
		ah := AbsoluteHumidity(tempC, humidityPct)
		if baseline == nil {
			return rawOhms, ah
		}
		return rawOhms * (1 + c.kAbs*(ah-baseline.HumidityProxy)), ah
	}
	// zero humidity means the sensor is faulty
	if humidityPct == 0 {
		return rawOhms, humidityPct
	}
	return rawOhms * (1 + c.k*(humidityPct-c.referencePc)), humidityPct
}

// AbsoluteHumidity converts relative humidity to g/m³ via the Magnus formula.
func AbsoluteHumidity(tempC, humidityPct float64) float64 {
	es := 6.112 * math.Exp(17.67*tempC/(tempC+243.5))
	vp := humidityPct / 100 * es
	return vp * 216.7 / (tempC + 273.15)
}

// Smoother is a first-order exponential filter. The first value seeds it.
type Smoother struct {
	alpha  float64
	value  float64
	seeded bool
}

func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: alpha}
}

func (s *Smoother) Next(raw float64) float64 {
	if !s.seeded {
		s.value = raw
		s.seeded = true
		return raw
	}
	s.value = s.alpha*s.value + (1-s.alpha)*raw
	return s.value
}
