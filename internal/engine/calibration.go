package engine

import "airguard/internal/model"

type CalibrationState int

const (
	WarmingUp CalibrationState = iota
	Calibrated
)

func (s CalibrationState) String() string {
	if s == Calibrated {
		return "CALIBRATED"
	}
	return "WARMING_UP"
}

// Calibrator accumulates the warm-up window and produces the baseline once.
// It never leaves the Calibrated state.
type Calibrator struct {
	steps        int
	state        CalibrationState
	resistances  []float64
	temperatures []float64
	humidities   []float64
	baseline     *model.Baseline
}

func NewCalibrator(steps int) *Calibrator {
	if steps <= 0 {
		steps = 25
	}
	return &Calibrator{
		steps:        steps,
		state:        WarmingUp,
		resistances:  make([]float64, 0, steps),
		temperatures: make([]float64, 0, steps),
		humidities:   make([]float64, 0, steps),
	}
}

// Add feeds one warm-up sample. It returns true on the call that completes
// calibration and false otherwise, including every call after completion.
func (c *Calibrator) Add(compensatedOhms, tempC, humidityProxy float64) bool {
	if c.state == Calibrated {
		return false
	}
	c.resistances = append(c.resistances, compensatedOhms)
	c.temperatures = append(c.temperatures, tempC)
	c.humidities = append(c.humidities, humidityProxy)
	if len(c.resistances) < c.steps {
		return false
	}
	c.baseline = &model.Baseline{
		ResistanceOhms: mean(c.resistances),
		TemperatureC:   mean(c.temperatures),
		HumidityProxy:  mean(c.humidities),
	}
	c.state = Calibrated
	return true
}

func (c *Calibrator) State() CalibrationState {
	return c.state
}

// Progress reports the number of accumulated samples and the target.
func (c *Calibrator) Progress() (int, int) {
	return len(c.resistances), c.steps
}

// Baseline is nil until calibration completes.
func (c *Calibrator) Baseline() *model.Baseline {
	return c.baseline
}
