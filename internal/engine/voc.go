package engine

import (
	"math"

	"airguard/internal/model"
)

// VOCFloor is the index reported for air at or cleaner than the baseline.
const VOCFloor = model.VOCFloor

const minResistanceOhms = 1.0

// EstimateVOC converts compensated resistance into a unit-less VOC index:
// 0.1 times the baseline-to-resistance ratio, rounded to three decimals.
// Halving the resistance yields 0.2, a third yields 0.3. The index is a
// monotonic proxy, not a calibrated concentration.
func EstimateVOC(compensatedOhms, baselineOhms float64) float64 {
	if baselineOhms <= 0 {
		return VOCFloor
	}
	if compensatedOhms >= baselineOhms {
		return VOCFloor
	}
	if compensatedOhms < minResistanceOhms {
		compensatedOhms = minResistanceOhms
	}
	return roundTo(VOCFloor*baselineOhms/compensatedOhms, 3)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
