package engine

import (
	"math"

	"airguard/internal/model"
	"airguard/internal/signatures"
)

type Match struct {
	Name     string
	Distance float64
}

// Classifier is a nearest-centroid matcher over a fixed, ordered signature
// set. Ties go to the signature that appears first.
type Classifier struct {
	signatures    []model.Signature
	humidityScale float64
	vocWeight     float64
}

func NewClassifier(sigs []model.Signature, humidityScale, vocWeight float64) *Classifier {
	if humidityScale <= 0 {
		humidityScale = 1
	}
	if vocWeight <= 0 {
		vocWeight = 1
	}
	if len(sigs) == 0 {
		sigs = signatures.Fallback()
	}
	own := make([]model.Signature, len(sigs))
	copy(own, sigs)
	return &Classifier{signatures: own, humidityScale: humidityScale, vocWeight: vocWeight}
}

// Classify builds the feature vector [Δtemperature, Δhumidity, voc] against
// the baseline and returns the closest signature.
func (c *Classifier) Classify(tempC, humidityProxy, voc float64, baseline model.Baseline) Match {
	features := [3]float64{
		tempC - baseline.TemperatureC,
		(humidityProxy - baseline.HumidityProxy) * c.humidityScale,
		voc,
	}
	return c.Nearest(features)
}

func (c *Classifier) Nearest(features [3]float64) Match {
	best := Match{Distance: math.Inf(1)}
	for _, sig := range c.signatures {
		d := c.distance(features, sig.Vector)
		if d < best.Distance {
			best = Match{Name: sig.Name, Distance: d}
		}
	}
	return best
}

func (c *Classifier) distance(features, ref [3]float64) float64 {
	dt := features[0] - ref[0]
	dh := features[1] - ref[1]
	dv := (features[2] - ref[2]) * c.vocWeight
	return math.Sqrt(dt*dt + dh*dh + dv*dv)
}

func (c *Classifier) Signatures() []model.Signature {
	out := make([]model.Signature, len(c.signatures))
	copy(out, c.signatures)
	return out
}
