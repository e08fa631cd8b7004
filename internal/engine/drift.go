package engine

import "airguard/internal/model"

// DriftNotice describes an accumulated baseline shift large enough to report.
type DriftNotice struct {
	FromOhms float64
	ToOhms   float64
}

// DriftCorrector tracks the cleanest recent resistance over a long window and
// raises the baseline resistance toward it. It never lowers the baseline.
type DriftCorrector struct {
	window          *Window
	blend           float64
	reportThreshold float64
	reportedAt      float64
}

func NewDriftCorrector(window int, blend, reportThreshold float64) *DriftCorrector {
	return &DriftCorrector{
		window:          NewWindow(window),
		blend:           blend,
		reportThreshold: reportThreshold,
	}
}

// Observe records compensatedOhms and, once the window is full, nudges
// baseline.ResistanceOhms toward the window maximum when that maximum is
// higher. A notice is returned once the shift since the last notice exceeds
// the report threshold.
func (d *DriftCorrector) Observe(compensatedOhms float64, baseline *model.Baseline) (DriftNotice, bool) {
	d.window.Add(compensatedOhms)
	if baseline == nil {
		return DriftNotice{}, false
	}
	if d.reportedAt == 0 {
		d.reportedAt = baseline.ResistanceOhms
	}
	if !d.window.Full() {
		return DriftNotice{}, false
	}
	localMax := d.window.Max()
	if localMax <= baseline.ResistanceOhms {
		return DriftNotice{}, false
	}
	baseline.ResistanceOhms = (1-d.blend)*baseline.ResistanceOhms + d.blend*localMax
	if d.reportThreshold > 0 && baseline.ResistanceOhms-d.reportedAt > d.reportThreshold {
		notice := DriftNotice{FromOhms: d.reportedAt, ToOhms: baseline.ResistanceOhms}
		d.reportedAt = baseline.ResistanceOhms
		return notice, true
	}
	return DriftNotice{}, false
}

func (d *DriftCorrector) Filled() int {
	return d.window.Len()
}
