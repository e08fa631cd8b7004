package engine

import (
	"fmt"

	"airguard/internal/model"
)

// PolicyThresholds are the hot-reloadable knobs of the alarm policy.
type PolicyThresholds struct {
	AlarmHigh      float64
	AlarmLow       float64
	ZThreshold     float64
	MatchThreshold float64
	NominalName    string
}

// Signals are the per-cycle inputs to the alarm policy.
type Signals struct {
	VOC     float64
	Anomaly AnomalyResult
	Match   Match
}

type Decision struct {
	State   model.AlarmState
	Matched bool
	Status  string
}

type alarmRule struct {
	state model.AlarmState
	when  func(p *AlarmPolicy, t PolicyThresholds, s Signals) bool
}

// alarmRules is evaluated top to bottom; the first rule that holds decides
// the state.
var alarmRules = []alarmRule{
	{model.AlarmAlarm, func(p *AlarmPolicy, t PolicyThresholds, s Signals) bool {
		return p.state == model.AlarmAlarm && s.VOC >= t.AlarmLow
	}},
	{model.AlarmAlarm, func(_ *AlarmPolicy, t PolicyThresholds, s Signals) bool {
		return s.VOC > t.AlarmHigh
	}},
	{model.AlarmWarning, func(_ *AlarmPolicy, _ PolicyThresholds, s Signals) bool {
		return s.Anomaly.Anomaly
	}},
	{model.AlarmWarning, func(_ *AlarmPolicy, t PolicyThresholds, s Signals) bool {
		return confidentMatch(t, s.Match) && s.Match.Name != t.NominalName
	}},
	{model.AlarmSafe, func(*AlarmPolicy, PolicyThresholds, Signals) bool {
		return true
	}},
}

// AlarmPolicy is the hysteresis state machine over SAFE, WARNING and ALARM.
// ALARM is held until VOC drops strictly below the low threshold.
type AlarmPolicy struct {
	state model.AlarmState
}

func NewAlarmPolicy() *AlarmPolicy {
	return &AlarmPolicy{state: model.AlarmSafe}
}

func (p *AlarmPolicy) State() model.AlarmState {
	return p.state
}

func (p *AlarmPolicy) Evaluate(t PolicyThresholds, s Signals) Decision {
	next := model.AlarmSafe
	for _, r := range alarmRules {
		if r.when(p, t, s) {
			next = r.state
			break
		}
	}
	p.state = next
	matched := confidentMatch(t, s.Match)
	return Decision{State: next, Matched: matched, Status: statusMessage(t, s, next, matched)}
}

func confidentMatch(t PolicyThresholds, m Match) bool {
	return m.Name != "" && m.Distance < t.MatchThreshold
}

func statusMessage(t PolicyThresholds, s Signals, state model.AlarmState, matched bool) string {
	switch {
	case matched && s.Match.Name != t.NominalName:
		return fmt.Sprintf("DETECTED: %s!", s.Match.Name)
	case state == model.AlarmAlarm:
		return fmt.Sprintf("High VOC (Closest: %s)", s.Match.Name)
	case s.Anomaly.Anomaly:
		return fmt.Sprintf("Anomaly z=%.2f (Closest: %s)", s.Anomaly.ZScore, s.Match.Name)
	case matched:
		return s.Match.Name
	default:
		return fmt.Sprintf("Clean (Closest: %s)", s.Match.Name)
	}
}
