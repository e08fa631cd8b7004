package model

import "time"

type AlarmState string

const (
	AlarmSafe    AlarmState = "SAFE"
	AlarmWarning AlarmState = "WARNING"
	AlarmAlarm   AlarmState = "ALARM"
)

// DisplayCode is the face command sent to the bridge for the state.
func (s AlarmState) DisplayCode() string {
	switch s {
	case AlarmWarning:
		return "1"
	case AlarmAlarm:
		return "2"
	default:
		return "0"
	}
}

// VOCFloor is the lowest VOC index ever reported: air at or cleaner than the
// baseline.
const VOCFloor = 0.1

type Trend string

const (
	TrendStabilizing Trend = "Stabilizing"
	TrendRising      Trend = "RISING"
	TrendFalling     Trend = "FALLING"
	TrendFlat        Trend = "FLAT"
)

type Sample struct {
	GasOhms      float64 `json:"gas"`
	TemperatureC float64 `json:"temp"`
	HumidityPct  float64 `json:"hum"`
	PressureHPa  float64 `json:"press"`
}

type Baseline struct {
	ResistanceOhms float64 `json:"resistance_ohms"`
	TemperatureC   float64 `json:"temperature_c"`
	HumidityProxy  float64 `json:"humidity_proxy"`
}

type Signature struct {
	Name   string     `json:"name"`
	Vector [3]float64 `json:"vector"`
}

type OutputRecord struct {
	Timestamp          time.Time  `json:"timestamp"`
	TemperatureC       float64    `json:"temperature_c"`
	HumidityPct        float64    `json:"humidity_pct"`
	PressureHPa        float64    `json:"pressure_hpa"`
	RawOhms            float64    `json:"raw_ohms"`
	CompensatedOhms    float64    `json:"compensated_ohms"`
	BaselineOhms       float64    `json:"baseline_ohms"`
	VOC                float64    `json:"voc"`
	EventName          string     `json:"event_name"`
	ClassifierDistance float64    `json:"classifier_distance"`
	Matched            bool       `json:"matched"`
	Trend              Trend      `json:"trend_direction"`
	PredictedVOC       float64    `json:"predicted_voc"`
	ZScore             float64    `json:"z_score"`
	Anomaly            bool       `json:"anomaly"`
	AlarmState         AlarmState `json:"alarm_state"`
	Status             string     `json:"status"`
}

type AlarmTransition struct {
	Timestamp time.Time  `json:"timestamp"`
	From      AlarmState `json:"from"`
	To        AlarmState `json:"to"`
	VOC       float64    `json:"voc"`
	ZScore    float64    `json:"z_score"`
	EventName string     `json:"event_name"`
	Status    string     `json:"status"`
}
