package metrics

import (
	"sync"
	"time"

	"airguard/internal/model"
	"airguard/internal/ring"
)

// Status is the engine-side state mirrored for readers outside the sampling
// loop.
type Status struct {
	Calibrated bool             `json:"calibrated"`
	Progress   int              `json:"progress"`
	Total      int              `json:"total"`
	Baseline   *model.Baseline  `json:"baseline,omitempty"`
	AlarmState model.AlarmState `json:"alarm_state"`
	Cycles     uint64           `json:"cycles"`
	Skipped    uint64           `json:"skipped"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Store keeps the most recent output records in a bounded ring, oldest
// first, plus the latest engine status.
type Store struct {
	mu     sync.RWMutex
	buf    *ring.Buffer[model.OutputRecord]
	status Status
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{buf: ring.New[model.OutputRecord](limit), status: Status{AlarmState: model.AlarmSafe}}
}

func (s *Store) Add(rec model.OutputRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.AlarmState = rec.AlarmState
	s.status.UpdatedAt = time.Now().UTC()
	s.buf.Push(rec)
}

func (s *Store) Latest() (model.OutputRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Last()
}

// List returns up to limit of the newest records in chronological order.
func (s *Store) List(limit int) []model.OutputRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Tail(limit)
}

func (s *Store) SetCalibration(calibrated bool, progress, total int, baseline *model.Baseline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Calibrated = calibrated
	s.status.Progress = progress
	s.status.Total = total
	if baseline != nil {
		b := *baseline
		s.status.Baseline = &b
	} else {
		s.status.Baseline = nil
	}
	s.status.UpdatedAt = time.Now().UTC()
}

// SetAlarmState records a state change that did not come with a record,
// such as the reset to SAFE on recalibration.
func (s *Store) SetAlarmState(state model.AlarmState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.AlarmState = state
	s.status.UpdatedAt = time.Now().UTC()
}

func (s *Store) IncCycles() {
	s.mu.Lock()
	s.status.Cycles++
	s.mu.Unlock()
}

func (s *Store) IncSkipped() {
	s.mu.Lock()
	s.status.Skipped++
	s.mu.Unlock()
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	if st.Baseline != nil {
		b := *st.Baseline
		st.Baseline = &b
	}
	return st
}

// Clear drops buffered records. Calibration status and counters survive.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Clear()
}
