package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airguard/internal/model"
)

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Add(model.AlarmTransition{Timestamp: base, To: model.AlarmWarning})
	s.Add(model.AlarmTransition{Timestamp: base.Add(time.Second), To: model.AlarmAlarm})
	s.Add(model.AlarmTransition{Timestamp: base.Add(2 * time.Second), To: model.AlarmSafe})

	list := s.List(0)
	require.Len(t, list, 2)
	assert.Equal(t, model.AlarmAlarm, list[0].To)
	assert.Equal(t, model.AlarmSafe, list[1].To)

	assert.Len(t, s.List(1), 1)
	assert.Len(t, s.Since(base.Add(2*time.Second)), 1)
	assert.Len(t, s.Since(base), 2)
	assert.Empty(t, s.Since(base.Add(time.Hour)))

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, model.AlarmSafe, last.To)

	s.Clear()
	assert.Empty(t, s.List(0))
	_, ok = s.Last()
	assert.False(t, ok)
}
