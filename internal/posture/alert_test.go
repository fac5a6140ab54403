package posture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertLimiterCooldown(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		gap    time.Duration
		alerts int
	}{
		{"within cooldown", 9 * time.Second, 1},
		{"just under cooldown", 10*time.Second - time.Millisecond, 1},
		{"exactly cooldown", 10 * time.Second, 2},
		{"after cooldown", 25 * time.Second, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewAlertLimiter(DefaultAlertInterval)
			n := 0
			for _, at := range []time.Time{start, start.Add(tt.gap)} {
				if l.ShouldAlert(at) {
					n++
				}
			}
			assert.Equal(t, tt.alerts, n)
		})
	}
}

func TestAlertLimiterRecordsLastAlert(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := NewAlertLimiter(10 * time.Second)

	_, fired := l.LastAlert()
	assert.False(t, fired)

	require.True(t, l.ShouldAlert(start))
	require.False(t, l.ShouldAlert(start.Add(5*time.Second)))
	last, _ := l.LastAlert()
	assert.Equal(t, start, last, "rejected calls do not move the window")

	require.True(t, l.ShouldAlert(start.Add(10*time.Second)))
	last, _ = l.LastAlert()
	assert.Equal(t, start.Add(10*time.Second), last)
}

func TestAlertGateScopes(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	global, err := NewAlertGate(AlertScopeGlobal, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, global.ShouldAlert(RoleFrontal, now))
	assert.False(t, global.ShouldAlert(RoleLateral, now.Add(time.Second)), "roles share one cooldown")

	perRole, err := NewAlertGate(AlertScopeRole, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, perRole.ShouldAlert(RoleFrontal, now))
	assert.True(t, perRole.ShouldAlert(RoleLateral, now.Add(time.Second)))
	assert.False(t, perRole.ShouldAlert(RoleFrontal, now.Add(2*time.Second)))
	last, ok := perRole.LastAlert()
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Second), last)

	def, err := NewAlertGate("", 0)
	require.NoError(t, err)
	assert.Equal(t, AlertScopeGlobal, def.Scope())
	_, ok = def.LastAlert()
	assert.False(t, ok)

	_, err = NewAlertGate("camera", time.Second)
	assert.Error(t, err)
}
