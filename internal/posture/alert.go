package posture

import (
	"fmt"
	"time"
)

const DefaultAlertInterval = 10 * time.Second

// AlertLimiter lets at most one alert through per interval.
type AlertLimiter struct {
	interval time.Duration
	last     time.Time
	fired    bool
}

func NewAlertLimiter(interval time.Duration) *AlertLimiter {
	if interval <= 0 {
		interval = DefaultAlertInterval
	}
	return &AlertLimiter{interval: interval}
}

// ShouldAlert returns true when the cooldown elapsed and records now as the last alert.
func (l *AlertLimiter) ShouldAlert(now time.Time) bool {
	if l.fired && now.Sub(l.last) < l.interval {
		return false
	}
	l.last = now
	l.fired = true
	return true
}

func (l *AlertLimiter) LastAlert() (time.Time, bool) {
	return l.last, l.fired
}

type AlertScope string

const (
	// AlertScopeGlobal shares one cooldown between every camera role.
	AlertScopeGlobal AlertScope = "global"
	AlertScopeRole   AlertScope = "role"
)

// AlertGate picks the limiter for a role according to the scope.
type AlertGate struct {
	scope    AlertScope
	interval time.Duration
	global   *AlertLimiter
	perRole  map[CameraRole]*AlertLimiter
}

func NewAlertGate(scope AlertScope, interval time.Duration) (*AlertGate, error) {
	switch scope {
	case "":
		scope = AlertScopeGlobal
	case AlertScopeGlobal, AlertScopeRole:
	default:
		return nil, fmt.Errorf("unknown alert scope %q", scope)
	}
	return &AlertGate{
		scope:    scope,
		interval: interval,
		global:   NewAlertLimiter(interval),
		perRole:  make(map[CameraRole]*AlertLimiter),
	}, nil
}

func (g *AlertGate) ShouldAlert(role CameraRole, now time.Time) bool {
	if g.scope == AlertScopeGlobal {
		return g.global.ShouldAlert(now)
	}
	l, ok := g.perRole[role]
	if !ok {
		l = NewAlertLimiter(g.interval)
		g.perRole[role] = l
	}
	return l.ShouldAlert(now)
}

func (g *AlertGate) Scope() AlertScope {
	return g.scope
}

// LastAlert returns the most recent alert let through for any role.
func (g *AlertGate) LastAlert() (time.Time, bool) {
	last, fired := g.global.LastAlert()
	for _, l := range g.perRole {
		if t, ok := l.LastAlert(); ok && (!fired || t.After(last)) {
			last, fired = t, true
		}
	}
	return last, fired
}
