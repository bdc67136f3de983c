// Package alarms keeps the stage's alarm inventory and the rate watches
// that drive it. Raise/clear transitions are edge-triggered and logged.
package alarms

import (
	"sync"

	"github.com/netseam/ipfrag/logx"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityCritical
)

func (s Severity) String() string {
	if s == SeverityCritical {
		return "critical"
	}
	return "warning"
}

type Alarm struct {
	name     string
	severity Severity
	raised   bool
}

var (
	mu       sync.Mutex
	registry = map[string]*Alarm{}
)

// Register adds an alarm to the inventory, or returns the existing one.
func Register(name string, sev Severity) *Alarm {
	mu.Lock()
	defer mu.Unlock()
	if a, ok := registry[name]; ok {
		return a
	}
	a := &Alarm{name: name, severity: sev}
	registry[name] = a
	return a
}

func (a *Alarm) Raise(format string, args ...any) {
	if a.raised {
		return
	}
	a.raised = true
	logx.Errorf("alarm %s (%s) raised: "+format,
		append([]any{a.name, a.severity}, args...)...)
}

func (a *Alarm) Clear() {
	if !a.raised {
		return
	}
	a.raised = false
	logx.Infof("alarm %s cleared", a.name)
}

func (a *Alarm) Raised() bool { return a.raised }

// RateWatch raises its alarm while an observed count grows faster than
// limit per second, measured over windows of at least one second.
type RateWatch struct {
	alarm     *Alarm
	limit     float64
	lastCount uint64
	lastTick  uint64
	primed    bool
}

func NewRateWatch(a *Alarm, limit float64) *RateWatch {
	return &RateWatch{alarm: a, limit: limit}
}

// Observe feeds the current count and clock. now and tps are in ticks.
func (w *RateWatch) Observe(count, now, tps uint64) {
	if !w.primed {
		w.lastCount, w.lastTick, w.primed = count, now, true
		return
	}
	elapsed := now - w.lastTick
	if elapsed < tps {
		return
	}
	rate := float64(count-w.lastCount) * float64(tps) / float64(elapsed)
	w.lastCount, w.lastTick = count, now
	if rate > w.limit {
		w.alarm.Raise("rate %.0f/s exceeds %.0f/s", rate, w.limit)
	} else {
		w.alarm.Clear()
	}
}
