package utils

import (
	"time"
)

// PhaseTimer measures the sequential phases of a longer operation, such as
// one generation run. Phases never overlap: starting a phase closes the
// previous one.
type PhaseTimer struct {
	start      time.Time
	phaseStart time.Time
	current    string
	phases     map[string]int64
}

// NewPhaseTimer starts a phase timer with no active phase
func NewPhaseTimer() *PhaseTimer {
	now := time.Now()
	return &PhaseTimer{
		start:      now,
		phaseStart: now,
		phases:     make(map[string]int64),
	}
}

// Phase closes the active phase, if any, and starts the named one
func (p *PhaseTimer) Phase(name string) {
	p.closeCurrent()
	p.current = name
	p.phaseStart = time.Now()
}

// Stop closes the active phase and returns the total elapsed milliseconds
// together with the per-phase breakdown.
func (p *PhaseTimer) Stop() (totalMs int64, phaseMs map[string]int64) {
	p.closeCurrent()
	return time.Since(p.start).Milliseconds(), p.phases
}

func (p *PhaseTimer) closeCurrent() {
	if p.current == "" {
		return
	}
	p.phases[p.current] += time.Since(p.phaseStart).Milliseconds()
	p.current = ""
}
