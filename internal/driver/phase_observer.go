package driver

import (
	"time"

	"owninfer/internal/observ"
)

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	// PhaseStart indicates that a driver phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// PhaseEvent describes a timing phase boundary.
type PhaseEvent struct {
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver receives phase events emitted during Run.
type PhaseObserver func(PhaseEvent)

// phaseClock feeds each phase to the timer and the observer.
type phaseClock struct {
	timer    *observ.Timer
	observer PhaseObserver
}

type phase struct {
	clock *phaseClock
	name  string
	idx   int
	start time.Time
}

func (c *phaseClock) begin(name string) phase {
	if c.observer != nil {
		c.observer(PhaseEvent{Name: name, Status: PhaseStart})
	}
	return phase{clock: c, name: name, idx: c.timer.Begin(name), start: time.Now()}
}

func (p phase) end(note string) {
	p.clock.timer.End(p.idx, note)
	if p.clock.observer != nil {
		p.clock.observer(PhaseEvent{Name: p.name, Status: PhaseEnd, Elapsed: time.Since(p.start)})
	}
}
