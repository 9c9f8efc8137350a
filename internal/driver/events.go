package driver

import "time"

// Stage is the per-function step a progress event refers to.
type Stage string

const (
	// StageCollect covers the declaration table; it is unit-wide.
	StageCollect Stage = "collect"
	// StageInfer is usage analysis plus ownership inference in one round.
	StageInfer Stage = "infer"
	// StageDup is duplication insertion.
	StageDup Stage = "dup"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for one function. Index is the function's
// position in Result.Functions, -1 for unit-wide events.
type Event struct {
	Index   int
	Fn      string
	Stage   Stage
	Status  Status
	Round   int
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent may be called from
// several goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}
