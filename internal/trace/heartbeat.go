package trace

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Heartbeat emits periodic liveness events carrying the goroutine count and
// live heap. Heartbeats without span ends mean the fixpoint loop is stuck;
// a growing heap between them points at a rewrite that keeps allocating.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// StartHeartbeat returns nil when tracing is off or interval is not positive.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	var n uint64
	for {
		select {
		case <-ticker.C:
			n++
			h.tracer.Emit(beat(n))
		case <-h.stopCh:
			return
		}
	}
}

func beat(n uint64) *Event {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &Event{
		Time:   time.Now(),
		Kind:   KindHeartbeat,
		Scope:  ScopeDriver,
		Name:   "heartbeat",
		Detail: fmt.Sprintf("#%d goroutines=%d heap=%dKiB", n, runtime.NumGoroutine(), ms.HeapAlloc/1024),
		Extra:  map[string]string{"gc": fmt.Sprint(ms.NumGC)},
	}
}

// Stop is idempotent and safe on a nil heartbeat.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.wg.Wait()
}
