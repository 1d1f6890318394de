package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits periodic events so a stuck backend call is visible in the
// trace: heartbeats keep coming while no span ends.
type Heartbeat struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// StartHeartbeat starts emitting to t every interval. It returns nil when the
// tracer is disabled or interval is not positive.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{})}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		n := 0
		for {
			select {
			case <-ticker.C:
				n++
				t.Emit(&Event{
					Time:   time.Now(),
					Kind:   KindHeartbeat,
					Scope:  ScopeDriver,
					Name:   "heartbeat",
					Detail: fmt.Sprintf("#%d", n),
				})
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

// Stop ends the heartbeat and waits for its goroutine.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
}
