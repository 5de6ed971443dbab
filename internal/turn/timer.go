package turn

import (
	"sync"
	"time"
)

// Timer fires a callback once per Arm unless stopped or re-armed first.
// A fire that races with Stop or Arm is dropped.
type Timer struct {
	mu  sync.Mutex
	t   *time.Timer
	gen uint64
}

// Arm replaces any pending fire. A non-positive d leaves the timer disarmed.
func (t *Timer) Arm(d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if d <= 0 || fire == nil {
		return
	}
	gen := t.gen
	t.t = time.AfterFunc(d, func() {
		t.mu.Lock()
		stale := gen != t.gen
		if !stale {
			t.t = nil
		}
		t.mu.Unlock()
		if !stale {
			fire()
		}
	})
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.t != nil
}

func (t *Timer) stopLocked() {
	t.gen++
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}
