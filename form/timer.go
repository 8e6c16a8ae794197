package form

import (
	"sync"
	"time"
)

// scopedTimer is a one-shot timer that either fires or is cancelled, never
// both.
type scopedTimer struct {
	mu   sync.Mutex
	t    *time.Timer
	done bool
}

func startTimer(d time.Duration, fn func()) *scopedTimer {
	s := &scopedTimer{}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.t = time.AfterFunc(d, func() {
		if s.claim() {
			fn()
		}
	})
	return s
}

func (s *scopedTimer) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return false
	}
	s.done = true
	return true
}

// Cancel reports whether it stopped the timer before it fired.
func (s *scopedTimer) Cancel() bool {
	if s == nil {
		return false
	}
	if !s.claim() {
		return false
	}
	s.t.Stop()
	return true
}
