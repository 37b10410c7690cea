package main

import (
	"sync"
	"time"
)

// TimerToken identifies a scheduled callback
type TimerToken uint64

// Scheduler owns every timer started on behalf of a match so all of them can
// be cancelled when superseded or when the match is torn down. Callbacks run
// on the timer goroutine; callers that need tick-context route the callback
// back through their inbox.
type Scheduler struct {
	mu     sync.Mutex
	next   TimerToken
	timers map[TimerToken]*time.Timer
	closed bool
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[TimerToken]*time.Timer)}
}

// Schedule runs fn after d and returns a cancellable token
func (s *Scheduler) Schedule(d time.Duration, fn func()) TimerToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.next++
	token := s.next
	s.timers[token] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[token]
		delete(s.timers, token)
		s.mu.Unlock()
		if live {
			fn()
		}
	})
	return token
}

// Cancel stops a pending timer. Returns false if it already fired or was
// cancelled before.
func (s *Scheduler) Cancel(token TimerToken) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[token]
	if !ok {
		return false
	}
	delete(s.timers, token)
	t.Stop()
	return ok
}

// CancelAll stops every pending timer and rejects new ones. Called once at
// match teardown so no stale callback can touch released state.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for token, t := range s.timers {
		t.Stop()
		delete(s.timers, token)
	}
}

// Pending returns the number of timers still scheduled
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
