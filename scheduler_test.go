package main

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerFires(t *testing.T) {
	s := NewScheduler()
	defer s.CancelAll()

	done := make(chan struct{})
	s.Schedule(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	if s.Pending() != 0 {
		t.Errorf("fired timer should be forgotten, pending=%d", s.Pending())
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	defer s.CancelAll()

	var fired atomic.Bool
	token := s.Schedule(10*time.Millisecond, func() { fired.Store(true) })
	if !s.Cancel(token) {
		t.Fatal("cancel of a pending timer should succeed")
	}
	if s.Cancel(token) {
		t.Error("second cancel should report false")
	}
	time.Sleep(30 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled timer must not fire")
	}
}

func TestSchedulerCancelAll(t *testing.T) {
	s := NewScheduler()

	var fired atomic.Int32
	for i := 0; i < 5; i++ {
		s.Schedule(10*time.Millisecond, func() { fired.Add(1) })
	}
	s.CancelAll()
	time.Sleep(30 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("no timer may fire after CancelAll, %d did", n)
	}

	if token := s.Schedule(time.Millisecond, func() { fired.Add(1) }); token != 0 {
		t.Error("a closed scheduler must reject new timers")
	}
	time.Sleep(10 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("rejected timer must not fire")
	}
}

func TestSchedulerCancelRace(t *testing.T) {
	s := NewScheduler()
	defer s.CancelAll()

	// cancel right around the firing instant; whichever side wins, the
	// callback runs at most once
	for i := 0; i < 50; i++ {
		var fired atomic.Int32
		token := s.Schedule(time.Millisecond, func() { fired.Add(1) })
		time.Sleep(time.Millisecond)
		s.Cancel(token)
		time.Sleep(5 * time.Millisecond)
		if fired.Load() > 1 {
			t.Fatal("callback ran more than once")
		}
	}
}
