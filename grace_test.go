package main

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string { return "i/o timeout" }
func (fakeTimeoutErr) Timeout() bool { return true }

func TestClassifyDisconnect(t *testing.T) {
	cases := []struct {
		err  error
		want DisconnectCause
	}{
		{nil, CauseIntentional},
		{&websocket.CloseError{Code: websocket.CloseNormalClosure}, CauseIntentional},
		{&websocket.CloseError{Code: websocket.CloseGoingAway}, CauseIntentional},
		{fakeTimeoutErr{}, CauseNetwork},
		{&websocket.CloseError{Code: websocket.CloseAbnormalClosure}, CauseNetwork},
		{errors.New("something odd"), CauseUnknown},
	}
	for _, c := range cases {
		if got := ClassifyDisconnect(c.err); got != c.want {
			t.Errorf("ClassifyDisconnect(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestGraceWindows(t *testing.T) {
	gm := NewGraceManager(DefaultGraceConfig(), NewScheduler(), nil)

	if w := gm.Window(CauseIntentional, true); w != 0 {
		t.Errorf("intentional leave gets no grace, got %v", w)
	}
	if w := gm.Window(CauseNetwork, false); w != 3*time.Second {
		t.Errorf("network grace should be 3s, got %v", w)
	}
	if w := gm.Window(CauseNetwork, true); w != 4500*time.Millisecond {
		t.Errorf("active round multiplies the window to 4.5s, got %v", w)
	}
	if w := gm.Window(CauseUnknown, false); w != 5*time.Second {
		t.Errorf("unknown grace should be 5s, got %v", w)
	}
}

func TestGraceExpiryFires(t *testing.T) {
	sched := NewScheduler()
	defer sched.CancelAll()

	type expiry struct {
		playerID string
		cause    DisconnectCause
	}
	expired := make(chan expiry, 1)
	cfg := GraceConfig{NetworkGrace: 10 * time.Millisecond, UnknownGrace: 10 * time.Millisecond}
	gm := NewGraceManager(cfg, sched, func(id string, cause DisconnectCause) {
		expired <- expiry{id, cause}
	})

	w := gm.PlayerDropped("p1", CauseNetwork, false)
	if w != 10*time.Millisecond {
		t.Fatalf("unexpected window %v", w)
	}
	if !gm.Waiting("p1") {
		t.Fatal("window should be open")
	}

	select {
	case e := <-expired:
		if e.playerID != "p1" || e.cause != CauseNetwork {
			t.Errorf("unexpected expiry %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("grace expiry never fired")
	}
}

func TestGraceReconnectCancels(t *testing.T) {
	sched := NewScheduler()
	defer sched.CancelAll()

	fired := make(chan string, 1)
	cfg := GraceConfig{NetworkGrace: 20 * time.Millisecond}
	gm := NewGraceManager(cfg, sched, func(id string, _ DisconnectCause) { fired <- id })

	gm.PlayerDropped("p1", CauseNetwork, false)
	if !gm.PlayerReturned("p1") {
		t.Fatal("reconnect within the window should cancel it")
	}
	if gm.Waiting("p1") {
		t.Error("window should be closed after return")
	}

	select {
	case <-fired:
		t.Error("cancelled window must not expire")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestGraceReturnWithoutDrop(t *testing.T) {
	gm := NewGraceManager(DefaultGraceConfig(), NewScheduler(), nil)
	if gm.PlayerReturned("ghost") {
		t.Error("returning a player who never dropped reports no open window")
	}
}

func TestGraceRedropRestartsWindow(t *testing.T) {
	sched := NewScheduler()
	defer sched.CancelAll()

	var mu sync.Mutex
	var causes []DisconnectCause
	cfg := GraceConfig{NetworkGrace: 15 * time.Millisecond, UnknownGrace: 15 * time.Millisecond}
	gm := NewGraceManager(cfg, sched, func(_ string, cause DisconnectCause) {
		mu.Lock()
		causes = append(causes, cause)
		mu.Unlock()
	})

	gm.PlayerDropped("p1", CauseNetwork, false)
	gm.PlayerDropped("p1", CauseUnknown, false) // replaces the first window

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(causes) != 1 || causes[0] != CauseUnknown {
		t.Errorf("only the latest window may expire, got %v", causes)
	}
}

func TestGraceIntentionalDropIsImmediate(t *testing.T) {
	gm := NewGraceManager(DefaultGraceConfig(), NewScheduler(), nil)
	if w := gm.PlayerDropped("p1", CauseIntentional, true); w != 0 {
		t.Errorf("intentional drop should return a zero window, got %v", w)
	}
	if gm.Waiting("p1") {
		t.Error("no window should be opened for an intentional drop")
	}
}

func TestCauseString(t *testing.T) {
	for cause, want := range map[DisconnectCause]string{
		CauseIntentional: "intentional",
		CauseNetwork:     "network",
		CauseUnknown:     "unknown",
	} {
		if got := fmt.Sprint(cause); got != want {
			t.Errorf("cause %d prints %q, want %q", cause, got, want)
		}
	}
}
