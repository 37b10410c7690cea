package main

import (
	"time"

	"github.com/gorilla/websocket"
)

// DisconnectCause classifies why a connection went away
type DisconnectCause int

const (
	CauseIntentional DisconnectCause = iota // explicit leave or clean close
	CauseNetwork                            // transport error / ping timeout
	CauseUnknown
)

// String returns the wire name of the cause
func (c DisconnectCause) String() string {
	switch c {
	case CauseIntentional:
		return "intentional"
	case CauseNetwork:
		return "network"
	}
	return "unknown"
}

// ClassifyDisconnect maps a read error to a cause. A nil error means the
// client sent an explicit leave.
func ClassifyDisconnect(err error) DisconnectCause {
	if err == nil {
		return CauseIntentional
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return CauseIntentional
	}
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return CauseNetwork
	}
	if websocket.IsUnexpectedCloseError(err) {
		return CauseNetwork
	}
	return CauseUnknown
}

// GraceConfig bounds the reconnection windows
type GraceConfig struct {
	NetworkGrace     time.Duration
	UnknownGrace     time.Duration
	ActiveMultiplier float64 // applied while a round is active
}

// DefaultGraceConfig returns the stock grace windows
func DefaultGraceConfig() GraceConfig {
	return GraceConfig{
		NetworkGrace:     3 * time.Second,
		UnknownGrace:     5 * time.Second,
		ActiveMultiplier: 1.5,
	}
}

type graceEntry struct {
	token TimerToken
	cause DisconnectCause
}

// GraceManager decides whether a dropped connection forfeits immediately or
// holds the match open for a bounded reconnection window. Expiry callbacks
// are delivered through the provided hook; the owning match routes them back
// into its loop.
type GraceManager struct {
	cfg      GraceConfig
	sched    *Scheduler
	pending  map[string]*graceEntry
	onExpire func(playerID string, cause DisconnectCause)
}

// NewGraceManager wires a manager to the match's scheduler
func NewGraceManager(cfg GraceConfig, sched *Scheduler, onExpire func(string, DisconnectCause)) *GraceManager {
	return &GraceManager{
		cfg:      cfg,
		sched:    sched,
		pending:  make(map[string]*graceEntry, 2),
		onExpire: onExpire,
	}
}

// Window returns the grace duration for a cause. Zero means immediate forfeit.
func (gm *GraceManager) Window(cause DisconnectCause, roundActive bool) time.Duration {
	var base time.Duration
	switch cause {
	case CauseIntentional:
		return 0
	case CauseNetwork:
		base = gm.cfg.NetworkGrace
	default:
		base = gm.cfg.UnknownGrace
	}
	if roundActive && gm.cfg.ActiveMultiplier > 1 {
		base = time.Duration(float64(base) * gm.cfg.ActiveMultiplier)
	}
	return base
}

// PlayerDropped starts (or restarts) the grace window for a player. Returns
// the window; zero means the caller must forfeit now.
func (gm *GraceManager) PlayerDropped(playerID string, cause DisconnectCause, roundActive bool) time.Duration {
	gm.cancel(playerID)
	window := gm.Window(cause, roundActive)
	if window == 0 {
		return 0
	}
	entry := &graceEntry{cause: cause}
	entry.token = gm.sched.Schedule(window, func() {
		gm.onExpire(playerID, cause)
	})
	gm.pending[playerID] = entry
	return window
}

// PlayerReturned cancels the pending window. Returns false if no window was
// open (reconnect raced the expiry, or the player never dropped).
func (gm *GraceManager) PlayerReturned(playerID string) bool {
	return gm.cancel(playerID)
}

// Waiting reports whether a grace window is open for the player
func (gm *GraceManager) Waiting(playerID string) bool {
	_, ok := gm.pending[playerID]
	return ok
}

// Clear drops a pending entry without cancelling its timer; used from the
// expiry path itself.
func (gm *GraceManager) Clear(playerID string) {
	delete(gm.pending, playerID)
}

func (gm *GraceManager) cancel(playerID string) bool {
	entry, ok := gm.pending[playerID]
	if !ok {
		return false
	}
	delete(gm.pending, playerID)
	gm.sched.Cancel(entry.token)
	return true
}
