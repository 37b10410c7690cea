package main

// MatchEventKind tags the variants of MatchEvent
type MatchEventKind int

const (
	EventDelta MatchEventKind = iota
	EventFullSync
	EventRoundStart
	EventRoundEnd
	EventMatchEnd
	EventPlayerPaused
	EventPlayerResumed
	EventPlayerForfeited
	EventMatchFailed
)

// MatchEvent is the single tagged event stream a match emits. The supervisor
// consumes it and fans out to the transport; exactly one payload field
// matching Kind is set.
type MatchEvent struct {
	Kind    MatchEventKind
	MatchID string

	// TargetID limits delivery to one player (full syncs); empty = broadcast
	TargetID string

	Delta      *DeltaUpdate
	Full       *FullState
	RoundStart *RoundStartMsg
	RoundEnd   *RoundEndMsg
	MatchEnd   *MatchEndMsg
	Paused     *PauseMsg
	Resumed    *ResumeMsg
	Forfeited  *ForfeitMsg
	Result     *MatchResult // set alongside MatchEnd for persistence handoff
	FailMsg    string
}

// MatchResult is the persistence handoff produced exactly once per match
type MatchResult struct {
	MatchID     string
	WinnerID    string
	LoserID     string
	Reason      string
	Duration    float64 // seconds
	Score       map[string]int
	PlayerStats map[string]PlayerResultStats
}

// PlayerResultStats are the per-player totals persisted with the result
type PlayerResultStats struct {
	Name        string
	DamageDealt int
	Kills       int
	RoundWins   int
}
