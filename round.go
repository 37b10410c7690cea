package main

// RoundPhase is the round/match lifecycle state
type RoundPhase int

const (
	PhaseWaiting RoundPhase = iota
	PhaseCountdown
	PhaseActive
	PhaseSuddenDeath
	PhaseEnded
	PhaseIntermission
	PhaseMatchEnded
)

// String returns the wire name of the phase
func (p RoundPhase) String() string {
	switch p {
	case PhaseWaiting:
		return WireWaiting
	case PhaseCountdown:
		return WireCountdown
	case PhaseActive:
		return WireActive
	case PhaseSuddenDeath:
		return WireSuddenDeath
	case PhaseEnded:
		return WireEnded
	case PhaseIntermission:
		return WireIntermission
	case PhaseMatchEnded:
		return WireMatchEnded
	}
	return "unknown"
}

// roundTransitions is the only set of legal phase edges. Everything the
// machine does funnels through transition(), so an illegal edge is a bug
// that surfaces immediately rather than corrupting the round flow.
var roundTransitions = map[RoundPhase][]RoundPhase{
	PhaseWaiting:      {PhaseCountdown, PhaseMatchEnded},
	PhaseCountdown:    {PhaseActive, PhaseEnded, PhaseMatchEnded},
	PhaseActive:       {PhaseSuddenDeath, PhaseEnded, PhaseMatchEnded},
	PhaseSuddenDeath:  {PhaseEnded, PhaseMatchEnded},
	PhaseEnded:        {PhaseIntermission, PhaseMatchEnded},
	PhaseIntermission: {PhaseCountdown, PhaseMatchEnded},
	PhaseMatchEnded:   {},
}

// Round end reasons
const (
	ReasonElimination = "elimination"
	ReasonTimeout     = "timeout"
	ReasonForfeit     = "forfeit"
	ReasonScore       = "score"
	ReasonAborted     = "aborted"
)

// roundHooks receive the structured events every transition produces
type roundHooks interface {
	onRoundReset(number int)
	onRoundStart(number int, duration float64)
	onRoundEnd(number int, winnerID, reason string)
	onMatchEnd(winnerID, reason string)
}

// RoundMachine drives the round/match state transitions. It is owned by the
// match loop and only advanced from tick context.
type RoundMachine struct {
	cfg   MatchConfig
	hooks roundHooks

	phase     RoundPhase
	number    int
	timeLeft  float64
	score     map[string]int
	playerIDs [2]string
	winnerID  string
}

// NewRoundMachine creates a machine in the waiting phase
func NewRoundMachine(cfg MatchConfig, hooks roundHooks) *RoundMachine {
	return &RoundMachine{
		cfg:   cfg,
		hooks: hooks,
		phase: PhaseWaiting,
		score: make(map[string]int, 2),
	}
}

// RegisterPlayers fixes the two participants the score is kept for
func (rm *RoundMachine) RegisterPlayers(a, b string) {
	rm.playerIDs = [2]string{a, b}
	rm.score[a] = 0
	rm.score[b] = 0
}

// Phase returns the current phase
func (rm *RoundMachine) Phase() RoundPhase { return rm.phase }

// Winner returns the match winner once the machine reached match_ended
func (rm *RoundMachine) Winner() string { return rm.winnerID }

// Score returns a copy of the per-player round wins
func (rm *RoundMachine) Score() map[string]int {
	out := make(map[string]int, len(rm.score))
	for id, s := range rm.score {
		out[id] = s
	}
	return out
}

// Info returns the wire-level round state
func (rm *RoundMachine) Info() RoundInfo {
	return RoundInfo{
		Number:   rm.number,
		Phase:    rm.phase.String(),
		TimeLeft: rm.timeLeft,
		Score:    rm.Score(),
	}
}

// InCombat reports whether eliminations currently count
func (rm *RoundMachine) InCombat() bool {
	return rm.phase == PhaseActive || rm.phase == PhaseSuddenDeath
}

func (rm *RoundMachine) transition(to RoundPhase) bool {
	for _, legal := range roundTransitions[rm.phase] {
		if legal == to {
			rm.phase = to
			return true
		}
	}
	return false
}

// BothReady moves waiting->countdown when both players have signalled ready.
// During an already running countdown it skips straight to active.
func (rm *RoundMachine) BothReady() {
	switch rm.phase {
	case PhaseWaiting:
		rm.startCountdown()
	case PhaseCountdown:
		rm.startActive()
	}
}

func (rm *RoundMachine) startCountdown() {
	if !rm.transition(PhaseCountdown) {
		return
	}
	rm.number++
	rm.timeLeft = rm.cfg.CountdownTime
	rm.hooks.onRoundReset(rm.number)
}

func (rm *RoundMachine) startActive() {
	if !rm.transition(PhaseActive) {
		return
	}
	rm.timeLeft = rm.cfg.RoundTime
	rm.hooks.onRoundStart(rm.number, rm.cfg.RoundTime)
}

// Tick advances time-driven transitions by dt seconds
func (rm *RoundMachine) Tick(dt float64) {
	switch rm.phase {
	case PhaseCountdown:
		rm.timeLeft -= dt
		if rm.timeLeft <= 0 {
			rm.startActive()
		}
	case PhaseActive:
		rm.timeLeft -= dt
		if rm.timeLeft <= 0 {
			if rm.cfg.SuddenDeath {
				if rm.transition(PhaseSuddenDeath) {
					rm.timeLeft = rm.cfg.RoundTime * rm.cfg.SuddenDeathFactor
				}
			} else {
				rm.endRound("", ReasonTimeout)
			}
		}
	case PhaseSuddenDeath:
		rm.timeLeft -= dt
		if rm.timeLeft <= 0 {
			rm.endRound("", ReasonTimeout)
		}
	case PhaseIntermission:
		rm.timeLeft -= dt
		if rm.timeLeft <= 0 {
			rm.startCountdown()
		}
	}
}

// PlayerEliminated credits the surviving player with the round
func (rm *RoundMachine) PlayerEliminated(survivorID string) {
	if !rm.InCombat() {
		return
	}
	rm.endRound(survivorID, ReasonElimination)
}

// Forfeit ends the round and the match immediately, crediting the remaining
// player. Safe to call in any phase; a finished match ignores it.
func (rm *RoundMachine) Forfeit(winnerID string) {
	if rm.phase == PhaseMatchEnded {
		return
	}
	if rm.InCombat() || rm.phase == PhaseCountdown {
		if rm.transition(PhaseEnded) {
			if winnerID != "" {
				rm.score[winnerID]++
			}
			rm.hooks.onRoundEnd(rm.number, winnerID, ReasonForfeit)
		}
	}
	rm.endMatch(winnerID, ReasonForfeit)
}

// Abort terminates a match that never got going (initialization failure)
func (rm *RoundMachine) Abort() {
	if rm.phase == PhaseMatchEnded {
		return
	}
	rm.endMatch("", ReasonAborted)
}

// endRound runs ended -> intermission (or match_ended when decided)
func (rm *RoundMachine) endRound(winnerID, reason string) {
	if !rm.transition(PhaseEnded) {
		return
	}
	if winnerID != "" {
		rm.score[winnerID]++
	}
	rm.hooks.onRoundEnd(rm.number, winnerID, reason)

	// the decider goes straight to match_ended, never back to countdown
	if winnerID != "" && rm.score[winnerID] >= rm.cfg.RoundsToWin {
		rm.endMatch(winnerID, ReasonScore)
		return
	}
	if rm.transition(PhaseIntermission) {
		rm.timeLeft = rm.cfg.IntermissionTime
	}
}

func (rm *RoundMachine) endMatch(winnerID, reason string) {
	if !rm.transition(PhaseMatchEnded) {
		return
	}
	rm.winnerID = winnerID
	rm.timeLeft = 0
	rm.hooks.onMatchEnd(winnerID, reason)
}
