package main

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	TickRate     = 30 // simulation ticks per second
	TickDuration = time.Second / TickRate

	maxProjectilesPerMatch = 128
	inboxSize              = 256
	eventBufSize           = 256
)

// MatchConfig holds the tunables for one match
type MatchConfig struct {
	RoundTime         float64 // seconds of active play per round
	CountdownTime     float64
	IntermissionTime  float64
	RoundsToWin       int
	SuddenDeath       bool
	SuddenDeathFactor float64 // extension length as a fraction of RoundTime

	MaxInputAge      time.Duration // commands older than this are replay-dropped
	MinInputInterval time.Duration // minimum spacing between accepted input batches
	WaitingTimeout   time.Duration // both players must be in before this
	CleanupDelay     time.Duration // bounds late messages after match end

	Grace GraceConfig
}

// DefaultMatchConfig returns the stock duel settings: best of three, 90s
// rounds with a 5s countdown.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		RoundTime:         90,
		CountdownTime:     5,
		IntermissionTime:  4,
		RoundsToWin:       2,
		SuddenDeath:       true,
		SuddenDeathFactor: 0.5,
		MaxInputAge:       time.Second,
		MinInputInterval:  10 * time.Millisecond,
		WaitingTimeout:    60 * time.Second,
		CleanupDelay:      2 * time.Second,
		Grace:             DefaultGraceConfig(),
	}
}

type matchCmdKind int

const (
	cmdJoin matchCmdKind = iota
	cmdReconnect
	cmdReady
	cmdInputs
	cmdResyncReq
	cmdDisconnect
	cmdGraceExpired
	cmdInitTimeout
	cmdForceEnd
)

type joinReply struct {
	player   *Player
	opponent string
	err      error
}

type matchCommand struct {
	kind       matchCmdKind
	playerID   string
	name       string
	class      ClassID
	inputs     []InputCommand
	receivedAt time.Time
	cause      DisconnectCause
	reason     string
	reply      chan joinReply
}

type queuedInput struct {
	cmd        InputCommand
	receivedAt time.Time
}

// Match owns the authoritative state of one duel and runs its simulation
// loop. All state is touched only by the loop goroutine; the exported
// methods hand work to it through the inbox.
type Match struct {
	ID       string
	JoinCode string

	cfg   MatchConfig
	arena *Arena

	players     map[string]*Player
	order       []string // slot order, index = spawn slot
	projectiles map[string]*Projectile
	moveIntent  map[string][2]float64

	machine *RoundMachine
	deltas  *DeltaGenerator
	sched   *Scheduler
	grace   *GraceManager

	inbox  chan matchCommand
	events chan MatchEvent
	stop   chan struct{}
	once   sync.Once

	queues        map[string][]queuedInput
	tickEvents    []GameEvent
	pendingResync []string

	clock      float64 // match-clock seconds since the loop started
	startClock float64 // clock when the first countdown began
	resultSent bool
}

// NewMatch creates a match and starts its loop
func NewMatch(cfg MatchConfig, arena *Arena) *Match {
	m := &Match{
		ID:          GenerateID(8),
		JoinCode:    GenerateJoinCode(),
		cfg:         cfg,
		arena:       arena,
		players:     make(map[string]*Player, 2),
		projectiles: make(map[string]*Projectile),
		moveIntent:  make(map[string][2]float64, 2),
		deltas:      NewDeltaGenerator(),
		sched:       NewScheduler(),
		inbox:       make(chan matchCommand, inboxSize),
		events:      make(chan MatchEvent, eventBufSize),
		stop:        make(chan struct{}),
		queues:      make(map[string][]queuedInput, 2),
	}
	m.machine = NewRoundMachine(cfg, m)
	m.grace = NewGraceManager(cfg.Grace, m.sched, func(playerID string, cause DisconnectCause) {
		m.post(matchCommand{kind: cmdGraceExpired, playerID: playerID, cause: cause})
	})
	m.sched.Schedule(cfg.WaitingTimeout, func() {
		m.post(matchCommand{kind: cmdInitTimeout})
	})
	return m
}

// Start launches the simulation loop goroutine
func (m *Match) Start() {
	go m.run()
}

// Events is the tagged event stream the supervisor consumes
func (m *Match) Events() <-chan MatchEvent { return m.events }

// ---- exported API: runs on caller goroutines, hands off to the loop ----

// AddPlayer seats a player. Blocks until the loop picks the request up.
// Also returns the opponent's ID when the seat completes the pairing.
func (m *Match) AddPlayer(name string, class ClassID) (*Player, string, error) {
	reply := make(chan joinReply, 1)
	if !m.post(matchCommand{kind: cmdJoin, name: name, class: class, reply: reply}) {
		return nil, "", errors.New("match unavailable")
	}
	select {
	case r := <-reply:
		return r.player, r.opponent, r.err
	case <-time.After(2 * time.Second):
		return nil, "", errors.New("match unavailable")
	case <-m.stop:
		return nil, "", errors.New("match unavailable")
	}
}

// Reconnect resumes a seat inside its grace window
func (m *Match) Reconnect(playerID string) (*Player, error) {
	reply := make(chan joinReply, 1)
	if !m.post(matchCommand{kind: cmdReconnect, playerID: playerID, reply: reply}) {
		return nil, errors.New("match unavailable")
	}
	select {
	case r := <-reply:
		return r.player, r.err
	case <-time.After(2 * time.Second):
		return nil, errors.New("match unavailable")
	case <-m.stop:
		return nil, errors.New("match unavailable")
	}
}

// NotifyReady marks a player ready for the next phase skip
func (m *Match) NotifyReady(playerID string) {
	m.post(matchCommand{kind: cmdReady, playerID: playerID})
}

// EnqueueInputs queues an input batch for the next tick drain
func (m *Match) EnqueueInputs(playerID string, cmds []InputCommand) {
	m.post(matchCommand{kind: cmdInputs, playerID: playerID, inputs: cmds, receivedAt: time.Now()})
}

// RequestFullSync schedules a full snapshot for one player
func (m *Match) RequestFullSync(playerID, reason string) {
	m.post(matchCommand{kind: cmdResyncReq, playerID: playerID, reason: reason})
}

// NotifyDisconnect reports a dropped connection with its classified cause
func (m *Match) NotifyDisconnect(playerID string, cause DisconnectCause) {
	m.post(matchCommand{kind: cmdDisconnect, playerID: playerID, cause: cause})
}

// ForceEnd aborts the match (server shutdown, admin action)
func (m *Match) ForceEnd(reason string) {
	m.post(matchCommand{kind: cmdForceEnd, reason: reason})
}

// Stop halts the loop and cancels every outstanding timer
func (m *Match) Stop() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Match) post(cmd matchCommand) bool {
	select {
	case m.inbox <- cmd:
		return true
	case <-m.stop:
		return false
	default:
		log.Warn().Str("match", m.ID).Int("kind", int(cmd.kind)).Msg("match inbox full, dropping command")
		return false
	}
}

func (m *Match) emit(ev MatchEvent) {
	ev.MatchID = m.ID
	select {
	case m.events <- ev:
	default:
		// a slow consumer must never block the loop
		log.Warn().Str("match", m.ID).Int("kind", int(ev.Kind)).Msg("event buffer full, dropping")
	}
}

// ---- the loop ----

func (m *Match) run() {
	defer func() {
		m.sched.CancelAll()
		close(m.events)
	}()
	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.stop:
			return
		}
	}
}

// tick advances the match by one fixed step. A panic anywhere inside is
// logged and the loop picks up again on the next tick; a single bad tick
// never kills the match.
func (m *Match) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("match", m.ID).Interface("panic", r).Msg("tick failed, skipping")
		}
	}()

	dt := 1.0 / float64(TickRate)
	m.clock += dt
	m.tickEvents = m.tickEvents[:0]

	m.drainInbox()

	if m.machine.Phase() == PhaseMatchEnded {
		return
	}

	paused := len(m.grace.pending) > 0
	if !paused {
		m.processInputs(dt)
		m.advanceProjectiles(dt)
		m.checkElimination()
		m.machine.Tick(dt)
	}

	m.emitDelta()
	m.emitFullSyncs()
}

func (m *Match) drainInbox() {
	for {
		select {
		case cmd := <-m.inbox:
			m.handleCommand(cmd)
		default:
			return
		}
	}
}

func (m *Match) handleCommand(cmd matchCommand) {
	switch cmd.kind {
	case cmdJoin:
		m.handleJoin(cmd)
	case cmdReconnect:
		m.handleReconnect(cmd)
	case cmdReady:
		m.handleReady(cmd.playerID)
	case cmdInputs:
		m.enqueueBatch(cmd)
	case cmdResyncReq:
		if _, ok := m.players[cmd.playerID]; ok {
			m.pendingResync = append(m.pendingResync, cmd.playerID)
		}
	case cmdDisconnect:
		m.handleDisconnect(cmd.playerID, cmd.cause)
	case cmdGraceExpired:
		m.handleGraceExpired(cmd.playerID, cmd.cause)
	case cmdInitTimeout:
		if m.machine.Phase() == PhaseWaiting {
			m.failMatch("opponent never arrived")
		}
	case cmdForceEnd:
		m.machine.Abort()
	}
}

func queuedInputsOf(cmd matchCommand) []queuedInput {
	qs := make([]queuedInput, 0, len(cmd.inputs))
	for _, in := range cmd.inputs {
		qs = append(qs, queuedInput{cmd: in, receivedAt: cmd.receivedAt})
	}
	return qs
}

// enqueueBatch rate-limits at batch granularity: one input message may carry
// several queued commands, and all of them share the batch's arrival time.
func (m *Match) enqueueBatch(cmd matchCommand) {
	p, ok := m.players[cmd.playerID]
	if !ok {
		return
	}
	if !p.lastInputAt.IsZero() && cmd.receivedAt.Sub(p.lastInputAt) < m.cfg.MinInputInterval {
		return // batches arriving faster than the allowed cadence
	}
	p.lastInputAt = cmd.receivedAt
	m.queues[cmd.playerID] = append(m.queues[cmd.playerID], queuedInputsOf(cmd)...)
}

func (m *Match) handleJoin(cmd matchCommand) {
	if m.machine.Phase() != PhaseWaiting {
		cmd.reply <- joinReply{err: errors.New("match already started")}
		return
	}
	if len(m.players) >= 2 {
		cmd.reply <- joinReply{err: errors.New("match full")}
		return
	}
	slot := len(m.order)
	p := NewPlayer(GenerateID(4), cmd.name, cmd.class, slot, m.arena.Spawns[slot])
	m.players[p.ID] = p
	m.order = append(m.order, p.ID)
	m.pendingResync = append(m.pendingResync, p.ID)
	if len(m.order) == 2 {
		m.machine.RegisterPlayers(m.order[0], m.order[1])
	}
	log.Info().Str("match", m.ID).Str("player", p.ID).Str("name", p.Name).Int("slot", slot).Msg("player joined")
	cmd.reply <- joinReply{player: p, opponent: m.opponentOf(p.ID)}
}

func (m *Match) handleReconnect(cmd matchCommand) {
	p, ok := m.players[cmd.playerID]
	if !ok {
		cmd.reply <- joinReply{err: errors.New("unknown player")}
		return
	}
	if p.Connected {
		cmd.reply <- joinReply{err: errors.New("already connected")}
		return
	}
	p.Connected = true
	m.grace.PlayerReturned(p.ID)
	m.pendingResync = append(m.pendingResync, p.ID)
	m.emit(MatchEvent{Kind: EventPlayerResumed, Resumed: &ResumeMsg{PlayerID: p.ID}})
	log.Info().Str("match", m.ID).Str("player", p.ID).Msg("player reconnected")
	cmd.reply <- joinReply{player: p}
}

func (m *Match) handleReady(playerID string) {
	p, ok := m.players[playerID]
	if !ok {
		return
	}
	p.Ready = true
	if len(m.order) < 2 {
		return
	}
	for _, id := range m.order {
		if !m.players[id].Ready {
			return
		}
	}
	m.machine.BothReady()
	for _, id := range m.order {
		m.players[id].Ready = false // re-arm for the countdown skip
	}
}

func (m *Match) handleDisconnect(playerID string, cause DisconnectCause) {
	p, ok := m.players[playerID]
	if !ok || !p.Connected {
		return
	}
	p.Connected = false
	if m.machine.Phase() == PhaseWaiting || m.machine.Phase() == PhaseMatchEnded {
		// nothing to hold open; a lobby leaver just aborts the pairing
		if m.machine.Phase() == PhaseWaiting {
			m.failMatch("opponent left before start")
		}
		return
	}
	window := m.grace.PlayerDropped(playerID, cause, m.machine.InCombat())
	if window == 0 {
		m.finalizeForfeit(playerID, cause)
		return
	}
	log.Info().Str("match", m.ID).Str("player", playerID).Str("cause", cause.String()).
		Dur("grace", window).Msg("player dropped, holding match open")
	m.emit(MatchEvent{Kind: EventPlayerPaused, Paused: &PauseMsg{
		PlayerID: playerID,
		GraceSec: window.Seconds(),
	}})
}

func (m *Match) handleGraceExpired(playerID string, cause DisconnectCause) {
	if !m.grace.Waiting(playerID) {
		return // reconnect won the race
	}
	m.grace.Clear(playerID)
	m.finalizeForfeit(playerID, cause)
}

func (m *Match) finalizeForfeit(playerID string, cause DisconnectCause) {
	m.emit(MatchEvent{Kind: EventPlayerForfeited, Forfeited: &ForfeitMsg{
		PlayerID: playerID,
		Cause:    cause.String(),
	}})
	m.machine.Forfeit(m.opponentOf(playerID))
}

func (m *Match) failMatch(reason string) {
	log.Warn().Str("match", m.ID).Str("reason", reason).Msg("match failed to initialize")
	m.emit(MatchEvent{Kind: EventMatchFailed, FailMsg: reason})
	m.machine.Abort()
}

func (m *Match) opponentOf(playerID string) string {
	for _, id := range m.order {
		if id != playerID {
			return id
		}
	}
	return ""
}

// ---- tick pipeline ----

func (m *Match) processInputs(dt float64) {
	now := time.Now()
	for _, id := range m.order {
		p := m.players[id]
		queue := m.queues[id]
		m.queues[id] = m.queues[id][:0]
		sort.Slice(queue, func(i, j int) bool { return queue[i].cmd.Seq < queue[j].cmd.Seq })

		for _, qi := range queue {
			in := qi.cmd
			if in.Seq <= p.LastInputSeq {
				continue // duplicate or replayed
			}
			if now.Sub(qi.receivedAt) > m.cfg.MaxInputAge {
				continue // stale
			}
			p.LastInputSeq = in.Seq
			m.applyCommand(p, in)
		}

		if m.machine.InCombat() && p.Alive {
			m.applyMovement(p, dt)
		}
	}
}

func (m *Match) applyCommand(p *Player, in InputCommand) {
	switch in.Type {
	case CmdMove:
		if in.Move == nil {
			return
		}
		m.moveIntent[p.ID] = [2]float64{in.Move.DX, in.Move.DY}
	case CmdLook:
		if in.Look == nil {
			return
		}
		p.Facing = NormalizeAngle(in.Look.Facing)
	case CmdAttack:
		if !m.machine.InCombat() || !p.CanFire(m.clock) {
			return
		}
		def := GetClassDef(p.Class)
		if len(m.projectiles)+def.ProjCount > maxProjectilesPerMatch {
			return
		}
		for _, pr := range SpawnProjectiles(p, def) {
			m.projectiles[pr.ID] = pr
		}
		p.WeaponReadyAt = m.clock + def.FireCD
	case CmdAbility:
		if in.Ability == nil || !m.machine.InCombat() || !p.CanDash(m.clock) {
			return
		}
		def := GetClassDef(p.Class)
		dx, dy := in.Ability.DX, in.Ability.DY
		length := Distance(0, 0, dx, dy)
		if length < 1e-6 {
			return
		}
		nx, ny := ResolveMove(p.X, p.Y, dx/length*def.DashDist, dy/length*def.DashDist, def.Radius, m.arena.Walls)
		p.X, p.Y = nx, ny
		p.DashReadyAt = m.clock + def.DashCD
		m.tickEvents = append(m.tickEvents, GameEvent{Kind: EvDash, PlayerID: p.ID})
	}
}

func (m *Match) applyMovement(p *Player, dt float64) {
	intent := m.moveIntent[p.ID]
	dx, dy := intent[0], intent[1]
	length := Distance(0, 0, dx, dy)
	if length < 1e-6 {
		p.VX, p.VY = 0, 0
		return
	}
	def := GetClassDef(p.Class)
	step := def.MoveSpeed * dt
	nx, ny := ResolveMove(p.X, p.Y, dx/length*step, dy/length*step, def.Radius, m.arena.Walls)
	p.VX = (nx - p.X) / dt
	p.VY = (ny - p.Y) / dt
	p.X, p.Y = nx, ny
}

func (m *Match) advanceProjectiles(dt float64) {
	for id, pr := range m.projectiles {
		ox, oy := pr.Advance(dt)
		if !pr.Alive {
			delete(m.projectiles, id) // ttl expired, gone the same tick
			continue
		}

		// clip the sweep at the first wall so nothing hits through cover
		ex, ey := pr.X, pr.Y
		hx, hy, hitWall := SweepHitsWall(ox, oy, pr.X, pr.Y, m.arena.Walls)
		if hitWall {
			ex, ey = hx, hy
		}

		for _, pid := range m.order {
			target := m.players[pid]
			if !target.Alive || target.ID == pr.OwnerID || pr.HasHit(target.ID) {
				continue
			}
			def := GetClassDef(target.Class)
			if !SweepHitsCircle(ox, oy, ex, ey, target.X, target.Y, def.Radius+ProjectileRadius) {
				continue
			}
			if pr.Explosive {
				m.explode(pr, target.X, target.Y)
				pr.Alive = false
				break
			}
			m.applyDamage(pr.OwnerID, target, pr.Damage)
			if pr.Piercing {
				pr.MarkHit(target.ID)
				continue
			}
			pr.Alive = false
			break
		}

		if pr.Alive && hitWall {
			if pr.Explosive {
				m.explode(pr, hx, hy)
			}
			pr.Alive = false
		}
		if !pr.Alive {
			delete(m.projectiles, id)
		}
	}
}

// explode applies radius falloff damage around the blast center. The owner
// is not exempt; rocket-jumping into your own blast costs health.
func (m *Match) explode(pr *Projectile, cx, cy float64) {
	for _, pid := range m.order {
		target := m.players[pid]
		if !target.Alive {
			continue
		}
		dmg := pr.FalloffDamage(Distance(cx, cy, target.X, target.Y))
		if dmg <= 0 {
			continue
		}
		m.applyDamage(pr.OwnerID, target, dmg)
	}
}

func (m *Match) applyDamage(attackerID string, target *Player, dmg int) {
	if dmg <= 0 || !target.Alive {
		return
	}
	died := target.TakeDamage(dmg)
	if attacker, ok := m.players[attackerID]; ok && attackerID != target.ID {
		attacker.DamageDealt += dmg
		if died {
			attacker.Kills++
		}
	}
	m.tickEvents = append(m.tickEvents, GameEvent{Kind: EvHit, PlayerID: attackerID, TargetID: target.ID, Amount: dmg})
	if died {
		m.tickEvents = append(m.tickEvents, GameEvent{Kind: EvKill, PlayerID: attackerID, TargetID: target.ID})
	}
}

func (m *Match) checkElimination() {
	if !m.machine.InCombat() || len(m.order) < 2 {
		return
	}
	var survivor string
	alive := 0
	for _, id := range m.order {
		if m.players[id].Alive {
			alive++
			survivor = id
		}
	}
	switch alive {
	case 1:
		m.machine.PlayerEliminated(survivor)
	case 0:
		m.machine.PlayerEliminated("") // mutual kill, round is a draw
	}
}

func (m *Match) emitDelta() {
	players := make([]*Player, 0, len(m.order))
	for _, id := range m.order {
		players = append(players, m.players[id])
	}
	events := make([]GameEvent, len(m.tickEvents))
	copy(events, m.tickEvents)
	d := m.deltas.Generate(players, m.projectiles, m.machine.Info(), events, time.Now().UnixMilli())
	m.emit(MatchEvent{Kind: EventDelta, Delta: d})
}

func (m *Match) emitFullSyncs() {
	if len(m.pendingResync) == 0 {
		return
	}
	for _, pid := range m.pendingResync {
		fs := m.deltas.FullSnapshot(time.Now().UnixMilli())
		m.emit(MatchEvent{Kind: EventFullSync, TargetID: pid, Full: fs})
	}
	m.pendingResync = m.pendingResync[:0]
}

// ---- round machine hooks (always called from tick context) ----

func (m *Match) onRoundReset(number int) {
	if number == 1 {
		m.startClock = m.clock
	}
	m.projectiles = make(map[string]*Projectile)
	for _, id := range m.order {
		p := m.players[id]
		p.ResetForRound(m.arena.Spawns[p.Slot])
		m.moveIntent[id] = [2]float64{}
		m.queues[id] = m.queues[id][:0]
	}
}

func (m *Match) onRoundStart(number int, duration float64) {
	spawns := make([]SpawnInfo, 0, len(m.order))
	for _, id := range m.order {
		p := m.players[id]
		sp := m.arena.Spawns[p.Slot]
		spawns = append(spawns, SpawnInfo{PlayerID: id, X: sp.X, Y: sp.Y, Facing: sp.Facing})
	}
	log.Info().Str("match", m.ID).Int("round", number).Msg("round started")
	m.emit(MatchEvent{Kind: EventRoundStart, RoundStart: &RoundStartMsg{
		RoundNumber:   number,
		RoundDuration: duration,
		Spawns:        spawns,
	}})
}

func (m *Match) onRoundEnd(number int, winnerID, reason string) {
	log.Info().Str("match", m.ID).Int("round", number).Str("winner", winnerID).Str("reason", reason).Msg("round ended")
	m.emit(MatchEvent{Kind: EventRoundEnd, RoundEnd: &RoundEndMsg{
		RoundNumber: number,
		WinnerID:    winnerID,
		Reason:      reason,
		Score:       m.machine.Score(),
	}})
}

func (m *Match) onMatchEnd(winnerID, reason string) {
	if m.resultSent {
		return
	}
	m.resultSent = true

	duration := m.clock - m.startClock
	if m.startClock == 0 && m.machine.Info().Number == 0 {
		duration = 0
	}
	end := &MatchEndMsg{
		WinnerID:   winnerID,
		Reason:     reason,
		FinalScore: m.machine.Score(),
		Duration:   duration,
	}
	ev := MatchEvent{Kind: EventMatchEnd, MatchEnd: end}
	if reason != ReasonAborted {
		ev.Result = m.buildResult(winnerID, reason, duration)
	}
	log.Info().Str("match", m.ID).Str("winner", winnerID).Str("reason", reason).
		Float64("duration", duration).Msg("match ended")
	m.emit(ev)

	// hold the loop open briefly so late messages drain, then tear down
	m.sched.Schedule(m.cfg.CleanupDelay, m.Stop)
}

func (m *Match) buildResult(winnerID, reason string, duration float64) *MatchResult {
	res := &MatchResult{
		MatchID:     m.ID,
		WinnerID:    winnerID,
		LoserID:     m.opponentOf(winnerID),
		Reason:      reason,
		Duration:    duration,
		Score:       m.machine.Score(),
		PlayerStats: make(map[string]PlayerResultStats, len(m.players)),
	}
	score := m.machine.Score()
	for id, p := range m.players {
		res.PlayerStats[id] = PlayerResultStats{
			Name:        p.Name,
			DamageDealt: p.DamageDealt,
			Kills:       p.Kills,
			RoundWins:   score[id],
		}
	}
	return res
}

var _ roundHooks = (*Match)(nil)

