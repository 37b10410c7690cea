package main

// DeltaGenerator diffs each new authoritative snapshot against the last
// emitted one and produces compact incremental frames. The baseline always
// tracks what was last put on the wire, so a client that applies every frame
// in sequence converges exactly.
type DeltaGenerator struct {
	seq         uint64
	players     map[string]PlayerSnapshot
	projectiles map[string]ProjectileSnapshot
	round       RoundInfo
	primed      bool
}

// NewDeltaGenerator returns a generator with no baseline; the first frame a
// client receives must be a full sync.
func NewDeltaGenerator() *DeltaGenerator {
	return &DeltaGenerator{
		players:     make(map[string]PlayerSnapshot),
		projectiles: make(map[string]ProjectileSnapshot),
	}
}

// Sequence returns the sequence number of the last emitted frame
func (g *DeltaGenerator) Sequence() uint64 { return g.seq }

// Generate emits the incremental frame for the current state and advances
// the baseline. The returned frame is immutable.
func (g *DeltaGenerator) Generate(players []*Player, projectiles map[string]*Projectile, round RoundInfo, events []GameEvent, nowMillis int64) *DeltaUpdate {
	g.seq++
	d := &DeltaUpdate{
		Header: DeltaHeader{Sequence: g.seq, Timestamp: nowMillis, Kind: DeltaIncremental},
		Events: events,
	}

	newPlayers := make(map[string]PlayerSnapshot, len(players))
	for _, p := range players {
		snap := p.Snapshot()
		newPlayers[snap.ID] = snap
		prev, seen := g.players[snap.ID]
		if !seen {
			d.Players = append(d.Players, fullPlayerDelta(snap))
			continue
		}
		if pd, changed := diffPlayer(prev, snap); changed {
			d.Players = append(d.Players, pd)
		}
	}

	newProjectiles := make(map[string]ProjectileSnapshot, len(projectiles))
	for id, pr := range projectiles {
		snap := pr.Snapshot()
		newProjectiles[id] = snap
		prev, seen := g.projectiles[id]
		if !seen {
			d.Created = append(d.Created, snap)
			continue
		}
		if pd, changed := diffProjectile(prev, snap); changed {
			d.Updated = append(d.Updated, pd)
		}
	}
	for id := range g.projectiles {
		if _, still := newProjectiles[id]; !still {
			d.Destroyed = append(d.Destroyed, id)
		}
	}

	if !g.primed || !roundInfoEqual(g.round, round) {
		r := round
		d.Round = &r
	}

	g.players = newPlayers
	g.projectiles = newProjectiles
	g.round = round
	g.primed = true
	return d
}

// FullSnapshot builds a complete frame from the current baseline. It carries
// the baseline's sequence number, so the next incremental frame follows it
// with sequence+1.
func (g *DeltaGenerator) FullSnapshot(nowMillis int64) *FullState {
	fs := &FullState{
		Header:      DeltaHeader{Sequence: g.seq, Timestamp: nowMillis, Kind: DeltaFull},
		Players:     make([]PlayerSnapshot, 0, len(g.players)),
		Projectiles: make([]ProjectileSnapshot, 0, len(g.projectiles)),
		Round:       g.round,
	}
	for _, p := range g.players {
		fs.Players = append(fs.Players, p)
	}
	for _, pr := range g.projectiles {
		fs.Projectiles = append(fs.Projectiles, pr)
	}
	return fs
}

func fullPlayerDelta(s PlayerSnapshot) PlayerDelta {
	return PlayerDelta{
		ID:     s.ID,
		X:      f64p(s.X),
		Y:      f64p(s.Y),
		VX:     f64p(s.VX),
		VY:     f64p(s.VY),
		Facing: f64p(s.Facing),
		HP:     intp(s.HP),
		Armor:  intp(s.Armor),
		Alive:  boolp(s.Alive),
	}
}

func diffPlayer(prev, next PlayerSnapshot) (PlayerDelta, bool) {
	pd := PlayerDelta{ID: next.ID}
	changed := false
	if prev.X != next.X {
		pd.X = f64p(next.X)
		changed = true
	}
	if prev.Y != next.Y {
		pd.Y = f64p(next.Y)
		changed = true
	}
	if prev.VX != next.VX {
		pd.VX = f64p(next.VX)
		changed = true
	}
	if prev.VY != next.VY {
		pd.VY = f64p(next.VY)
		changed = true
	}
	if prev.Facing != next.Facing {
		pd.Facing = f64p(next.Facing)
		changed = true
	}
	if prev.HP != next.HP {
		pd.HP = intp(next.HP)
		changed = true
	}
	if prev.Armor != next.Armor {
		pd.Armor = intp(next.Armor)
		changed = true
	}
	if prev.Alive != next.Alive {
		pd.Alive = boolp(next.Alive)
		changed = true
	}
	return pd, changed
}

func diffProjectile(prev, next ProjectileSnapshot) (ProjectileDelta, bool) {
	pd := ProjectileDelta{ID: next.ID}
	changed := false
	if prev.X != next.X {
		pd.X = f64p(next.X)
		changed = true
	}
	if prev.Y != next.Y {
		pd.Y = f64p(next.Y)
		changed = true
	}
	if prev.VX != next.VX {
		pd.VX = f64p(next.VX)
		changed = true
	}
	if prev.VY != next.VY {
		pd.VY = f64p(next.VY)
		changed = true
	}
	return pd, changed
}

func roundInfoEqual(a, b RoundInfo) bool {
	if a.Number != b.Number || a.Phase != b.Phase || a.TimeLeft != b.TimeLeft {
		return false
	}
	if len(a.Score) != len(b.Score) {
		return false
	}
	for id, s := range a.Score {
		if b.Score[id] != s {
			return false
		}
	}
	return true
}

func f64p(v float64) *float64 { return &v }
func intp(v int) *int         { return &v }
func boolp(v bool) *bool      { return &v }
