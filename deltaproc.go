package main

import "time"

// DeltaProcessorConfig bounds the processor's tolerance for reordering
type DeltaProcessorConfig struct {
	MaxBuffered    int           // out-of-order frames held before resync
	MaxMissing     int           // gap size tolerated before resync
	MissingTimeout time.Duration // how long a gap may stay open
}

// DefaultDeltaProcessorConfig returns the stock tolerances
func DefaultDeltaProcessorConfig() DeltaProcessorConfig {
	return DeltaProcessorConfig{
		MaxBuffered:    3,
		MaxMissing:     3,
		MissingTimeout: 100 * time.Millisecond,
	}
}

// ResyncFunc asks the server for a full snapshot
type ResyncFunc func(reason string)

// DeltaProcessor is the client-side half of the protocol. It applies frames
// in sequence order, buffers out-of-order arrivals, detects gaps, and
// requests a full resync when a gap is unrecoverable. Local state is never
// authoritative; it is whatever the last accepted server frame made it.
type DeltaProcessor struct {
	cfg           DeltaProcessorConfig
	requestResync ResyncFunc
	now           func() time.Time

	Players     map[string]PlayerSnapshot
	Projectiles map[string]ProjectileSnapshot
	Round       RoundInfo

	lastSeq        uint64
	synced         bool
	buffer         map[uint64]*DeltaUpdate
	missing        map[uint64]time.Time // gap sequence -> deadline
	resyncInFlight bool
}

// NewDeltaProcessor creates an empty processor. Nothing applies until the
// first full sync arrives.
func NewDeltaProcessor(cfg DeltaProcessorConfig, resync ResyncFunc) *DeltaProcessor {
	return &DeltaProcessor{
		cfg:           cfg,
		requestResync: resync,
		now:           time.Now,
		Players:       make(map[string]PlayerSnapshot),
		Projectiles:   make(map[string]ProjectileSnapshot),
		buffer:        make(map[uint64]*DeltaUpdate),
		missing:       make(map[uint64]time.Time),
	}
}

// LastSequence returns the sequence of the last applied frame
func (dp *DeltaProcessor) LastSequence() uint64 { return dp.lastSeq }

// Synced reports whether a full sync has been applied yet
func (dp *DeltaProcessor) Synced() bool { return dp.synced }

// ApplyFull rebuilds local state from scratch. Idempotent regardless of what
// the processor held before: buffers, gap tracking, and both entity maps are
// discarded wholesale.
func (dp *DeltaProcessor) ApplyFull(fs *FullState) {
	dp.Players = make(map[string]PlayerSnapshot, len(fs.Players))
	for _, p := range fs.Players {
		dp.Players[p.ID] = p
	}
	dp.Projectiles = make(map[string]ProjectileSnapshot, len(fs.Projectiles))
	for _, pr := range fs.Projectiles {
		dp.Projectiles[pr.ID] = pr
	}
	dp.Round = fs.Round
	dp.lastSeq = fs.Header.Sequence
	dp.synced = true
	dp.buffer = make(map[uint64]*DeltaUpdate)
	dp.missing = make(map[uint64]time.Time)
	dp.resyncInFlight = false
}

// ApplyDelta feeds one incremental frame. Returns the game events of every
// frame that became applicable, in order.
func (dp *DeltaProcessor) ApplyDelta(d *DeltaUpdate) []GameEvent {
	if !dp.synced {
		dp.resync("never_synced")
		return nil
	}
	seq := d.Header.Sequence
	if seq <= dp.lastSeq {
		return nil // duplicate or already superseded
	}
	if seq == dp.lastSeq+1 {
		events := dp.merge(d)
		events = append(events, dp.drainBuffer()...)
		return events
	}

	// out of order: hold the frame and mark the gap
	delete(dp.missing, seq)
	if len(dp.buffer) >= dp.cfg.MaxBuffered {
		dp.resync("buffer_overflow")
		return nil
	}
	dp.buffer[seq] = d
	deadline := dp.now().Add(dp.cfg.MissingTimeout)
	for s := dp.lastSeq + 1; s < seq; s++ {
		if _, buffered := dp.buffer[s]; buffered {
			continue
		}
		if _, marked := dp.missing[s]; !marked {
			dp.missing[s] = deadline
		}
	}
	if len(dp.missing) > dp.cfg.MaxMissing {
		dp.resync("gap_too_large")
	}
	return nil
}

// CheckTimeouts requests a resync if any marked gap stayed open past its
// deadline. Call it on the client's own cadence.
func (dp *DeltaProcessor) CheckTimeouts() {
	now := dp.now()
	for _, deadline := range dp.missing {
		if now.After(deadline) {
			dp.resync("gap_timeout")
			return
		}
	}
}

func (dp *DeltaProcessor) drainBuffer() []GameEvent {
	var events []GameEvent
	for {
		next, ok := dp.buffer[dp.lastSeq+1]
		if !ok {
			break
		}
		delete(dp.buffer, dp.lastSeq+1)
		events = append(events, dp.merge(next)...)
	}
	return events
}

// merge applies one in-sequence frame. All sub-changes land before the
// method returns; callers never observe a half-applied frame.
func (dp *DeltaProcessor) merge(d *DeltaUpdate) []GameEvent {
	for _, pd := range d.Players {
		snap := dp.Players[pd.ID]
		snap.ID = pd.ID
		if pd.X != nil {
			snap.X = *pd.X
		}
		if pd.Y != nil {
			snap.Y = *pd.Y
		}
		if pd.VX != nil {
			snap.VX = *pd.VX
		}
		if pd.VY != nil {
			snap.VY = *pd.VY
		}
		if pd.Facing != nil {
			snap.Facing = *pd.Facing
		}
		if pd.HP != nil {
			snap.HP = *pd.HP
		}
		if pd.Armor != nil {
			snap.Armor = *pd.Armor
		}
		if pd.Alive != nil {
			snap.Alive = *pd.Alive
		}
		dp.Players[pd.ID] = snap
	}
	for _, snap := range d.Created {
		dp.Projectiles[snap.ID] = snap
	}
	for _, pd := range d.Updated {
		snap, ok := dp.Projectiles[pd.ID]
		if !ok {
			continue
		}
		if pd.X != nil {
			snap.X = *pd.X
		}
		if pd.Y != nil {
			snap.Y = *pd.Y
		}
		if pd.VX != nil {
			snap.VX = *pd.VX
		}
		if pd.VY != nil {
			snap.VY = *pd.VY
		}
		dp.Projectiles[pd.ID] = snap
	}
	for _, id := range d.Destroyed {
		delete(dp.Projectiles, id)
	}
	if d.Round != nil {
		dp.Round = *d.Round
	}
	dp.lastSeq = d.Header.Sequence
	for s := range dp.missing {
		if s <= dp.lastSeq {
			delete(dp.missing, s)
		}
	}
	return d.Events
}

// resync fires the request at most once per gap episode; the flag clears
// only when the full sync lands.
func (dp *DeltaProcessor) resync(reason string) {
	if dp.resyncInFlight {
		return
	}
	dp.resyncInFlight = true
	if dp.requestResync != nil {
		dp.requestResync(reason)
	}
}
