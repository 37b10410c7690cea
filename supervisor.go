package main

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

const maxActiveMatches = 200

// Broadcaster delivers messages to one connected player
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

type matchEntry struct {
	match   *Match
	mu      sync.RWMutex
	clients map[string]Broadcaster // playerID -> connection
}

// Supervisor owns the matchId-keyed registry of live matches. It consumes
// each match's event channel, fans events out to the attached connections,
// and hands finished results to persistence.
type Supervisor struct {
	mu      sync.RWMutex
	matches map[string]*matchEntry
	byCode  map[string]string // join code -> matchID

	db *DB

	finalMu   sync.Mutex
	finalized map[string]bool
}

// NewSupervisor creates a supervisor backed by the given store (nil disables
// persistence).
func NewSupervisor(db *DB) *Supervisor {
	return &Supervisor{
		matches:   make(map[string]*matchEntry),
		byCode:    make(map[string]string),
		db:        db,
		finalized: make(map[string]bool),
	}
}

// CreateMatch registers and starts a new match. Returns nil at capacity.
func (s *Supervisor) CreateMatch(cfg MatchConfig, arena *Arena) *Match {
	s.mu.Lock()
	if len(s.matches) >= maxActiveMatches {
		s.mu.Unlock()
		return nil
	}
	m := NewMatch(cfg, arena)
	entry := &matchEntry{match: m, clients: make(map[string]Broadcaster, 2)}
	s.matches[m.ID] = entry
	s.byCode[m.JoinCode] = m.ID
	s.mu.Unlock()

	m.Start()
	go s.consume(entry)
	log.Info().Str("match", m.ID).Str("code", m.JoinCode).Msg("match created")
	return m
}

// GetMatch returns a live match by id
func (s *Supervisor) GetMatch(id string) *Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.matches[id]; ok {
		return entry.match
	}
	return nil
}

// FindByCode returns a live match by its join code
func (s *Supervisor) FindByCode(code string) *Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byCode[strings.ToUpper(strings.TrimSpace(code))]; ok {
		if entry, ok := s.matches[id]; ok {
			return entry.match
		}
	}
	return nil
}

// Attach binds a connection to a seat for event delivery
func (s *Supervisor) Attach(matchID, playerID string, c Broadcaster) {
	s.mu.RLock()
	entry, ok := s.matches[matchID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.clients[playerID] = c
	entry.mu.Unlock()
}

// Detach unbinds a connection; the seat itself survives for reconnection
func (s *Supervisor) Detach(matchID, playerID string) {
	s.mu.RLock()
	entry, ok := s.matches[matchID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	delete(entry.clients, playerID)
	entry.mu.Unlock()
}

// SendTo delivers a control message to one attached player
func (s *Supervisor) SendTo(matchID, playerID string, msg Envelope) {
	s.mu.RLock()
	entry, ok := s.matches[matchID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	entry.mu.RLock()
	c, ok := entry.clients[playerID]
	entry.mu.RUnlock()
	if ok {
		c.SendJSON(msg)
	}
}

// MatchCount returns the number of live matches
func (s *Supervisor) MatchCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

// Shutdown force-ends every live match
func (s *Supervisor) Shutdown() {
	s.mu.RLock()
	entries := make([]*matchEntry, 0, len(s.matches))
	for _, e := range s.matches {
		entries = append(entries, e)
	}
	s.mu.RUnlock()
	for _, e := range entries {
		e.match.ForceEnd("server shutdown")
	}
}

func (s *Supervisor) remove(m *Match) {
	s.mu.Lock()
	delete(s.matches, m.ID)
	delete(s.byCode, m.JoinCode)
	s.mu.Unlock()
	s.finalMu.Lock()
	delete(s.finalized, m.ID)
	s.finalMu.Unlock()
	log.Info().Str("match", m.ID).Msg("match removed")
}

// consume is the per-match fan-out goroutine; it exits when the match loop
// closes its event channel, then drops the registry entry.
func (s *Supervisor) consume(entry *matchEntry) {
	defer s.remove(entry.match)
	for ev := range entry.match.Events() {
		s.dispatch(entry, ev)
	}
}

func (s *Supervisor) dispatch(entry *matchEntry, ev MatchEvent) {
	switch ev.Kind {
	case EventDelta:
		s.sendFrame(entry, "", StateFrame{Delta: ev.Delta})
	case EventFullSync:
		s.sendFrame(entry, ev.TargetID, StateFrame{Full: ev.Full})
	case EventRoundStart:
		s.broadcastJSON(entry, Envelope{T: MsgRoundStart, Data: ev.RoundStart})
	case EventRoundEnd:
		s.broadcastJSON(entry, Envelope{T: MsgRoundEnd, Data: ev.RoundEnd})
	case EventMatchEnd:
		s.broadcastJSON(entry, Envelope{T: MsgMatchEnd, Data: ev.MatchEnd})
		if ev.Result != nil {
			s.persistResult(ev.Result)
		}
	case EventPlayerPaused:
		s.broadcastJSON(entry, Envelope{T: MsgPaused, Data: ev.Paused})
	case EventPlayerResumed:
		s.broadcastJSON(entry, Envelope{T: MsgUnpaused, Data: ev.Resumed})
	case EventPlayerForfeited:
		s.broadcastJSON(entry, Envelope{T: MsgForfeited, Data: ev.Forfeited})
	case EventMatchFailed:
		s.broadcastJSON(entry, Envelope{T: MsgMatchFailed, Data: ErrorMsg{Msg: ev.FailMsg}})
	}
}

// sendFrame msgpack-encodes a state frame and delivers it to one player, or
// to everyone when targetID is empty.
func (s *Supervisor) sendFrame(entry *matchEntry, targetID string, frame StateFrame) {
	data, err := msgpack.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Str("match", entry.match.ID).Msg("encode state frame")
		return
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	if targetID != "" {
		if c, ok := entry.clients[targetID]; ok {
			c.SendBinary(data)
		}
		return
	}
	for _, c := range entry.clients {
		c.SendBinary(data)
	}
}

func (s *Supervisor) broadcastJSON(entry *matchEntry, msg Envelope) {
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	for _, c := range entry.clients {
		c.SendJSON(msg)
	}
}

// persistResult hands the final result to storage, retrying with backoff a
// bounded number of times. Exhausted retries are logged; the in-memory
// match-end broadcast already happened and is never rolled back.
func (s *Supervisor) persistResult(res *MatchResult) {
	s.finalMu.Lock()
	if s.finalized[res.MatchID] {
		s.finalMu.Unlock()
		return
	}
	s.finalized[res.MatchID] = true
	s.finalMu.Unlock()

	if s.db == nil {
		return
	}
	backoff := 250 * time.Millisecond
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if err = s.db.SaveMatchResult(res); err == nil {
			return
		}
		log.Warn().Err(err).Str("match", res.MatchID).Int("attempt", attempt).Msg("persist result failed")
		time.Sleep(backoff)
		backoff *= 2
	}
	log.Error().Err(err).Str("match", res.MatchID).Msg("giving up on result persistence")
}
