package main

import "encoding/json"

// Client -> Server message types
const (
	MsgCreate    = "create"
	MsgJoin      = "join"
	MsgReconnect = "reconnect"
	MsgReady     = "ready"
	MsgInput     = "input"  // input_batch
	MsgResync    = "resync" // request_full_sync
	MsgLeave     = "leave"
)

// Server -> Client message types
const (
	MsgCreated     = "created"
	MsgJoined      = "joined"
	MsgPeerJoined  = "peer_joined"
	MsgResumed     = "resumed"
	MsgRoundStart  = "round_start"
	MsgRoundEnd    = "round_end"
	MsgMatchEnd    = "match_end"
	MsgPaused      = "player_paused"      // peer temporarily disconnected
	MsgUnpaused    = "player_reconnected" // peer back, match resumed
	MsgForfeited   = "player_forfeited"   // disconnect finalized
	MsgMatchFailed = "match_failed"
	MsgError       = "error"
)

// Envelope wraps all outgoing control messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// Input command kinds
const (
	CmdMove    = "move"
	CmdLook    = "look"
	CmdAttack  = "attack"
	CmdAbility = "ability"
)

// MoveInput is a movement intent: a direction vector, normalized server-side
type MoveInput struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// LookInput sets the facing angle in radians
type LookInput struct {
	Facing float64 `json:"f"`
}

// AttackInput fires the class weapon along the current facing
type AttackInput struct{}

// AbilityInput triggers the class ability (dash along the move direction)
type AbilityInput struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// InputCommand is one queued player command. Exactly one payload pointer is
// set, matching Type.
type InputCommand struct {
	Seq        uint32        `json:"q"`
	Type       string        `json:"t"`
	ClientTime int64         `json:"ct"` // unix millis, informational only
	Move       *MoveInput    `json:"mv,omitempty"`
	Look       *LookInput    `json:"lk,omitempty"`
	Attack     *AttackInput  `json:"at,omitempty"`
	Ability    *AbilityInput `json:"ab,omitempty"`
}

// InputBatchMsg carries queued commands from one client
type InputBatchMsg struct {
	MatchID  string         `json:"mid"`
	Commands []InputCommand `json:"cmds"`
}

// CreateMsg requests a new match
type CreateMsg struct {
	Name  string `json:"name"`
	Class int    `json:"class"`
}

// JoinMsg joins an existing match by join code
type JoinMsg struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Class int    `json:"class"`
}

// ReconnectMsg resumes a paused seat with the token issued at join
type ReconnectMsg struct {
	Token string `json:"token"`
}

// ResyncMsg asks the server for a full state snapshot
type ResyncMsg struct {
	MatchID string `json:"mid"`
	Reason  string `json:"reason"`
}

// JoinedMsg confirms a seat in a match
type JoinedMsg struct {
	MatchID  string `json:"mid"`
	PlayerID string `json:"pid"`
	JoinCode string `json:"code"`
	Token    string `json:"token"` // reconnect token
	Slot     int    `json:"slot"`
	Arena    string `json:"arena"`
}

// ErrorMsg sends an error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// Round phases on the wire
const (
	WireWaiting      = "waiting"
	WireCountdown    = "countdown"
	WireActive       = "active"
	WireSuddenDeath  = "sudden_death"
	WireEnded        = "ended"
	WireIntermission = "intermission"
	WireMatchEnded   = "match_ended"
)

// RoundInfo is the round-level state shared with clients
type RoundInfo struct {
	Number   int            `json:"n" msgpack:"n"`
	Phase    string         `json:"ph" msgpack:"ph"`
	TimeLeft float64        `json:"tl" msgpack:"tl"`
	Score    map[string]int `json:"sc" msgpack:"sc"` // playerID -> round wins
}

// RoundStartMsg announces a round going live
type RoundStartMsg struct {
	RoundNumber   int         `json:"n"`
	RoundDuration float64     `json:"dur"`
	Spawns        []SpawnInfo `json:"spawns"`
}

// SpawnInfo is a player spawn assignment
type SpawnInfo struct {
	PlayerID string  `json:"pid"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Facing   float64 `json:"f"`
}

// RoundEndMsg announces a finished round
type RoundEndMsg struct {
	RoundNumber int            `json:"n"`
	WinnerID    string         `json:"wid"` // empty on a draw
	Reason      string         `json:"reason"`
	Score       map[string]int `json:"sc"`
}

// MatchEndMsg announces the finished match
type MatchEndMsg struct {
	WinnerID   string         `json:"wid"`
	Reason     string         `json:"reason"`
	FinalScore map[string]int `json:"sc"`
	Duration   float64        `json:"dur"` // seconds
}

// PauseMsg tells the peer a player dropped and the match is held open
type PauseMsg struct {
	PlayerID string  `json:"pid"`
	GraceSec float64 `json:"grace"`
}

// ResumeMsg tells the peer a paused player is back
type ResumeMsg struct {
	PlayerID string `json:"pid"`
}

// ForfeitMsg tells the peer a disconnect was finalized
type ForfeitMsg struct {
	PlayerID string `json:"pid"`
	Cause    string `json:"cause"`
}

// ---- binary state frames (msgpack) ----

// Delta kinds
const (
	DeltaFull        = "full"
	DeltaIncremental = "incremental"
)

// DeltaHeader orders and stamps every state frame
type DeltaHeader struct {
	Sequence  uint64 `msgpack:"q"`
	Timestamp int64  `msgpack:"ts"` // unix millis
	Kind      string `msgpack:"k"`
}

// PlayerSnapshot is the complete wire state of one player
type PlayerSnapshot struct {
	ID     string  `msgpack:"id"`
	Name   string  `msgpack:"n"`
	Class  int     `msgpack:"c"`
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
	VX     float64 `msgpack:"vx"`
	VY     float64 `msgpack:"vy"`
	Facing float64 `msgpack:"f"`
	HP     int     `msgpack:"hp"`
	MaxHP  int     `msgpack:"mhp"`
	Armor  int     `msgpack:"ar"`
	Alive  bool    `msgpack:"a"`
}

// ProjectileSnapshot is the complete wire state of one projectile
type ProjectileSnapshot struct {
	ID      string  `msgpack:"id"`
	OwnerID string  `msgpack:"o"`
	X       float64 `msgpack:"x"`
	Y       float64 `msgpack:"y"`
	VX      float64 `msgpack:"vx"`
	VY      float64 `msgpack:"vy"`
}

// PlayerDelta carries only the fields that changed since the baseline
type PlayerDelta struct {
	ID     string   `msgpack:"id"`
	X      *float64 `msgpack:"x,omitempty"`
	Y      *float64 `msgpack:"y,omitempty"`
	VX     *float64 `msgpack:"vx,omitempty"`
	VY     *float64 `msgpack:"vy,omitempty"`
	Facing *float64 `msgpack:"f,omitempty"`
	HP     *int     `msgpack:"hp,omitempty"`
	Armor  *int     `msgpack:"ar,omitempty"`
	Alive  *bool    `msgpack:"a,omitempty"`
}

// ProjectileDelta carries position updates for a live projectile
type ProjectileDelta struct {
	ID string   `msgpack:"id"`
	X  *float64 `msgpack:"x,omitempty"`
	Y  *float64 `msgpack:"y,omitempty"`
	VX *float64 `msgpack:"vx,omitempty"`
	VY *float64 `msgpack:"vy,omitempty"`
}

// GameEvent is an in-band tick event (kills, hits) carried inside deltas
type GameEvent struct {
	Kind     string `msgpack:"k"`
	PlayerID string `msgpack:"pid,omitempty"`
	TargetID string `msgpack:"tid,omitempty"`
	Amount   int    `msgpack:"amt,omitempty"`
}

// Game event kinds
const (
	EvHit  = "hit"
	EvKill = "kill"
	EvDash = "dash"
)

// DeltaUpdate is one incremental state frame. Immutable once emitted.
type DeltaUpdate struct {
	Header      DeltaHeader          `msgpack:"h"`
	Players     []PlayerDelta        `msgpack:"p,omitempty"`
	Created     []ProjectileSnapshot `msgpack:"pc,omitempty"`
	Updated     []ProjectileDelta    `msgpack:"pu,omitempty"`
	Destroyed   []string             `msgpack:"pd,omitempty"`
	Round       *RoundInfo           `msgpack:"r,omitempty"`
	Events      []GameEvent          `msgpack:"ev,omitempty"`
}

// FullState is a complete snapshot sent on (re)initialization or resync
type FullState struct {
	Header      DeltaHeader          `msgpack:"h"`
	Players     []PlayerSnapshot     `msgpack:"p"`
	Projectiles []ProjectileSnapshot `msgpack:"pr"`
	Round       RoundInfo            `msgpack:"r"`
}

// StateFrame is the binary websocket frame: exactly one of the two is set
type StateFrame struct {
	Delta *DeltaUpdate `msgpack:"d,omitempty"`
	Full  *FullState   `msgpack:"f,omitempty"`
}
