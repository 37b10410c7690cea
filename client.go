package main

import (
	"encoding/json"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufSize    = 256
	maxNameLen     = 16
	maxBatchSize   = 32

	// token bucket for incoming messages: sustained 60/s, bursts to 120
	msgRateLimit = 60
	msgRateBurst = 120
)

// Client represents one WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	limiter    *rate.Limiter

	matchID  string
	playerID string
	left     bool // explicit leave already processed
}

// NewClient wraps an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
		limiter:    rate.NewLimiter(rate.Limit(msgRateLimit), msgRateBurst),
	}
}

// ReadPump reads messages from the connection until it drops, then reports
// the classified disconnect cause to the match.
func (c *Client) ReadPump() {
	var readErr error
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
		c.reportDrop(readErr)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("addr", c.remoteAddr).Msg("ws read error")
			}
			readErr = err
			break
		}
		// over-rate messages are dropped, not disconnected
		if !c.limiter.Allow() {
			continue
		}
		c.handleMessage(message)
	}
}

// reportDrop notifies the match of a lost connection unless the client
// already left explicitly.
func (c *Client) reportDrop(err error) {
	if c.matchID == "" || c.left {
		return
	}
	cause := ClassifyDisconnect(err)
	c.hub.supervisor.Detach(c.matchID, c.playerID)
	if m := c.hub.supervisor.GetMatch(c.matchID); m != nil {
		m.NotifyDisconnect(c.playerID, cause)
	}
}

// WritePump writes queued messages and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 0xFF prefix marks frames queued by SendBinary
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON queues a JSON control message
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("marshal control message")
		return
	}
	c.sendRaw(data)
}

// SendBinary queues a binary state frame, prefixed so WritePump can tell it
// apart from text.
func (c *Client) SendBinary(data []byte) {
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	c.sendRaw(msg)
}

func (c *Client) sendRaw(data []byte) {
	defer func() { recover() }() // send on closed channel during unregister
	select {
	case c.send <- data:
	default:
		// client too slow; dropping beats blocking the sender
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming control messages
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}
	switch env.T {
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgReconnect:
		c.handleReconnect(env.D)
	case MsgReady:
		c.handleReady()
	case MsgInput:
		c.handleInput(env.D)
	case MsgResync:
		c.handleResync(env.D)
	case MsgLeave:
		c.handleLeave()
	}
}

func cleanName(name string) string {
	if name == "" {
		name = "Duelist"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

func (c *Client) handleCreate(data json.RawMessage) {
	if c.matchID != "" {
		c.sendError("already in a match")
		return
	}
	var msg CreateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	m := c.hub.supervisor.CreateMatch(DefaultMatchConfig(), DefaultArena())
	if m == nil {
		c.sendError("too many active matches")
		return
	}
	c.seat(m, MsgCreated, cleanName(msg.Name), ClassID(msg.Class))
}

func (c *Client) handleJoin(data json.RawMessage) {
	if c.matchID != "" {
		c.sendError("already in a match")
		return
	}
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	m := c.hub.supervisor.FindByCode(msg.Code)
	if m == nil {
		c.sendError("match not found")
		return
	}
	c.seat(m, MsgJoined, cleanName(msg.Name), ClassID(msg.Class))
}

// seat takes a place in the match and replies with the seat credentials
func (c *Client) seat(m *Match, replyType, name string, class ClassID) {
	p, opponent, err := m.AddPlayer(name, class)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	token, err := c.hub.tokens.Issue(m.ID, p.ID)
	if err != nil {
		// release the seat, or the opponent waits out the seat forever
		m.NotifyDisconnect(p.ID, CauseIntentional)
		c.sendError("internal error")
		return
	}
	c.matchID = m.ID
	c.playerID = p.ID
	c.left = false
	c.hub.supervisor.Attach(m.ID, p.ID, c)
	c.SendJSON(Envelope{T: replyType, Data: JoinedMsg{
		MatchID:  m.ID,
		PlayerID: p.ID,
		JoinCode: m.JoinCode,
		Token:    token,
		Slot:     p.Slot,
		Arena:    m.arena.Name,
	}})
	if opponent != "" {
		c.hub.supervisor.SendTo(m.ID, opponent, Envelope{T: MsgPeerJoined, Data: map[string]string{
			"pid":  p.ID,
			"name": p.Name,
		}})
	}
}

func (c *Client) handleReconnect(data json.RawMessage) {
	if c.matchID != "" {
		c.sendError("already in a match")
		return
	}
	var msg ReconnectMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	mid, pid, err := c.hub.tokens.Validate(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}
	m := c.hub.supervisor.GetMatch(mid)
	if m == nil {
		c.sendError("match no longer exists")
		return
	}
	p, err := m.Reconnect(pid)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.matchID = mid
	c.playerID = pid
	c.left = false
	c.hub.supervisor.Attach(mid, pid, c)
	c.SendJSON(Envelope{T: MsgResumed, Data: JoinedMsg{
		MatchID:  mid,
		PlayerID: pid,
		JoinCode: m.JoinCode,
		Token:    msg.Token,
		Slot:     p.Slot,
		Arena:    m.arena.Name,
	}})
}

func (c *Client) handleReady() {
	if m := c.currentMatch(); m != nil {
		m.NotifyReady(c.playerID)
	}
}

func (c *Client) handleInput(data json.RawMessage) {
	m := c.currentMatch()
	if m == nil {
		return
	}
	var batch InputBatchMsg
	if err := json.Unmarshal(data, &batch); err != nil {
		return
	}
	if batch.MatchID != c.matchID || len(batch.Commands) == 0 {
		return
	}
	if len(batch.Commands) > maxBatchSize {
		batch.Commands = batch.Commands[:maxBatchSize]
	}
	for i := range batch.Commands {
		sanitizeCommand(&batch.Commands[i])
	}
	m.EnqueueInputs(c.playerID, batch.Commands)
}

// sanitizeCommand clamps client-supplied values into their legal ranges;
// anything wilder is a broken or hostile client, not an error to surface.
// NaN and Inf collapse to zero before clamping, since Clamp passes NaN
// through untouched.
func sanitizeCommand(in *InputCommand) {
	if in.Move != nil {
		in.Move.DX = Clamp(finiteOrZero(in.Move.DX), -1, 1)
		in.Move.DY = Clamp(finiteOrZero(in.Move.DY), -1, 1)
	}
	if in.Look != nil {
		in.Look.Facing = NormalizeAngle(finiteOrZero(in.Look.Facing))
	}
	if in.Ability != nil {
		in.Ability.DX = Clamp(finiteOrZero(in.Ability.DX), -1, 1)
		in.Ability.DY = Clamp(finiteOrZero(in.Ability.DY), -1, 1)
	}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (c *Client) handleResync(data json.RawMessage) {
	m := c.currentMatch()
	if m == nil {
		return
	}
	var msg ResyncMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.MatchID != c.matchID {
		return
	}
	log.Debug().Str("match", c.matchID).Str("player", c.playerID).Str("reason", msg.Reason).Msg("full sync requested")
	m.RequestFullSync(c.playerID, msg.Reason)
}

func (c *Client) handleLeave() {
	m := c.currentMatch()
	if m == nil {
		return
	}
	c.left = true
	c.hub.supervisor.Detach(c.matchID, c.playerID)
	m.NotifyDisconnect(c.playerID, CauseIntentional)
	c.matchID = ""
	c.playerID = ""
}

func (c *Client) currentMatch() *Match {
	if c.matchID == "" {
		return nil
	}
	return c.hub.supervisor.GetMatch(c.matchID)
}
