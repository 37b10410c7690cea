package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// End-to-end tests over a real HTTP server and websocket connections. They
// exercise the full path: upgrade, control messages, the binary state stream,
// and the client-side delta processor consuming it.

type testServer struct {
	srv *httptest.Server
	hub *Hub
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	supervisor := NewSupervisor(nil)
	tokens := NewSessionTokens(nil)
	hub := NewHub(supervisor, tokens)
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(hub, "http://example.test"))
	t.Cleanup(func() {
		supervisor.Shutdown()
		srv.Close()
	})
	return &testServer{srv: srv, hub: hub}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
}

type wsClient struct {
	t       *testing.T
	conn    *websocket.Conn
	control chan InEnvelope
	binary  chan []byte
}

func dialWS(t *testing.T, ts *testServer) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	w := &wsClient{
		t:       t,
		conn:    conn,
		control: make(chan InEnvelope, 64),
		binary:  make(chan []byte, 1024),
	}
	t.Cleanup(func() { conn.Close() })
	go w.readLoop()
	return w
}

func (w *wsClient) readLoop() {
	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.BinaryMessage {
			select {
			case w.binary <- data:
			default: // the test fell behind; dropping is what a real client does
			}
			continue
		}
		var env InEnvelope
		if json.Unmarshal(data, &env) == nil {
			select {
			case w.control <- env:
			default:
			}
		}
	}
}

func (w *wsClient) send(msgType string, data interface{}) {
	w.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		w.t.Fatalf("marshal %s: %v", msgType, err)
	}
	env := map[string]interface{}{"t": msgType, "d": json.RawMessage(raw)}
	if err := w.conn.WriteJSON(env); err != nil {
		w.t.Fatalf("send %s: %v", msgType, err)
	}
}

// waitControl discards control messages until one of the wanted type arrives
func (w *wsClient) waitControl(msgType string, timeout time.Duration) InEnvelope {
	w.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case env := <-w.control:
			if env.T == msgType {
				return env
			}
			if env.T == MsgError {
				var e ErrorMsg
				json.Unmarshal(env.D, &e)
				w.t.Fatalf("waiting for %q, got error %q", msgType, e.Msg)
			}
		case <-deadline:
			w.t.Fatalf("timed out waiting for %q", msgType)
		}
	}
}

// waitFrame decodes binary frames until pred accepts one
func (w *wsClient) waitFrame(pred func(StateFrame) bool, timeout time.Duration) StateFrame {
	w.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case data := <-w.binary:
			var frame StateFrame
			if err := msgpack.Unmarshal(data, &frame); err != nil {
				w.t.Fatalf("bad binary frame: %v", err)
			}
			if pred(frame) {
				return frame
			}
		case <-deadline:
			w.t.Fatal("timed out waiting for a state frame")
		}
	}
}

func seatPlayers(t *testing.T, ts *testServer) (*wsClient, *wsClient, JoinedMsg, JoinedMsg) {
	t.Helper()
	c1 := dialWS(t, ts)
	c1.send(MsgCreate, CreateMsg{Name: "alice", Class: int(ClassVanguard)})
	env := c1.waitControl(MsgCreated, 3*time.Second)
	var seat1 JoinedMsg
	if err := json.Unmarshal(env.D, &seat1); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if seat1.Slot != 0 || seat1.Token == "" || seat1.JoinCode == "" {
		t.Fatalf("bad seat credentials: %+v", seat1)
	}

	c2 := dialWS(t, ts)
	// lowercase on purpose, the server normalizes join codes
	c2.send(MsgJoin, JoinMsg{Code: strings.ToLower(seat1.JoinCode), Name: "bob", Class: int(ClassWraith)})
	env = c2.waitControl(MsgJoined, 3*time.Second)
	var seat2 JoinedMsg
	if err := json.Unmarshal(env.D, &seat2); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if seat2.MatchID != seat1.MatchID || seat2.Slot != 1 {
		t.Fatalf("second seat mismatch: %+v", seat2)
	}
	c1.waitControl(MsgPeerJoined, 3*time.Second)
	return c1, c2, seat1, seat2
}

func TestDuelLifecycleOverWebsocket(t *testing.T) {
	ts := startTestServer(t)
	c1, c2, seat1, seat2 := seatPlayers(t, ts)

	// every fresh seat gets a full snapshot before deltas mean anything
	full := c2.waitFrame(func(f StateFrame) bool { return f.Full != nil }, 3*time.Second)
	if len(full.Full.Players) == 0 {
		t.Fatal("the snapshot should carry the seated players")
	}

	// a client-side processor fed from the stream converges on the match state
	dp := NewDeltaProcessor(DefaultDeltaProcessorConfig(), func(reason string) {
		c2.send(MsgResync, ResyncMsg{MatchID: seat2.MatchID, Reason: reason})
	})
	dp.ApplyFull(full.Full)

	c1.send(MsgReady, nil)
	c2.send(MsgReady, nil)

	deadline := time.After(5 * time.Second)
	for dp.Round.Phase != WireCountdown {
		select {
		case data := <-c2.binary:
			var frame StateFrame
			if err := msgpack.Unmarshal(data, &frame); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			if frame.Full != nil {
				dp.ApplyFull(frame.Full)
			} else if frame.Delta != nil {
				dp.ApplyDelta(frame.Delta)
			}
		case <-deadline:
			t.Fatalf("processor never saw the countdown, phase %q", dp.Round.Phase)
		}
	}
	if len(dp.Players) != 2 {
		t.Errorf("processor should track both players, got %d", len(dp.Players))
	}
	if _, ok := dp.Players[seat1.PlayerID]; !ok {
		t.Error("processor should know the creator's seat")
	}

	// an explicit resync produces a fresh targeted snapshot
	c2.send(MsgResync, ResyncMsg{MatchID: seat2.MatchID, Reason: "test"})
	c2.waitFrame(func(f StateFrame) bool { return f.Full != nil }, 3*time.Second)

	// leaving mid-countdown forfeits the match to the peer
	c1.send(MsgLeave, nil)
	c2.waitControl(MsgForfeited, 3*time.Second)
	env := c2.waitControl(MsgMatchEnd, 3*time.Second)
	var end MatchEndMsg
	if err := json.Unmarshal(env.D, &end); err != nil {
		t.Fatalf("decode match end: %v", err)
	}
	if end.WinnerID != seat2.PlayerID {
		t.Errorf("the remaining player should win, got %q", end.WinnerID)
	}
	if end.Reason != ReasonForfeit {
		t.Errorf("want forfeit, got %q", end.Reason)
	}
}

func TestReconnectOverWebsocket(t *testing.T) {
	ts := startTestServer(t)
	c1, c2, seat1, _ := seatPlayers(t, ts)

	c1.send(MsgReady, nil)
	c2.send(MsgReady, nil)

	// kill the transport without a close handshake; the seat survives
	c1.conn.Close()
	c2.waitControl(MsgPaused, 5*time.Second)

	c1b := dialWS(t, ts)
	c1b.send(MsgReconnect, ReconnectMsg{Token: seat1.Token})
	env := c1b.waitControl(MsgResumed, 3*time.Second)
	var seat JoinedMsg
	if err := json.Unmarshal(env.D, &seat); err != nil {
		t.Fatalf("decode resumed: %v", err)
	}
	if seat.PlayerID != seat1.PlayerID {
		t.Errorf("reconnect should restore the same seat, got %q", seat.PlayerID)
	}
	c2.waitControl(MsgUnpaused, 3*time.Second)

	// the resumed seat is immediately re-synced
	c1b.waitFrame(func(f StateFrame) bool { return f.Full != nil }, 3*time.Second)
}

func TestJoinUnknownCodeOverWebsocket(t *testing.T) {
	ts := startTestServer(t)
	c := dialWS(t, ts)
	c.send(MsgJoin, JoinMsg{Code: "NOSUCH", Name: "carol", Class: 0})

	select {
	case env := <-c.control:
		if env.T != MsgError {
			t.Fatalf("want an error, got %q", env.T)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no error arrived")
	}
}

func TestInputBatchOverWebsocket(t *testing.T) {
	ts := startTestServer(t)
	c1, c2, seat1, _ := seatPlayers(t, ts)

	// drive the match to active: ready through waiting, ready again to skip
	// the countdown
	c1.send(MsgReady, nil)
	c2.send(MsgReady, nil)
	time.Sleep(100 * time.Millisecond)
	c1.send(MsgReady, nil)
	c2.send(MsgReady, nil)

	c1.waitFrame(func(f StateFrame) bool {
		return f.Delta != nil && f.Delta.Round != nil && f.Delta.Round.Phase == WireActive
	}, 5*time.Second)

	c1.send(MsgInput, InputBatchMsg{
		MatchID: seat1.MatchID,
		Commands: []InputCommand{
			{Seq: 1, Type: CmdMove, Move: &MoveInput{DX: 1, DY: 0}},
		},
	})

	// the movement shows up in the stream as a changed position for alice
	c1.waitFrame(func(f StateFrame) bool {
		if f.Delta == nil {
			return false
		}
		for _, pd := range f.Delta.Players {
			if pd.ID == seat1.PlayerID && pd.X != nil {
				return true
			}
		}
		return false
	}, 5*time.Second)
}
