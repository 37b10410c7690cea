package main

import "sync"

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// TokenSource issues and validates reconnect credentials for a seat
type TokenSource interface {
	Issue(matchID, playerID string) (string, error)
	Validate(token string) (matchID, playerID string, err error)
}

// Hub tracks connected clients and enforces connection limits. Match routing
// lives in the Supervisor; the hub is purely the transport-side registry.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	supervisor *Supervisor
	tokens     TokenSource
}

// NewHub creates a hub wired to the supervisor and token issuer
func NewHub(supervisor *Supervisor, tokens TokenSource) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		ipConns:    make(map[string]int),
		supervisor: supervisor,
		tokens:     tokens,
	}
}

// CanAccept reports whether a new connection from ip fits the limits
func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	return h.ipConns[ip] < maxConnsPerIP
}

// TrackConnect counts a new connection
func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

// TrackDisconnect releases a counted connection
func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
