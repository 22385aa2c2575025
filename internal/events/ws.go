package events

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Publisher serves hub events over a local websocket endpoint so an
// external UI process can render progress. Binding is expected to be
// loopback-only; the endpoint carries no secrets but is not meant for the
// network.
type Publisher struct {
	hub      *Hub
	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
}

func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local-UI endpoint; the browser origin check does not apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start begins serving on addr (e.g. "127.0.0.1:7766") in the background.
// The returned error covers listen failures only; per-connection errors end
// that connection silently.
func (p *Publisher) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", p.handleEvents)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	p.listener = ln
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = p.server.Serve(ln) }()
	return nil
}

// Addr returns the bound address, or "" before Start. Useful when Start was
// given port 0.
func (p *Publisher) Addr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Close stops the server and drops all connections.
func (p *Publisher) Close() error {
	if p.server == nil {
		return nil
	}
	return p.server.Close()
}

func (p *Publisher) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close handshakes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events, cancel := p.hub.Subscribe()
	defer cancel()
	for ev := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
