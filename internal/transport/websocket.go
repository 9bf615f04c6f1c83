package transport

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"simcapture-go/internal/types"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// WebSocket accepts controller connections and broadcasts outbound events
// to all of them.
type WebSocket struct {
	upgrader websocket.Upgrader
	inbound  InboundFunc

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
}

func NewWebSocket(inbound InboundFunc) *WebSocket {
	return &WebSocket{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		inbound: inbound,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

func (s *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = writeMu
	s.mu.Unlock()
	log.Printf("transport: controller connected from %s", r.RemoteAddr)

	go func() {
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()
		defer close(done)
		defer s.removeClient(conn)
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			ev, err := DecodeJSONEvent(payload)
			if err != nil {
				log.Printf("transport: dropping websocket message: %v", err)
				continue
			}
			if s.inbound != nil {
				s.inbound(ev)
			}
		}
	}()
}

// Send writes ev to every connected controller. Failed connections are
// dropped; ErrNoPeers is returned when nobody received it.
func (s *WebSocket) Send(ev types.Event) error {
	payload, err := EncodeJSONEvent(ev)
	if err != nil {
		return err
	}
	var stale []*websocket.Conn
	delivered := 0
	s.mu.Lock()
	for conn, writeMu := range s.clients {
		if err := writeMessage(conn, writeMu, websocket.TextMessage, payload); err != nil {
			stale = append(stale, conn)
			continue
		}
		delivered++
	}
	s.mu.Unlock()
	for _, conn := range stale {
		s.removeClient(conn)
	}
	if delivered == 0 {
		return ErrNoPeers
	}
	return nil
}

func (s *WebSocket) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every controller.
func (s *WebSocket) Close() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		s.removeClient(conn)
	}
}

func (s *WebSocket) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
	if ok {
		log.Printf("transport: controller disconnected")
	}
}

func writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}
