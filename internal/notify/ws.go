package notify

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WSSession wraps one websocket subscriber. Writes are serialized because
// gorilla/websocket allows a single concurrent writer.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSSession(conn *websocket.Conn) *WSSession {
	return &WSSession{conn: conn}
}

func (s *WSSession) Send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

func (s *WSSession) Close() error { return s.conn.Close() }

// Attach subscribes the session to a bus topic and forwards every event to
// the socket. Send errors are dropped: a broken connection surfaces in the
// caller's read loop, which invokes the returned detach func. Detach is
// safe to call more than once.
func (s *WSSession) Attach(bus *Bus, topic string) func() {
	unsub := bus.Subscribe(topic, func(ev Event) {
		_ = s.Send(ev)
	})
	var once sync.Once
	return func() { once.Do(unsub) }
}
