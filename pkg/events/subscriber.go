package events

import (
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
)

// NewSubscriber wraps conn; jobID may be empty to receive every job
func NewSubscriber(hub *Hub, conn *websocket.Conn, jobID string) *Subscriber {
	return &Subscriber{
		ID:    uuid.New().String(),
		JobID: jobID,
		Conn:  conn,
		Hub:   hub,
		Send:  make(chan []byte, 64),
	}
}

// Serve registers the subscriber and then starts its pumps, so an early
// disconnect always unregisters a known subscriber.
func (s *Subscriber) Serve() {
	select {
	case s.Hub.Register <- s:
	case <-s.Hub.done:
		s.Conn.Close()
		return
	}

	go s.writePump()
	go s.readPump()
}

func (s *Subscriber) leave() {
	select {
	case s.Hub.Unregister <- s:
	case <-s.Hub.done:
	}
}

// readPump discards client messages and notices disconnects
func (s *Subscriber) readPump() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic in readPump for %s: %v\n%s", s.ID, r, debug.Stack())
		}
		s.leave()
		s.Conn.Close()
	}()

	s.Conn.SetReadLimit(maxMessageSize)
	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warningf("websocket unexpected close for %s: %v", s.ID, err)
			}
			return
		}
	}
}

// writePump delivers queued events and keeps the connection alive
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.leave()
		s.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// channel closed: send close and return
				_ = s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debugf("websocket write error for %s: %v", s.ID, err)
				return
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debugf("ping error for %s: %v", s.ID, err)
				return
			}
		}
	}
}
