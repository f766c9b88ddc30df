package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/devicemanager"
	"github.com/rokutools/rokuscan/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events buffered per client before new ones are dropped
	streamBuffer = 64
)

// handleEvents upgrades to WebSocket and forwards manager events until the
// client disconnects or the server shuts down
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Failed to upgrade to WebSocket",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := r.RemoteAddr
	s.mu.Lock()
	s.streams[remoteAddr] = conn
	s.mu.Unlock()
	s.wg.Add(1)

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.streams, remoteAddr)
		s.mu.Unlock()
		s.wg.Done()
		logging.Debug("Event stream closed", zap.String("remote_addr", remoteAddr))
	}()

	logging.Info("Event stream connected", zap.String("remote_addr", remoteAddr))

	events := make(chan devicemanager.Event, streamBuffer)
	unsubscribe := s.manager.Subscribe(func(ev devicemanager.Event) {
		select {
		case events <- ev:
		default:
			logging.Warn("Event stream client too slow, dropping event",
				zap.String("remote_addr", remoteAddr),
				zap.String("event", ev.Type.String()),
			)
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				logging.Debug("Failed to write event",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so pongs and close frames are
// processed, and closes done when the connection ends
func readUntilClosed(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
