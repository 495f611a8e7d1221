package httpapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 1 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     allowLocalOrigin,
}

func allowLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	return u.Host == r.Host
}

// handleWS bridges one WebSocket connection to a hub subscriber. The write
// pump owns all writes; the read pump only detects disconnects and turns
// client keepalive text into a pong request.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade", zap.Error(err))
		return
	}

	sub := s.hub.Subscribe()
	s.log.Info("ws client connected", zap.String("remote", conn.RemoteAddr().String()))

	pong := make(chan struct{}, 1)

	go func() {
		defer conn.Close()
		for {
			select {
			case <-sub.Done():
				return
			case <-pong:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(map[string]string{"type": "pong", "message": "Connection alive"}); err != nil {
					s.hub.Unsubscribe(sub)
					return
				}
			case ev := <-sub.C():
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					s.hub.Unsubscribe(sub)
					return
				}
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		select {
		case pong <- struct{}{}:
		default:
		}
	}

	s.hub.Unsubscribe(sub)
	conn.Close()
	s.log.Info("ws client disconnected", zap.String("remote", conn.RemoteAddr().String()))
}
