package controllers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = (socketPongWait * 9) / 10
	socketReadLimit  = 512
)

// PendingWatcher streams pending-count updates to one subscriber.
type PendingWatcher interface {
	Watch() (<-chan int64, func())
}

// PendingCountSocket upgrades the connection and pushes the pending count
// whenever it changes. The first frame carries the current value.
func PendingCountSocket(watcher PendingWatcher, allowedOrigins []string, logg *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "ws.upgrade_failed")
			}
			return
		}

		updates, cancel := watcher.Watch()
		ctx := r.Context()
		if logg != nil {
			logg.Debug(ctx, "ws.pending_count.connected")
		}

		closed := make(chan struct{})
		go readPump(conn, closed)
		writePump(conn, updates, closed)

		cancel()
		_ = conn.Close()
		if logg != nil {
			logg.Debug(ctx, "ws.pending_count.disconnected")
		}
	}
}

// readPump drains client frames so control messages are processed. It closes
// closed when the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(socketReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, updates <-chan int64, closed <-chan struct{}) {
	ticker := time.NewTicker(socketPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case count, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(pendingCountResponse{Pending: count}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
