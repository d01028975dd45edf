// Package realtime – WebSocket transport
//
// This file bridges the dispatcher onto a WebSocket endpoint. Each
// connected dashboard tab gets its own subscription; events are written as
// JSON frames and a periodic ping keeps intermediaries from closing idle
// connections.
package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from configured origins; CORS posture is
	// enforced at the router, so the upgrade itself accepts any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler returns a gin handler that upgrades the request and streams
// record-change events until the client goes away.
func Handler(d *Dispatcher, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		events, cancel := d.Subscribe(c.Request.Context())
		defer cancel()

		// Drain client frames so close/pong handling works; content is
		// ignored, the stream is one-way.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
