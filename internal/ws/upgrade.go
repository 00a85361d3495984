package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// PumpConfig carries the keepalive timings for one connection.
type PumpConfig struct {
	WriteWait time.Duration
	PongWait  time.Duration
}

func (p PumpConfig) pingPeriod() time.Duration {
	return (p.PongWait * 9) / 10
}

// NewUpgrader accepts requests without an Origin header and those whose
// origin is in allowed; "*" allows every origin.
func NewUpgrader(allowed []string) *websocket.Upgrader {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := set["*"]; ok {
				return true
			}
			_, ok := set[origin]
			return ok
		},
	}
}

// WritePump copies messages from c.Send to the connection and keeps it alive
// with pings. It closes the socket when Send is closed or a write fails.
func WritePump(c *Client, conn *websocket.Conn, cfg PumpConfig) {
	ticker := time.NewTicker(cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump decodes frames until the connection fails and hands each one to fn
// in arrival order. Undecodable frames are passed to onBad and skipped.
func ReadPump(conn *websocket.Conn, cfg PumpConfig, fn func(Frame), onBad func(error)) {
	conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
			if onBad != nil {
				onBad(err)
			}
			continue
		}
		fn(f)
	}
}
