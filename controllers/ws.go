package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"AkuChat/pkg/chat"
	"AkuChat/pkg/stream"
)

const (
	wsReadLimit    = 1 << 20
	wsWriteTimeout = 10 * time.Second
)

var (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10 // must stay below wsPongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

// StreamMessagesWS runs a turn over a WebSocket. Each chunk is one text
// message holding the same JSON as an SSE frame payload. The server closes
// with a normal closure when the reply is complete. A client may send
// {"type":"stop"} to cancel the reply.
func StreamMessagesWS(t *Turns) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, status, err := t.prepare(c)
		if err != nil {
			fail(c, status, err.Error())
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Printf("[ws] upgrade error")
			return
		}
		defer conn.Close()

		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// reader: a stop request or a dropped connection cancels the turn
		go func() {
			defer cancel()
			for {
				mt, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
					continue
				}
				var obj struct {
					Type string `json:"type"`
				}
				_ = json.Unmarshal(msg, &obj)
				if strings.EqualFold(strings.TrimSpace(obj.Type), "stop") {
					return
				}
			}
		}()

		// pings keep the read deadline moving while a long reply streams
		go func() {
			ticker := time.NewTicker(wsPingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
						return
					}
				}
			}
		}()

		send := func(ch chat.Chunk) error {
			payload, err := stream.EncodePayload(ch)
			if err != nil {
				return err
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			return conn.WriteMessage(websocket.TextMessage, payload)
		}

		code, reason := websocket.CloseNormalClosure, ""
		if err := t.run(ctx, req, "websocket", send); err != nil {
			log.WithError(err).Printf("[ws] turn ended early chat=%s", req.chat.ID)
			code, reason = websocket.CloseInternalServerErr, "turn failed"
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	}
}
