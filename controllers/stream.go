package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"AkuChat/pkg/chat"
	"AkuChat/pkg/stream"
)

// StreamMessages runs a turn and writes each chunk as an SSE frame.
func StreamMessages(t *Turns) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, status, err := t.prepare(c)
		if err != nil {
			fail(c, status, err.Error())
			return
		}

		// headers go out with the first chunk so a turn that fails before
		// its echo can still answer with an error status
		started := false
		send := func(ch chat.Chunk) error {
			frame, err := stream.EncodeFrame(ch)
			if err != nil {
				return err
			}
			if !started {
				started = true
				h := c.Writer.Header()
				h.Set("Content-Type", "text/event-stream")
				h.Set("Cache-Control", "no-cache")
				h.Set("Connection", "keep-alive")
				h.Set("X-Accel-Buffering", "no") // nginx buffering off
				c.Status(http.StatusOK)
			}
			if _, err := c.Writer.Write(frame); err != nil {
				return err
			}
			c.Writer.Flush()
			return nil
		}
		err = t.run(c.Request.Context(), req, "sse", send)
		if err == nil {
			return
		}
		log.WithError(err).Printf("[sse] turn ended early chat=%s", req.chat.ID)
		if !started {
			status := http.StatusInternalServerError
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusServiceUnavailable
			}
			fail(c, status, "failed to start turn")
		}
	}
}
