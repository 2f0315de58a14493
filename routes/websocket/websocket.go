package websocket

import (
	"github.com/gin-gonic/gin"

	"AkuChat/controllers"
	"AkuChat/middleware"
)

// Register mounts the WebSocket transport. Browsers cannot set headers on
// the upgrade request, so the token may come from the query string.
func Register(r *gin.Engine, secret string, turns *controllers.Turns) {
	r.GET("/ws/chats/:id/stream",
		middleware.AuthMiddleware(secret, true),
		turns.Guards.RateLimit(),
		controllers.StreamMessagesWS(turns))
}
