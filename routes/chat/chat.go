package chat

import (
	"github.com/gin-gonic/gin"

	"AkuChat/controllers"
)

// Register registers chat routes (protected)
func Register(g *gin.RouterGroup, turns *controllers.Turns, defaultLimit, maxLimit int) {
	db := turns.DB
	g.GET("/chats", controllers.ListChats(db))
	g.POST("/chats", controllers.CreateChat(db))
	g.GET("/chats/:id", controllers.GetChat(db))
	g.DELETE("/chats/:id", controllers.DeleteChat(db, turns.Cache))
	g.GET("/chats/:id/messages", controllers.ListMessages(db, defaultLimit, maxLimit))
	// rate limit only the endpoint that starts a turn
	g.GET("/chats/:id/messages/stream", turns.Guards.RateLimit(), controllers.StreamMessages(turns))
}
