package profile

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"AkuChat/controllers"
)

func Register(g *gin.RouterGroup, db *gorm.DB) {
	g.GET("/profile", controllers.Profile(db))
	g.PUT("/profile", controllers.Profile(db))
}
