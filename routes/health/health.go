package health

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"AkuChat/controllers"
)

func Register(r *gin.Engine, started time.Time, environment string) {
	r.GET("/", controllers.Root())
	r.GET("/health", controllers.Health(started, environment))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
