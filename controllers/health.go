package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func Root() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "Go auth + chat backend running"})
	}
}

// Health reports liveness with process uptime in seconds.
func Health(started time.Time, environment string) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, http.StatusOK, gin.H{
			"status":      "ok",
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
			"uptime":      time.Since(started).Seconds(),
			"environment": environment,
		})
	}
}
