package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// respond writes the envelope every chat endpoint uses.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"data":       data,
		"statusCode": status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"msg": msg, "statusCode": status})
}
