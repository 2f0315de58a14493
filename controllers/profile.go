package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"AkuChat/models"
	"AkuChat/pkg/utils"
)

// Profile serves GET (account details with chat count) and PUT (partial
// update of email, username and password) for the current user.
func Profile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUser(c)
		if !ok {
			return
		}
		var user models.User
		if err := db.First(&user, uid).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"msg": "User not found"})
			return
		}

		if c.Request.Method == http.MethodGet {
			var chats int64
			db.Model(&models.Chat{}).Where("user_id = ?", uid).Count(&chats)
			c.JSON(http.StatusOK, gin.H{
				"id":        user.ID,
				"email":     user.Email,
				"username":  user.Username,
				"chatCount": chats,
			})
			return
		}

		var body struct {
			Email    string `json:"email"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}

		email := strings.TrimSpace(strings.ToLower(body.Email))
		if email != "" && email != user.Email {
			if taken(db, "email = ?", email) {
				c.JSON(http.StatusConflict, gin.H{"msg": "Email already exists"})
				return
			}
			user.Email = email
		}
		username := strings.TrimSpace(body.Username)
		if username != "" && username != user.Username {
			if taken(db, "username = ?", username) {
				c.JSON(http.StatusConflict, gin.H{"msg": "Username already exists"})
				return
			}
			user.Username = username
		}
		if body.Password != "" {
			if len(body.Password) < 8 || !utils.HasLetter(body.Password) || !utils.HasNumber(body.Password) {
				c.JSON(http.StatusBadRequest, gin.H{"msg": "New password must be at least 8 characters with one letter and one number"})
				return
			}
			if err := user.SetPassword(body.Password); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to set password"})
				return
			}
		}
		if err := db.Save(&user).Error; err != nil {
			log.WithError(err).Error("[profile] save failed")
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to update profile"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "Profile updated successfully"})
	}
}

func taken(db *gorm.DB, where string, value string) bool {
	var n int64
	db.Model(&models.User{}).Where(where, value).Count(&n)
	return n > 0
}
