package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	tokenstore "AkuChat/pkg/token"
)

const (
	ContextUserIDKey   = "current_user_id"
	ContextJTIKey      = "current_jti"
	ContextTokenExpKey = "current_token_exp"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("Token has been revoked (logout)")
)

// Claims is what the chat services need from a verified token.
type Claims struct {
	UserID    string
	JTI       string
	ExpiresAt time.Time
}

// ParseToken verifies an HS256 token signed with secret.
func ParseToken(secret, tokenStr string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// only accept HMAC signing
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	var out Claims
	out.JTI, _ = mc["jti"].(string)
	if tokenstore.IsRevoked(out.JTI) {
		return Claims{}, ErrRevokedToken
	}
	switch sub := mc["sub"].(type) {
	case string:
		out.UserID = sub
	case float64:
		// jwt lib may parse numeric as float64
		out.UserID = strconv.Itoa(int(sub))
	}
	if out.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// IssueToken signs a token for userID valid for ttl.
func IssueToken(secret, userID, jti string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(ttl).Unix(),
		"jti": jti,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.Fields(auth)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware accepts a bearer token from the Authorization header, or
// from the token query parameter when allowQuery is set (WebSocket clients
// cannot send headers).
func AuthMiddleware(secret string, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok && allowQuery {
			tokenStr = strings.TrimSpace(c.Query("token"))
			ok = tokenStr != ""
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing or invalid authorization header"})
			return
		}

		claims, err := ParseToken(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextJTIKey, claims.JTI)
		c.Set(ContextTokenExpKey, claims.ExpiresAt)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id as a number.
func CurrentUserID(c *gin.Context) (uint, bool) {
	raw := c.GetString(ContextUserIDKey)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
