package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tokenstore "AkuChat/pkg/token"
)

func TestParseToken(t *testing.T) {
	tok, err := IssueToken("secret", "42", "jti-parse", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, "jti-parse", claims.JTI)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)

	_, err = ParseToken("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokenstore.RevokeToken("jti-parse", claims.ExpiresAt)
	_, err = ParseToken("secret", tok)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tok, err := IssueToken("secret", "7", "jti-mw", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	handler := func(c *gin.Context) {
		uid, ok := CurrentUserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"uid": uid})
	}
	r.GET("/h", AuthMiddleware("secret", false), handler)
	r.GET("/q", AuthMiddleware("secret", true), handler)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "header ok", path: "/h", header: "Bearer " + tok, want: http.StatusOK},
		{name: "missing header", path: "/h", want: http.StatusUnauthorized},
		{name: "bad scheme", path: "/h", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "query refused", path: "/h?token=" + tok, want: http.StatusUnauthorized},
		{name: "query allowed", path: "/q?token=" + tok, want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
