package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aigateway/internal/config"
	"aigateway/internal/db"
	"aigateway/internal/logger"
	"aigateway/internal/model"
	"aigateway/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthTest(t *testing.T) (*gin.Engine, *token.Manager, *model.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)

	user := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: "user", Active: true}
	require.NoError(t, database.CreateUser(user))

	tokens, err := token.NewManager([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	router := gin.New()
	router.Use(Auth(tokens, database, logger.NewWithWriter(io.Discard, false)))
	router.GET("/", func(c *gin.Context) {
		current, ok := CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": current.ID})
	})
	return router, tokens, user
}

func TestAuthRejectsMissingToken(t *testing.T) {
	router, _, _ := setupAuthTest(t)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	router, tokens, user := setupAuthTest(t)

	expired, err := tokens.Generate(user.ID, user.Email, nil, -time.Minute)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	router, tokens, user := setupAuthTest(t)

	signed, err := tokens.Generate(user.ID, user.Email, []string{"user"}, time.Hour)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthAcceptsCookie(t *testing.T) {
	router, tokens, user := setupAuthTest(t)

	signed, err := tokens.Generate(user.ID, user.Email, nil, time.Hour)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: signed})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthRejectsUnknownUser(t *testing.T) {
	router, tokens, _ := setupAuthTest(t)

	signed, err := tokens.Generate(9999, "ghost@example.com", nil, time.Hour)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)

	database, err := db.NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	tokens, err := token.NewManager([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	router := gin.New()
	router.Use(OptionalAuth(tokens, database))
	router.GET("/", func(c *gin.Context) {
		_, authenticated := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": authenticated})
	})

	// No token: passes through anonymously.
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"authenticated":false`)

	// Garbage token: still passes, still anonymous.
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"authenticated":false`)
}
