package api

import (
	"log/slog"
	"net/http"

	"aigateway/internal/config"
	"aigateway/internal/db"
	"aigateway/internal/middleware"
	"aigateway/internal/proxy"
	"aigateway/internal/quota"
	"aigateway/internal/token"
	"aigateway/internal/vault"

	"github.com/gin-gonic/gin"
)

// Deps carries everything the router needs, constructor-injected so the full
// surface can run against fakes in tests.
type Deps struct {
	Config  *config.Config
	DB      db.Service
	Tokens  *token.Manager
	Vault   *vault.Vault
	Ledger  *quota.Ledger
	Limiter *middleware.RateLimiter
	Proxy   *proxy.Proxy
	Health  BackendHealth
	Logger  *slog.Logger
}

// NewRouter assembles the middleware chain and all routes. Chain order,
// outermost first: recovery, CORS, logging, rate limiting, then per-group
// auth.
func NewRouter(deps Deps) *gin.Engine {
	handler := NewHandler(deps.DB, deps.Tokens, deps.Vault, deps.Ledger, deps.Health, deps.Config.Auth.TokenTTLDuration(), deps.Logger)

	router := gin.New()
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(deps.Config.AllowedOrigins))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.RateLimit(deps.Limiter))

	// Public surface.
	router.POST("/register", handler.RegisterHandler)
	router.POST("/login", handler.LoginHandler)
	router.POST("/logout", handler.LogoutHandler)
	router.GET("/health", handler.HealthHandler)

	authRequired := middleware.Auth(deps.Tokens, deps.DB, deps.Logger)

	session := router.Group("/")
	session.Use(authRequired)
	{
		session.POST("/refresh", handler.RefreshHandler)

		keys := session.Group("/api-keys")
		{
			keys.GET("", handler.ListKeysHandler)
			keys.POST("", handler.UpsertKeyHandler)
			keys.GET("/:provider", handler.GetKeyHandler)
			keys.DELETE("/:provider", handler.DeleteKeyHandler)
			keys.POST("/:provider/restore", handler.RestoreKeyHandler)
			keys.DELETE("/:provider/hard", handler.HardDeleteKeyHandler)
		}

		usage := session.Group("/usage")
		{
			usage.GET("/quota", handler.GetQuotaHandler)
			usage.GET("/summary", handler.GetSummaryHandler)
			usage.GET("/dashboard", handler.GetDashboardHandler)
			usage.POST("/track", handler.TrackUsageHandler)
			usage.POST("/check-quota", handler.CheckQuotaHandler)
		}
	}

	// Backend-owned routes: completions and model listing are billable on
	// write, so POSTs pass the quota gate first.
	proxyHandler := deps.Proxy.Handler()
	v1 := router.Group("/v1")
	v1.Use(authRequired)
	{
		v1.GET("/*path", proxyHandler)
		v1.POST("/*path", QuotaGate(deps.Ledger), proxyHandler)
	}

	// Everything unmatched belongs to the backend. Identity is attached when
	// available but anonymity is the backend's call.
	optionalAuth := middleware.OptionalAuth(deps.Tokens, deps.DB)
	router.NoRoute(optionalAuth, func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		proxyHandler(c)
	})

	return router
}
