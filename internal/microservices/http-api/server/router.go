package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"accounthub/internal/microservices/http-api/handler"
	"accounthub/internal/microservices/http-api/middleware"
	"accounthub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators the HTTP API is assembled from.
type Dependencies struct {
	Accounts service.AccountService
	Tokens   service.TokenService
	Limiter  *middleware.RateLimiter // nil disables rate limiting
	Logger   *slog.Logger
	// Ping reports storage health for /healthz; nil means always healthy.
	Ping func(ctx context.Context) error
}

// NewRouter wires every route of the account API onto a fresh gin engine.
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		if deps.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handler.NewAuthHandler(deps.Accounts, deps.Tokens, deps.Logger)
	accountHandler := handler.NewAccountHandler(deps.Accounts, deps.Logger)

	auth := r.Group("/auth")
	if deps.Limiter != nil {
		auth.Use(deps.Limiter.Middleware())
	}
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.POST("/revoke", authHandler.RevokeToken)
	}

	account := r.Group("/account")
	account.Use(middleware.AuthMiddleware(deps.Tokens))
	{
		account.GET("/me", accountHandler.Me)
		account.PATCH("/me", accountHandler.Update)
	}

	return r
}
