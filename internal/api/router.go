package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/giovanna-britto/Snake-Battle/internal/api/handler"
	"github.com/giovanna-britto/Snake-Battle/internal/api/middleware"
	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
	"github.com/giovanna-britto/Snake-Battle/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc  *service.AuthService
	Engine   *service.MatchEngine
	Hub      *ws.Hub        // optional
	Identity common.Address // server signer, zero if none
	Cfg      *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg.Server.CORSOrigins))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		if err := deps.Engine.Initialize(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(deps.AuthSvc)
	matchH := handler.NewMatchHandler(deps.Engine)
	accountH := handler.NewAccountHandler(deps.Engine, deps.Cfg, deps.Identity)

	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10, middleware.ByIP)      // login flow
	writeRL := middleware.RateLimitMiddleware(30, middleware.ByCaller) // lifecycle operations

	api := r.Group("/api")
	{
		api.GET("/info", accountH.Info)

		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/challenge", authH.Challenge)
			auth.POST("/login", authH.Login)
			auth.POST("/refresh", authH.Refresh)
		}

		// ── Derivation helpers (public) ──────────────────────────────────────
		derive := api.Group("/derive")
		{
			derive.GET("/match/:arbiter", accountH.DeriveMatch)
			derive.GET("/bet/:match/:bettor", accountH.DeriveBet)
		}

		// ── Matches ──────────────────────────────────────────────────────────
		matches := api.Group("/matches")
		{
			matches.GET("/:address", matchH.Get)
			matches.GET("/:address/bets/:bettor", matchH.GetBet)

			ops := matches.Group("")
			ops.Use(jwtMW, writeRL)
			{
				ops.POST("", matchH.Create)
				ops.POST("/:address/join", matchH.Join)
				ops.POST("/:address/bets", matchH.PlaceBet)
				ops.POST("/:address/declare-winner", matchH.DeclareWinner)
				ops.POST("/:address/withdraw-stake", matchH.WithdrawStake)
				ops.POST("/:address/claim-payout", matchH.ClaimPayout)
			}
		}

		// ── Accounts ─────────────────────────────────────────────────────────
		accounts := api.Group("/accounts")
		accounts.Use(jwtMW)
		{
			accounts.GET("/me", accountH.Me)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware echoes the request origin when it is in origins. A "*" entry
// allows every origin.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowed["*"]:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
