package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/giovanna-britto/Snake-Battle/internal/api/middleware"
	"github.com/giovanna-britto/Snake-Battle/internal/backoffice/handler"
	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/repository"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
	"github.com/giovanna-britto/Snake-Battle/internal/ws"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc  *service.AuthService
	Treasury *service.TreasuryService
	Reader   repository.Reader
	Hub      *ws.Hub // optional
	Cfg      *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine on the backoffice port.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.Treasury, deps.Hub, deps.Cfg)
	matchH := handler.NewMatchAdminHandler(deps.Reader, deps.Treasury)
	financeH := handler.NewFinanceHandler(deps.Reader, deps.Treasury, deps.Cfg)

	admin := r.Group("/admin")
	admin.Use(middleware.JWTMiddleware(deps.AuthSvc), middleware.AdminMiddleware())
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Matches
		m := admin.Group("/matches")
		{
			m.GET("", matchH.List)
			m.GET("/:address", matchH.Detail)
		}

		// Finance
		fin := admin.Group("/finance")
		{
			fin.GET("/audit", financeH.Audits)
			fin.GET("/audit/:address", financeH.Audit)
		}

		// Accounts
		acc := admin.Group("/accounts")
		{
			acc.POST("/:address/credit", financeH.Credit)
			acc.GET("/:address/transfers", financeH.Transfers)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "access denied: your IP is not whitelisted",
				"code":    "IP_NOT_ALLOWED",
			})
			return
		}
		c.Next()
	}
}
