package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
	"github.com/giovanna-britto/Snake-Battle/internal/ws"
)

// dashboardWindow is how many of the newest matches the dashboard summarises.
const dashboardWindow = 200

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	treasury *service.TreasuryService
	hub      *ws.Hub // nil when the backoffice runs standalone
	cfg      *config.Config
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(treasury *service.TreasuryService, hub *ws.Hub, cfg *config.Config) *DashboardHandler {
	return &DashboardHandler{treasury: treasury, hub: hub, cfg: cfg}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	audits, err := h.treasury.AuditMatches(c.Request.Context(), dashboardWindow, 0)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	byStatus := make(map[domain.MatchStatus]int)
	var locked, dust, outstanding decimal.Decimal
	var unbalanced int
	for _, a := range audits {
		byStatus[a.Status]++
		locked = locked.Add(domain.UnitsToDecimal(a.Balance))
		dust = dust.Add(domain.UnitsToDecimal(a.Dust))
		outstanding = outstanding.Add(domain.UnitsToDecimal(a.Outstanding))
		if !a.Balanced || a.Shortfall > 0 {
			unbalanced++
		}
	}

	var wsConnections int
	if h.hub != nil {
		wsConnections = h.hub.ConnectedCount()
	}

	shift := -h.cfg.Ledger.Decimals
	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp":         time.Now().UTC(),
		"window":            len(audits),
		"matches_by_status": byStatus,
		"vault_balance":     locked.Shift(shift).String(),
		"outstanding":       outstanding.Shift(shift).String(),
		"dust":              dust.Shift(shift).String(),
		"symbol":            h.cfg.Ledger.Symbol,
		"unbalanced_vaults": unbalanced,
		"ws_connections":    wsConnections,
	})
}

// poolSplit returns the PlayerA share of the side pools in percent and a
// GREEN/YELLOW/RED indicator of how lopsided betting is.
func poolSplit(m *domain.Match) (decimal.Decimal, string) {
	a, b := domain.UnitsToDecimal(m.TotalSideA), domain.UnitsToDecimal(m.TotalSideB)
	total := a.Add(b)
	if total.IsZero() {
		return decimal.NewFromInt(50), "GREEN"
	}
	aPct := a.Div(total).Mul(decimal.NewFromInt(100)).RoundDown(2)
	dominant := decimal.Max(aPct, decimal.NewFromInt(100).Sub(aPct))
	switch {
	case dominant.GreaterThan(decimal.NewFromInt(85)):
		return aPct, "RED"
	case dominant.GreaterThan(decimal.NewFromInt(70)):
		return aPct, "YELLOW"
	default:
		return aPct, "GREEN"
	}
}
