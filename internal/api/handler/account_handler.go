package handler

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/giovanna-britto/Snake-Battle/internal/api/middleware"
	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

// AccountHandler serves ledger metadata, the caller's account and the
// address derivation helpers.
type AccountHandler struct {
	engine   *service.MatchEngine
	cfg      *config.Config
	identity common.Address // zero when no server key is configured
}

// NewAccountHandler creates an AccountHandler. identity is the server signer
// address advertised by /api/info.
func NewAccountHandler(engine *service.MatchEngine, cfg *config.Config, identity common.Address) *AccountHandler {
	return &AccountHandler{engine: engine, cfg: cfg, identity: identity}
}

// Info godoc
// GET /api/info
func (h *AccountHandler) Info(c *gin.Context) {
	info := gin.H{
		"name":     h.cfg.Ledger.Name,
		"symbol":   h.cfg.Ledger.Symbol,
		"decimals": h.cfg.Ledger.Decimals,
		"driver":   h.cfg.Ledger.Driver,
	}
	if h.identity != (common.Address{}) {
		info["server_identity"] = h.identity
	}
	respondSuccess(c, http.StatusOK, info)
}

// Me godoc
// GET /api/accounts/me [JWT]
// Query: ?page=1&limit=20 for the transfer history.
func (h *AccountHandler) Me(c *gin.Context) {
	caller := middleware.GetCaller(c)
	page, limit, offset := pagination(c)

	acct, err := h.engine.Balance(c.Request.Context(), caller)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	transfers, err := h.engine.Transfers(c.Request.Context(), caller, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if transfers == nil {
		transfers = []*domain.Transfer{}
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"address":         caller,
		"balance":         strconv.FormatUint(acct.Balance, 10),
		"balance_display": domain.FormatUnits(acct.Balance, h.cfg.Ledger.Decimals),
		"transfers":       transfers,
		"page":            page,
		"limit":           limit,
	})
}

// DeriveMatch godoc
// GET /api/derive/match/:arbiter
func (h *AccountHandler) DeriveMatch(c *gin.Context) {
	arbiter, ok := pathAddress(c, "arbiter")
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"arbiter": arbiter,
		"match":   domain.DeriveMatchAddress(arbiter),
	})
}

// DeriveBet godoc
// GET /api/derive/bet/:match/:bettor
func (h *AccountHandler) DeriveBet(c *gin.Context) {
	matchAddr, ok := pathAddress(c, "match")
	if !ok {
		return
	}
	bettor, ok := pathAddress(c, "bettor")
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"match":  matchAddr,
		"bettor": bettor,
		"bet":    domain.DeriveBetAddress(matchAddr, bettor),
	})
}
