package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/repository"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

// FinanceHandler serves /admin/finance and /admin/accounts endpoints.
type FinanceHandler struct {
	reader   repository.Reader
	treasury *service.TreasuryService
	cfg      *config.Config
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(reader repository.Reader, treasury *service.TreasuryService, cfg *config.Config) *FinanceHandler {
	return &FinanceHandler{reader: reader, treasury: treasury, cfg: cfg}
}

// Audits godoc
// GET /admin/finance/audit?page=1&limit=50&only_unbalanced=true
func (h *FinanceHandler) Audits(c *gin.Context) {
	page, limit, offset := adminPagination(c)
	audits, err := h.treasury.AuditMatches(c.Request.Context(), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if c.Query("only_unbalanced") == "true" {
		filtered := audits[:0]
		for _, a := range audits {
			if !a.Balanced || a.Shortfall > 0 {
				filtered = append(filtered, a)
			}
		}
		audits = filtered
	}
	respondList(c, audits, len(audits), page, limit)
}

// Audit godoc
// GET /admin/finance/audit/:address
func (h *FinanceHandler) Audit(c *gin.Context) {
	addr, ok := paramAddress(c, "address")
	if !ok {
		return
	}
	audit, err := h.treasury.AuditMatch(c.Request.Context(), addr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, audit)
}

// Credit godoc
// POST /admin/accounts/:address/credit
// Body: {"amount":"1.5"} in display units, or {"amount":"1500000000","base_units":true}
func (h *FinanceHandler) Credit(c *gin.Context) {
	addr, ok := paramAddress(c, "address")
	if !ok {
		return
	}
	var body struct {
		Amount    string `json:"amount" binding:"required"`
		BaseUnits bool   `json:"base_units"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	amount, err := h.parseAmount(strings.TrimSpace(body.Amount), body.BaseUnits)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	acct, err := h.treasury.Credit(c.Request.Context(), addr, amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"account":         acct,
		"credited":        domain.FormatUnits(amount, h.cfg.Ledger.Decimals),
		"balance_display": domain.FormatUnits(acct.Balance, h.cfg.Ledger.Decimals),
	})
}

func (h *FinanceHandler) parseAmount(s string, baseUnits bool) (uint64, error) {
	if !baseUnits {
		return domain.ParseUnits(s, h.cfg.Ledger.Decimals)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, domain.ErrInvalidAmount
	}
	return domain.UnitsFromDecimal(d)
}

// Transfers godoc
// GET /admin/accounts/:address/transfers?page=1&limit=50
func (h *FinanceHandler) Transfers(c *gin.Context) {
	addr, ok := paramAddress(c, "address")
	if !ok {
		return
	}
	page, limit, offset := adminPagination(c)
	transfers, err := h.reader.ListTransfers(c.Request.Context(), addr, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if transfers == nil {
		transfers = []*domain.Transfer{}
	}
	respondList(c, transfers, len(transfers), page, limit)
}
