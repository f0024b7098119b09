package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/repository"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

// MatchAdminHandler serves /admin/matches endpoints. Matches are read-only
// here; every state change goes through the public lifecycle API.
type MatchAdminHandler struct {
	reader   repository.Reader
	treasury *service.TreasuryService
}

// NewMatchAdminHandler creates a MatchAdminHandler.
func NewMatchAdminHandler(reader repository.Reader, treasury *service.TreasuryService) *MatchAdminHandler {
	return &MatchAdminHandler{reader: reader, treasury: treasury}
}

// List godoc
// GET /admin/matches?page=1&limit=50&status=Funded
func (h *MatchAdminHandler) List(c *gin.Context) {
	page, limit, offset := adminPagination(c)
	status := domain.MatchStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		respondError(c, http.StatusBadRequest, "INVALID_STATUS", "unknown match status")
		return
	}

	ctx := c.Request.Context()
	matches, err := h.reader.ListMatches(ctx, status, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	total, err := h.reader.CountMatches(ctx, status)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, matches, total, page, limit)
}

// Detail godoc
// GET /admin/matches/:address
// Returns the match, every bet on it and the vault audit.
func (h *MatchAdminHandler) Detail(c *gin.Context) {
	addr, ok := paramAddress(c, "address")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	m, err := h.reader.GetMatch(ctx, addr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	bets, err := h.reader.ListBets(ctx, addr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	audit, err := h.treasury.AuditMatch(ctx, addr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if bets == nil {
		bets = []*domain.Bet{}
	}

	split, risk := poolSplit(m)
	respondSuccess(c, http.StatusOK, gin.H{
		"match":          m,
		"bets":           bets,
		"audit":          audit,
		"side_a_pct":     split,
		"risk_indicator": risk,
	})
}
