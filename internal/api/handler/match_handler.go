package handler

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/giovanna-britto/Snake-Battle/internal/api/middleware"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

// MatchHandler serves the match lifecycle endpoints. Every mutating route
// acts on behalf of the authenticated caller.
type MatchHandler struct {
	engine *service.MatchEngine
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(engine *service.MatchEngine) *MatchHandler {
	return &MatchHandler{engine: engine}
}

// parseBaseUnits reads a non-negative integer amount of base units sent as a
// string.
func parseBaseUnits(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, domain.ErrInvalidAmount
	}
	return domain.UnitsFromDecimal(d)
}

// Create godoc
// POST /api/matches [JWT]
// Body: {"id":"1","stake":"1000000000","deadline":1767225600,"player_a":"0x..","player_b":"0x.."}
func (h *MatchHandler) Create(c *gin.Context) {
	var body struct {
		ID       string `json:"id"`
		Stake    string `json:"stake"    binding:"required"`
		Deadline int64  `json:"deadline" binding:"required"`
		PlayerA  string `json:"player_a" binding:"required"`
		PlayerB  string `json:"player_b" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	stake, err := parseBaseUnits(body.Stake)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	var id uint64
	if body.ID != "" {
		if id, err = parseBaseUnits(body.ID); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION", "id must be an unsigned integer")
			return
		}
	}
	playerA, err := domain.ParseAddress(body.PlayerA)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	playerB, err := domain.ParseAddress(body.PlayerB)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	m, err := h.engine.Create(c.Request.Context(), service.CreateMatchRequest{
		Arbiter:  middleware.GetCaller(c),
		PlayerA:  playerA,
		PlayerB:  playerB,
		Stake:    stake,
		Deadline: time.Unix(body.Deadline, 0),
		ID:       id,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, m)
}

// Join godoc
// POST /api/matches/:address/join [JWT]
func (h *MatchHandler) Join(c *gin.Context) {
	matchAddr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	m, err := h.engine.Join(c.Request.Context(), middleware.GetCaller(c), matchAddr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, m)
}

// PlaceBet godoc
// POST /api/matches/:address/bets [JWT]
// Body: {"side":"PlayerA","amount":"250000000"}
func (h *MatchHandler) PlaceBet(c *gin.Context) {
	matchAddr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	var body struct {
		Side   string `json:"side"   binding:"required"`
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	side := domain.Side(body.Side)
	if !side.IsValid() {
		respondDomainError(c, domain.ErrInvalidSide)
		return
	}
	amount, err := parseBaseUnits(body.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	bet, err := h.engine.PlaceBet(c.Request.Context(), middleware.GetCaller(c), matchAddr, side, amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, bet)
}

// DeclareWinner godoc
// POST /api/matches/:address/declare-winner [JWT]
// Body: {"winner":"PlayerB"}
func (h *MatchHandler) DeclareWinner(c *gin.Context) {
	matchAddr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	var body struct {
		Winner string `json:"winner" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	winner := domain.Side(body.Winner)
	if !winner.IsValid() {
		respondDomainError(c, domain.ErrInvalidSide)
		return
	}

	m, err := h.engine.DeclareWinner(c.Request.Context(), middleware.GetCaller(c), matchAddr, winner)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, m)
}

// WithdrawStake godoc
// POST /api/matches/:address/withdraw-stake [JWT]
func (h *MatchHandler) WithdrawStake(c *gin.Context) {
	matchAddr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	paid, err := h.engine.WithdrawWinnerStake(c.Request.Context(), middleware.GetCaller(c), matchAddr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, payoutResponse{Match: matchAddr, Amount: paid})
}

// ClaimPayout godoc
// POST /api/matches/:address/claim-payout [JWT]
// Body (optional): {"bet":"0x.."}; defaults to the caller's own bet.
func (h *MatchHandler) ClaimPayout(c *gin.Context) {
	matchAddr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	caller := middleware.GetCaller(c)

	var body struct {
		Bet string `json:"bet"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
			return
		}
	}
	betAddr := domain.DeriveBetAddress(matchAddr, caller)
	if body.Bet != "" {
		parsed, err := domain.ParseAddress(body.Bet)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		betAddr = parsed
	}

	paid, err := h.engine.ClaimBetPayout(c.Request.Context(), caller, matchAddr, betAddr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, payoutResponse{Match: matchAddr, Bet: &betAddr, Amount: paid})
}

type payoutResponse struct {
	Match  common.Address  `json:"match"`
	Bet    *common.Address `json:"bet,omitempty"`
	Amount uint64          `json:"amount,string"`
}

// Get godoc
// GET /api/matches/:address
func (h *MatchHandler) Get(c *gin.Context) {
	matchAddr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	m, err := h.engine.Match(c.Request.Context(), matchAddr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, m)
}

// GetBet godoc
// GET /api/matches/:address/bets/:bettor
func (h *MatchHandler) GetBet(c *gin.Context) {
	matchAddr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	bettor, ok := pathAddress(c, "bettor")
	if !ok {
		return
	}
	bet, err := h.engine.Bet(c.Request.Context(), domain.DeriveBetAddress(matchAddr, bettor))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, bet)
}
