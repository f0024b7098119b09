package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

// AuthHandler serves the wallet-signature login flow.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Challenge godoc
// POST /api/auth/challenge
// Body: {"address":"0x.."}
func (h *AuthHandler) Challenge(c *gin.Context) {
	var body struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	addr, err := domain.ParseAddress(body.Address)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	ch, err := h.authSvc.Challenge(c.Request.Context(), addr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ch)
}

// Login godoc
// POST /api/auth/login
// Body: {"address":"0x..","signature":"0x.."}
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, resp)
}

// Refresh godoc
// POST /api/auth/refresh
// Body: {"refresh_token":"..."}
func (h *AuthHandler) Refresh(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.RefreshToken(c.Request.Context(), body.RefreshToken)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, resp)
}
