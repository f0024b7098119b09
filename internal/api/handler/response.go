package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
		},
	})
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindConfiguration:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindArithmetic, domain.KindConsistency:
		return http.StatusUnprocessableEntity
	case domain.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondDomainError writes err with the status of its kind. Errors that are
// not domain errors are logged and reported as internal.
func respondDomainError(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		slog.Error("unhandled error", "path", c.FullPath(), "err", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}
	status := StatusFor(de.Kind)
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired):
		status = http.StatusUnauthorized
	}
	respondError(c, status, de.Code, de.Msg)
}

// ──────────────────────────────────────────────────────────────────────────────
// Request parsing helpers
// ──────────────────────────────────────────────────────────────────────────────

// pathAddress parses the named path parameter as an address, writing a 400
// on failure.
func pathAddress(c *gin.Context, name string) (common.Address, bool) {
	addr, err := domain.ParseAddress(c.Param(name))
	if err != nil {
		respondDomainError(c, err)
		return common.Address{}, false
	}
	return addr, true
}

// maxPage bounds ?page= so the computed offset cannot overflow.
const maxPage = 1 << 20

// pagination reads ?page= and ?limit= (1-based page, limit capped at 100).
func pagination(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit, (page - 1) * limit
}
