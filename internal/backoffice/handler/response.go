package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	apihandler "github.com/giovanna-britto/Snake-Battle/internal/api/handler"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard admin response helpers (mirrors internal/api/handler/response.go)
// ──────────────────────────────────────────────────────────────────────────────

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// respondDomainError maps err with the same status table as the public API.
func respondDomainError(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		slog.Error("backoffice: unhandled error", "path", c.FullPath(), "err", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}
	respondError(c, apihandler.StatusFor(de.Kind), de.Code, de.Msg)
}

// maxAdminPage keeps (page-1)*limit well inside int range.
const maxAdminPage = 1 << 20

// adminPagination reads page/limit query params with sane defaults for admin views.
func adminPagination(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if page > maxAdminPage {
		page = maxAdminPage
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit, (page - 1) * limit
}

func paramAddress(c *gin.Context, name string) (common.Address, bool) {
	addr, err := domain.ParseAddress(c.Param(name))
	if err != nil {
		respondDomainError(c, err)
		return common.Address{}, false
	}
	return addr, true
}
