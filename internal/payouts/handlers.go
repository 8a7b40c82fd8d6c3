package payouts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagwira/reuni-engine/internal/audit"
)

// Handler provides HTTP endpoints for payouts.
type Handler struct {
	service *Service
}

// NewHandler creates a new payouts handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public payout routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/payouts/:id", h.Get)
	r.GET("/sellers/:id/payouts", h.ListBySeller)
}

// RegisterAdminRoutes sets up privileged payout routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/payouts/:id/retry", h.Retry)
	r.GET("/payouts/failed", h.ListFailed)
}

// Get handles GET /v1/payouts/:id
func (h *Handler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.payoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout": p})
}

// Retry handles POST /v1/admin/payouts/:id/retry
func (h *Handler) Retry(c *gin.Context) {
	p, err := h.service.Retry(c.Request.Context(), c.Param("id"))
	if err != nil && p == nil {
		h.payoutError(c, err)
		return
	}
	if err != nil {
		// Retried and still failing: the record is current, the rail
		// is not cooperating.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "retry_failed",
			"message": "Payout retry failed. Try again later.",
			"payout":  p,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout": p})
}

// ListBySeller handles GET /v1/sellers/:id/payouts
func (h *Handler) ListBySeller(c *gin.Context) {
	ps, err := h.service.ListBySeller(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": ps, "count": len(ps)})
}

// ListFailed handles GET /v1/admin/payouts/failed
func (h *Handler) ListFailed(c *gin.Context) {
	ps, err := h.service.ListFailed(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": ps, "count": len(ps)})
}

// payoutError maps service errors to HTTP responses.
func (h *Handler) payoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Payout not found",
		})
	case errors.Is(err, ErrNotRetryable), errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": err.Error(),
		})
	case errors.Is(err, audit.ErrWriteFailed):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "audit_write_failed",
			"message": "Operation aborted: audit record could not be written",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
