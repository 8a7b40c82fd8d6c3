package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sagwira/reuni-engine/internal/audit"
)

// Handler provides admin HTTP endpoints for seller moderation.
type Handler struct {
	service *Service
}

// NewHandler creates a new seller moderation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterAdminRoutes sets up admin-only seller routes. The caller
// mounts these behind RequireSecret.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/sellers", h.List)
	r.GET("/sellers/:id", h.Get)
	r.POST("/sellers/:id/status", h.SetStatus)
	r.POST("/sellers/:id/verify", h.Verify)
	r.POST("/sellers/:id/disable", h.Disable)
}

// SetStatusRequest carries a moderation status change.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// DisableRequest carries the reason for disabling a seller.
type DisableRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// List handles GET /v1/admin/sellers?status=&limit=
func (h *Handler) List(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	sellers, err := h.service.List(c.Request.Context(), SellerStatus(c.Query("status")), limit)
	if err != nil {
		h.sellerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sellers": sellers, "count": len(sellers)})
}

// Get handles GET /v1/admin/sellers/:id
func (h *Handler) Get(c *gin.Context) {
	seller, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sellerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seller": seller})
}

// SetStatus handles POST /v1/admin/sellers/:id/status
func (h *Handler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	seller, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), SellerStatus(req.Status), req.Reason)
	if err != nil {
		h.sellerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seller": seller})
}

// Verify handles POST /v1/admin/sellers/:id/verify
func (h *Handler) Verify(c *gin.Context) {
	seller, err := h.service.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sellerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seller": seller})
}

// Disable handles POST /v1/admin/sellers/:id/disable
func (h *Handler) Disable(c *gin.Context) {
	var req DisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "A reason is required to disable a seller",
		})
		return
	}

	seller, err := h.service.Disable(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.sellerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seller": seller})
}

func (h *Handler) sellerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Seller not found",
		})
	case errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_status",
			"message": err.Error(),
		})
	case errors.Is(err, audit.ErrWriteFailed):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "audit_write_failed",
			"message": "Moderation action aborted: audit log unavailable",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
