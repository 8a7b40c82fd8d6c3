package disputes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagwira/reuni-engine/internal/audit"
	"github.com/sagwira/reuni-engine/internal/settlement"
)

// Handler provides HTTP endpoints for disputes.
type Handler struct {
	service *Service
}

// NewHandler creates a new disputes handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public dispute routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/disputes", h.File)
	r.GET("/disputes/:id", h.Get)
	r.GET("/transactions/:id/disputes", h.ListByTransaction)
	r.GET("/users/:id/disputes", h.ListByReporter)
}

// RegisterAdminRoutes sets up privileged dispute routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/disputes", h.Queue)
	r.POST("/disputes/:id/investigate", h.Investigate)
	r.POST("/disputes/:id/resolve", h.Resolve)
	r.POST("/disputes/:id/close", h.Close)
}

// FileDisputeRequest contains the parameters for opening a dispute.
type FileDisputeRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
	ReporterID    string `json:"reporterId" binding:"required"`
	Type          string `json:"type" binding:"required"`
	Description   string `json:"description"`
}

// ResolveRequest contains the written resolution for a dispute.
type ResolveRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	Refund     bool   `json:"refund"`
}

// File handles POST /v1/disputes
func (h *Handler) File(c *gin.Context) {
	var req FileDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	d, err := h.service.File(c.Request.Context(), req.TransactionID, req.ReporterID, Type(req.Type), req.Description)
	if err != nil {
		h.disputeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"dispute": d})
}

// Get handles GET /v1/disputes/:id
func (h *Handler) Get(c *gin.Context) {
	d, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.disputeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// Queue handles GET /v1/admin/disputes?status=open
func (h *Handler) Queue(c *gin.Context) {
	status := Status(c.DefaultQuery("status", string(StatusOpen)))
	ds, err := h.service.ListByStatus(c.Request.Context(), status, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": ds, "count": len(ds)})
}

// Investigate handles POST /v1/admin/disputes/:id/investigate
func (h *Handler) Investigate(c *gin.Context) {
	d, err := h.service.Investigate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.disputeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// Resolve handles POST /v1/admin/disputes/:id/resolve
func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "resolution is required",
		})
		return
	}

	d, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req.Resolution, req.Refund)
	if err != nil && d == nil {
		h.disputeError(c, err)
		return
	}
	if err != nil {
		// Resolved, refund pending manual follow-up.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "refund_failed",
			"message": "Dispute resolved but the refund could not be completed. Try again.",
			"dispute": d,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// Close handles POST /v1/admin/disputes/:id/close
func (h *Handler) Close(c *gin.Context) {
	d, err := h.service.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.disputeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// ListByTransaction handles GET /v1/transactions/:id/disputes
func (h *Handler) ListByTransaction(c *gin.Context) {
	ds, err := h.service.ListByTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": ds, "count": len(ds)})
}

// ListByReporter handles GET /v1/users/:id/disputes
func (h *Handler) ListByReporter(c *gin.Context) {
	ds, err := h.service.ListByReporter(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": ds, "count": len(ds)})
}

// disputeError maps service errors to HTTP responses.
func (h *Handler) disputeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, settlement.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Dispute or transaction not found",
		})
	case errors.Is(err, ErrConflict), errors.Is(err, ErrTerminal):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": err.Error(),
		})
	case errors.Is(err, ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "duplicate_dispute",
			"message": err.Error(),
		})
	case errors.Is(err, ErrNotDisputable):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "not_disputable",
			"message": err.Error(),
		})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "unauthorized",
			"message": err.Error(),
		})
	case errors.Is(err, ErrEmptyResolution), errors.Is(err, ErrInvalidType):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
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
