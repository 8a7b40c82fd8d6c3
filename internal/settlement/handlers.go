package settlement

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagwira/reuni-engine/internal/audit"
	"github.com/sagwira/reuni-engine/internal/listings"
	"github.com/sagwira/reuni-engine/internal/payments"
)

// Handler provides HTTP endpoints for transactions.
type Handler struct {
	service *Service
}

// NewHandler creates a new settlement handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public transaction routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/purchases", h.Purchase)
	r.GET("/transactions/:id", h.Get)
	r.GET("/buyers/:id/transactions", h.ListByBuyer)
	r.GET("/sellers/:id/transactions", h.ListBySeller)
}

// RegisterAdminRoutes sets up privileged transaction routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/transactions/:id/refund", h.Refund)
}

// PurchaseRequest contains the parameters for a direct purchase.
type PurchaseRequest struct {
	ListingID       string `json:"listingId" binding:"required"`
	BuyerID         string `json:"buyerId" binding:"required"`
	PaymentMethodID string `json:"paymentMethodId"`
}

// RefundRequest contains the reason for reversing a transaction.
type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Purchase handles POST /v1/purchases
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	txn, err := h.service.Purchase(c.Request.Context(), req.ListingID, req.BuyerID, req.PaymentMethodID)
	if err != nil {
		h.settlementError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// Get handles GET /v1/transactions/:id
func (h *Handler) Get(c *gin.Context) {
	txn, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.settlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// Refund handles POST /v1/admin/transactions/:id/refund
func (h *Handler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "reason is required",
		})
		return
	}

	txn, err := h.service.Refund(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.settlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// ListByBuyer handles GET /v1/buyers/:id/transactions
func (h *Handler) ListByBuyer(c *gin.Context) {
	txns, err := h.service.ListByBuyer(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

// ListBySeller handles GET /v1/sellers/:id/transactions
func (h *Handler) ListBySeller(c *gin.Context) {
	txns, err := h.service.ListBySeller(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

// settlementError maps service errors to HTTP responses. Rail failures
// surface as a retryable 502 without provider detail.
func (h *Handler) settlementError(c *gin.Context, err error) {
	var railErr *payments.RailError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, listings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Transaction or listing not found",
		})
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotRefundable):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": err.Error(),
		})
	case errors.Is(err, audit.ErrWriteFailed):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "audit_write_failed",
			"message": "Operation aborted: audit record could not be written",
		})
	case errors.As(err, &railErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "payment_failed",
			"message": "The payment could not be completed. Try again.",
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "settlement_failed",
			"message": err.Error(),
		})
	}
}
