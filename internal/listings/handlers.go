package listings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the listing projection.
type Handler struct {
	store Store
}

// NewHandler creates a new listings handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up public listing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/listings/:id", h.Get)
	r.POST("/listings", h.Create)
	r.GET("/sellers/:id/listings", h.ListBySeller)
}

// CreateListingRequest mirrors the projection written when the platform
// lists a ticket.
type CreateListingRequest struct {
	SellerID   string `json:"sellerId" binding:"required"`
	EventName  string `json:"eventName"`
	PricePence int64  `json:"pricePence" binding:"required"`
	Quantity   int    `json:"quantity"`
}

// Create handles POST /v1/listings
func (h *Handler) Create(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if req.PricePence <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "pricePence must be positive",
		})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	l := NewListing(req.SellerID, req.EventName, req.PricePence, req.Quantity)
	if err := h.store.Create(c.Request.Context(), l); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"listing": l})
}

// Get handles GET /v1/listings/:id
func (h *Handler) Get(c *gin.Context) {
	l, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Listing not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing": l})
}

// ListBySeller handles GET /v1/sellers/:id/listings
func (h *Handler) ListBySeller(c *gin.Context) {
	ls, err := h.store.ListBySeller(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": ls, "count": len(ls)})
}
