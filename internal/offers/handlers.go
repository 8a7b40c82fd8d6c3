package offers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagwira/reuni-engine/internal/fees"
	"github.com/sagwira/reuni-engine/internal/listings"
)

// Handler provides HTTP endpoints for offers.
type Handler struct {
	service *Service
}

// NewHandler creates a new offers handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public offer routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/offers", h.Create)
	r.GET("/offers/:id", h.Get)
	r.POST("/offers/:id/respond", h.Respond)
	r.POST("/offers/:id/withdraw", h.Withdraw)
	r.GET("/buyers/:id/offers", h.ListByBuyer)
	r.GET("/listings/:id/offers", h.ListByListing)
}

// CreateOfferRequest contains the parameters for creating an offer.
type CreateOfferRequest struct {
	ListingID   string `json:"listingId" binding:"required"`
	BuyerID     string `json:"buyerId" binding:"required"`
	AmountPence int64  `json:"amountPence" binding:"required"`
}

// RespondRequest contains the seller's answer to a pending offer.
type RespondRequest struct {
	ActorID string `json:"actorId" binding:"required"`
	Action  string `json:"action" binding:"required"` // "accept" or "decline"
}

// WithdrawRequest identifies the buyer cancelling their offer.
type WithdrawRequest struct {
	ActorID string `json:"actorId" binding:"required"`
}

// Create handles POST /v1/offers
func (h *Handler) Create(c *gin.Context) {
	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	o, err := h.service.Create(c.Request.Context(), req.ListingID, req.BuyerID, req.AmountPence)
	if err != nil {
		h.offerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"offer": o})
}

// Get handles GET /v1/offers/:id
func (h *Handler) Get(c *gin.Context) {
	o, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.offerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": o})
}

// Respond handles POST /v1/offers/:id/respond
func (h *Handler) Respond(c *gin.Context) {
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if req.Action != "accept" && req.Action != "decline" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "action must be \"accept\" or \"decline\"",
		})
		return
	}

	o, err := h.service.Respond(c.Request.Context(), c.Param("id"), req.ActorID, req.Action == "accept")
	if err != nil && o == nil {
		h.offerError(c, err)
		return
	}
	if err != nil {
		// Accepted but settlement failed: the offer state is real, the
		// charge is not. Tell the client which is which.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "settlement_failed",
			"message": "Offer accepted but the payment could not be completed. Try again.",
			"offer":   o,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": o})
}

// Withdraw handles POST /v1/offers/:id/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	o, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), req.ActorID)
	if err != nil {
		h.offerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": o})
}

// ListByBuyer handles GET /v1/buyers/:id/offers
func (h *Handler) ListByBuyer(c *gin.Context) {
	os, err := h.service.ListByBuyer(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": os, "count": len(os)})
}

// ListByListing handles GET /v1/listings/:id/offers
func (h *Handler) ListByListing(c *gin.Context) {
	os, err := h.service.ListByListing(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": os, "count": len(os)})
}

// offerError maps service errors to HTTP responses.
func (h *Handler) offerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, listings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Offer or listing not found",
		})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": "Offer status has changed, refresh and try again",
		})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "unauthorized",
			"message": "Not authorized for this operation",
		})
	case errors.Is(err, ErrOfferTooLow), errors.Is(err, ErrOfferTooHigh):
		body := gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
		}
		var be *BoundsError
		if errors.As(err, &be) {
			body["minOfferPence"] = be.MinOfferPence
			body["maxOfferPence"] = be.MaxOfferPence
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, ErrDuplicatePending), errors.Is(err, ErrTooManyPending),
		errors.Is(err, ErrSelfOffer), errors.Is(err, ErrListingUnavailable),
		errors.Is(err, fees.ErrNegativePrice):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
