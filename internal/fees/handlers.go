package fees

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler exposes the fee schedule so clients never recompute money
// themselves.
type Handler struct {
	schedule Schedule
}

// NewHandler creates a new fees handler.
func NewHandler(schedule Schedule) *Handler {
	return &Handler{schedule: schedule}
}

// RegisterRoutes sets up public fee routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/fees", h.Quote)
}

// Quote handles GET /v1/fees?pricePence=5000
// Without a price it returns just the schedule parameters.
func (h *Handler) Quote(c *gin.Context) {
	raw := c.Query("pricePence")
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{
			"flatFeePence":  h.schedule.FlatFeePence,
			"percentageBps": h.schedule.PercentageBps,
		})
		return
	}

	price, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "pricePence must be an integer number of pence",
		})
		return
	}

	breakdown, err := h.schedule.Compute(price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"breakdown":      breakdown,
		"minOfferPence":  MinOffer(price),
		"maxOfferPence":  MaxOffer(price),
		"buyerTotal":     FormatGBP(breakdown.BuyerTotalPence),
		"platformFee":    FormatGBP(breakdown.PlatformFeePence),
		"sellerReceives": FormatGBP(breakdown.SellerPayoutPence),
	})
}
