package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sagwira/reuni-engine/internal/pagination"
)

// Handler provides the read-only audit query endpoint.
type Handler struct {
	recorder Recorder
}

// NewHandler creates a new audit handler.
func NewHandler(recorder Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// RegisterAdminRoutes sets up admin-only audit routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/audit", h.Find)
}

// Find handles GET /v1/admin/audit?actor=&target=&action=&from=&to=&limit=&cursor=
func (h *Handler) Find(c *gin.Context) {
	q := Query{
		ActorID:  c.Query("actor"),
		TargetID: c.Query("target"),
		Action:   c.Query("action"),
	}

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "from must be RFC3339",
			})
			return
		}
		q.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "to must be RFC3339",
			})
			return
		}
		q.To = t
	}
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "invalid cursor",
		})
		return
	}
	q.Cursor = cursor

	// Fetch one extra record to detect whether another page exists.
	q.Limit = limit + 1

	actions, err := h.recorder.Find(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	actions, next, hasMore := pagination.ComputePage(actions, limit, func(a *Action) (time.Time, string) {
		return a.CreatedAt, strconv.FormatInt(a.ID, 10)
	})

	c.JSON(http.StatusOK, gin.H{
		"actions":    actions,
		"count":      len(actions),
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}
