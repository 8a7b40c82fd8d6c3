// Package admin provides the moderation surface: the shared-secret
// middleware guarding /v1/admin routes and the seller moderation
// service behind it.
//
// Seller records here are a projection of the wider platform's user
// accounts, carried so moderation decisions (suspend, verify, disable)
// can be applied and audited inside the engine.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sagwira/reuni-engine/internal/audit"
)

var (
	ErrNotFound      = errors.New("seller not found")
	ErrInvalidStatus = errors.New("invalid seller status")
)

// SellerStatus is the moderation state of a seller account.
type SellerStatus string

const (
	SellerActive    SellerStatus = "active"
	SellerSuspended SellerStatus = "suspended"
	SellerDisabled  SellerStatus = "disabled"
)

func validStatus(s SellerStatus) bool {
	switch s {
	case SellerActive, SellerSuspended, SellerDisabled:
		return true
	}
	return false
}

// Seller is the engine's view of a seller account.
type Seller struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"displayName,omitempty"`
	Status       SellerStatus `json:"status"`
	StatusReason string       `json:"statusReason,omitempty"`
	Verified     bool         `json:"verified"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// CanSell reports whether the seller may list tickets or receive offers.
func (s *Seller) CanSell() bool {
	return s.Status == SellerActive
}

// SellerStore persists the seller projection.
type SellerStore interface {
	Upsert(ctx context.Context, s *Seller) error
	Get(ctx context.Context, id string) (*Seller, error)
	List(ctx context.Context, status SellerStatus, limit int) ([]*Seller, error)
}

// RequireSecret returns middleware that guards admin routes with a
// shared secret in the X-Admin-Secret header. The admin's identity from
// X-Admin-ID is stamped onto the request context so every privileged
// mutation downstream is attributed in the audit log.
func RequireSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "admin_disabled",
				"message": "Admin API is not configured on this deployment",
			})
			c.Abort()
			return
		}

		provided := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid or missing admin secret",
			})
			c.Abort()
			return
		}

		adminID := c.GetHeader("X-Admin-ID")
		if adminID == "" {
			adminID = "admin"
		}
		ctx := audit.WithActor(c.Request.Context(), "admin", adminID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
