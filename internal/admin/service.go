package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagwira/reuni-engine/internal/audit"
)

// Service applies moderation decisions to sellers. Every mutation
// writes its audit record before touching the store; an audit failure
// fails the operation.
type Service struct {
	store  SellerStore
	audit  audit.Recorder
	logger *slog.Logger
}

// NewService creates a new seller moderation service.
func NewService(store SellerStore, rec audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: rec, logger: logger}
}

// Sync upserts a seller projection from the wider platform. Not a
// privileged mutation, so it is not audited.
func (s *Service) Sync(ctx context.Context, id, displayName string) (*Seller, error) {
	existing, err := s.store.Get(ctx, id)
	if err == nil {
		if displayName != "" && displayName != existing.DisplayName {
			existing.DisplayName = displayName
			existing.UpdatedAt = time.Now()
			if err := s.store.Upsert(ctx, existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	now := time.Now()
	seller := &Seller{
		ID:          id,
		DisplayName: displayName,
		Status:      SellerActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Upsert(ctx, seller); err != nil {
		return nil, err
	}
	return seller, nil
}

// Get returns a seller by ID.
func (s *Service) Get(ctx context.Context, id string) (*Seller, error) {
	return s.store.Get(ctx, id)
}

// List returns sellers, optionally filtered by status.
func (s *Service) List(ctx context.Context, status SellerStatus, limit int) ([]*Seller, error) {
	if status != "" && !validStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.List(ctx, status, limit)
}

// SetStatus moves a seller to the given moderation status.
func (s *Service) SetStatus(ctx context.Context, id string, status SellerStatus, reason string) (*Seller, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	seller, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := audit.Record(ctx, s.audit, audit.ActionUpdateSellerStatus, id, reason); err != nil {
		return nil, err
	}

	seller.Status = status
	seller.StatusReason = reason
	seller.UpdatedAt = time.Now()
	if err := s.store.Upsert(ctx, seller); err != nil {
		return nil, err
	}

	s.logger.Info("seller status updated", "seller_id", id, "status", status)
	return seller, nil
}

// Verify marks a seller as identity-verified.
func (s *Service) Verify(ctx context.Context, id string) (*Seller, error) {
	seller, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := audit.Record(ctx, s.audit, audit.ActionVerifySeller, id, ""); err != nil {
		return nil, err
	}

	seller.Verified = true
	seller.UpdatedAt = time.Now()
	if err := s.store.Upsert(ctx, seller); err != nil {
		return nil, err
	}

	s.logger.Info("seller verified", "seller_id", id)
	return seller, nil
}

// Disable permanently disables a seller. Disabled sellers keep their
// history but can no longer sell.
func (s *Service) Disable(ctx context.Context, id, reason string) (*Seller, error) {
	seller, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := audit.Record(ctx, s.audit, audit.ActionDisableSeller, id, reason); err != nil {
		return nil, err
	}

	seller.Status = SellerDisabled
	seller.StatusReason = reason
	seller.Verified = false
	seller.UpdatedAt = time.Now()
	if err := s.store.Upsert(ctx, seller); err != nil {
		return nil, err
	}

	s.logger.Warn("seller disabled", "seller_id", id, "reason", reason)
	return seller, nil
}
