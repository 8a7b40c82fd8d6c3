// Package audit provides the append-only admin action log.
//
// Every privileged mutation (refund, payout retry, dispute update,
// seller moderation) records exactly one Action before or atomically
// with the mutation it describes. A failed audit write fails the whole
// operation: an unaudited privileged mutation must never succeed.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sagwira/reuni-engine/internal/pagination"
)

// ErrWriteFailed wraps a failure to persist an audit record. Callers
// must treat it as failure of the enclosing operation.
var ErrWriteFailed = errors.New("audit write failed")

// Action kinds for privileged mutations.
const (
	ActionUpdateSellerStatus  = "update_seller_status"
	ActionVerifySeller        = "verify_seller"
	ActionDisableSeller       = "disable_seller"
	ActionRefundTransaction   = "refund_transaction"
	ActionUpdateDisputeStatus = "update_dispute_status"
	ActionResolveDispute      = "resolve_dispute"
	ActionRetryPayout         = "retry_payout"
)

type contextKey string

const (
	ctxActorType contextKey = "audit_actor_type"
	ctxActorID   contextKey = "audit_actor_id"
)

// WithActor attaches actor info to the context for audit logging.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = context.WithValue(ctx, ctxActorType, actorType)
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return ctx
}

// ActorFromContext returns the actor recorded on the context.
// Falls back to "system" when no actor was attached (background sweeps,
// automated moderation rules).
func ActorFromContext(ctx context.Context) (actorType, actorID string) {
	actorType = "system"
	if v, ok := ctx.Value(ctxActorType).(string); ok {
		actorType = v
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		actorID = v
	}
	return
}

// Action is a single audit record. Records are never mutated or deleted.
type Action struct {
	ID        int64     `json:"id"`
	ActorID   string    `json:"actorId"`
	ActorType string    `json:"actorType"`
	Action    string    `json:"action"`
	TargetID  string    `json:"targetId"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Query filters audit records. Zero fields match everything.
// Results are ordered newest first; Cursor resumes from a previous page.
type Query struct {
	ActorID  string
	TargetID string
	Action   string
	From     time.Time
	To       time.Time
	Limit    int
	Cursor   *pagination.Cursor
}

// Recorder persists and queries audit records.
type Recorder interface {
	Record(ctx context.Context, action *Action) error
	Find(ctx context.Context, q Query) ([]*Action, error)
}

// Record builds an Action from the context actor and persists it through r.
// The returned error wraps ErrWriteFailed so callers can abort the
// enclosing operation.
func Record(ctx context.Context, r Recorder, kind, targetID, reason string) error {
	actorType, actorID := ActorFromContext(ctx)
	a := &Action{
		ActorID:   actorID,
		ActorType: actorType,
		Action:    kind,
		TargetID:  targetID,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := r.Record(ctx, a); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}
