// Package disputes implements the complaint workflow on settled sales.
//
// States: open → investigating → resolved/closed, with open → resolved
// and open → closed shortcuts. Resolved requires resolution text;
// closed ends a dispute without remedy. Neither state can be left:
// disputes are not reopened, a fresh one is filed instead. A resolution
// that refunds the buyer goes through the settlement layer and is
// audited separately from the dispute update itself.
package disputes

import (
	"context"
	"errors"
	"time"

	"github.com/sagwira/reuni-engine/internal/idgen"
	"github.com/sagwira/reuni-engine/internal/settlement"
)

var (
	ErrNotFound        = errors.New("dispute not found")
	ErrConflict        = errors.New("dispute status changed since read")
	ErrUnauthorized    = errors.New("only a party to the transaction can file a dispute")
	ErrEmptyResolution = errors.New("resolution text is required to resolve a dispute")
	ErrInvalidType     = errors.New("unknown dispute type")
	ErrTerminal        = errors.New("dispute is already resolved or closed")
	ErrNotDisputable   = errors.New("only completed transactions can be disputed")
	ErrDuplicate       = errors.New("transaction already has an open dispute")
)

// Status represents the state of a dispute.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusClosed        Status = "closed"
)

// Type is the enumerated complaint reason.
type Type string

const (
	TypeFakeTicket            Type = "fake_ticket"
	TypeReusedTicket          Type = "reused_ticket"
	TypeInvalidBarcode        Type = "invalid_barcode"
	TypeTicketRejectedAtVenue Type = "ticket_rejected_at_venue"
	TypeSellerUnresponsive    Type = "seller_unresponsive"
	TypeWrongTicket           Type = "wrong_ticket"
	TypeCancelledEvent        Type = "cancelled_event"
	TypeOther                 Type = "other"
)

// Priority buckets the moderation queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// typePriority assigns a queue priority per complaint reason. Fraud
// signals jump the queue.
var typePriority = map[Type]Priority{
	TypeFakeTicket:            PriorityUrgent,
	TypeReusedTicket:          PriorityUrgent,
	TypeTicketRejectedAtVenue: PriorityUrgent,
	TypeInvalidBarcode:        PriorityHigh,
	TypeWrongTicket:           PriorityHigh,
	TypeSellerUnresponsive:    PriorityMedium,
	TypeCancelledEvent:        PriorityMedium,
	TypeOther:                 PriorityLow,
}

// PriorityFor returns the queue priority for a dispute type.
func PriorityFor(t Type) (Priority, bool) {
	p, ok := typePriority[t]
	return p, ok
}

// Dispute is a complaint a buyer or seller raises against a settled
// transaction.
type Dispute struct {
	ID             string     `json:"id"`
	TransactionID  string     `json:"transactionId"`
	ReporterID     string     `json:"reporterId"`
	ReportedUserID string     `json:"reportedUserId"`
	Type           Type       `json:"type"`
	Priority       Priority   `json:"priority"`
	Status         Status     `json:"status"`
	Description    string     `json:"description,omitempty"`
	Resolution     string     `json:"resolution,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// IsTerminal returns true once the dispute can no longer change.
func (d *Dispute) IsTerminal() bool {
	return d.Status == StatusResolved || d.Status == StatusClosed
}

// Notifier publishes dispute lifecycle events to interested clients.
type Notifier interface {
	DisputeOpened(d *Dispute)
	DisputeResolved(d *Dispute)
}

// Store persists disputes. TransitionStatus is a compare-and-set on the
// current status; resolution text and resolvedAt travel with terminal
// transitions.
type Store interface {
	Create(ctx context.Context, d *Dispute) error
	Get(ctx context.Context, id string) (*Dispute, error)
	TransitionStatus(ctx context.Context, id string, from, to Status, resolution string, at time.Time) (*Dispute, error)

	ListByStatus(ctx context.Context, status Status, limit int) ([]*Dispute, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]*Dispute, error)
	ListByReporter(ctx context.Context, reporterID string, limit int) ([]*Dispute, error)
}

// TransactionProvider looks up and flags the disputed transaction.
type TransactionProvider interface {
	Get(ctx context.Context, id string) (*settlement.Transaction, error)
	MarkDisputed(ctx context.Context, id string) (*settlement.Transaction, error)
	ClearDispute(ctx context.Context, id string) (*settlement.Transaction, error)
}

// Refunder reverses a disputed transaction when a resolution awards the
// buyer their money back.
type Refunder interface {
	Refund(ctx context.Context, txnID, reason string) (*settlement.Transaction, error)
}

func newDispute(txnID, reporterID, reportedUserID string, t Type, description string) *Dispute {
	now := time.Now()
	priority := typePriority[t]
	return &Dispute{
		ID:             idgen.WithPrefix("dsp_"),
		TransactionID:  txnID,
		ReporterID:     reporterID,
		ReportedUserID: reportedUserID,
		Type:           t,
		Priority:       priority,
		Status:         StatusOpen,
		Description:    description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
