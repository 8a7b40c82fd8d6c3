package events

import (
	"github.com/sagwira/reuni-engine/internal/disputes"
	"github.com/sagwira/reuni-engine/internal/offers"
	"github.com/sagwira/reuni-engine/internal/payouts"
	"github.com/sagwira/reuni-engine/internal/settlement"
)

// OfferNotifier adapts the hub to the offer service's notification
// interface. Payloads are flat maps so subscription filters can match
// on the user IDs involved.
type OfferNotifier struct {
	hub *Hub
}

// NewOfferNotifier creates a notifier publishing offer events to the hub.
func NewOfferNotifier(hub *Hub) *OfferNotifier {
	return &OfferNotifier{hub: hub}
}

func (n *OfferNotifier) OfferCreated(o *offers.Offer) {
	n.hub.Publish(EventOfferCreated, offerPayload(o))
}

func (n *OfferNotifier) OfferResponded(o *offers.Offer) {
	t := EventOfferDeclined
	if o.Status == offers.StatusAccepted || o.Status == offers.StatusCompleted {
		t = EventOfferAccepted
	}
	n.hub.Publish(t, offerPayload(o))
}

func (n *OfferNotifier) OfferExpired(o *offers.Offer) {
	n.hub.Publish(EventOfferExpired, offerPayload(o))
}

func offerPayload(o *offers.Offer) map[string]interface{} {
	return map[string]interface{}{
		"offerId":     o.ID,
		"listingId":   o.ListingID,
		"buyerId":     o.BuyerID,
		"sellerId":    o.SellerID,
		"amountPence": o.AmountPence,
		"status":      string(o.Status),
	}
}

// SettlementNotifier publishes settled sales to the hub.
type SettlementNotifier struct {
	hub *Hub
}

// NewSettlementNotifier creates a notifier publishing settlement events.
func NewSettlementNotifier(hub *Hub) *SettlementNotifier {
	return &SettlementNotifier{hub: hub}
}

func (n *SettlementNotifier) SaleSettled(t *settlement.Transaction) {
	n.hub.Publish(EventSaleSettled, map[string]interface{}{
		"transactionId": t.ID,
		"listingId":     t.ListingID,
		"buyerId":       t.BuyerID,
		"sellerId":      t.SellerID,
		"amountPence":   t.AmountPence,
	})
}

// PayoutNotifier publishes paid payouts to the hub.
type PayoutNotifier struct {
	hub *Hub
}

// NewPayoutNotifier creates a notifier publishing payout events.
func NewPayoutNotifier(hub *Hub) *PayoutNotifier {
	return &PayoutNotifier{hub: hub}
}

func (n *PayoutNotifier) PayoutPaid(p *payouts.Payout) {
	n.hub.Publish(EventPayoutPaid, map[string]interface{}{
		"payoutId":      p.ID,
		"transactionId": p.TransactionID,
		"sellerId":      p.SellerID,
		"amountPence":   p.AmountPence,
	})
}

// DisputeNotifier publishes dispute lifecycle events to the hub.
type DisputeNotifier struct {
	hub *Hub
}

// NewDisputeNotifier creates a notifier publishing dispute events.
func NewDisputeNotifier(hub *Hub) *DisputeNotifier {
	return &DisputeNotifier{hub: hub}
}

func (n *DisputeNotifier) DisputeOpened(d *disputes.Dispute) {
	n.hub.Publish(EventDisputeOpened, disputePayload(d))
}

func (n *DisputeNotifier) DisputeResolved(d *disputes.Dispute) {
	n.hub.Publish(EventDisputeResolved, disputePayload(d))
}

func disputePayload(d *disputes.Dispute) map[string]interface{} {
	return map[string]interface{}{
		"disputeId":     d.ID,
		"transactionId": d.TransactionID,
		"reporterId":    d.ReporterID,
		"type":          string(d.Type),
		"priority":      string(d.Priority),
		"status":        string(d.Status),
	}
}
