package offers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists offers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed offer store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// offerColumns is the SELECT column list for offers.
const offerColumns = `id, listing_id, buyer_id, seller_id,
	amount_pence, original_price_pence, status, expires_at,
	accepted_at, declined_at, withdrawn_at, expired_at, completed_at,
	created_at, updated_at`

// transitionColumn maps a target status to the timestamp column it stamps.
var transitionColumn = map[Status]string{
	StatusAccepted:  "accepted_at",
	StatusDeclined:  "declined_at",
	StatusWithdrawn: "withdrawn_at",
	StatusExpired:   "expired_at",
	StatusCompleted: "completed_at",
}

func (p *PostgresStore) Create(ctx context.Context, o *Offer) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO offers (
			id, listing_id, buyer_id, seller_id,
			amount_pence, original_price_pence, status, expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.ListingID, o.BuyerID, o.SellerID,
		o.AmountPence, o.OriginalPricePence, string(o.Status), o.ExpiresAt,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		// The partial unique index on (buyer_id, listing_id) WHERE
		// status = 'pending' closes the race two concurrent Creates
		// would otherwise win together.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicatePending
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Offer, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)

	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return o, err
}

// TransitionStatus performs the compare-and-set: the row is updated only
// if it still holds the expected status. Zero rows affected means either
// the offer is gone or someone else transitioned it first.
func (p *PostgresStore) TransitionStatus(ctx context.Context, id string, from, to Status, at time.Time) (*Offer, error) {
	col, ok := transitionColumn[to]
	if !ok {
		return nil, fmt.Errorf("no transition into status %q", to)
	}

	row := p.db.QueryRowContext(ctx, `
		UPDATE offers
		SET status = $1, `+col+` = $2, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING `+offerColumns,
		string(to), at, id, string(from),
	)

	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		if _, getErr := p.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	return o, err
}

func (p *PostgresStore) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Offer, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+offerColumns+` FROM offers
		WHERE buyer_id = $1 ORDER BY created_at DESC LIMIT $2`,
		buyerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanOffers(rows)
}

func (p *PostgresStore) ListByListing(ctx context.Context, listingID string, limit int) ([]*Offer, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+offerColumns+` FROM offers
		WHERE listing_id = $1 ORDER BY created_at DESC LIMIT $2`,
		listingID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanOffers(rows)
}

func (p *PostgresStore) GetPendingByBuyerAndListing(ctx context.Context, buyerID, listingID string) (*Offer, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM offers
		WHERE buyer_id = $1 AND listing_id = $2 AND status = 'pending'
		LIMIT 1`,
		buyerID, listingID)

	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return o, err
}

func (p *PostgresStore) CountPendingByBuyer(ctx context.Context, buyerID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offers WHERE buyer_id = $1 AND status = 'pending'`,
		buyerID).Scan(&count)
	return count, err
}

func (p *PostgresStore) ListExpired(ctx context.Context, before time.Time, limit int) ([]*Offer, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+offerColumns+` FROM offers
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at ASC LIMIT $2`,
		before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanOffers(rows)
}

// scanner abstracts sql.Row and sql.Rows for shared scan code.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOffer(s scanner) (*Offer, error) {
	var o Offer
	var status string
	var acceptedAt, declinedAt, withdrawnAt, expiredAt, completedAt sql.NullTime

	err := s.Scan(
		&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID,
		&o.AmountPence, &o.OriginalPricePence, &status, &o.ExpiresAt,
		&acceptedAt, &declinedAt, &withdrawnAt, &expiredAt, &completedAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = Status(status)
	o.AcceptedAt = timePtr(acceptedAt)
	o.DeclinedAt = timePtr(declinedAt)
	o.WithdrawnAt = timePtr(withdrawnAt)
	o.ExpiredAt = timePtr(expiredAt)
	o.CompletedAt = timePtr(completedAt)
	return &o, nil
}

func scanOffers(rows *sql.Rows) ([]*Offer, error) {
	var result []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
