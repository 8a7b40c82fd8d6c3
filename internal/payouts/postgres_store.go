package payouts

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists payouts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed payout store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// payoutColumns is the SELECT column list for payouts.
const payoutColumns = `id, seller_id, transaction_id, amount_pence,
	status, method, stripe_payout_id, failure_message,
	arrival_date, paid_at, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, po *Payout) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO payouts (
			id, seller_id, transaction_id, amount_pence,
			status, method, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		po.ID, po.SellerID, po.TransactionID, po.AmountPence,
		string(po.Status), po.Method, po.CreatedAt, po.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Payout, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)

	po, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return po, err
}

func (p *PostgresStore) UpdateState(ctx context.Context, id string, from Status, upd StateUpdate, at time.Time) (*Payout, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE payouts SET
			status = $1,
			stripe_payout_id = COALESCE(NULLIF($2, ''), stripe_payout_id),
			failure_message = NULLIF($3, ''),
			arrival_date = COALESCE($4, arrival_date),
			paid_at = COALESCE($5, paid_at),
			updated_at = $6
		WHERE id = $7 AND status = $8
		RETURNING `+payoutColumns,
		string(upd.Status), upd.StripePayoutID, upd.FailureMessage,
		nullTime(upd.ArrivalDate), nullTime(upd.PaidAt),
		at, id, string(from),
	)

	po, err := scanPayout(row)
	if err == sql.ErrNoRows {
		if _, getErr := p.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	return po, err
}

func (p *PostgresStore) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Payout, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts
		WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sellerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanPayouts(rows)
}

func (p *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Payout, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanPayouts(rows)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayout(s scanner) (*Payout, error) {
	var p Payout
	var status string
	var stripePayoutID, failureMessage sql.NullString
	var arrivalDate, paidAt sql.NullTime

	err := s.Scan(
		&p.ID, &p.SellerID, &p.TransactionID, &p.AmountPence,
		&status, &p.Method, &stripePayoutID, &failureMessage,
		&arrivalDate, &paidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = Status(status)
	p.StripePayoutID = stripePayoutID.String
	p.FailureMessage = failureMessage.String
	if arrivalDate.Valid {
		v := arrivalDate.Time
		p.ArrivalDate = &v
	}
	if paidAt.Valid {
		v := paidAt.Time
		p.PaidAt = &v
	}
	return &p, nil
}

func scanPayouts(rows *sql.Rows) ([]*Payout, error) {
	var result []*Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
