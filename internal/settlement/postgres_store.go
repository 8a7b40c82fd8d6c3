package settlement

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// txnColumns is the SELECT column list for transactions.
const txnColumns = `id, buyer_id, seller_id, listing_id, offer_id,
	amount_pence, platform_fee_pence, seller_payout_pence,
	status, payment_intent_id, transfer_id, refund_reason,
	created_at, completed_at, refunded_at`

func (p *PostgresStore) Create(ctx context.Context, t *Transaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, buyer_id, seller_id, listing_id, offer_id,
			amount_pence, platform_fee_pence, seller_payout_pence,
			status, payment_intent_id, transfer_id, refund_reason,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.BuyerID, t.SellerID, t.ListingID, nullStr(t.OfferID),
		t.AmountPence, t.PlatformFeePence, t.SellerPayoutPence,
		string(t.Status), nullStr(t.PaymentIntentID), nullStr(t.TransferID), nullStr(t.RefundReason),
		t.CreatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func (p *PostgresStore) TransitionStatus(ctx context.Context, id string, from, to Status, at time.Time) (*Transaction, error) {
	// completed_at is stamped only on the first completion; a dispute
	// that ends without a refund returns to completed without touching
	// history. refunded_at is stamped on the reversal.
	query := `UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3 RETURNING ` + txnColumns
	args := []interface{}{string(to), id, string(from)}
	switch {
	case to == StatusCompleted && from == StatusPending:
		query = `UPDATE transactions SET status = $1, completed_at = $2
			WHERE id = $3 AND status = $4 RETURNING ` + txnColumns
		args = []interface{}{string(to), at, id, string(from)}
	case to == StatusRefunded:
		query = `UPDATE transactions SET status = $1, refunded_at = $2
			WHERE id = $3 AND status = $4 RETURNING ` + txnColumns
		args = []interface{}{string(to), at, id, string(from)}
	}

	row := p.db.QueryRowContext(ctx, query, args...)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		if _, getErr := p.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	return t, err
}

func (p *PostgresStore) SetRefundReason(ctx context.Context, id, reason string) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE transactions SET refund_reason = $1 WHERE id = $2`, reason, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions
		WHERE buyer_id = $1 ORDER BY created_at DESC LIMIT $2`,
		buyerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

func (p *PostgresStore) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions
		WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sellerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (*Transaction, error) {
	var t Transaction
	var status string
	var offerID, paymentIntentID, transferID, refundReason sql.NullString
	var completedAt, refundedAt sql.NullTime

	err := s.Scan(
		&t.ID, &t.BuyerID, &t.SellerID, &t.ListingID, &offerID,
		&t.AmountPence, &t.PlatformFeePence, &t.SellerPayoutPence,
		&status, &paymentIntentID, &transferID, &refundReason,
		&t.CreatedAt, &completedAt, &refundedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.OfferID = offerID.String
	t.PaymentIntentID = paymentIntentID.String
	t.TransferID = transferID.String
	t.RefundReason = refundReason.String
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	if refundedAt.Valid {
		v := refundedAt.Time
		t.RefundedAt = &v
	}
	return &t, nil
}

func scanTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var result []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
