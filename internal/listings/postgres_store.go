package listings

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists the listing projection in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed listing store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const listingColumns = `id, seller_id, event_name, price_pence, quantity, status, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, l *Listing) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO listings (id, seller_id, event_name, price_pence, quantity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.SellerID, nullStr(l.EventName), l.PricePence, l.Quantity,
		string(l.Status), l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Listing, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)

	l := &Listing{}
	var eventName sql.NullString
	err := row.Scan(&l.ID, &l.SellerID, &eventName, &l.PricePence, &l.Quantity,
		&l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.EventName = eventName.String
	return l, nil
}

// Consume is a single conditional UPDATE so two concurrent settlements
// can never both take the last ticket.
func (p *PostgresStore) Consume(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE listings SET
			quantity = quantity - 1,
			status = CASE WHEN quantity - 1 = 0 THEN 'sold' ELSE status END,
			updated_at = $1
		WHERE id = $2 AND status = 'available' AND quantity > 0`,
		time.Now(), id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish missing from unavailable for the caller.
		if _, getErr := p.Get(ctx, id); getErr != nil {
			return getErr
		}
		return ErrNotAvailable
	}
	return nil
}

func (p *PostgresStore) Restore(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE listings SET
			quantity = quantity + 1,
			status = CASE WHEN status = 'sold' THEN 'available' ELSE status END,
			updated_at = $1
		WHERE id = $2`,
		time.Now(), id,
	)
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

func (p *PostgresStore) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Listing, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings
		WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sellerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Listing
	for rows.Next() {
		l := &Listing{}
		var eventName sql.NullString
		if err := rows.Scan(&l.ID, &l.SellerID, &eventName, &l.PricePence, &l.Quantity,
			&l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.EventName = eventName.String
		result = append(result, l)
	}
	return result, rows.Err()
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
