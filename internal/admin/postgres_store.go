package admin

import (
	"context"
	"database/sql"
)

// PostgresSellerStore persists the seller projection in PostgreSQL.
type PostgresSellerStore struct {
	db *sql.DB
}

// NewPostgresSellerStore creates a new PostgreSQL-backed seller store.
func NewPostgresSellerStore(db *sql.DB) *PostgresSellerStore {
	return &PostgresSellerStore{db: db}
}

const sellerColumns = `id, display_name, status, status_reason, verified, created_at, updated_at`

func (p *PostgresSellerStore) Upsert(ctx context.Context, s *Seller) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sellers (id, display_name, status, status_reason, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			status = EXCLUDED.status,
			status_reason = EXCLUDED.status_reason,
			verified = EXCLUDED.verified,
			updated_at = EXCLUDED.updated_at`,
		s.ID, nullStr(s.DisplayName), string(s.Status), nullStr(s.StatusReason),
		s.Verified, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresSellerStore) Get(ctx context.Context, id string) (*Seller, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+sellerColumns+` FROM sellers WHERE id = $1`, id)
	return scanSeller(row)
}

func (p *PostgresSellerStore) List(ctx context.Context, status SellerStatus, limit int) ([]*Seller, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = p.db.QueryContext(ctx,
			`SELECT `+sellerColumns+` FROM sellers WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
			string(status), limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT `+sellerColumns+` FROM sellers ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Seller
	for rows.Next() {
		s, err := scanSeller(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSeller(row scanner) (*Seller, error) {
	s := &Seller{}
	var displayName, statusReason sql.NullString
	err := row.Scan(&s.ID, &displayName, &s.Status, &statusReason,
		&s.Verified, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.DisplayName = displayName.String
	s.StatusReason = statusReason.String
	return s, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
