package disputes

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists disputes in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed dispute store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// disputeColumns is the SELECT column list for disputes.
const disputeColumns = `id, transaction_id, reporter_id, reported_user_id,
	dispute_type, priority, status, description, resolution,
	created_at, updated_at, resolved_at`

// queueOrder ranks the moderation queue: urgent first, oldest first
// within a priority.
const queueOrder = `ORDER BY CASE priority
		WHEN 'urgent' THEN 0
		WHEN 'high' THEN 1
		WHEN 'medium' THEN 2
		ELSE 3
	END, created_at ASC`

func (p *PostgresStore) Create(ctx context.Context, d *Dispute) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO disputes (
			id, transaction_id, reporter_id, reported_user_id,
			dispute_type, priority, status, description,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.TransactionID, d.ReporterID, d.ReportedUserID,
		string(d.Type), string(d.Priority), string(d.Status), nullStr(d.Description),
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Dispute, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)

	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

func (p *PostgresStore) TransitionStatus(ctx context.Context, id string, from, to Status, resolution string, at time.Time) (*Dispute, error) {
	terminal := to == StatusResolved || to == StatusClosed

	row := p.db.QueryRowContext(ctx, `
		UPDATE disputes SET
			status = $1,
			resolution = COALESCE(NULLIF($2, ''), resolution),
			resolved_at = CASE WHEN $3 THEN $4 ELSE resolved_at END,
			updated_at = $4
		WHERE id = $5 AND status = $6
		RETURNING `+disputeColumns,
		string(to), resolution, terminal, at, id, string(from),
	)

	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		if _, getErr := p.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	return d, err
}

func (p *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Dispute, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes
		WHERE status = $1 `+queueOrder+` LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanDisputes(rows)
}

func (p *PostgresStore) ListByTransaction(ctx context.Context, transactionID string) ([]*Dispute, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes
		WHERE transaction_id = $1 `+queueOrder,
		transactionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanDisputes(rows)
}

func (p *PostgresStore) ListByReporter(ctx context.Context, reporterID string, limit int) ([]*Dispute, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes
		WHERE reporter_id = $1 ORDER BY created_at DESC LIMIT $2`,
		reporterID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanDisputes(rows)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDispute(s scanner) (*Dispute, error) {
	var d Dispute
	var dtype, priority, status string
	var description, resolution sql.NullString
	var resolvedAt sql.NullTime

	err := s.Scan(
		&d.ID, &d.TransactionID, &d.ReporterID, &d.ReportedUserID,
		&dtype, &priority, &status, &description, &resolution,
		&d.CreatedAt, &d.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = Type(dtype)
	d.Priority = Priority(priority)
	d.Status = Status(status)
	d.Description = description.String
	d.Resolution = resolution.String
	if resolvedAt.Valid {
		v := resolvedAt.Time
		d.ResolvedAt = &v
	}
	return &d, nil
}

func scanDisputes(rows *sql.Rows) ([]*Dispute, error) {
	var result []*Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
