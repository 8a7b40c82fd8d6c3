package audit

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// PostgresRecorder writes audit records to PostgreSQL. The admin_actions
// table is insert-only; no update or delete statements exist here.
type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgresRecorder creates an audit recorder backed by PostgreSQL.
func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (p *PostgresRecorder) Record(ctx context.Context, action *Action) error {
	return p.db.QueryRowContext(ctx, `
		INSERT INTO admin_actions (actor_id, actor_type, action, target_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		action.ActorID, action.ActorType, action.Action, action.TargetID,
		nullStr(action.Reason), action.CreatedAt,
	).Scan(&action.ID)
}

func (p *PostgresRecorder) Find(ctx context.Context, q Query) ([]*Action, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.ActorID != "" {
		conds = append(conds, "actor_id = "+arg(q.ActorID))
	}
	if q.TargetID != "" {
		conds = append(conds, "target_id = "+arg(q.TargetID))
	}
	if q.Action != "" {
		conds = append(conds, "action = "+arg(q.Action))
	}
	if !q.From.IsZero() {
		conds = append(conds, "created_at >= "+arg(q.From))
	}
	if !q.To.IsZero() {
		conds = append(conds, "created_at <= "+arg(q.To))
	}
	if q.Cursor != nil {
		if id, err := strconv.ParseInt(q.Cursor.ID, 10, 64); err == nil {
			conds = append(conds, "(created_at, id) < ("+arg(q.Cursor.CreatedAt)+", "+arg(id)+")")
		}
	}

	query := `SELECT id, actor_id, actor_type, action, target_id, COALESCE(reason, ''), created_at
		FROM admin_actions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var actions []*Action
	for rows.Next() {
		a := &Action{}
		if err := rows.Scan(&a.ID, &a.ActorID, &a.ActorType, &a.Action,
			&a.TargetID, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
