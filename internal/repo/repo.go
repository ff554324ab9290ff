package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"roadline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) conn(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// EventFilter narrows event queries. Zero fields match everything.
type EventFilter struct {
	Owner   string
	Repo    string
	Project *string
	Type    string
}

func (f EventFilter) where() (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.Owner != "" {
		clauses = append(clauses, "owner=?")
		args = append(args, f.Owner)
	}
	if f.Repo != "" {
		clauses = append(clauses, "repo=?")
		args = append(args, f.Repo)
	}
	if f.Project != nil {
		clauses = append(clauses, "project=?")
		args = append(args, *f.Project)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	return strings.Join(clauses, " AND "), args
}

// LatestEvents returns events newest first, older than cursor when set.
func (r Repo) LatestEvents(ctx context.Context, limit int, cursor int64, f EventFilter) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := f.where()
	if cursor > 0 {
		where += " AND id<?"
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,owner,repo,project,actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`, where)
	return r.queryEvents(ctx, query, append(args, limit)...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, f EventFilter) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	where, args := f.where()
	if cursor > 0 {
		where += " AND id>?"
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,owner,repo,project,actor_id,payload_json FROM events WHERE %s ORDER BY id ASC LIMIT ?`, where)
	return r.queryEvents(ctx, query, append(args, limit)...)
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.Owner, &e.Repo, &e.Project, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID matching f.
func (r Repo) LatestEventID(ctx context.Context, f EventFilter) (int64, error) {
	where, args := f.where()
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events WHERE `+where, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
