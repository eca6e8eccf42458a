package temporal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// execCall records one Exec invocation against the fake querier.
type execCall struct {
	sql  string
	args []any
}

// fakeQuerier scripts store behavior for protocol tests. Query/QueryRow
// results are keyed by a substring of the SQL (normally a table name).
type fakeQuerier struct {
	execs   []execCall
	queries []string

	// execErr, when set, is consulted for every statement; returning a
	// non-nil error fails that statement.
	execErr func(sql string) error
	// rows maps a SQL substring to scripted row values.
	rows map[string][][]any
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		if err := f.execErr(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	for key, rows := range f.rows {
		if strings.Contains(sql, key) {
			return &fakeRows{rows: rows}, nil
		}
	}
	return &fakeRows{}, nil
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	for key, rows := range f.rows {
		if strings.Contains(sql, key) {
			if len(rows) == 0 {
				return errRow{err: pgx.ErrNoRows}
			}
			return &fakeRow{values: rows[0]}
		}
	}
	return errRow{err: pgx.ErrNoRows}
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assignValues(dest, r.rows[r.idx-1])
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.idx-1], nil
}

type fakeRow struct{ values []any }

func (r *fakeRow) Scan(dest ...any) error { return assignValues(dest, r.values) }

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

func assignValues(dest []any, src []any) error {
	if len(dest) != len(src) {
		return fmt.Errorf("scan destination count %d does not match scripted row width %d", len(dest), len(src))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = src[i].(int)
		case *bool:
			*p = src[i].(bool)
		case *string:
			*p = src[i].(string)
		case *time.Time:
			*p = src[i].(time.Time)
		case *uuid.UUID:
			*p = src[i].(uuid.UUID)
		case **uuid.UUID:
			if src[i] == nil {
				*p = nil
			} else {
				v := src[i].(uuid.UUID)
				*p = &v
			}
		case *any:
			*p = src[i]
		default:
			return fmt.Errorf("unsupported scan destination %T", d)
		}
	}
	return nil
}
