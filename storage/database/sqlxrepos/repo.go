// Package sqlxrepos implements the domain repositories on PostgreSQL with sqlx & squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type repo struct {
	exec core.DBExecutor
}

func (r repo) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return r.exec
}

// trapErr maps "no rows" to notFound and constraint violations to conflict errors.
func trapErr(err error, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return notFound
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case uniqueViolation:
			return core.NewConflictError("a record with the same values already exists")
		case foreignKeyViolation:
			return core.NewConflictError("the record is linked to other records (" + pqErr.Constraint + ")")
		}
	}
	return errors.Wrap(err, msg)
}

// selectAll scans every row of q into dest, a pointer to a slice of structs with db tags.
func selectAll(ctx context.Context, exec core.DBExecutor, q sq.SelectBuilder, dest interface{}) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return sqlx.StructScan(rows, dest)
}

// selectOne returns the first row of q, or sql.ErrNoRows.
// forUpdate locks the selected rows until the surrounding transaction ends.
func forUpdate(q sq.SelectBuilder) sq.SelectBuilder {
	return q.Suffix("FOR UPDATE")
}

func selectOne[T any](ctx context.Context, exec core.DBExecutor, q sq.SelectBuilder) (T, error) {
	var rows []T
	if err := selectAll(ctx, exec, q.Limit(1), &rows); err != nil {
		var zero T
		return zero, err
	}
	if len(rows) == 0 {
		var zero T
		return zero, sql.ErrNoRows
	}
	return rows[0], nil
}

type sqlizer interface {
	ToSql() (string, []interface{}, error)
}

// execAffecting runs q and returns sql.ErrNoRows when no row was affected.
func execAffecting(ctx context.Context, exec core.DBExecutor, q sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func execQuery(ctx context.Context, exec core.DBExecutor, q sqlizer) (int64, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ilike matches search anywhere in any of columns, case-insensitively.
func ilike(search string, columns ...string) sq.Or {
	or := make(sq.Or, 0, len(columns))
	for _, col := range columns {
		or = append(or, sq.ILike{col: "%" + search + "%"})
	}
	return or
}

func orderBy(q sq.SelectBuilder, ordering []core.DBOrdering, defaults ...string) sq.SelectBuilder {
	if len(ordering) == 0 {
		return q.OrderBy(defaults...)
	}
	orders := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orders = append(orders, ord.String())
	}
	return q.OrderBy(orders...)
}

// Transactor runs functions in a database transaction.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Sequencer keeps named counters in the sequences table.
type Sequencer struct {
	repo
}

var _ core.Sequencer = (*Sequencer)(nil)

func NewSequencer(exec core.DBExecutor) *Sequencer {
	return &Sequencer{repo{exec: exec}}
}

func (s *Sequencer) Next(ctx context.Context, name string, exec ...core.DBExecutor) (int, error) {
	query, args, err := psql.Insert("sequences").
		Columns("name", "value").
		Values(name, 1).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1 RETURNING value").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	var n int
	if err = s.getExec(exec).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "incrementing sequence %q", name)
	}
	return n, nil
}
