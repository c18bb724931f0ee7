package core

import (
	"context"
	"database/sql"
)

type (
	DBExecutor interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// Transactor runs fn inside a single transaction.
	// The transaction is committed if fn returns nil and rolled back otherwise.
	Transactor interface {
		InTx(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CleanOrderings drops the orderings whose field is not in allowed.
func CleanOrderings(orderings []DBOrdering, allowed ...string) []DBOrdering {
	if len(orderings) == 0 {
		return nil
	}
	ok := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		ok[f] = true
	}
	cleaned := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if ok[ord.Field] {
			cleaned = append(cleaned, ord)
		}
	}
	return cleaned
}

// Sequencer hands out gap-free, per-name counters, e.g. for admission and invoice numbers.
type Sequencer interface {
	Next(ctx context.Context, name string, exec ...DBExecutor) (int, error)
}
