// Package executor runs rendered migration SQL against a live database.
package executor

import (
	"context"
	"database/sql"
	"fmt"

	"migrant/editor"
	"migrant/operations"
	"migrant/state"
)

// Execer runs a single SQL statement. *sql.DB satisfies it through DB.
type Execer interface {
	Execute(ctx context.Context, query string) (int64, error)
}

// DB adapts a database/sql handle to Execer.
type DB struct {
	Conn *sql.DB
}

func (d DB) Execute(ctx context.Context, query string) (int64, error) {
	res, err := d.Conn.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report affected rows for DDL.
		return 0, nil
	}
	return n, nil
}

// OpError reports the operation that failed. Index is 1-based.
type OpError struct {
	Index int
	Op    string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("executor: operation %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Executor renders operations for one dialect and applies them in order.
type Executor struct {
	ex Execer
	ed editor.SchemaEditor
}

func New(ex Execer, ed editor.SchemaEditor) *Executor {
	return &Executor{ex: ex, ed: ed}
}

// Apply renders and executes each operation against prior state, advancing
// the state after every operation. It stops at the first failure; statements
// already executed are not rolled back.
func (x *Executor) Apply(ctx context.Context, namespace string, ops []operations.Operation, prior *state.ProjectState) error {
	st := prior.Clone()
	for i, op := range ops {
		stmts, err := op.SQLForwards(x.ed, namespace, st)
		if err != nil {
			return &OpError{Index: i + 1, Op: op.Describe(), Err: err}
		}
		for _, stmt := range stmts {
			if _, err := x.ex.Execute(ctx, stmt); err != nil {
				return &OpError{Index: i + 1, Op: op.Describe(), Err: err}
			}
		}
		if err := op.StateForwards(namespace, st); err != nil {
			return &OpError{Index: i + 1, Op: op.Describe(), Err: err}
		}
	}
	return nil
}

// SQL renders the statements Apply would execute, without touching the
// database.
func SQL(ed editor.SchemaEditor, namespace string, ops []operations.Operation, prior *state.ProjectState) ([]string, error) {
	st := prior.Clone()
	var out []string
	for i, op := range ops {
		stmts, err := op.SQLForwards(ed, namespace, st)
		if err != nil {
			return nil, &OpError{Index: i + 1, Op: op.Describe(), Err: err}
		}
		out = append(out, stmts...)
		if err := op.StateForwards(namespace, st); err != nil {
			return nil, &OpError{Index: i + 1, Op: op.Describe(), Err: err}
		}
	}
	return out, nil
}
