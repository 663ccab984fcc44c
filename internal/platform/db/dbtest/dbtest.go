// Package dbtest provides in-memory stand-ins for pgx query results.
package dbtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Result is what a scripted query answers with.
type Result struct {
	Columns []string
	Rows    [][]any
	Err     error
}

// Call records a statement sent to the Querier.
type Call struct {
	SQL  string
	Args []any
}

// Querier satisfies db.Querier from a scripted function.
type Querier struct {
	QueryFunc func(sql string, args []any) Result
	ExecFunc  func(sql string, args []any) (int64, error)
	BeginErr  error

	mu    sync.Mutex
	calls []Call
	txs   []*Tx
}

// Txs returns the transactions opened so far.
func (q *Querier) Txs() []*Tx {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Tx(nil), q.txs...)
}

// BeginTx opens a Tx answering from the same script.
func (q *Querier) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if q.BeginErr != nil {
		return nil, q.BeginErr
	}
	tx := &Tx{q: q}
	q.mu.Lock()
	q.txs = append(q.txs, tx)
	q.mu.Unlock()
	return tx, nil
}

// Calls returns the statements seen so far.
func (q *Querier) Calls() []Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Call(nil), q.calls...)
}

func (q *Querier) record(sql string, args []any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, Call{SQL: sql, Args: args})
}

func (q *Querier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.record(sql, args)
	res := q.QueryFunc(sql, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return NewRows(res.Columns, res.Rows), nil
}

func (q *Querier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.record(sql, args)
	res := q.QueryFunc(sql, args)
	return &row{rows: NewRows(res.Columns, res.Rows), err: res.Err}
}

func (q *Querier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.record(sql, args)
	if q.ExecFunc == nil {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	n, err := q.ExecFunc(sql, args)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", n)), nil
}

type row struct {
	rows *Rows
	err  error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}

// Rows is a pgx.Rows over literal values.
type Rows struct {
	columns []string
	data    [][]any
	pos     int
	closed  bool
	err     error
}

// NewRows builds Rows. Each data row must have one value per column.
func NewRows(columns []string, data [][]any) *Rows {
	return &Rows{columns: columns, data: data, pos: -1}
}

// Closed reports whether Close was called.
func (r *Rows) Closed() bool { return r.closed }

func (r *Rows) Close() { r.closed = true }

func (r *Rows) Err() error { return r.err }

func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.data)))
}

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription {
	fields := make([]pgconn.FieldDescription, len(r.columns))
	for i, name := range r.columns {
		fields[i] = pgconn.FieldDescription{Name: name}
	}
	return fields
}

func (r *Rows) Next() bool {
	if r.closed || r.pos+1 >= len(r.data) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.data) {
		return errors.New("dbtest: scan outside result set")
	}
	if len(dest) == 1 {
		if scanner, ok := dest[0].(pgx.RowScanner); ok {
			return scanner.ScanRow(r)
		}
	}
	values := r.data[r.pos]
	if len(dest) != len(values) {
		return fmt.Errorf("dbtest: scan %d destinations into %d values", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("dbtest: destination %d is not a pointer", i)
		}
		elem := target.Elem()
		if values[i] == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		switch {
		case v.Type().AssignableTo(elem.Type()):
			elem.Set(v)
		case elem.Kind() == reflect.Pointer && v.Type().AssignableTo(elem.Type().Elem()):
			p := reflect.New(elem.Type().Elem())
			p.Elem().Set(v)
			elem.Set(p)
		case v.Type().ConvertibleTo(elem.Type()):
			elem.Set(v.Convert(elem.Type()))
		default:
			return fmt.Errorf("dbtest: cannot scan %T into %s", values[i], elem.Type())
		}
	}
	return nil
}

func (r *Rows) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.data) {
		return nil, errors.New("dbtest: values outside result set")
	}
	return append([]any(nil), r.data[r.pos]...), nil
}

func (r *Rows) RawValues() [][]byte { return nil }

func (r *Rows) Conn() *pgx.Conn { return nil }

// Tx is a pgx.Tx recording whether it was committed or rolled back.
type Tx struct {
	q          *Querier
	Committed  bool
	RolledBack bool
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *Tx) Commit(ctx context.Context) error {
	if t.Committed || t.RolledBack {
		return pgx.ErrTxClosed
	}
	t.Committed = true
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.Committed || t.RolledBack {
		return pgx.ErrTxClosed
	}
	t.RolledBack = true
	return nil
}

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("dbtest: CopyFrom unsupported")
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *Tx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("dbtest: Prepare unsupported")
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.q.Exec(ctx, sql, args...)
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.q.Query(ctx, sql, args...)
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.q.QueryRow(ctx, sql, args...)
}

func (t *Tx) Conn() *pgx.Conn { return nil }
