package repository

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.value
	return nil
}

// fakeTx records every call; methods it does not override panic via the nil
// embedded interface.
type fakeTx struct {
	pgx.Tx

	mu          sync.Mutex
	setErr      error
	tenantReply func(requested string) string
	execErrAt   int
	updateRows  int
	boundTenant string
	execs       []string
	queries     int
	committed   bool
	rolledBack  bool
}

func newFakeTx() *fakeTx {
	return &fakeTx{updateRows: 1}
}

func (f *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sql == setTenantSQL {
		if f.setErr != nil {
			return fakeRow{err: f.setErr}
		}
		requested := args[1].(string)
		f.boundTenant = requested
		if f.tenantReply != nil {
			return fakeRow{value: f.tenantReply(requested)}
		}
		return fakeRow{value: requested}
	}
	f.queries++
	return fakeRow{err: pgx.ErrNoRows}
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	return nil, errors.New("fakeTx: Query not supported")
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	if f.execErrAt == len(f.execs) {
		return pgconn.CommandTag{}, errors.New("connection reset by peer")
	}
	if strings.HasPrefix(sql, "UPDATE") {
		if f.updateRows == 0 {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTx) Commit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

func (f *fakeTx) downstreamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs) + f.queries
}

type fakeDB struct {
	mu       sync.Mutex
	beginErr error
	newTx    func() *fakeTx
	txs      []*fakeTx
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	tx := newFakeTx()
	if d.newTx != nil {
		tx = d.newTx()
	}
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) begins() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.txs)
}
