// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrCommitFailed is returned by a FakeTx configured to fail on commit.
var ErrCommitFailed = errors.New("commit failed")

// FakeTx records commit and rollback calls. Other pgx.Tx methods are not implemented.
type FakeTx struct {
	pgx.Tx
	FailCommit bool

	mu         sync.Mutex
	committed  bool
	rolledBack bool
}

func (t *FakeTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailCommit {
		return ErrCommitFailed
	}
	t.committed = true
	return nil
}

func (t *FakeTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *FakeTx) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

func (t *FakeTx) RolledBack() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rolledBack
}

// FakeBeginner hands out FakeTx values and remembers them.
type FakeBeginner struct {
	FailCommit bool

	mu  sync.Mutex
	txs []*FakeTx
}

func (b *FakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx := &FakeTx{FailCommit: b.FailCommit}
	b.txs = append(b.txs, tx)
	return tx, nil
}

// Last returns the most recently started transaction.
func (b *FakeBeginner) Last() *FakeTx {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.txs) == 0 {
		return nil
	}
	return b.txs[len(b.txs)-1]
}

// Count returns how many transactions were started.
func (b *FakeBeginner) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.txs)
}

// Logger returns a no-op zap logger for tests.
func Logger() *zap.Logger {
	return zap.NewNop()
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
