package persistence

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Beginner starts database transactions. *pgxpool.Pool implements it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxManager runs units of work inside a transaction and fires after-commit hooks.
type TxManager struct {
	db Beginner
}

// NewTxManager builds a manager on top of the given pool.
func NewTxManager(db Beginner) *TxManager {
	return &TxManager{db: db}
}

type txKey struct{}

type txState struct {
	tx    pgx.Tx
	mu    sync.Mutex
	hooks []func(context.Context)
}

func (s *txState) addHook(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *txState) drain() []func(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hooks := s.hooks
	s.hooks = nil
	return hooks
}

// WithinTx executes fn in a transaction. A nested call joins the outer transaction.
// Hooks registered with AfterCommit run only once the outermost transaction commits.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return err
	}
	state := &txState{tx: tx}
	txCtx := context.WithValue(ctx, txKey{}, state)

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(txCtx); err != nil {
		state.drain()
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		state.drain()
		return err
	}

	for _, hook := range state.drain() {
		hook(ctx)
	}
	return nil
}

// AfterCommit schedules fn to run after the transaction bound to ctx commits.
// Outside a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		state.addHook(fn)
		return
	}
	fn(ctx)
}

// InTx reports whether ctx carries an active transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// Executor returns the transaction bound to ctx, falling back to db.
func Executor(ctx context.Context, db DBTX) DBTX {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return db
}
