// Package txscope provides pool.Scope implementations: one backed by a
// MongoDB session transaction and one backed by plain commit and rollback
// functions.
package txscope

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/utkarsh5026/txpools/pool"
)

// ErrClosed is returned by Close on a scope that was already closed.
var ErrClosed = errors.New("scope already closed")

// Func is a scope whose outcome is delegated to Commit and Rollback. Either
// may be nil.
type Func struct {
	Commit   func() error
	Rollback func() error

	mu      sync.Mutex
	success bool
	closed  bool
}

var _ pool.Scope = (*Func)(nil)

// MarkSuccess flags the scope for commit on Close.
func (f *Func) MarkSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.success = true
}

// Close commits when the scope was marked successful and rolls back
// otherwise.
func (f *Func) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	f.closed = true

	if f.success {
		if f.Commit != nil {
			return errors.Wrap(f.Commit(), "commit")
		}
		return nil
	}
	if f.Rollback != nil {
		return errors.Wrap(f.Rollback(), "rollback")
	}
	return nil
}

// FuncFactory returns a factory that builds a fresh Func scope per batch
// from open. open may return nil functions.
func FuncFactory(open func(ctx context.Context) (commit, rollback func() error, err error)) pool.ScopeFactory {
	return func(ctx context.Context) (pool.Scope, error) {
		commit, rollback, err := open(ctx)
		if err != nil {
			return nil, err
		}
		return &Func{Commit: commit, Rollback: rollback}, nil
	}
}
