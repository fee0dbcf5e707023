package txscope

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utkarsh5026/txpools/pool"
)

// Session is the part of mongo.Session a scope drives.
type Session interface {
	StartTransaction(opts ...*options.TransactionOptions) error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	EndSession(ctx context.Context)
}

// Mongo is a scope spanning one MongoDB multi-document transaction.
//
// Close commits the transaction when the scope was marked successful and
// aborts it otherwise; in both cases the session is ended.
type Mongo struct {
	ctx     context.Context
	session Session

	mu      sync.Mutex
	success bool
	closed  bool
}

var _ pool.Scope = (*Mongo)(nil)

// NewMongo starts a transaction on session. If the transaction cannot be
// started the session is ended and the error returned.
func NewMongo(ctx context.Context, session Session, opts ...*options.TransactionOptions) (*Mongo, error) {
	if err := session.StartTransaction(opts...); err != nil {
		session.EndSession(ctx)
		return nil, errors.Wrap(err, "starting transaction")
	}
	return &Mongo{ctx: ctx, session: session}, nil
}

// SessionContext returns a context that routes driver operations through
// the scope's transaction. It is nil unless the session is a mongo.Session.
func (m *Mongo) SessionContext() mongo.SessionContext {
	if s, ok := m.session.(mongo.Session); ok {
		return mongo.NewSessionContext(m.ctx, s)
	}
	return nil
}

// MarkSuccess flags the transaction for commit.
func (m *Mongo) MarkSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success = true
}

// Close commits or aborts the transaction and ends the session.
func (m *Mongo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	defer m.session.EndSession(m.ctx)

	if m.success {
		return errors.Wrap(m.session.CommitTransaction(m.ctx), "committing transaction")
	}
	return errors.Wrap(m.session.AbortTransaction(m.ctx), "aborting transaction")
}

// SessionStarter opens a session. *mongo.Client satisfies it through
// ClientSessions.
type SessionStarter func() (Session, error)

// ClientSessions adapts client to a SessionStarter.
func ClientSessions(client *mongo.Client, opts ...*options.SessionOptions) SessionStarter {
	return func() (Session, error) {
		return client.StartSession(opts...)
	}
}

// NewMongoFactory returns a factory that opens a session and a transaction
// for every batch.
func NewMongoFactory(start SessionStarter, opts ...*options.TransactionOptions) pool.ScopeFactory {
	return func(ctx context.Context) (pool.Scope, error) {
		session, err := start()
		if err != nil {
			return nil, errors.Wrap(err, "starting session")
		}
		scope, err := NewMongo(ctx, session, opts...)
		if err != nil {
			return nil, err
		}
		return scope, nil
	}
}
