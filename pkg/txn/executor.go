// Package txn serializes state-mutating operations. Every write operation of
// the registry, the oracles and the issuer runs through one Executor, so the
// whole service behaves as a single ordered log of operations. With a database
// each operation is one transaction that repositories join via the context.
package txn

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Executor runs fn as one atomic, serialized operation.
type Executor interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

type (
	txKey    struct{}
	hooksKey struct{}
)

type hooks struct {
	fns []func(ctx context.Context)
}

// Serial is the Executor used by the service.
type Serial struct {
	mu sync.Mutex
	db *gorm.DB
}

// NewSerial returns an executor. db may be nil when state lives in memory.
func NewSerial(db *gorm.DB) *Serial {
	return &Serial{db: db}
}

// Execute runs fn and, once its writes are committed, the hooks fn registered
// with AfterCommit. Hooks run before the next operation starts and receive a
// context that is not cancelled with ctx.
func (s *Serial) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := &hooks{}
	ctx = context.WithValue(ctx, hooksKey{}, pending)

	var err error
	if s.db == nil {
		err = fn(ctx)
	} else {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey{}, tx))
		})
	}
	if err != nil {
		return err
	}

	detached := context.WithoutCancel(ctx)
	for _, hook := range pending.fns {
		hook(detached)
	}
	return nil
}

// AfterCommit registers fn to run once the operation bound to ctx committed.
// It is dropped when the operation fails. Outside an operation fn runs
// immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if pending, ok := ctx.Value(hooksKey{}).(*hooks); ok {
		pending.fns = append(pending.fns, fn)
		return
	}
	fn(context.WithoutCancel(ctx))
}

// DB returns the transaction bound to ctx, or fallback scoped to ctx.
func DB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}
