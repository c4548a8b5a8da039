// Package trust implements the admin-controlled whitelist of identities that
// may write oracle data. Each oracle owns one Registry, told apart by name.
package trust

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/metrics"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
)

var (
	ErrNotAdmin         = errs.New(errs.KindUnauthorized, "Only admin can call this function")
	ErrNotTrustedSource = errs.New(errs.KindUnauthorized, "Only trusted sources can call this function")
)

// Registry is a whitelist with a fixed admin.
type Registry struct {
	name      string
	admin     common.Address
	repo      Repository
	exec      txn.Executor
	publisher events.Publisher
	metrics   *metrics.Recorder
	logger    *zap.Logger
}

func NewRegistry(
	name string,
	admin common.Address,
	repo Repository,
	exec txn.Executor,
	publisher events.Publisher,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *Registry {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		name:      name,
		admin:     admin,
		repo:      repo,
		exec:      exec,
		publisher: publisher,
		metrics:   recorder,
		logger:    logger.With(zap.String("registry", name)),
	}
}

func (r *Registry) Name() string {
	return r.name
}

func (r *Registry) Admin() common.Address {
	return r.admin
}

// AddTrustedSource whitelists source. Adding an already trusted source is a no-op.
func (r *Registry) AddTrustedSource(ctx context.Context, caller, source common.Address) error {
	return r.setTrusted(ctx, "add_trusted_source", caller, source, true)
}

// RemoveTrustedSource revokes source. Removing an untrusted source is a no-op.
func (r *Registry) RemoveTrustedSource(ctx context.Context, caller, source common.Address) error {
	return r.setTrusted(ctx, "remove_trusted_source", caller, source, false)
}

func (r *Registry) setTrusted(ctx context.Context, op string, caller, source common.Address, trusted bool) error {
	var changed bool
	err := r.exec.Execute(ctx, func(ctx context.Context) error {
		if caller != r.admin {
			return ErrNotAdmin
		}
		current, err := r.repo.IsTrusted(ctx, r.name, source)
		if err != nil {
			return err
		}
		if current == trusted {
			return nil
		}
		changed = true
		if err := r.repo.SetTrusted(ctx, r.name, source, trusted); err != nil {
			return err
		}
		evt := events.TrustedSourceRemoved(r.name, source)
		if trusted {
			evt = events.TrustedSourceAdded(r.name, source)
		}
		txn.AfterCommit(ctx, func(ctx context.Context) {
			r.publisher.Publish(ctx, evt)
		})
		return nil
	})
	r.metrics.Observe(r.name, op, err)
	if err != nil {
		r.logger.Warn("Trusted source change rejected",
			zap.String("caller", caller.Hex()),
			zap.String("source", source.Hex()),
			zap.Error(err))
		return err
	}
	if !changed {
		return nil
	}

	r.logger.Info("Trusted source changed", zap.String("source", source.Hex()), zap.Bool("trusted", trusted))
	return nil
}

// IsTrustedSource reports whether source is currently whitelisted.
func (r *Registry) IsTrustedSource(ctx context.Context, source common.Address) (bool, error) {
	return r.repo.IsTrusted(ctx, r.name, source)
}

// TrustedSources lists the currently whitelisted identities.
func (r *Registry) TrustedSources(ctx context.Context) ([]common.Address, error) {
	return r.repo.ListTrusted(ctx, r.name)
}

// RequireTrusted fails with ErrNotTrustedSource unless caller is whitelisted.
// It always reads the store, so a revocation applies to the next call.
func (r *Registry) RequireTrusted(ctx context.Context, caller common.Address) error {
	trusted, err := r.repo.IsTrusted(ctx, r.name, caller)
	if err != nil {
		return err
	}
	if !trusted {
		return ErrNotTrustedSource
	}
	return nil
}
