// Package oracles holds the two emissions data sources read by the credit
// issuer: the global average emissions factor and the per-project energy and
// emissions records. Writes to either are restricted to trusted sources.
package oracles

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/metrics"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/trust"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
)

// AverageOracle publishes the global average emissions factor.
type AverageOracle struct {
	*trust.Registry

	repo      AverageRepository
	exec      txn.Executor
	publisher events.Publisher
	metrics   *metrics.Recorder
	logger    *zap.Logger
}

func NewAverageOracle(
	registry *trust.Registry,
	repo AverageRepository,
	exec txn.Executor,
	publisher events.Publisher,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *AverageOracle {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AverageOracle{
		Registry:  registry,
		repo:      repo,
		exec:      exec,
		publisher: publisher,
		metrics:   recorder,
		logger:    logger.With(zap.String("component", AverageRegistryName)),
	}
}

// UpdateAverageEmissionsFactor overwrites the factor. Zero is accepted.
func (o *AverageOracle) UpdateAverageEmissionsFactor(ctx context.Context, caller common.Address, value *uint256.Int) error {
	value = value.Clone()
	err := o.exec.Execute(ctx, func(ctx context.Context) error {
		if err := o.RequireTrusted(ctx, caller); err != nil {
			return err
		}
		if err := o.repo.SetFactor(ctx, value, caller); err != nil {
			return err
		}
		txn.AfterCommit(ctx, func(ctx context.Context) {
			o.publisher.Publish(ctx, events.AverageEmissionsFactorUpdated(caller, value))
		})
		return nil
	})
	o.metrics.Observe(AverageRegistryName, "update_average_emissions_factor", err)
	if err != nil {
		o.logger.Warn("Average emissions factor update rejected", zap.String("caller", caller.Hex()), zap.Error(err))
		return err
	}

	o.logger.Info("Average emissions factor updated", zap.String("source", caller.Hex()), zap.String("value", value.Dec()))
	return nil
}

// GetAverageEmissionsFactor returns the last published factor, 0 initially.
func (o *AverageOracle) GetAverageEmissionsFactor(ctx context.Context) (*uint256.Int, error) {
	return o.repo.GetFactor(ctx)
}
