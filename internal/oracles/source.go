package oracles

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Source exposes both oracles as the emissions capability the issuer reads.
type Source struct {
	average *AverageOracle
	project *ProjectOracle
}

func NewSource(average *AverageOracle, project *ProjectOracle) *Source {
	return &Source{average: average, project: project}
}

func (s *Source) GetEnergyProduced(ctx context.Context, project common.Address) (*uint256.Int, error) {
	return s.project.GetEnergyProduced(ctx, project)
}

func (s *Source) GetProjectEmissionsData(ctx context.Context, project common.Address) (*uint256.Int, error) {
	return s.project.GetProjectEmissionsData(ctx, project)
}

func (s *Source) GetAverageEmissionsFactor(ctx context.Context) (*uint256.Int, error) {
	return s.average.GetAverageEmissionsFactor(ctx)
}
