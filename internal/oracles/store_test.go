package oracles

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/storetest"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/trust"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
)

func newStoredFixture(t *testing.T) *fixture {
	t.Helper()
	db := storetest.Open(t, &trust.TrustedSource{}, &AverageEmissions{}, &OracleProject{}, &events.Record{})
	exec := txn.NewSerial(db)
	store := events.NewRepository(db)
	bus := events.NewBus(nil, events.NewStoreSink(store))
	trustRepo := trust.NewRepository(db)

	averageRegistry := trust.NewRegistry(AverageRegistryName, deployer, trustRepo, exec, bus, nil, nil)
	projectRegistry := trust.NewRegistry(ProjectRegistryName, deployer, trustRepo, exec, bus, nil, nil)
	return &fixture{
		average: NewAverageOracle(averageRegistry, NewAverageRepository(db), exec, bus, nil, nil),
		project: NewProjectOracle(projectRegistry, NewProjectRepository(db), exec, bus, nil, nil),
		events:  store,
	}
}

func TestStoredAverageFactor(t *testing.T) {
	ctx := context.Background()
	f := newStoredFixture(t)

	factor, err := f.average.GetAverageEmissionsFactor(ctx)
	require.NoError(t, err)
	assert.True(t, factor.IsZero())

	require.NoError(t, f.average.AddTrustedSource(ctx, deployer, addr1))
	require.NoError(t, f.average.UpdateAverageEmissionsFactor(ctx, addr1, uint256.NewInt(1000)))
	wei := uint256.NewInt(1_000_000_000_000_000_000)
	require.NoError(t, f.average.UpdateAverageEmissionsFactor(ctx, addr1, wei))

	factor, err = f.average.GetAverageEmissionsFactor(ctx)
	require.NoError(t, err)
	assert.Equal(t, wei.Dec(), factor.Dec())

	err = f.average.UpdateAverageEmissionsFactor(ctx, addr2, uint256.NewInt(1))
	assert.ErrorIs(t, err, errs.Unauthorized)
	factor, _ = f.average.GetAverageEmissionsFactor(ctx)
	assert.Equal(t, wei.Dec(), factor.Dec())
}

func TestStoredProjectData(t *testing.T) {
	ctx := context.Background()
	f := newStoredFixture(t)
	require.NoError(t, f.project.AddTrustedSource(ctx, deployer, deployer))

	err := f.project.UpdateProjectData(ctx, deployer, addr1, uint256.NewInt(1), uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrProjectNotRegistered)

	require.NoError(t, f.project.RegisterProject(ctx, addr2, addr1))
	require.NoError(t, f.project.UpdateProjectData(ctx, deployer, addr1, uint256.NewInt(2000), uint256.NewInt(500)))
	require.NoError(t, f.project.RegisterProject(ctx, addr2, addr1))

	energy, err := f.project.GetEnergyProduced(ctx, addr1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), energy.Uint64())
	emissions, err := f.project.GetProjectEmissionsData(ctx, addr1)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), emissions.Uint64())

	registered, err := f.project.IsRegistered(ctx, addr2)
	require.NoError(t, err)
	assert.False(t, registered)
	energy, err = f.project.GetEnergyProduced(ctx, addr2)
	require.NoError(t, err)
	assert.True(t, energy.IsZero())

	assert.Equal(t, []events.Type{
		events.TypeTrustedSourceAdded,
		events.TypeOracleProjectRegistered,
		events.TypeProjectDataUpdated,
	}, f.eventTypes(t))
}
