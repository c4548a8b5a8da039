package trust

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/storetest"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
)

func TestStoredRegistriesKeepSeparateWhitelists(t *testing.T) {
	ctx := context.Background()
	db := storetest.Open(t, &TrustedSource{}, &events.Record{})
	repo := NewRepository(db)
	exec := txn.NewSerial(db)
	store := events.NewRepository(db)
	bus := events.NewBus(nil, events.NewStoreSink(store))

	average := NewRegistry("average_oracle", deployer, repo, exec, bus, nil, nil)
	project := NewRegistry("project_oracle", deployer, repo, exec, bus, nil, nil)

	require.NoError(t, average.AddTrustedSource(ctx, deployer, addr2))
	require.NoError(t, average.AddTrustedSource(ctx, deployer, addr1))
	require.NoError(t, average.AddTrustedSource(ctx, deployer, addr1))
	require.NoError(t, project.AddTrustedSource(ctx, deployer, addr2))
	require.NoError(t, project.RemoveTrustedSource(ctx, deployer, addr2))
	require.NoError(t, project.RemoveTrustedSource(ctx, deployer, addr1))

	sources, err := average.TrustedSources(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []common.Address{addr1, addr2}, sources)
	sources, err = project.TrustedSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)

	assert.NoError(t, average.RequireTrusted(ctx, addr1))
	assert.ErrorIs(t, project.RequireTrusted(ctx, addr2), errs.Unauthorized)
	assert.ErrorIs(t, average.AddTrustedSource(ctx, addr1, addr1), errs.Unauthorized)

	records, err := store.List(ctx, events.Filter{})
	require.NoError(t, err)
	types := make([]events.Type, 0, len(records))
	for _, r := range records {
		types = append(types, r.Type)
	}
	assert.Equal(t, []events.Type{
		events.TypeTrustedSourceAdded,
		events.TypeTrustedSourceAdded,
		events.TypeTrustedSourceAdded,
		events.TypeTrustedSourceRemoved,
	}, types)
}
