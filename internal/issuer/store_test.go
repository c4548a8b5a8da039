package issuer

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/storetest"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
)

// cancelSink cancels the caller's context as soon as an event is delivered,
// the way a disconnecting HTTP client does.
type cancelSink struct {
	cancel context.CancelFunc
}

func (s cancelSink) Name() string { return "cancel" }

func (s cancelSink) Deliver(context.Context, events.Event) error {
	s.cancel()
	return nil
}

type storedIssuer struct {
	db     *gorm.DB
	repo   Repository
	exec   *txn.Serial
	issuer *Issuer
	events events.Repository
}

func newStoredIssuer(t *testing.T, source EmissionsSource, sinks ...events.Sink) *storedIssuer {
	t.Helper()
	db := storetest.Open(t, &IssuerProject{}, &IssuerMint{}, &IssuerState{}, &events.Record{})
	repo := NewRepository(db)
	exec := txn.NewSerial(db)
	store := events.NewRepository(db)
	bus := events.NewBus(nil, append(sinks, events.NewStoreSink(store))...)

	return &storedIssuer{
		db:     db,
		repo:   repo,
		exec:   exec,
		issuer: NewIssuer(Options{Admin: deployer}, repo, source, exec, bus, nil, nil),
		events: store,
	}
}

func TestStoredIssuerRegistersAndMints(t *testing.T) {
	ctx := context.Background()
	st := newStoredIssuer(t, &stubSource{energy: 5000, emissions: 500, factor: 1000})

	for want := uint64(0); want < 3; want++ {
		id, err := st.issuer.RegisterProject(ctx, addr1, validHash)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	project, err := st.issuer.Project(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, addr1, project.Owner)
	assert.Equal(t, validHash, project.DataHash)

	mint, err := st.issuer.MintCarbonCredit(ctx, addr2, addr1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), mint.FirstTokenID)
	assert.Equal(t, uint64(4), mint.Count)

	mint, err = st.issuer.MintCarbonCredit(ctx, addr2, addr2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), mint.FirstTokenID)

	token, err := st.issuer.Token(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, addr1, token.Owner)
	owner, err := st.issuer.OwnerOf(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, addr2, owner)
	_, err = st.issuer.Token(ctx, 8)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	balance, err := st.issuer.BalanceOf(ctx, addr1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), balance)
	tokens, err := st.issuer.TokensOf(ctx, addr2, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5, 6, 7}, tokens)

	mints, err := st.issuer.Mints(ctx)
	require.NoError(t, err)
	require.Len(t, mints, 2)
	assert.Equal(t, uint64(1), mints[1].ProjectID)

	state, err := st.repo.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{ProjectCount: 3, TokenCount: 8}, *state)
}

func TestStoredIssuerRejectionsLeaveNoTrace(t *testing.T) {
	ctx := context.Background()
	st := newStoredIssuer(t, &stubSource{energy: 1000, emissions: 1500, factor: 1000})

	_, err := st.issuer.RegisterProject(ctx, addr1, validHash)
	require.NoError(t, err)
	_, err = st.issuer.MintCarbonCredit(ctx, addr1, addr1, 0)
	assert.ErrorIs(t, err, ErrEmissionsTooHigh)

	require.NoError(t, st.issuer.Pause(ctx, deployer))
	_, err = st.issuer.RegisterProject(ctx, addr1, validHash)
	assert.True(t, errs.Is(err, errs.KindSystemPaused))
	paused, err := st.issuer.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	mints, err := st.issuer.Mints(ctx)
	require.NoError(t, err)
	assert.Empty(t, mints)
	count, err := st.issuer.ProjectCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestStoredIssuerRollsBackPartialWrites(t *testing.T) {
	ctx := context.Background()
	st := newStoredIssuer(t, &stubSource{})
	failure := errors.New("later step failed")

	err := st.exec.Execute(ctx, func(ctx context.Context) error {
		if _, err := st.repo.CreateProject(ctx, addr1, validHash, st.issuer.now()); err != nil {
			return err
		}
		if _, err := st.repo.CreateMint(ctx, 0, addr1, 3, st.issuer.now()); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)

	project, err := st.repo.GetProject(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, project)
	mint, err := st.repo.MintOfToken(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, mint)
	state, err := st.repo.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{}, *state)

	var rows int64
	require.NoError(t, st.db.Model(&IssuerMint{}).Count(&rows).Error)
	assert.Zero(t, rows)

	id, err := st.issuer.RegisterProject(ctx, addr1, validHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
}

func TestAuditRecordSurvivesCancelledCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := newStoredIssuer(t, &stubSource{energy: 2000, emissions: 500, factor: 1000}, cancelSink{cancel: cancel})

	_, err := st.issuer.RegisterProject(ctx, addr1, validHash)
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	records, err := st.events.List(context.Background(), events.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, events.TypeProjectRegistered, records[0].Type)
}

func TestAuditTrailFollowsCommitOrder(t *testing.T) {
	ctx := context.Background()
	store := events.NewMemoryRepository()
	s := newIssuer(&stubSource{}, events.NewBus(nil, events.NewStoreSink(store)))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RegisterProject(ctx, addr1, validHash)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	records, err := store.List(ctx, events.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 25)
	for i, rec := range records {
		var data struct {
			ID uint64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(rec.Data, &data))
		assert.Equal(t, uint64(i), data.ID)
		if i > 0 {
			assert.True(t, rec.EmittedAt.After(records[i-1].EmittedAt))
		}
	}
}

func TestStoredIssuerIDsBeyondColumnRangeAreMissing(t *testing.T) {
	ctx := context.Background()
	st := newStoredIssuer(t, &stubSource{energy: 2000, emissions: 500, factor: 1000})
	_, err := st.issuer.RegisterProject(ctx, addr1, validHash)
	require.NoError(t, err)
	_, err = st.issuer.MintCarbonCredit(ctx, addr1, addr1, 0)
	require.NoError(t, err)

	const beyond = uint64(math.MaxInt64) + 1
	_, err = st.issuer.Project(ctx, beyond)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = st.issuer.Token(ctx, beyond)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = st.issuer.MintCarbonCredit(ctx, addr1, addr1, beyond)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	router := newRouter(st.issuer)
	for _, path := range []string{
		"/api/v1/issuer/projects/9223372036854775808",
		"/api/v1/issuer/tokens/18446744073709551615",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
