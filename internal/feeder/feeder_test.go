package feeder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
)

var source = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

// MockOracle is a mock implementation of FactorPublisher
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) UpdateAverageEmissionsFactor(ctx context.Context, caller common.Address, value *uint256.Int) error {
	args := m.Called(ctx, caller, value)
	return args.Error(0)
}

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRunOncePublishesFactor(t *testing.T) {
	for _, body := range []string{
		`{"average_emissions_factor": "1000"}`,
		`{"average_emissions_factor": 1000}`,
	} {
		oracle := new(MockOracle)
		oracle.On("UpdateAverageEmissionsFactor", mock.Anything, source, uint256.NewInt(1000)).Return(nil)

		f := New(Config{URL: serve(t, http.StatusOK, body), Source: source}, oracle, nil, nil)
		require.NoError(t, f.RunOnce(context.Background()))
		oracle.AssertExpectations(t)
	}
}

func TestRunOnceRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"missing field", http.StatusOK, `{"factor": "1"}`},
		{"negative", http.StatusOK, `{"average_emissions_factor": "-5"}`},
		{"fraction", http.StatusOK, `{"average_emissions_factor": 1.5}`},
		{"not json", http.StatusOK, `factor=1000`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := new(MockOracle)
			f := New(Config{URL: serve(t, tt.status, tt.body), Source: source}, oracle, nil, nil)
			assert.Error(t, f.RunOnce(context.Background()))
			oracle.AssertNotCalled(t, "UpdateAverageEmissionsFactor", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRunOnceReportsOracleRejection(t *testing.T) {
	oracle := new(MockOracle)
	rejected := errs.New(errs.KindUnauthorized, "Only trusted sources can call this function")
	oracle.On("UpdateAverageEmissionsFactor", mock.Anything, source, mock.Anything).Return(rejected)

	f := New(Config{URL: serve(t, http.StatusOK, `{"average_emissions_factor":"7"}`), Source: source}, oracle, nil, nil)
	assert.ErrorIs(t, f.RunOnce(context.Background()), errs.Unauthorized)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	f := New(Config{Schedule: "every so often", URL: "http://localhost", Source: source}, new(MockOracle), nil, nil)
	assert.Error(t, f.Start(context.Background()))
}

func TestStartStop(t *testing.T) {
	f := New(Config{Schedule: "@every 1h", URL: "http://localhost", Source: source}, new(MockOracle), nil, nil)
	require.NoError(t, f.Start(context.Background()))
	assert.Error(t, f.Start(context.Background()))
	f.Stop()
	f.Stop()
}
