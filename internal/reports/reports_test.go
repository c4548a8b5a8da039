package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/issuer"
)

type MockMintLister struct {
	mock.Mock
}

func (m *MockMintLister) Mints(ctx context.Context) ([]issuer.Mint, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]issuer.Mint), args.Error(1)
}

var (
	holder   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	mintedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func sampleMints() []issuer.Mint {
	return []issuer.Mint{
		{ID: 0, ProjectID: 0, To: holder, FirstTokenID: 0, Count: 1, MintedAt: mintedAt},
		{ID: 1, ProjectID: 2, To: holder, FirstTokenID: 1, Count: 4, MintedAt: mintedAt},
	}
}

func TestMintLedger(t *testing.T) {
	lister := new(MockMintLister)
	lister.On("Mints", mock.Anything).Return(sampleMints(), nil)
	service := NewService(lister, events.NewMemoryRepository())

	table, err := service.MintLedger(context.Background())
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "last_token_id", table.Columns[5])
	assert.Equal(t, uint64(4), table.Rows[1][5])
	assert.Equal(t, holder.Hex(), table.Rows[1][2])
	lister.AssertExpectations(t)
}

func TestMintLedgerError(t *testing.T) {
	lister := new(MockMintLister)
	lister.On("Mints", mock.Anything).Return(nil, errors.New("db down"))

	_, err := NewService(lister, events.NewMemoryRepository()).MintLedger(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestAuditTrailFiltersByType(t *testing.T) {
	ctx := context.Background()
	repo := events.NewMemoryRepository()
	require.NoError(t, repo.Save(ctx, &events.Record{
		ID: uuid.New(), Type: events.TypePaused, Component: "issuer",
		Data: datatypes.JSON(`{"account": "0x01"}`), EmittedAt: mintedAt,
	}))
	require.NoError(t, repo.Save(ctx, &events.Record{
		ID: uuid.New(), Type: events.TypeUnpaused, Component: "issuer",
		Data: datatypes.JSON(`{"account":"0x01"}`), EmittedAt: mintedAt.Add(time.Minute),
	}))

	paused := events.TypePaused
	table, err := NewService(new(MockMintLister), repo).AuditTrail(ctx, events.Filter{Type: &paused})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Paused", table.Rows[0][1])
	assert.Equal(t, `{"account":"0x01"}`, table.Rows[0][4])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Table{
		Columns: []string{"id", "when", "note"},
		Rows: [][]any{
			{uint64(7), mintedAt, "a,b"},
			{uint64(8), time.Time{}, nil},
		},
	}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "when", "note"},
		{"7", "2024-03-01T12:00:00Z", "a,b"},
		{"8", "", ""},
	}, records)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, Table{
		Name:    "Mints",
		Columns: []string{"mint_id", "to"},
		Rows:    [][]any{{uint64(0), holder.Hex()}},
	}))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows("Mints")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"mint_id", "to"}, {"0", holder.Hex()}}, rows)
}

func TestWritePDF(t *testing.T) {
	rows := make([][]any, 120)
	for i := range rows {
		rows[i] = []any{uint64(i), holder.Hex(), mintedAt}
	}

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, Table{
		Name:    "Mints",
		Columns: []string{"mint_id", "to", "minted_at"},
		Rows:    rows,
	}, mintedAt))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func newRouter(service *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(service).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestHandlerExports(t *testing.T) {
	lister := new(MockMintLister)
	lister.On("Mints", mock.Anything).Return(sampleMints(), nil)
	router := newRouter(NewService(lister, events.NewMemoryRepository()))

	tests := []struct {
		name        string
		path        string
		code        int
		contentType string
	}{
		{"csv by default", "/api/v1/reports/mints", http.StatusOK, "text/csv"},
		{"xlsx", "/api/v1/reports/mints?format=xlsx", http.StatusOK, xlsxContentType},
		{"events csv", "/api/v1/reports/events?type=Paused", http.StatusOK, "text/csv"},
		{"pdf", "/api/v1/reports/mints?format=pdf", http.StatusOK, "application/pdf"},
		{"unknown format", "/api/v1/reports/mints?format=html", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, w.Code)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
				assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
			}
		})
	}
}
