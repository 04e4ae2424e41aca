/*
forecast_test.go - Revenue trend extrapolation

Tests for:
- Degenerate inputs returning markers, never errors
- A clean linear history extrapolating exactly
- Negative predictions clamping to 0
- Cancelled sales excluded from the series
*/
package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotwise/estate-engine/config"
	"github.com/plotwise/estate-engine/ledger"
	"github.com/plotwise/estate-engine/ledger/store"
)

// fixedNow pins the engine clock so month bucketing is deterministic.
var fixedNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	e := NewEngine(mem, config.Default(), nil)
	e.now = func() time.Time { return fixedNow }
	return e, mem
}

// addSale inserts a sale with the given price and sale month offset from
// the pinned clock (0 = current month, -1 = last month, ...).
func addSale(t *testing.T, mem *store.Memory, id string, price int64, monthOffset int, status ledger.SaleStatus) {
	t.Helper()
	saleDate := startOfMonth(fixedNow).AddDate(0, monthOffset, 0)
	require.NoError(t, mem.CreateSale(context.Background(), &ledger.Sale{
		ID:       ledger.SaleID(id),
		ClientID: "client-1", PlotID: ledger.PlotID("plot-" + id), AgentID: "agent-1",
		Price:   decimal.NewFromInt(price),
		Balance: decimal.NewFromInt(price),
		Status:  status, SaleDate: saleDate, Version: 1, CreatedAt: saleDate,
	}))
}

func TestForecast_NoData(t *testing.T) {
	e, _ := newTestEngine(t)

	f, err := e.Forecast(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, ForecastNoData, f.Status)
	assert.Empty(t, f.Points)
}

func TestForecast_InsufficientData(t *testing.T) {
	// GIVEN: Revenue in only the last two months
	// THEN: insufficient_data, with the short history attached

	e, mem := newTestEngine(t)
	addSale(t, mem, "s1", 400_000, -1, ledger.SaleActive)

	f, err := e.Forecast(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, ForecastInsufficientData, f.Status)
	assert.Len(t, f.History, 2, "last month through current month")
}

func TestForecast_LinearTrendExtrapolatesExactly(t *testing.T) {
	// GIVEN: 12 months of revenue increasing by exactly 100,000 a month
	// WHEN: Forecasting 3 months ahead
	// THEN: trend=up, the line continues exactly, confidence 0.70/0.65/0.60

	e, mem := newTestEngine(t)
	for i := 0; i < 12; i++ {
		// Oldest month (offset -11) earns 100k, current month 1.2M.
		addSale(t, mem, fmt.Sprintf("s%d", i), int64(i+1)*100_000, i-11, ledger.SaleActive)
	}

	f, err := e.Forecast(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, ForecastOK, f.Status)
	assert.Equal(t, "up", f.Trend)
	require.Len(t, f.History, 12)
	require.Len(t, f.Points, 3)

	// y = 100000*x fits the history exactly, so month 13 is 1.3M.
	assert.True(t, f.Points[0].Revenue.Equal(decimal.NewFromInt(1_300_000)),
		"got %s", f.Points[0].Revenue)
	assert.True(t, f.Points[1].Revenue.Equal(decimal.NewFromInt(1_400_000)))
	assert.True(t, f.Points[2].Revenue.Equal(decimal.NewFromInt(1_500_000)))

	assert.InDelta(t, 0.70, f.Points[0].Confidence, 1e-9)
	assert.InDelta(t, 0.65, f.Points[1].Confidence, 1e-9)
	assert.InDelta(t, 0.60, f.Points[2].Confidence, 1e-9)

	assert.Equal(t, "2026-09", f.Points[0].Month)
	assert.Equal(t, "2026-11", f.Points[2].Month)
}

func TestForecast_NegativePredictionClampsToZero(t *testing.T) {
	// GIVEN: Revenue collapsing 600k -> 300k -> 0 (gap-filled current month)
	// THEN: The fitted line goes negative at month 4 and is clamped to 0

	e, mem := newTestEngine(t)
	addSale(t, mem, "s1", 600_000, -2, ledger.SaleActive)
	addSale(t, mem, "s2", 300_000, -1, ledger.SaleActive)

	f, err := e.Forecast(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, ForecastOK, f.Status)
	assert.Equal(t, "down", f.Trend)
	require.Len(t, f.Points, 1)
	assert.True(t, f.Points[0].Revenue.IsZero(), "got %s", f.Points[0].Revenue)
}

func TestForecast_CancelledSalesExcluded(t *testing.T) {
	// GIVEN: Only cancelled sales
	// THEN: They contribute nothing; the series is empty

	e, mem := newTestEngine(t)
	addSale(t, mem, "s1", 900_000, -3, ledger.SaleCancelled)
	addSale(t, mem, "s2", 900_000, -1, ledger.SaleCancelled)

	f, err := e.Forecast(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, ForecastNoData, f.Status)
}

func TestForecast_DefaultHorizon(t *testing.T) {
	e, mem := newTestEngine(t)
	for i := 0; i < 4; i++ {
		addSale(t, mem, "h"+string(rune('a'+i)), 100_000, i-3, ledger.SaleActive)
	}

	f, err := e.Forecast(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, ForecastOK, f.Status)
	assert.Len(t, f.Points, 3, "monthsAhead < 1 falls back to 3")
}
