/*
forecast.go - Revenue trend extrapolation

PURPOSE:
  Ordinary least-squares linear regression of monthly revenue against a
  1..n month index, extrapolated a configurable number of months ahead.
  This is a simple trend line for a dashboard, not a statistical model;
  the exact formula and clamping are part of the contract with the
  reporting surface.

INPUT SERIES:
  Monthly revenue is the sum of agreed sale prices of non-cancelled
  sales, grouped by sale month, over the trailing 12 calendar months.
  Months after the first sale in the window with no revenue count as
  zero so the index stays regular.

DEGENERATE INPUTS (markers, never errors):
  no_data           - no revenue at all in the window
  insufficient_data - fewer than 3 months of history
  no_variance       - regression denominator is zero

OUTPUT:
  predicted(i) = max(0, a + b*(n+i))       for i = 1..monthsAhead
  trend        = "up" iff b > 0, else "down"
  confidence   = max(0.5, 0.75 - 0.05*i)   linear decay per month out
*/
package metrics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plotwise/estate-engine/ledger"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

type ForecastStatus string

const (
	ForecastOK               ForecastStatus = "ok"
	ForecastNoData           ForecastStatus = "no_data"
	ForecastInsufficientData ForecastStatus = "insufficient_data"
	ForecastNoVariance       ForecastStatus = "no_variance"
)

// MonthRevenue is one observed point of the input series.
type MonthRevenue struct {
	Month   string          `json:"month"` // "2006-01"
	Revenue decimal.Decimal `json:"revenue"`
}

// ForecastPoint is one predicted future month.
type ForecastPoint struct {
	Month      string          `json:"month"`
	Revenue    decimal.Decimal `json:"revenue"`
	Confidence float64         `json:"confidence"`
}

type Forecast struct {
	Status  ForecastStatus  `json:"status"`
	Trend   string          `json:"trend,omitempty"` // "up" or "down"
	History []MonthRevenue  `json:"history,omitempty"`
	Points  []ForecastPoint `json:"points,omitempty"`
}

// =============================================================================
// COMPUTATION
// =============================================================================

const trailingMonths = 12

// Forecast extrapolates monthly revenue monthsAhead months into the
// future. Returns a marker status instead of numbers when the history
// cannot support the regression.
func (e *Engine) Forecast(ctx context.Context, monthsAhead int) (*Forecast, error) {
	if monthsAhead < 1 {
		monthsAhead = 3
	}

	sales, err := e.src.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	// Bucket revenue by calendar month over the trailing window.
	nowMonth := startOfMonth(e.now().UTC())
	windowStart := nowMonth.AddDate(0, -(trailingMonths - 1), 0)

	buckets := make(map[string]decimal.Decimal)
	for _, s := range sales {
		if s.Status == ledger.SaleCancelled {
			continue
		}
		m := startOfMonth(s.SaleDate.UTC())
		if m.Before(windowStart) || m.After(nowMonth) {
			continue
		}
		key := m.Format("2006-01")
		buckets[key] = buckets[key].Add(s.Price)
	}

	if len(buckets) == 0 {
		return &Forecast{Status: ForecastNoData}, nil
	}

	// Build the regular series from the first month with revenue through
	// the current month, zero-filling gaps.
	first := nowMonth
	for m := windowStart; !m.After(nowMonth); m = m.AddDate(0, 1, 0) {
		if _, ok := buckets[m.Format("2006-01")]; ok {
			first = m
			break
		}
	}

	var history []MonthRevenue
	for m := first; !m.After(nowMonth); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		history = append(history, MonthRevenue{Month: key, Revenue: RoundedOrZero(buckets[key])})
	}

	n := len(history)
	if n < 3 {
		return &Forecast{Status: ForecastInsufficientData, History: history}, nil
	}

	// OLS over (x=1..n, y=revenue).
	var sumX, sumY, sumXY, sumXX float64
	for i, h := range history {
		x := float64(i + 1)
		y, _ := h.Revenue.Float64()
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	if sumY == 0 {
		return &Forecast{Status: ForecastNoData, History: history}, nil
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return &Forecast{Status: ForecastNoVariance, History: history}, nil
	}

	b := (fn*sumXY - sumX*sumY) / denom
	a := (sumY - b*sumX) / fn

	trend := "down"
	if b > 0 {
		trend = "up"
	}

	points := make([]ForecastPoint, 0, monthsAhead)
	for i := 1; i <= monthsAhead; i++ {
		predicted := a + b*(fn+float64(i))
		if predicted < 0 {
			predicted = 0
		}
		confidence := 0.75 - 0.05*float64(i)
		if confidence < 0.5 {
			confidence = 0.5
		}
		points = append(points, ForecastPoint{
			Month:      nowMonth.AddDate(0, i, 0).Format("2006-01"),
			Revenue:    decimal.NewFromFloat(predicted).Round(2),
			Confidence: confidence,
		})
	}

	return &Forecast{
		Status:  ForecastOK,
		Trend:   trend,
		History: history,
		Points:  points,
	}, nil
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// RoundedOrZero rounds a possibly-zero decimal to 2 places.
func RoundedOrZero(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
