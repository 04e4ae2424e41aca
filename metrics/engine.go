/*
Package metrics computes derived business views over the sales ledger.

PURPOSE:
  Four independent read-only aggregations: revenue forecast, conversion
  funnel, agent performance scores, and project ROI. The engine never
  mutates ledger state and never fails hard on sparse data - a metric
  with too little history returns an explicit marker or zero-filled
  result instead of an error, because a dashboard must degrade
  gracefully rather than crash.

CONSISTENCY:
  Computations run against normal snapshot reads and may overlap ledger
  writes. A report reflecting a balance from a moment ago is acceptable;
  the ledger invariants themselves are never at risk from readers.

SEE ALSO:
  - forecast.go: OLS trend extrapolation
  - funnel.go: Cumulative lead-stage buckets
  - score.go: Weighted agent composite
  - roi.go: Per-project lifetime ROI
*/
package metrics

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/plotwise/estate-engine/config"
	"github.com/plotwise/estate-engine/ledger"
)

// =============================================================================
// SOURCE - Narrow read-only view of the ledger store
// =============================================================================

// Source is everything the engine reads. Both the SQLite and the
// in-memory stores satisfy it.
type Source interface {
	ListSales(ctx context.Context) ([]*ledger.Sale, error)
	ListLeads(ctx context.Context) ([]*ledger.Lead, error)
	ListVisits(ctx context.Context) ([]*ledger.SiteVisit, error)
	ListPlots(ctx context.Context) ([]*ledger.Plot, error)
	ListProjects(ctx context.Context) ([]*ledger.Project, error)
	ListAgents(ctx context.Context) ([]*ledger.Agent, error)
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	src      Source
	settings config.Settings
	logger   *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewEngine(src Source, settings config.Settings, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{src: src, settings: settings, logger: logger, now: time.Now}
}

// DateRange bounds a metric window. Zero From/To means unbounded on
// that side.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range (inclusive).
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// =============================================================================
// DASHBOARD - All four views, soft-failing per metric
// =============================================================================

// Dashboard bundles every metric view for the reporting surface.
type Dashboard struct {
	Forecast    *Forecast     `json:"forecast"`
	Funnel      *Funnel       `json:"funnel"`
	AgentScores []*AgentScore `json:"agent_scores"`
	ProjectROI  []*ProjectROI `json:"project_roi"`
}

// BuildDashboard assembles all four metric views. One broken metric is
// logged and replaced by its zero value; it never blanks the others.
func (e *Engine) BuildDashboard(ctx context.Context, forecastMonths int) *Dashboard {
	d := &Dashboard{}

	forecast, err := e.Forecast(ctx, forecastMonths)
	if err != nil {
		e.logger.Error("forecast failed", zap.Error(err))
		forecast = &Forecast{Status: ForecastNoData}
	}
	d.Forecast = forecast

	funnel, err := e.Funnel(ctx, DateRange{})
	if err != nil {
		e.logger.Error("funnel failed", zap.Error(err))
		funnel = &Funnel{Stages: emptyStages()}
	}
	d.Funnel = funnel

	scores, err := e.AgentScores(ctx, DateRange{})
	if err != nil {
		e.logger.Error("agent scores failed", zap.Error(err))
	}
	if scores == nil {
		scores = []*AgentScore{}
	}
	d.AgentScores = scores

	roi, err := e.ProjectROI(ctx)
	if err != nil {
		e.logger.Error("project roi failed", zap.Error(err))
	}
	if roi == nil {
		roi = []*ProjectROI{}
	}
	d.ProjectROI = roi

	return d
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// round1 rounds a percentage or score to 1 decimal place.
func round1(f float64) float64 { return math.Round(f*10) / 10 }

// pct computes part/whole*100 rounded to 1 decimal, 0 when whole is 0.
func pct(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return round1(part / whole * 100)
}
