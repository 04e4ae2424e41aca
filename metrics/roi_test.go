/*
roi_test.go - Per-project lifetime return on investment

Tests for:
- The ROI arithmetic against a worked example
- Fuzzy lead attribution by project name in notes
- Zero-denominator guards (no plots, no leads)
- Cancelled sales excluded from revenue
- Descending ranking
*/
package metrics

import (
	"context"
	"errors"
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

func addProject(t *testing.T, mem *store.Memory, id ledger.ProjectID, name string) {
	t.Helper()
	require.NoError(t, mem.CreateProject(context.Background(), &ledger.Project{
		ID: id, Name: name, CreatedAt: fixedNow,
	}))
}

func addPlot(t *testing.T, mem *store.Memory, id ledger.PlotID, project ledger.ProjectID, status ledger.PlotStatus) {
	t.Helper()
	require.NoError(t, mem.CreatePlot(context.Background(), &ledger.Plot{
		ID: id, ProjectID: project, Number: string(id),
		Price: decimal.NewFromInt(1_000_000), Status: status, CreatedAt: fixedNow,
	}))
}

func TestProjectROI_WorkedExample(t *testing.T) {
	// GIVEN: "Green Valley" with 4 plots, 2 sold via sales of 1.5M each,
	//        cost estimate 500,000 per plot, 3 site visits, 4 attributable
	//        leads
	// THEN: cost=2M, revenue=3M, roi=50%, occupancy=50%, efficiency=50%

	e, mem := newTestEngine(t)
	ctx := context.Background()
	addProject(t, mem, "proj-gv", "Green Valley")

	for i, status := range []ledger.PlotStatus{
		ledger.PlotSold, ledger.PlotSold, ledger.PlotAvailable, ledger.PlotAvailable,
	} {
		addPlot(t, mem, ledger.PlotID(fmt.Sprintf("gv-%d", i)), "proj-gv", status)
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, mem.CreateSale(ctx, &ledger.Sale{
			ID: ledger.SaleID(fmt.Sprintf("sale-%d", i)), ClientID: "client-1",
			PlotID: ledger.PlotID(fmt.Sprintf("gv-%d", i)), AgentID: "agent-1",
			Price: decimal.NewFromInt(1_500_000), Balance: decimal.Zero,
			Status: ledger.SaleCompleted, SaleDate: fixedNow, Version: 1, CreatedAt: fixedNow,
		}))
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, mem.CreateVisit(ctx, &ledger.SiteVisit{
			ID: ledger.VisitID(fmt.Sprintf("v-%d", i)), ProjectID: "proj-gv",
			AgentID: "agent-1", VisitedAt: fixedNow,
		}))
	}

	// Attribution is a case-insensitive substring match in free text.
	notes := []string{
		"Interested in Green Valley phase 2",
		"asked about GREEN VALLEY pricing",
		"green valley, wants corner plot",
		"walked in after the green valley open day",
		"looking at Sunset Ridge instead", // not attributed
	}
	for i, n := range notes {
		require.NoError(t, mem.CreateLead(ctx, &ledger.Lead{
			ID: ledger.LeadID(fmt.Sprintf("lead-%d", i)), AgentID: "agent-1",
			Status: ledger.LeadNew, Notes: n, CreatedAt: fixedNow,
		}))
	}

	rows, err := e.ProjectROI(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 4, row.TotalPlots)
	assert.Equal(t, 2, row.SoldPlots)
	assert.True(t, row.Revenue.Equal(decimal.NewFromInt(3_000_000)))
	assert.True(t, row.CostEstimate.Equal(decimal.NewFromInt(2_000_000)))
	assert.Equal(t, 3, row.SiteVisits)
	assert.Equal(t, 4, row.LeadsGenerated)
	assert.Equal(t, 50.0, row.ROIPercent)
	assert.Equal(t, 50.0, row.OccupancyPercent)
	assert.Equal(t, 50.0, row.EfficiencyPercent)
}

func TestProjectROI_EmptyProjectZeroFilled(t *testing.T) {
	// GIVEN: A project with no plots at all
	// THEN: Cost is 0 and every ratio guards the zero denominator

	e, mem := newTestEngine(t)
	addProject(t, mem, "proj-empty", "Lakeside")

	rows, err := e.ProjectROI(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 0, row.TotalPlots)
	assert.True(t, row.CostEstimate.IsZero())
	assert.Equal(t, 0.0, row.ROIPercent)
	assert.Equal(t, 0.0, row.OccupancyPercent)
	assert.Equal(t, 0.0, row.EfficiencyPercent)
}

func TestProjectROI_CancelledSalesExcluded(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	addProject(t, mem, "proj-1", "Hilltop")
	addPlot(t, mem, "p1", "proj-1", ledger.PlotAvailable)

	require.NoError(t, mem.CreateSale(ctx, &ledger.Sale{
		ID: "sale-c", ClientID: "client-1", PlotID: "p1", AgentID: "agent-1",
		Price: decimal.NewFromInt(2_000_000), Balance: decimal.NewFromInt(2_000_000),
		Status: ledger.SaleCancelled, SaleDate: fixedNow, Version: 1, CreatedAt: fixedNow,
	}))

	rows, err := e.ProjectROI(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Revenue.IsZero())
}

func TestProjectROI_RankedDescending(t *testing.T) {
	// GIVEN: A profitable project and a plot-heavy one with no sales
	// THEN: The profitable project ranks first

	e, mem := newTestEngine(t)
	ctx := context.Background()
	addProject(t, mem, "proj-win", "Winner Park")
	addProject(t, mem, "proj-slow", "Slow Meadows")
	addPlot(t, mem, "w1", "proj-win", ledger.PlotSold)
	addPlot(t, mem, "s1", "proj-slow", ledger.PlotAvailable)
	addPlot(t, mem, "s2", "proj-slow", ledger.PlotAvailable)

	require.NoError(t, mem.CreateSale(ctx, &ledger.Sale{
		ID: "sale-w", ClientID: "client-1", PlotID: "w1", AgentID: "agent-1",
		Price: decimal.NewFromInt(1_200_000), Balance: decimal.Zero,
		Status: ledger.SaleCompleted, SaleDate: fixedNow, Version: 1, CreatedAt: fixedNow,
	}))

	rows, err := e.ProjectROI(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ledger.ProjectID("proj-win"), rows[0].ProjectID)
	assert.Greater(t, rows[0].ROIPercent, rows[1].ROIPercent)
}

func TestBuildDashboard_SoftDegradation(t *testing.T) {
	// GIVEN: An empty store
	// THEN: The dashboard still assembles all four views with zero values

	e, _ := newTestEngine(t)

	d := e.BuildDashboard(context.Background(), 3)
	require.NotNil(t, d.Forecast)
	assert.Equal(t, ForecastNoData, d.Forecast.Status)
	require.NotNil(t, d.Funnel)
	assert.Len(t, d.Funnel.Stages, 5)
	assert.NotNil(t, d.AgentScores)
	assert.NotNil(t, d.ProjectROI)
}

// brokenLeadSource fails every lead read while the rest of the store
// keeps working, like a single corrupted table.
type brokenLeadSource struct {
	*store.Memory
}

func (b *brokenLeadSource) ListLeads(ctx context.Context) ([]*ledger.Lead, error) {
	return nil, errors.New("leads unavailable")
}

func TestBuildDashboard_BrokenMetricDoesNotBlankOthers(t *testing.T) {
	// GIVEN: Sales history present but every lead read fails
	// WHEN: The dashboard assembles
	// THEN: The forecast still computes; the lead-backed views fall back
	//       to their zero values

	mem := store.NewMemory()
	e := NewEngine(&brokenLeadSource{Memory: mem}, config.Default(), nil)
	e.now = func() time.Time { return fixedNow }

	addProject(t, mem, "proj-1", "Green Valley")
	for i := 1; i <= 4; i++ {
		addSale(t, mem, fmt.Sprintf("d-%d", i), 500_000, -i, ledger.SaleCompleted)
	}

	d := e.BuildDashboard(context.Background(), 3)

	require.NotNil(t, d.Forecast)
	assert.Equal(t, ForecastOK, d.Forecast.Status)
	assert.Len(t, d.Forecast.Points, 3)

	require.NotNil(t, d.Funnel)
	require.Len(t, d.Funnel.Stages, 5)
	for _, stage := range d.Funnel.Stages {
		assert.Equal(t, 0, stage.Count)
	}

	require.NotNil(t, d.AgentScores)
	assert.Empty(t, d.AgentScores)
	require.NotNil(t, d.ProjectROI)
	assert.Empty(t, d.ProjectROI)
}
