/*
roi.go - Per-project lifetime return on investment

PURPOSE:
  For every project: plot counts, lifetime revenue from non-cancelled
  sales, site-visit traffic, and leads attributed to the project. Cost
  is totalPlots x a configured per-plot estimate - explicitly an
  approximation until a real cost-tracking model exists.

LEAD ATTRIBUTION:
  Leads carry free-text notes, not a project foreign key. Attribution
  is a case-insensitive substring match of the project name inside the
  notes. Best effort: it may under- or over-count, and it never fails.

OUTPUT:
  roi%        = (revenue - cost)/cost * 100     (0 when cost is 0)
  occupancy%  = sold/total * 100
  efficiency% = sold/leadsGenerated * 100
  Ranked descending by ROI.
*/
package metrics

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/plotwise/estate-engine/ledger"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

type ProjectROI struct {
	ProjectID         ledger.ProjectID `json:"project_id"`
	Name              string           `json:"name"`
	TotalPlots        int              `json:"total_plots"`
	SoldPlots         int              `json:"sold_plots"`
	Revenue           decimal.Decimal  `json:"revenue"`
	CostEstimate      decimal.Decimal  `json:"cost_estimate"`
	SiteVisits        int              `json:"site_visits"`
	LeadsGenerated    int              `json:"leads_generated"`
	ROIPercent        float64          `json:"roi_percent"`
	OccupancyPercent  float64          `json:"occupancy_percent"`
	EfficiencyPercent float64          `json:"efficiency_percent"`
}

// =============================================================================
// COMPUTATION
// =============================================================================

// ProjectROI computes lifetime ROI per project (no date filter). Empty
// projects yield zero-filled rows, never errors.
func (e *Engine) ProjectROI(ctx context.Context) ([]*ProjectROI, error) {
	projects, err := e.src.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	plots, err := e.src.ListPlots(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := e.src.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	visits, err := e.src.ListVisits(ctx)
	if err != nil {
		return nil, err
	}
	leads, err := e.src.ListLeads(ctx)
	if err != nil {
		return nil, err
	}

	plotProject := make(map[ledger.PlotID]ledger.ProjectID, len(plots))
	for _, p := range plots {
		plotProject[p.ID] = p.ProjectID
	}

	var out []*ProjectROI
	for _, proj := range projects {
		row := &ProjectROI{ProjectID: proj.ID, Name: proj.Name, Revenue: decimal.Zero}

		for _, p := range plots {
			if p.ProjectID != proj.ID {
				continue
			}
			row.TotalPlots++
			if p.Status == ledger.PlotSold {
				row.SoldPlots++
			}
		}

		for _, s := range sales {
			if s.Status == ledger.SaleCancelled {
				continue
			}
			if plotProject[s.PlotID] == proj.ID {
				row.Revenue = row.Revenue.Add(s.Price)
			}
		}

		for _, v := range visits {
			if v.ProjectID == proj.ID {
				row.SiteVisits++
			}
		}

		// Fuzzy attribution against free-text notes.
		name := strings.ToLower(strings.TrimSpace(proj.Name))
		if name != "" {
			for _, l := range leads {
				if strings.Contains(strings.ToLower(l.Notes), name) {
					row.LeadsGenerated++
				}
			}
		}

		row.CostEstimate = e.settings.PlotCostEstimate.Mul(decimal.NewFromInt(int64(row.TotalPlots))).Round(2)

		cost, _ := row.CostEstimate.Float64()
		revenue, _ := row.Revenue.Float64()
		if cost > 0 {
			row.ROIPercent = round1((revenue - cost) / cost * 100)
		}
		row.OccupancyPercent = pct(float64(row.SoldPlots), float64(row.TotalPlots))
		row.EfficiencyPercent = pct(float64(row.SoldPlots), float64(row.LeadsGenerated))
		row.Revenue = row.Revenue.Round(2)

		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ROIPercent > out[j].ROIPercent })
	return out, nil
}
