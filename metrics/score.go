/*
score.go - Agent performance composite

PURPOSE:
  Scores each active sales agent 0-100 over a window as a weighted sum
  of five normalized factors:

    revenue/max(revenue)             x 40
    salesCount/max(salesCount)       x 20
    convertedLeads/totalLeads        x 20
    visits/max(visits)               x 10
    speedBonus                       x 10   (as points, bonus itself 0-10)

  speedBonus = max(0, 10 - avgDays/3), where avgDays is the mean days
  from lead creation to conversion; it defaults to 30 when the agent
  has no conversions yet (yielding a bonus of 0).

  The "max" denominators are cohort maxima for the same window; a zero
  cohort max contributes 0 for that factor instead of dividing by zero.

GRADES:
  >=90 A+, >=80 A, >=70 B, >=60 C, >=50 D, else F.
  Ranking is descending by score; ties keep insertion order (stable).
*/
package metrics

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/plotwise/estate-engine/ledger"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

type AgentScore struct {
	AgentID        ledger.AgentID  `json:"agent_id"`
	Name           string          `json:"name"`
	SalesCount     int             `json:"sales_count"`
	Revenue        decimal.Decimal `json:"revenue"`
	LeadsAssigned  int             `json:"leads_assigned"`
	LeadsConverted int             `json:"leads_converted"`
	Visits         int             `json:"visits"`
	AvgDaysToClose float64         `json:"avg_days_to_close"`
	Score          float64         `json:"score"`
	Grade          string          `json:"grade"`
	Rank           int             `json:"rank"`
}

// defaultAvgDays stands in when an agent has no conversions to average.
const defaultAvgDays = 30.0

// =============================================================================
// COMPUTATION
// =============================================================================

// AgentScores computes the composite for every active agent over the
// window. An empty cohort returns an empty slice, never an error.
func (e *Engine) AgentScores(ctx context.Context, window DateRange) ([]*AgentScore, error) {
	agents, err := e.src.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := e.src.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	leads, err := e.src.ListLeads(ctx)
	if err != nil {
		return nil, err
	}
	visits, err := e.src.ListVisits(ctx)
	if err != nil {
		return nil, err
	}

	var scores []*AgentScore
	for _, a := range agents {
		if !a.Active {
			continue
		}
		s := &AgentScore{AgentID: a.ID, Name: a.Name, Revenue: decimal.Zero}

		for _, sale := range sales {
			if sale.AgentID != a.ID || sale.Status == ledger.SaleCancelled || !window.Contains(sale.SaleDate) {
				continue
			}
			s.SalesCount++
			s.Revenue = s.Revenue.Add(sale.Price)
		}

		var totalCloseDays float64
		var closed int
		for _, l := range leads {
			if l.AgentID != a.ID || !window.Contains(l.CreatedAt) {
				continue
			}
			s.LeadsAssigned++
			if l.Status == ledger.LeadConverted {
				s.LeadsConverted++
				if l.ConvertedAt != nil {
					totalCloseDays += l.ConvertedAt.Sub(l.CreatedAt).Hours() / 24
					closed++
				}
			}
		}
		if closed > 0 {
			s.AvgDaysToClose = totalCloseDays / float64(closed)
		} else {
			s.AvgDaysToClose = defaultAvgDays
		}

		for _, v := range visits {
			if v.AgentID == a.ID && window.Contains(v.VisitedAt) {
				s.Visits++
			}
		}

		scores = append(scores, s)
	}

	// Cohort maxima for normalization.
	var maxRevenue float64
	var maxSales, maxVisits int
	for _, s := range scores {
		r, _ := s.Revenue.Float64()
		if r > maxRevenue {
			maxRevenue = r
		}
		if s.SalesCount > maxSales {
			maxSales = s.SalesCount
		}
		if s.Visits > maxVisits {
			maxVisits = s.Visits
		}
	}

	for _, s := range scores {
		score := 0.0
		if maxRevenue > 0 {
			r, _ := s.Revenue.Float64()
			score += r / maxRevenue * 40
		}
		if maxSales > 0 {
			score += float64(s.SalesCount) / float64(maxSales) * 20
		}
		if s.LeadsAssigned > 0 {
			score += float64(s.LeadsConverted) / float64(s.LeadsAssigned) * 20
		}
		if maxVisits > 0 {
			score += float64(s.Visits) / float64(maxVisits) * 10
		}
		speedBonus := 10 - s.AvgDaysToClose/3
		if speedBonus < 0 {
			speedBonus = 0
		}
		score += speedBonus

		s.Score = round1(score)
		s.Grade = gradeFor(s.Score)
		s.AvgDaysToClose = round1(s.AvgDaysToClose)
		s.Revenue = s.Revenue.Round(2)
	}

	// Stable: ties keep insertion order.
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	for i, s := range scores {
		s.Rank = i + 1
	}

	return scores, nil
}

func gradeFor(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}
