/*
funnel.go - Lead conversion funnel

PURPOSE:
  Counts leads in five cumulative stages: leads -> contacted ->
  qualified -> negotiation -> converted. Buckets are CUMULATIVE: a lead
  that reached negotiation also counts in leads, contacted, and
  qualified. This guarantees the monotonicity property
  leads >= contacted >= qualified >= negotiation >= converted.

RATES:
  Each stage's rate is stage[i]/stage[i-1]*100 rounded to 1 decimal,
  0 when the previous stage is empty (no divide-by-zero). The first
  stage carries 100 when any leads exist. Overall conversion is
  converted/leads*100.
*/
package metrics

import (
	"context"
	"time"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// FunnelStage is one cumulative bucket.
type FunnelStage struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Rate  float64 `json:"rate"` // conversion from the previous stage, percent
}

type Funnel struct {
	From              time.Time     `json:"from,omitempty"`
	To                time.Time     `json:"to,omitempty"`
	Stages            []FunnelStage `json:"stages"`
	OverallConversion float64       `json:"overall_conversion"`
}

var stageNames = []string{"leads", "contacted", "qualified", "negotiation", "converted"}

func emptyStages() []FunnelStage {
	out := make([]FunnelStage, len(stageNames))
	for i, n := range stageNames {
		out[i] = FunnelStage{Name: n}
	}
	return out
}

// =============================================================================
// COMPUTATION
// =============================================================================

// Funnel computes the cumulative conversion funnel for leads created in
// the given range. An empty range means all time. Never errors on zero
// rows; an empty cohort yields zero-filled stages.
func (e *Engine) Funnel(ctx context.Context, window DateRange) (*Funnel, error) {
	leads, err := e.src.ListLeads(ctx)
	if err != nil {
		return nil, err
	}

	counts := make([]int, len(stageNames))
	for _, l := range leads {
		if !window.Contains(l.CreatedAt) {
			continue
		}
		// Cumulative: count the lead in every stage up to the one it
		// reached. Rank 0 (new, lost) only hits the top bucket.
		rank := l.Status.StageRank()
		for i := 0; i <= rank; i++ {
			counts[i]++
		}
	}

	stages := make([]FunnelStage, len(stageNames))
	for i, name := range stageNames {
		rate := 0.0
		if i == 0 {
			if counts[0] > 0 {
				rate = 100.0
			}
		} else {
			rate = pct(float64(counts[i]), float64(counts[i-1]))
		}
		stages[i] = FunnelStage{Name: name, Count: counts[i], Rate: rate}
	}

	return &Funnel{
		From:              window.From,
		To:                window.To,
		Stages:            stages,
		OverallConversion: pct(float64(counts[len(counts)-1]), float64(counts[0])),
	}, nil
}
