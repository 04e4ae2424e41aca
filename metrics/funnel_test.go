/*
funnel_test.go - Lead conversion funnel

Tests for:
- Cumulative counting and the monotonicity property
- Zero-denominator stages producing 0, not NaN
- Lost leads counting only at the top of the funnel
- Date-window filtering
*/
package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotwise/estate-engine/ledger"
	"github.com/plotwise/estate-engine/ledger/store"
)

func addLead(t *testing.T, mem *store.Memory, id string, status ledger.LeadStatus, createdAt time.Time) {
	t.Helper()
	require.NoError(t, mem.CreateLead(context.Background(), &ledger.Lead{
		ID: ledger.LeadID(id), AgentID: "agent-1", Status: status, CreatedAt: createdAt,
	}))
}

func TestFunnel_EmptyCohort(t *testing.T) {
	e, _ := newTestEngine(t)

	f, err := e.Funnel(context.Background(), DateRange{})
	require.NoError(t, err)
	require.Len(t, f.Stages, 5)
	for _, stage := range f.Stages {
		assert.Equal(t, 0, stage.Count)
		assert.Equal(t, 0.0, stage.Rate, "no divide-by-zero on stage %s", stage.Name)
	}
	assert.Equal(t, 0.0, f.OverallConversion)
}

func TestFunnel_CumulativeCountsAndMonotonicity(t *testing.T) {
	// GIVEN: 10 leads - 2 new, 2 contacted, 2 qualified, 1 negotiation,
	//        2 converted, 1 lost
	// THEN: Buckets are cumulative and monotonically non-increasing

	e, mem := newTestEngine(t)
	now := fixedNow
	addLead(t, mem, "l1", ledger.LeadNew, now)
	addLead(t, mem, "l2", ledger.LeadNew, now)
	addLead(t, mem, "l3", ledger.LeadContacted, now)
	addLead(t, mem, "l4", ledger.LeadContacted, now)
	addLead(t, mem, "l5", ledger.LeadQualified, now)
	addLead(t, mem, "l6", ledger.LeadQualified, now)
	addLead(t, mem, "l7", ledger.LeadNegotiation, now)
	addLead(t, mem, "l8", ledger.LeadConverted, now)
	addLead(t, mem, "l9", ledger.LeadConverted, now)
	addLead(t, mem, "l10", ledger.LeadLost, now)

	f, err := e.Funnel(context.Background(), DateRange{})
	require.NoError(t, err)
	require.Len(t, f.Stages, 5)

	// leads=10, contacted=7, qualified=5, negotiation=3, converted=2
	assert.Equal(t, 10, f.Stages[0].Count)
	assert.Equal(t, 7, f.Stages[1].Count)
	assert.Equal(t, 5, f.Stages[2].Count)
	assert.Equal(t, 3, f.Stages[3].Count)
	assert.Equal(t, 2, f.Stages[4].Count)

	for i := 1; i < len(f.Stages); i++ {
		assert.LessOrEqual(t, f.Stages[i].Count, f.Stages[i-1].Count,
			"monotonicity broken at stage %s", f.Stages[i].Name)
	}

	assert.Equal(t, 100.0, f.Stages[0].Rate)
	assert.Equal(t, 70.0, f.Stages[1].Rate)
	assert.InDelta(t, 71.4, f.Stages[2].Rate, 1e-9) // 5/7, 1dp
	assert.Equal(t, 60.0, f.Stages[3].Rate)
	assert.InDelta(t, 66.7, f.Stages[4].Rate, 1e-9)
	assert.Equal(t, 20.0, f.OverallConversion)
}

func TestFunnel_LostLeadsOnlyCountAtTop(t *testing.T) {
	e, mem := newTestEngine(t)
	addLead(t, mem, "l1", ledger.LeadLost, fixedNow)
	addLead(t, mem, "l2", ledger.LeadLost, fixedNow)

	f, err := e.Funnel(context.Background(), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Stages[0].Count)
	assert.Equal(t, 0, f.Stages[1].Count)
	assert.Equal(t, 100.0, f.Stages[0].Rate)
	assert.Equal(t, 0.0, f.Stages[1].Rate)
	assert.Equal(t, 0.0, f.OverallConversion)
}

func TestFunnel_WindowFiltersByCreation(t *testing.T) {
	// GIVEN: One lead inside the window, one far before it
	// THEN: Only the inside lead is counted

	e, mem := newTestEngine(t)
	addLead(t, mem, "old", ledger.LeadConverted, fixedNow.AddDate(-1, 0, 0))
	addLead(t, mem, "recent", ledger.LeadConverted, fixedNow)

	f, err := e.Funnel(context.Background(), DateRange{From: fixedNow.AddDate(0, -1, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, f.Stages[0].Count)
	assert.Equal(t, 1, f.Stages[4].Count)
	assert.Equal(t, 100.0, f.OverallConversion)
}
