/*
sqlite_test.go - SQLite store contract tests

Tests for:
- Round-tripping entities through the schema
- Version compare-and-swap on the sale ledger
- WithTx rollback leaving no partial state
- The live-sale-per-plot unique index
*/
package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotwise/estate-engine/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSale(t *testing.T, s *Store, id ledger.SaleID, plotID ledger.PlotID) *ledger.Sale {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.CreateProject(ctx, &ledger.Project{
		ID: "proj-1", Name: "Green Valley", Location: "Kitengela", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.CreatePlot(ctx, &ledger.Plot{
		ID: plotID, ProjectID: "proj-1", Number: "A-12",
		Price: decimal.NewFromInt(1_000_000), Status: ledger.PlotAvailable,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.CreateClient(ctx, &ledger.Client{
		ID: "client-1", Name: "Amina Odhiambo", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.CreateAgent(ctx, &ledger.Agent{
		ID: "agent-1", Name: "Brian Mutua", Active: true, CreatedAt: time.Now().UTC(),
	}))

	sale := &ledger.Sale{
		ID: id, ClientID: "client-1", PlotID: plotID, AgentID: "agent-1",
		Price: decimal.NewFromInt(1_000_000), Balance: decimal.NewFromInt(1_000_000),
		Status: ledger.SaleActive, SaleDate: time.Now().UTC(), Version: 1,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateSale(ctx, sale))
	return sale
}

func TestSaleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	sale := seedSale(t, s, "sale-1", "plot-1")
	ctx := context.Background()

	got, err := s.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, got.ID)
	assert.True(t, got.Price.Equal(sale.Price), "decimal survives the TEXT column")
	assert.True(t, got.Balance.Equal(sale.Balance))
	assert.Equal(t, ledger.SaleActive, got.Status)
	assert.Equal(t, int64(1), got.Version)

	_, err = s.GetSale(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrSaleNotFound)
}

func TestUpdateSaleLedger_VersionCAS(t *testing.T) {
	// GIVEN: A sale at version 1
	// WHEN: One update presents the live version, a second the stale one
	// THEN: First succeeds and bumps the version; second conflicts

	s := newTestStore(t)
	sale := seedSale(t, s, "sale-1", "plot-1")
	ctx := context.Background()

	require.NoError(t, s.UpdateSaleLedger(ctx, sale.ID,
		decimal.NewFromInt(600_000), ledger.SaleActive, 1))

	got, err := s.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(600_000)))

	err = s.UpdateSaleLedger(ctx, sale.ID, decimal.Zero, ledger.SaleCompleted, 1)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	err = s.UpdateSaleLedger(ctx, "missing", decimal.Zero, ledger.SaleActive, 1)
	assert.ErrorIs(t, err, ledger.ErrSaleNotFound)
}

func TestWithTx_RollbackLeavesNoPartialState(t *testing.T) {
	// GIVEN: A sale
	// WHEN: A transaction appends a payment and updates the ledger, then fails
	// THEN: Neither write is visible afterwards

	s := newTestStore(t)
	sale := seedSale(t, s, "sale-1", "plot-1")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendPayment(ctx, &ledger.Payment{
			ID: "pay-1", SaleID: sale.ID,
			Amount: decimal.NewFromInt(400_000), Method: ledger.MethodBank,
			PaidAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := tx.UpdateSaleLedger(ctx, sale.ID,
			decimal.NewFromInt(600_000), ledger.SaleActive, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1_000_000)))
	assert.Equal(t, int64(1), got.Version)

	payments, err := s.PaymentsBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestLiveSalePerPlotIndex(t *testing.T) {
	// The schema itself enforces plot exclusivity: a second live sale on
	// the same plot violates the partial unique index even if the domain
	// check were bypassed.

	s := newTestStore(t)
	seedSale(t, s, "sale-1", "plot-1")
	ctx := context.Background()

	err := s.CreateSale(ctx, &ledger.Sale{
		ID: "sale-2", ClientID: "client-1", PlotID: "plot-1", AgentID: "agent-1",
		Price: decimal.NewFromInt(1_000_000), Balance: decimal.NewFromInt(1_000_000),
		Status: ledger.SaleActive, SaleDate: time.Now().UTC(), Version: 1,
		CreatedAt: time.Now().UTC(),
	})
	require.Error(t, err)

	// A cancelled sale does not hold the plot.
	require.NoError(t, s.UpdateSaleLedger(ctx, "sale-1",
		decimal.NewFromInt(1_000_000), ledger.SaleCancelled, 1))
	require.NoError(t, s.CreateSale(ctx, &ledger.Sale{
		ID: "sale-3", ClientID: "client-1", PlotID: "plot-1", AgentID: "agent-1",
		Price: decimal.NewFromInt(900_000), Balance: decimal.NewFromInt(900_000),
		Status: ledger.SaleActive, SaleDate: time.Now().UTC(), Version: 1,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestLeadConvertedAtRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAgent(ctx, &ledger.Agent{
		ID: "agent-1", Name: "Brian Mutua", Active: true, CreatedAt: time.Now().UTC(),
	}))

	created := time.Now().UTC().Add(-15 * 24 * time.Hour).Truncate(time.Second)
	require.NoError(t, s.CreateLead(ctx, &ledger.Lead{
		ID: "lead-1", ClientName: "Walk-in", AgentID: "agent-1",
		Status: ledger.LeadNew, Notes: "Green Valley open day", CreatedAt: created,
	}))

	lead, err := s.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Nil(t, lead.ConvertedAt)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateLeadStatus(ctx, "lead-1", ledger.LeadConverted, &now))

	lead, err = s.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.LeadConverted, lead.Status)
	require.NotNil(t, lead.ConvertedAt)
	assert.True(t, lead.ConvertedAt.Equal(now))

	err = s.UpdateLeadStatus(ctx, "missing", ledger.LeadContacted, nil)
	assert.ErrorIs(t, err, ledger.ErrLeadNotFound)
}
