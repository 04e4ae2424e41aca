/*
memory_test.go - In-memory store contract tests

Tests for:
- Version compare-and-swap on the sale ledger
- WithTx rollback restoring all state
- Append-only payment listing order
*/
package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotwise/estate-engine/ledger"
	"github.com/plotwise/estate-engine/ledger/store"
)

func seedSale(t *testing.T, s ledger.Store) *ledger.Sale {
	t.Helper()
	sale := &ledger.Sale{
		ID:        "sale-1",
		ClientID:  "client-1",
		PlotID:    "plot-1",
		AgentID:   "agent-1",
		Price:     decimal.NewFromInt(100_000),
		Balance:   decimal.NewFromInt(100_000),
		Status:    ledger.SaleActive,
		SaleDate:  time.Now().UTC(),
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateSale(context.Background(), sale))
	return sale
}

func TestUpdateSaleLedger_VersionCAS(t *testing.T) {
	// GIVEN: A sale at version 1
	// WHEN: An update presents the right version, then a stale one
	// THEN: The first succeeds and bumps the version; the second fails

	m := store.NewMemory()
	sale := seedSale(t, m)
	ctx := context.Background()

	err := m.UpdateSaleLedger(ctx, sale.ID, decimal.NewFromInt(60_000), ledger.SaleActive, 1)
	require.NoError(t, err)

	got, err := m.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(60_000)))

	// Stale token: the row moved on.
	err = m.UpdateSaleLedger(ctx, sale.ID, decimal.NewFromInt(0), ledger.SaleCompleted, 1)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	// Unknown sale is not a conflict.
	err = m.UpdateSaleLedger(ctx, "missing", decimal.Zero, ledger.SaleActive, 1)
	assert.ErrorIs(t, err, ledger.ErrSaleNotFound)
}

func TestWithTx_RollbackRestoresState(t *testing.T) {
	// GIVEN: A sale and its payment history
	// WHEN: A transaction writes a payment and an update, then fails
	// THEN: Every write inside the transaction is undone

	m := store.NewMemory()
	sale := seedSale(t, m)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(s ledger.Store) error {
		if err := s.AppendPayment(ctx, &ledger.Payment{
			ID: "pay-1", SaleID: sale.ID,
			Amount: decimal.NewFromInt(40_000), Method: ledger.MethodCash,
			PaidAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := s.UpdateSaleLedger(ctx, sale.ID, decimal.NewFromInt(60_000), ledger.SaleActive, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := m.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100_000)), "balance restored")
	assert.Equal(t, int64(1), got.Version, "version restored")

	payments, err := m.PaymentsBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Empty(t, payments, "payment rolled back")
}

func TestPaymentsBySale_InsertionOrder(t *testing.T) {
	m := store.NewMemory()
	sale := seedSale(t, m)
	ctx := context.Background()

	for i, id := range []ledger.PaymentID{"pay-a", "pay-b", "pay-c"} {
		require.NoError(t, m.AppendPayment(ctx, &ledger.Payment{
			ID: id, SaleID: sale.ID,
			Amount: decimal.NewFromInt(int64(i+1) * 1000), Method: ledger.MethodBank,
			PaidAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
		}))
	}

	payments, err := m.PaymentsBySale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, ledger.PaymentID("pay-a"), payments[0].ID)
	assert.Equal(t, ledger.PaymentID("pay-c"), payments[2].ID)
}
