/*
lifecycle.go - Sale creation, plot reservation, and cancellation

PURPOSE:
  The lifecycle manager owns the transitions a Sale makes that are not
  payments: creation (which reserves the plot and may record an initial
  deposit) and cancellation (which releases the plot and removes the
  sale from all aggregates).

ATOMICITY:
  CreateSale performs three writes in one unit of work:
    1. Insert the Sale (balance = price - deposit)
    2. Mark the Plot sold
    3. Insert the deposit Payment, when deposit > 0
  If any write fails the whole operation rolls back; a sale without its
  plot update (or vice versa) is never observable.

VALIDATION ORDER:
  Input checks (price, deposit range) happen before the transaction is
  opened. Plot availability is checked inside the transaction, against
  the row the transaction sees, so two concurrent CreateSale calls
  cannot double-book one plot.

SEE ALSO:
  - recorder.go: Subsequent payments against the created sale
  - store.go: The TxStore unit-of-work contract
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// LIFECYCLE MANAGER
// =============================================================================

// defaultTxTimeout bounds one transactional unit of work. A stalled
// store must abort and surface a retryable error, never hold the
// per-store lock indefinitely.
const defaultTxTimeout = 5 * time.Second

type LifecycleManager struct {
	store     TxStore
	notifier  Notifier
	logger    *zap.Logger
	txTimeout time.Duration

	// now is swappable for tests.
	now func() time.Time
}

func NewLifecycleManager(store TxStore, notifier Notifier, logger *zap.Logger) *LifecycleManager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleManager{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		txTimeout: defaultTxTimeout,
		now:       time.Now,
	}
}

// WithTxTimeout overrides the per-transaction deadline.
func (m *LifecycleManager) WithTxTimeout(d time.Duration) *LifecycleManager {
	if d > 0 {
		m.txTimeout = d
	}
	return m
}

// CreateSaleInput carries everything needed to open a sale.
type CreateSaleInput struct {
	ClientID      ClientID
	PlotID        PlotID
	AgentID       AgentID
	Price         decimal.Decimal
	Deposit       decimal.Decimal
	DepositMethod PaymentMethod
	PaymentPlan   string
	SaleDate      time.Time
	RecordedBy    StaffID
}

// CreateSale opens a sale against an available plot.
//
// Preconditions: price > 0; 0 <= deposit <= price; plot available.
// Effect: sale inserted with balance = price - deposit and status active
// (or completed when the deposit covers the full price), plot marked
// sold, deposit payment recorded when deposit > 0. All or nothing.
func (m *LifecycleManager) CreateSale(ctx context.Context, in CreateSaleInput) (*Sale, error) {
	if !in.Price.IsPositive() {
		return nil, fmt.Errorf("price must be positive: %w", ErrInvalidAmount)
	}
	if in.Deposit.IsNegative() || in.Deposit.GreaterThan(in.Price) {
		return nil, fmt.Errorf("deposit must be between 0 and price: %w", ErrInvalidAmount)
	}
	if in.Deposit.IsPositive() && !ValidMethod(in.DepositMethod) {
		return nil, fmt.Errorf("deposit method %q: %w", in.DepositMethod, ErrInvalidMethod)
	}

	saleDate := in.SaleDate
	if saleDate.IsZero() {
		saleDate = m.now().UTC()
	}

	balance := in.Price.Sub(in.Deposit)
	status := SaleActive
	if !balance.IsPositive() {
		balance = decimal.Zero
		status = SaleCompleted
	}

	sale := &Sale{
		ID:          SaleID(uuid.NewString()),
		ClientID:    in.ClientID,
		PlotID:      in.PlotID,
		AgentID:     in.AgentID,
		Price:       in.Price,
		Balance:     balance,
		Status:      status,
		PaymentPlan: in.PaymentPlan,
		SaleDate:    saleDate,
		Version:     1,
		CreatedAt:   m.now().UTC(),
	}

	txCtx, cancel := context.WithTimeout(ctx, m.txTimeout)
	defer cancel()

	err := m.store.WithTx(txCtx, func(s Store) error {
		plot, err := s.GetPlot(txCtx, in.PlotID)
		if err != nil {
			return err
		}
		if plot.Status != PlotAvailable {
			return &PlotUnavailableError{PlotID: plot.ID, Status: plot.Status}
		}

		if err := s.CreateSale(txCtx, sale); err != nil {
			return err
		}
		if err := s.UpdatePlotStatus(txCtx, plot.ID, PlotSold); err != nil {
			return err
		}

		if in.Deposit.IsPositive() {
			deposit := &Payment{
				ID:         PaymentID(uuid.NewString()),
				SaleID:     sale.ID,
				Amount:     in.Deposit,
				Method:     in.DepositMethod,
				Reference:  "deposit",
				PaidAt:     saleDate,
				RecordedBy: in.RecordedBy,
				Note:       "initial deposit",
				CreatedAt:  m.now().UTC(),
			}
			if err := s.AppendPayment(txCtx, deposit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("sale created",
		zap.String("sale_id", string(sale.ID)),
		zap.String("plot_id", string(sale.PlotID)),
		zap.String("agent_id", string(sale.AgentID)),
		zap.String("price", sale.Price.String()),
		zap.String("balance", sale.Balance.String()),
		zap.String("status", string(sale.Status)),
	)

	// Fire-and-forget: a notification failure never unwinds the sale.
	if err := m.notifier.Notify(ctx, string(sale.AgentID),
		"New sale recorded",
		fmt.Sprintf("Sale %s opened for plot %s at %s", sale.ID, sale.PlotID, RoundMoney(sale.Price)),
		NotifySaleCreated, "/sales/"+string(sale.ID)); err != nil {
		m.logger.Warn("sale notification failed", zap.Error(err))
	}

	return sale, nil
}

// CancelSale cancels an active sale and releases its plot back to
// available. Cancelled sales are excluded from all financial aggregates;
// their payment history remains for audit.
func (m *LifecycleManager) CancelSale(ctx context.Context, id SaleID) (*Sale, error) {
	var cancelled *Sale

	txCtx, cancel := context.WithTimeout(ctx, m.txTimeout)
	defer cancel()

	err := m.store.WithTx(txCtx, func(s Store) error {
		sale, err := s.GetSale(txCtx, id)
		if err != nil {
			return err
		}
		if sale.Status != SaleActive {
			return fmt.Errorf("sale %s is %s: %w", sale.ID, sale.Status, ErrSaleNotActive)
		}

		if err := s.UpdateSaleLedger(txCtx, sale.ID, sale.Balance, SaleCancelled, sale.Version); err != nil {
			return err
		}
		if err := s.UpdatePlotStatus(txCtx, sale.PlotID, PlotAvailable); err != nil {
			return err
		}

		sale.Status = SaleCancelled
		sale.Version++
		cancelled = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("sale cancelled", zap.String("sale_id", string(id)))

	if err := m.notifier.Notify(ctx, string(cancelled.AgentID),
		"Sale cancelled",
		fmt.Sprintf("Sale %s was cancelled; plot %s released", cancelled.ID, cancelled.PlotID),
		NotifySaleCancelled, "/sales/"+string(cancelled.ID)); err != nil {
		m.logger.Warn("cancel notification failed", zap.Error(err))
	}

	return cancelled, nil
}
