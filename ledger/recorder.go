/*
recorder.go - Payment application against a sale's balance

PURPOSE:
  The payment recorder is the ONLY writer of a sale's balance while it
  is active. It validates a payment, appends it to the payment history,
  and decrements the balance in one atomic unit.

THE NO-OVERDRAFT INVARIANT:
  A payment may never push the balance below zero. The check and the
  decrement happen inside one transaction against the version the
  transaction read, so two concurrent payments cannot both pass the
  check against a stale balance: the second writer's compare-and-swap
  fails and the whole attempt is retried against the fresh balance.

COMPLETION:
  When the resulting balance is <= 0 the sale flips to completed and
  the balance is clamped to exactly 0. The clamp keeps accumulated
  decimal dust from ever producing a negative stored balance.

RETRY POLICY:
  Version conflicts are retried a bounded number of times (maxRetries).
  After that the recorder gives up with ErrRetriesExhausted, which the
  API surfaces as "please retry".

SEE ALSO:
  - lifecycle.go: Creates the sale this recorder pays down
  - receipt.go: Read-only receipt projection
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultMaxRetries = 3

// =============================================================================
// PAYMENT RECORDER
// =============================================================================

type PaymentRecorder struct {
	store      TxStore
	notifier   Notifier
	logger     *zap.Logger
	maxRetries int
	txTimeout  time.Duration
	now        func() time.Time
}

func NewPaymentRecorder(store TxStore, notifier Notifier, logger *zap.Logger) *PaymentRecorder {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentRecorder{
		store:      store,
		notifier:   notifier,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		txTimeout:  defaultTxTimeout,
		now:        time.Now,
	}
}

// WithMaxRetries overrides the bounded conflict-retry count.
func (r *PaymentRecorder) WithMaxRetries(n int) *PaymentRecorder {
	if n > 0 {
		r.maxRetries = n
	}
	return r
}

// WithTxTimeout overrides the per-attempt transaction deadline.
func (r *PaymentRecorder) WithTxTimeout(d time.Duration) *PaymentRecorder {
	if d > 0 {
		r.txTimeout = d
	}
	return r
}

// RecordPaymentInput carries one funds-received event.
type RecordPaymentInput struct {
	SaleID     SaleID
	Amount     decimal.Decimal
	Method     PaymentMethod
	Reference  string
	PaidAt     time.Time
	RecordedBy StaffID
	Note       string
}

// RecordPayment applies a payment to an active sale.
//
// Preconditions: sale active; amount > 0; amount <= outstanding balance.
// Effect: payment appended, balance decremented, sale completed (and
// balance clamped to 0) when nothing remains. Atomic: a failure leaves
// no payment row without its balance update.
func (r *PaymentRecorder) RecordPayment(ctx context.Context, in RecordPaymentInput) (*Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive: %w", ErrInvalidAmount)
	}
	if !ValidMethod(in.Method) {
		return nil, fmt.Errorf("payment method %q: %w", in.Method, ErrInvalidMethod)
	}

	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = r.now().UTC()
	}

	var (
		payment   *Payment
		completed bool
		clientID  ClientID
	)

	// Bounded optimistic retry: each attempt re-reads the sale inside a
	// fresh transaction, so the overdraft check always runs against the
	// balance the compare-and-swap will verify.
	var attemptErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		// Each attempt gets its own deadline so a stalled store aborts
		// instead of holding the ledger lock.
		txCtx, cancel := context.WithTimeout(ctx, r.txTimeout)
		attemptErr = r.store.WithTx(txCtx, func(s Store) error {
			sale, err := s.GetSale(txCtx, in.SaleID)
			if err != nil {
				return err
			}
			if sale.Status != SaleActive {
				return fmt.Errorf("sale %s is %s: %w", sale.ID, sale.Status, ErrSaleNotActive)
			}
			if in.Amount.GreaterThan(sale.Balance) {
				return &OverdraftError{SaleID: sale.ID, Balance: sale.Balance, Requested: in.Amount}
			}

			p := &Payment{
				ID:         PaymentID(uuid.NewString()),
				SaleID:     sale.ID,
				Amount:     in.Amount,
				Method:     in.Method,
				Reference:  in.Reference,
				PaidAt:     paidAt,
				RecordedBy: in.RecordedBy,
				Note:       in.Note,
				CreatedAt:  r.now().UTC(),
			}
			if err := s.AppendPayment(txCtx, p); err != nil {
				return err
			}

			newBalance := sale.Balance.Sub(in.Amount)
			newStatus := SaleActive
			if !newBalance.IsPositive() {
				// Clamp: completed sales carry a balance of exactly 0.
				newBalance = decimal.Zero
				newStatus = SaleCompleted
			}
			if err := s.UpdateSaleLedger(txCtx, sale.ID, newBalance, newStatus, sale.Version); err != nil {
				return err
			}

			payment = p
			completed = newStatus == SaleCompleted
			clientID = sale.ClientID
			return nil
		})

		cancel()

		if attemptErr == nil {
			break
		}
		if !errors.Is(attemptErr, ErrConcurrentModification) {
			return nil, attemptErr
		}
		r.logger.Warn("payment conflict, retrying",
			zap.String("sale_id", string(in.SaleID)),
			zap.Int("attempt", attempt+1),
		)
	}
	if attemptErr != nil {
		return nil, fmt.Errorf("sale %s: %w", in.SaleID, ErrRetriesExhausted)
	}

	r.logger.Info("payment recorded",
		zap.String("payment_id", string(payment.ID)),
		zap.String("sale_id", string(payment.SaleID)),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", string(payment.Method)),
		zap.Bool("sale_completed", completed),
	)

	title := "Payment received"
	body := fmt.Sprintf("Payment of %s received for sale %s", RoundMoney(payment.Amount), payment.SaleID)
	if completed {
		title = "Sale fully paid"
		body = fmt.Sprintf("Sale %s is now fully paid. Thank you!", payment.SaleID)
	}
	if err := r.notifier.Notify(ctx, string(clientID), title, body,
		NotifyPaymentReceived, "/payments/"+string(payment.ID)); err != nil {
		r.logger.Warn("payment notification failed", zap.Error(err))
	}

	return payment, nil
}
