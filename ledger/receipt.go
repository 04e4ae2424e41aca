// receipt.go - Read-only receipt projection.
//
// A receipt joins the payment with its sale, plot, project, and client
// for display. PaidToDate is computed as price - current balance, which
// the ledger invariants guarantee equals the sum of all payments for
// the sale.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the display projection for a single payment.
type Receipt struct {
	PaymentID   PaymentID
	SaleID      SaleID
	Amount      decimal.Decimal
	Method      PaymentMethod
	Reference   string
	PaidAt      time.Time
	RecordedBy  StaffID
	Note        string
	ClientName  string
	ProjectName string
	PlotNumber  string
	SalePrice   decimal.Decimal
	PaidToDate  decimal.Decimal
	Outstanding decimal.Decimal
	SaleStatus  SaleStatus
}

// Receipt builds the receipt view for a payment. Read-only; runs outside
// any transaction (snapshot-read consistency is enough for display).
func (r *PaymentRecorder) Receipt(ctx context.Context, id PaymentID) (*Receipt, error) {
	payment, err := r.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	sale, err := r.store.GetSale(ctx, payment.SaleID)
	if err != nil {
		return nil, err
	}
	plot, err := r.store.GetPlot(ctx, sale.PlotID)
	if err != nil {
		return nil, err
	}
	project, err := r.store.GetProject(ctx, plot.ProjectID)
	if err != nil {
		return nil, err
	}
	client, err := r.store.GetClient(ctx, sale.ClientID)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		PaymentID:   payment.ID,
		SaleID:      sale.ID,
		Amount:      RoundMoney(payment.Amount),
		Method:      payment.Method,
		Reference:   payment.Reference,
		PaidAt:      payment.PaidAt,
		RecordedBy:  payment.RecordedBy,
		Note:        payment.Note,
		ClientName:  client.Name,
		ProjectName: project.Name,
		PlotNumber:  plot.Number,
		SalePrice:   RoundMoney(sale.Price),
		PaidToDate:  RoundMoney(sale.Price.Sub(sale.Balance)),
		Outstanding: RoundMoney(sale.Balance),
		SaleStatus:  sale.Status,
	}, nil
}
