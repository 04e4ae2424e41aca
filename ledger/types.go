/*
Package ledger implements the sales back-office ledger: plots, sales,
and the append-only payment history recorded against them.

PURPOSE:
  This package contains the entities and algorithms that keep a sale's
  outstanding balance correct under concurrent partial payments. Balance
  is stored on the Sale row but is always reconcilable against the
  payment history: price - balance == sum of payments, at all times.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money values: decimal.Decimal, never binary floats
  - Sale: one purchase agreement with a shrinking balance
  - Payment: an immutable funds-received record (append-only)
  - Plot: the inventory unit a sale reserves
  - Lead/SiteVisit: pipeline entities consumed by the metrics package

DESIGN PRINCIPLES:
  1. Immutability: Payments are never edited; corrections are new entries
  2. Precision: decimal.Decimal avoids rounding drift across decrements
  3. Type safety: distinct ID types prevent mixing sale/plot/client IDs
  4. Single writer per sale: balance updates go through a version check

SEE ALSO:
  - store.go: Persistence interfaces (Store, TxStore)
  - recorder.go: Payment application with the no-overdraft invariant
  - lifecycle.go: Sale creation and plot reservation
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	ProjectID string
	PlotID    string
	ClientID  string
	AgentID   string
	LeadID    string
	VisitID   string
	SaleID    string
	PaymentID string

	// StaffID identifies the acting back-office user. Resolved by an
	// external identity source; opaque to this package.
	StaffID string
)

// =============================================================================
// MONEY HELPERS
// =============================================================================

// RoundMoney rounds a monetary value to 2 decimal places for display.
// Internal arithmetic keeps full precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// =============================================================================
// PLOT - Inventory unit
// =============================================================================

type PlotStatus string

const (
	PlotAvailable PlotStatus = "available"
	PlotBooked    PlotStatus = "booked"
	PlotSold      PlotStatus = "sold"
)

// Plot transitions to sold exactly once, when a sale referencing it is
// created. It only reverts to available through sale cancellation.
type Plot struct {
	ID        PlotID
	ProjectID ProjectID
	Number    string
	Price     decimal.Decimal
	Status    PlotStatus
	CreatedAt time.Time
}

// =============================================================================
// SALE - One purchase agreement
// =============================================================================

type SaleStatus string

const (
	SaleActive    SaleStatus = "active"
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

// Sale invariants:
//   - Balance = Price - sum(payment amounts), at all times
//   - Status == completed iff Balance == 0
//   - Balance never negative; payments that would overdraw are rejected
//   - Cancelled sales are excluded from every financial aggregate
type Sale struct {
	ID          SaleID
	ClientID    ClientID
	PlotID      PlotID
	AgentID     AgentID
	Price       decimal.Decimal
	Balance     decimal.Decimal
	Status      SaleStatus
	PaymentPlan string
	SaleDate    time.Time

	// Version is the optimistic concurrency token. Every balance/status
	// update must present the version it read; a stale version fails
	// with ErrConcurrentModification.
	Version   int64
	CreatedAt time.Time
}

// =============================================================================
// PAYMENT - Immutable funds-received record
// =============================================================================

type PaymentMethod string

const (
	MethodCash        PaymentMethod = "cash"
	MethodBank        PaymentMethod = "bank"
	MethodMobileMoney PaymentMethod = "mobile_money"
	MethodCard        PaymentMethod = "card"
	MethodCheque      PaymentMethod = "cheque"
)

// ValidMethod reports whether m is one of the accepted payment methods.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodBank, MethodMobileMoney, MethodCard, MethodCheque:
		return true
	}
	return false
}

// Payment is append-only: once written it is never updated or deleted.
// Corrections are separate adjustment entries, not edits.
type Payment struct {
	ID         PaymentID
	SaleID     SaleID
	Amount     decimal.Decimal
	Method     PaymentMethod
	Reference  string
	PaidAt     time.Time
	RecordedBy StaffID
	Note       string
	CreatedAt  time.Time
}

// =============================================================================
// REFERENCE ENTITIES - Consumed by receipts and metrics
// =============================================================================

type Project struct {
	ID        ProjectID
	Name      string
	Location  string
	CreatedAt time.Time
}

type Client struct {
	ID        ClientID
	Name      string
	Phone     string
	Email     string
	CreatedAt time.Time
}

type Agent struct {
	ID        AgentID
	Name      string
	Email     string
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// LEAD - Pipeline entity (funnel input)
// =============================================================================

type LeadStatus string

const (
	LeadNew         LeadStatus = "new"
	LeadContacted   LeadStatus = "contacted"
	LeadQualified   LeadStatus = "qualified"
	LeadNegotiation LeadStatus = "negotiation"
	LeadConverted   LeadStatus = "converted"
	LeadLost        LeadStatus = "lost"
)

// StageRank orders lead statuses along the funnel. A lead counts in every
// stage it has passed through, so a converted lead contributes to all five
// buckets. Lost leads only count in the top-of-funnel total.
func (s LeadStatus) StageRank() int {
	switch s {
	case LeadContacted:
		return 1
	case LeadQualified:
		return 2
	case LeadNegotiation:
		return 3
	case LeadConverted:
		return 4
	default: // new, lost
		return 0
	}
}

// ValidLeadStatus reports whether s is a known lead status.
func ValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadNew, LeadContacted, LeadQualified, LeadNegotiation, LeadConverted, LeadLost:
		return true
	}
	return false
}

type Lead struct {
	ID          LeadID
	ClientName  string
	AgentID     AgentID
	Status      LeadStatus
	Notes       string
	CreatedAt   time.Time
	ConvertedAt *time.Time
}

// SiteVisit records a prospect visiting a project site. Secondary signal
// for agent scoring and project ROI.
type SiteVisit struct {
	ID        VisitID
	LeadID    LeadID
	ProjectID ProjectID
	AgentID   AgentID
	VisitedAt time.Time
}
