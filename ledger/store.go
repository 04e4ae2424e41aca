/*
store.go - Persistence interfaces for the sales ledger

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Entity persistence. Payments are APPEND-ONLY: there is no
           update or delete for payments, ever. Corrections are new
           entries.
  TxStore: Unit-of-work wrapper. Everything the sale lifecycle and the
           payment recorder write happens inside WithTx, so the
           two-write consistency (sale insert + plot update, or payment
           insert + balance update) is enforced by the type, not by
           programmer discipline.

CONCURRENCY CONTRACT:
  UpdateSaleLedger is a compare-and-swap on the sale's version token.
  Two concurrent payment recordings against the same sale cannot both
  read a stale balance and jointly overdraw it: the loser's version
  check fails with ErrConcurrentModification and the caller retries.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite store
  - ledger/store/memory.go: In-memory store for tests

SEE ALSO:
  - recorder.go: Uses WithTx + UpdateSaleLedger for atomic payments
  - lifecycle.go: Uses WithTx for sale creation
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Entity persistence
// =============================================================================

type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)

	// Plots
	CreatePlot(ctx context.Context, p *Plot) error
	GetPlot(ctx context.Context, id PlotID) (*Plot, error)
	ListPlots(ctx context.Context) ([]*Plot, error)
	UpdatePlotStatus(ctx context.Context, id PlotID, status PlotStatus) error

	// Clients
	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id ClientID) (*Client, error)
	ListClients(ctx context.Context) ([]*Client, error)

	// Agents
	CreateAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, id AgentID) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)

	// Leads
	CreateLead(ctx context.Context, l *Lead) error
	GetLead(ctx context.Context, id LeadID) (*Lead, error)
	ListLeads(ctx context.Context) ([]*Lead, error)
	UpdateLeadStatus(ctx context.Context, id LeadID, status LeadStatus, convertedAt *time.Time) error

	// Site visits
	CreateVisit(ctx context.Context, v *SiteVisit) error
	ListVisits(ctx context.Context) ([]*SiteVisit, error)

	// Sales
	CreateSale(ctx context.Context, s *Sale) error
	GetSale(ctx context.Context, id SaleID) (*Sale, error)
	ListSales(ctx context.Context) ([]*Sale, error)

	// UpdateSaleLedger applies a new balance/status to a sale if and only
	// if the stored version still equals expectVersion. On success the
	// version is incremented. A stale version returns
	// ErrConcurrentModification; a missing sale returns ErrSaleNotFound.
	UpdateSaleLedger(ctx context.Context, id SaleID, balance decimal.Decimal, status SaleStatus, expectVersion int64) error

	// Payments (append-only: no update, no delete)
	AppendPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	PaymentsBySale(ctx context.Context, id SaleID) ([]*Payment, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Unit of work
// =============================================================================

// TxStore wraps Store with transaction support.
//
// WithTx executes fn within a transaction. If fn returns an error the
// transaction is rolled back and no partial state is observable; if fn
// returns nil it is committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
