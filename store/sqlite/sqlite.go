/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  There are no UPDATE or DELETE statements on the payments table.
  Corrections are new entries, never edits.

OPTIMISTIC CONCURRENCY:
  Sales carry a version column. UpdateSaleLedger compares and swaps:

    UPDATE sales SET balance=?, status=?, version=version+1
    WHERE id=? AND version=?

  Zero rows affected with an existing sale means a concurrent writer
  won; the caller retries against the fresh row.

KEY TABLES:
  projects, plots, clients, agents, leads, site_visits,
  sales (versioned balance/status), payments (append-only ledger)

MONEY:
  Monetary columns are TEXT holding decimal strings, parsed with
  shopspring/decimal. Never floats.

CONCURRENCY:
  A sync.RWMutex serializes writers on top of SQLite's single-writer
  model, and the pool is capped at one connection so ":memory:"
  databases behave. WAL mode keeps readers unblocked.

USAGE:
  store, err := sqlite.New("./data/estate.db")
  if err != nil { ... }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/plotwise/estate-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and
	// SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plots (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		number TEXT NOT NULL,
		price TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plots_project ON plots(project_id);
	CREATE INDEX IF NOT EXISTS idx_plots_status ON plots(status);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		client_name TEXT,
		agent_id TEXT REFERENCES agents(id),
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		converted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_leads_agent ON leads(agent_id);
	CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

	CREATE TABLE IF NOT EXISTS site_visits (
		id TEXT PRIMARY KEY,
		lead_id TEXT,
		project_id TEXT REFERENCES projects(id),
		agent_id TEXT REFERENCES agents(id),
		visited_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visits_project ON site_visits(project_id);
	CREATE INDEX IF NOT EXISTS idx_visits_agent ON site_visits(agent_id);

	-- Sales: versioned balance/status pair. The version column is the
	-- optimistic concurrency token for UpdateSaleLedger.
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id),
		plot_id TEXT NOT NULL REFERENCES plots(id),
		agent_id TEXT NOT NULL REFERENCES agents(id),
		price TEXT NOT NULL,
		balance TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_plan TEXT,
		sale_date TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_client ON sales(client_id);
	CREATE INDEX IF NOT EXISTS idx_sales_agent ON sales(agent_id);
	CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status);
	CREATE INDEX IF NOT EXISTS idx_sales_date ON sales(sale_date);

	-- One live sale per plot.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_plot_live
		ON sales(plot_id) WHERE status IN ('active', 'completed');

	-- Payments: append-only ledger. No UPDATE, no DELETE. Ever.
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		reference TEXT,
		paid_at TEXT NOT NULL,
		recorded_by TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_sale ON payments(sale_id);
	CREATE INDEX IF NOT EXISTS idx_payments_paid_at ON payments(paid_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every Store method through the open transaction.
type txStore struct {
	tx *sql.Tx
}

// =============================================================================
// PROJECTS
// =============================================================================

func createProject(ctx context.Context, db dbtx, p *ledger.Project) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO projects (id, name, location, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.Location, fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func getProject(ctx context.Context, db dbtx, id ledger.ProjectID) (*ledger.Project, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, name, location, created_at FROM projects WHERE id = ?`, id)
	var p ledger.Project
	var location sql.NullString
	var createdAt string
	if err := row.Scan(&p.ID, &p.Name, &location, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	p.Location = location.String
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func listProjects(ctx context.Context, db dbtx) ([]*ledger.Project, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, location, created_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Project
	for rows.Next() {
		var p ledger.Project
		var location sql.NullString
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &location, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.Location = location.String
		p.CreatedAt = parseTime(createdAt)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Store) CreateProject(ctx context.Context, p *ledger.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createProject(ctx, s.db, p)
}

func (s *Store) GetProject(ctx context.Context, id ledger.ProjectID) (*ledger.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProject(ctx, s.db, id)
}

func (s *Store) ListProjects(ctx context.Context) ([]*ledger.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProjects(ctx, s.db)
}

func (t *txStore) CreateProject(ctx context.Context, p *ledger.Project) error {
	return createProject(ctx, t.tx, p)
}

func (t *txStore) GetProject(ctx context.Context, id ledger.ProjectID) (*ledger.Project, error) {
	return getProject(ctx, t.tx, id)
}

func (t *txStore) ListProjects(ctx context.Context) ([]*ledger.Project, error) {
	return listProjects(ctx, t.tx)
}

// =============================================================================
// PLOTS
// =============================================================================

func createPlot(ctx context.Context, db dbtx, p *ledger.Plot) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO plots (id, project_id, number, price, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProjectID, p.Number, p.Price.String(), p.Status, fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert plot: %w", err)
	}
	return nil
}

func scanPlot(scan func(dest ...any) error) (*ledger.Plot, error) {
	var p ledger.Plot
	var price, createdAt string
	if err := scan(&p.ID, &p.ProjectID, &p.Number, &price, &p.Status, &createdAt); err != nil {
		return nil, err
	}
	p.Price = parseDecimal(price)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func getPlot(ctx context.Context, db dbtx, id ledger.PlotID) (*ledger.Plot, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, project_id, number, price, status, created_at FROM plots WHERE id = ?`, id)
	p, err := scanPlot(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrPlotNotFound
		}
		return nil, fmt.Errorf("failed to scan plot: %w", err)
	}
	return p, nil
}

func listPlots(ctx context.Context, db dbtx) ([]*ledger.Plot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, project_id, number, price, status, created_at FROM plots ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plots: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Plot
	for rows.Next() {
		p, err := scanPlot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plot: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func updatePlotStatus(ctx context.Context, db dbtx, id ledger.PlotID, status ledger.PlotStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE plots SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update plot status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrPlotNotFound
	}
	return nil
}

func (s *Store) CreatePlot(ctx context.Context, p *ledger.Plot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPlot(ctx, s.db, p)
}

func (s *Store) GetPlot(ctx context.Context, id ledger.PlotID) (*ledger.Plot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPlot(ctx, s.db, id)
}

func (s *Store) ListPlots(ctx context.Context) ([]*ledger.Plot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPlots(ctx, s.db)
}

func (s *Store) UpdatePlotStatus(ctx context.Context, id ledger.PlotID, status ledger.PlotStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePlotStatus(ctx, s.db, id, status)
}

func (t *txStore) CreatePlot(ctx context.Context, p *ledger.Plot) error {
	return createPlot(ctx, t.tx, p)
}

func (t *txStore) GetPlot(ctx context.Context, id ledger.PlotID) (*ledger.Plot, error) {
	return getPlot(ctx, t.tx, id)
}

func (t *txStore) ListPlots(ctx context.Context) ([]*ledger.Plot, error) {
	return listPlots(ctx, t.tx)
}

func (t *txStore) UpdatePlotStatus(ctx context.Context, id ledger.PlotID, status ledger.PlotStatus) error {
	return updatePlotStatus(ctx, t.tx, id, status)
}

// =============================================================================
// CLIENTS
// =============================================================================

func createClient(ctx context.Context, db dbtx, c *ledger.Client) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO clients (id, name, phone, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Phone, c.Email, fmtTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

func getClient(ctx context.Context, db dbtx, id ledger.ClientID) (*ledger.Client, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, name, phone, email, created_at FROM clients WHERE id = ?`, id)
	var c ledger.Client
	var phone, email sql.NullString
	var createdAt string
	if err := row.Scan(&c.ID, &c.Name, &phone, &email, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	c.Phone = phone.String
	c.Email = email.String
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func listClients(ctx context.Context, db dbtx) ([]*ledger.Client, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, phone, email, created_at FROM clients ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Client
	for rows.Next() {
		var c ledger.Client
		var phone, email sql.NullString
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &phone, &email, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		c.Phone = phone.String
		c.Email = email.String
		c.CreatedAt = parseTime(createdAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) CreateClient(ctx context.Context, c *ledger.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createClient(ctx, s.db, c)
}

func (s *Store) GetClient(ctx context.Context, id ledger.ClientID) (*ledger.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getClient(ctx, s.db, id)
}

func (s *Store) ListClients(ctx context.Context) ([]*ledger.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listClients(ctx, s.db)
}

func (t *txStore) CreateClient(ctx context.Context, c *ledger.Client) error {
	return createClient(ctx, t.tx, c)
}

func (t *txStore) GetClient(ctx context.Context, id ledger.ClientID) (*ledger.Client, error) {
	return getClient(ctx, t.tx, id)
}

func (t *txStore) ListClients(ctx context.Context) ([]*ledger.Client, error) {
	return listClients(ctx, t.tx)
}

// =============================================================================
// AGENTS
// =============================================================================

func createAgent(ctx context.Context, db dbtx, a *ledger.Agent) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO agents (id, name, email, active, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.Active, fmtTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert agent: %w", err)
	}
	return nil
}

func getAgent(ctx context.Context, db dbtx, id ledger.AgentID) (*ledger.Agent, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, name, email, active, created_at FROM agents WHERE id = ?`, id)
	var a ledger.Agent
	var email sql.NullString
	var createdAt string
	if err := row.Scan(&a.ID, &a.Name, &email, &a.Active, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to scan agent: %w", err)
	}
	a.Email = email.String
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func listAgents(ctx context.Context, db dbtx) ([]*ledger.Agent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, email, active, created_at FROM agents ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Agent
	for rows.Next() {
		var a ledger.Agent
		var email sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &email, &a.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		a.Email = email.String
		a.CreatedAt = parseTime(createdAt)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAgent(ctx context.Context, a *ledger.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAgent(ctx, s.db, a)
}

func (s *Store) GetAgent(ctx context.Context, id ledger.AgentID) (*ledger.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAgent(ctx, s.db, id)
}

func (s *Store) ListAgents(ctx context.Context) ([]*ledger.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAgents(ctx, s.db)
}

func (t *txStore) CreateAgent(ctx context.Context, a *ledger.Agent) error {
	return createAgent(ctx, t.tx, a)
}

func (t *txStore) GetAgent(ctx context.Context, id ledger.AgentID) (*ledger.Agent, error) {
	return getAgent(ctx, t.tx, id)
}

func (t *txStore) ListAgents(ctx context.Context) ([]*ledger.Agent, error) {
	return listAgents(ctx, t.tx)
}

// =============================================================================
// LEADS
// =============================================================================

func createLead(ctx context.Context, db dbtx, l *ledger.Lead) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO leads (id, client_name, agent_id, status, notes, created_at, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ClientName, l.AgentID, l.Status, l.Notes, fmtTime(l.CreatedAt), fmtTimePtr(l.ConvertedAt))
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

func scanLead(scan func(dest ...any) error) (*ledger.Lead, error) {
	var l ledger.Lead
	var clientName, notes, convertedAt sql.NullString
	var createdAt string
	if err := scan(&l.ID, &clientName, &l.AgentID, &l.Status, &notes, &createdAt, &convertedAt); err != nil {
		return nil, err
	}
	l.ClientName = clientName.String
	l.Notes = notes.String
	l.CreatedAt = parseTime(createdAt)
	if convertedAt.Valid && convertedAt.String != "" {
		t := parseTime(convertedAt.String)
		l.ConvertedAt = &t
	}
	return &l, nil
}

func getLead(ctx context.Context, db dbtx, id ledger.LeadID) (*ledger.Lead, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, client_name, agent_id, status, notes, created_at, converted_at
		 FROM leads WHERE id = ?`, id)
	l, err := scanLead(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}
	return l, nil
}

func listLeads(ctx context.Context, db dbtx) ([]*ledger.Lead, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, client_name, agent_id, status, notes, created_at, converted_at
		 FROM leads ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Lead
	for rows.Next() {
		l, err := scanLead(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func updateLeadStatus(ctx context.Context, db dbtx, id ledger.LeadID, status ledger.LeadStatus, convertedAt *time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE leads SET status = ?, converted_at = COALESCE(?, converted_at) WHERE id = ?`,
		status, fmtTimePtr(convertedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrLeadNotFound
	}
	return nil
}

func (s *Store) CreateLead(ctx context.Context, l *ledger.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createLead(ctx, s.db, l)
}

func (s *Store) GetLead(ctx context.Context, id ledger.LeadID) (*ledger.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLead(ctx, s.db, id)
}

func (s *Store) ListLeads(ctx context.Context) ([]*ledger.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLeads(ctx, s.db)
}

func (s *Store) UpdateLeadStatus(ctx context.Context, id ledger.LeadID, status ledger.LeadStatus, convertedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateLeadStatus(ctx, s.db, id, status, convertedAt)
}

func (t *txStore) CreateLead(ctx context.Context, l *ledger.Lead) error {
	return createLead(ctx, t.tx, l)
}

func (t *txStore) GetLead(ctx context.Context, id ledger.LeadID) (*ledger.Lead, error) {
	return getLead(ctx, t.tx, id)
}

func (t *txStore) ListLeads(ctx context.Context) ([]*ledger.Lead, error) {
	return listLeads(ctx, t.tx)
}

func (t *txStore) UpdateLeadStatus(ctx context.Context, id ledger.LeadID, status ledger.LeadStatus, convertedAt *time.Time) error {
	return updateLeadStatus(ctx, t.tx, id, status, convertedAt)
}

// =============================================================================
// SITE VISITS
// =============================================================================

func createVisit(ctx context.Context, db dbtx, v *ledger.SiteVisit) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO site_visits (id, lead_id, project_id, agent_id, visited_at)
		 VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.LeadID, v.ProjectID, v.AgentID, fmtTime(v.VisitedAt))
	if err != nil {
		return fmt.Errorf("failed to insert site visit: %w", err)
	}
	return nil
}

func listVisits(ctx context.Context, db dbtx) ([]*ledger.SiteVisit, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, lead_id, project_id, agent_id, visited_at FROM site_visits ORDER BY visited_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query site visits: %w", err)
	}
	defer rows.Close()

	var out []*ledger.SiteVisit
	for rows.Next() {
		var v ledger.SiteVisit
		var leadID sql.NullString
		var visitedAt string
		if err := rows.Scan(&v.ID, &leadID, &v.ProjectID, &v.AgentID, &visitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan site visit: %w", err)
		}
		v.LeadID = ledger.LeadID(leadID.String)
		v.VisitedAt = parseTime(visitedAt)
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (s *Store) CreateVisit(ctx context.Context, v *ledger.SiteVisit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createVisit(ctx, s.db, v)
}

func (s *Store) ListVisits(ctx context.Context) ([]*ledger.SiteVisit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listVisits(ctx, s.db)
}

func (t *txStore) CreateVisit(ctx context.Context, v *ledger.SiteVisit) error {
	return createVisit(ctx, t.tx, v)
}

func (t *txStore) ListVisits(ctx context.Context) ([]*ledger.SiteVisit, error) {
	return listVisits(ctx, t.tx)
}

// =============================================================================
// SALES
// =============================================================================

const saleColumns = `id, client_id, plot_id, agent_id, price, balance, status,
	payment_plan, sale_date, version, created_at`

func createSale(ctx context.Context, db dbtx, sale *ledger.Sale) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sales (id, client_id, plot_id, agent_id, price, balance, status,
		                    payment_plan, sale_date, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.ClientID, sale.PlotID, sale.AgentID,
		sale.Price.String(), sale.Balance.String(), sale.Status,
		sale.PaymentPlan, fmtTime(sale.SaleDate), sale.Version, fmtTime(sale.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	return nil
}

func scanSale(scan func(dest ...any) error) (*ledger.Sale, error) {
	var s ledger.Sale
	var price, balance, saleDate, createdAt string
	var paymentPlan sql.NullString
	if err := scan(&s.ID, &s.ClientID, &s.PlotID, &s.AgentID, &price, &balance,
		&s.Status, &paymentPlan, &saleDate, &s.Version, &createdAt); err != nil {
		return nil, err
	}
	s.Price = parseDecimal(price)
	s.Balance = parseDecimal(balance)
	s.PaymentPlan = paymentPlan.String
	s.SaleDate = parseTime(saleDate)
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

func getSale(ctx context.Context, db dbtx, id ledger.SaleID) (*ledger.Sale, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	s, err := scanSale(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to scan sale: %w", err)
	}
	return s, nil
}

func listSales(ctx context.Context, db dbtx) ([]*ledger.Sale, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+saleColumns+` FROM sales ORDER BY sale_date ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Sale
	for rows.Next() {
		s, err := scanSale(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func updateSaleLedger(ctx context.Context, db dbtx, id ledger.SaleID, balance decimal.Decimal, status ledger.SaleStatus, expectVersion int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE sales SET balance = ?, status = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		balance.String(), status, id, expectVersion)
	if err != nil {
		return fmt.Errorf("failed to update sale ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update sale ledger: %w", err)
	}
	if n == 0 {
		// Distinguish a missing sale from a stale version.
		if _, err := getSale(ctx, db, id); err != nil {
			return err
		}
		return ledger.ErrConcurrentModification
	}
	return nil
}

func (s *Store) CreateSale(ctx context.Context, sale *ledger.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createSale(ctx, s.db, sale)
}

func (s *Store) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSale(ctx, s.db, id)
}

func (s *Store) ListSales(ctx context.Context) ([]*ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSales(ctx, s.db)
}

func (s *Store) UpdateSaleLedger(ctx context.Context, id ledger.SaleID, balance decimal.Decimal, status ledger.SaleStatus, expectVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateSaleLedger(ctx, s.db, id, balance, status, expectVersion)
}

func (t *txStore) CreateSale(ctx context.Context, sale *ledger.Sale) error {
	return createSale(ctx, t.tx, sale)
}

func (t *txStore) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return getSale(ctx, t.tx, id)
}

func (t *txStore) ListSales(ctx context.Context) ([]*ledger.Sale, error) {
	return listSales(ctx, t.tx)
}

func (t *txStore) UpdateSaleLedger(ctx context.Context, id ledger.SaleID, balance decimal.Decimal, status ledger.SaleStatus, expectVersion int64) error {
	return updateSaleLedger(ctx, t.tx, id, balance, status, expectVersion)
}

// =============================================================================
// PAYMENTS (append-only)
// =============================================================================

func appendPayment(ctx context.Context, db dbtx, p *ledger.Payment) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO payments (id, sale_id, amount, method, reference, paid_at, recorded_by, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SaleID, p.Amount.String(), p.Method, p.Reference,
		fmtTime(p.PaidAt), p.RecordedBy, p.Note, fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

func scanPayment(scan func(dest ...any) error) (*ledger.Payment, error) {
	var p ledger.Payment
	var amount, paidAt, createdAt string
	var reference, recordedBy, note sql.NullString
	if err := scan(&p.ID, &p.SaleID, &amount, &p.Method, &reference, &paidAt,
		&recordedBy, &note, &createdAt); err != nil {
		return nil, err
	}
	p.Amount = parseDecimal(amount)
	p.Reference = reference.String
	p.RecordedBy = ledger.StaffID(recordedBy.String)
	p.Note = note.String
	p.PaidAt = parseTime(paidAt)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func getPayment(ctx context.Context, db dbtx, id ledger.PaymentID) (*ledger.Payment, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, sale_id, amount, method, reference, paid_at, recorded_by, note, created_at
		 FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return p, nil
}

func paymentsBySale(ctx context.Context, db dbtx, id ledger.SaleID) ([]*ledger.Payment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, sale_id, amount, method, reference, paid_at, recorded_by, note, created_at
		 FROM payments WHERE sale_id = ? ORDER BY paid_at ASC, created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AppendPayment(ctx context.Context, p *ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendPayment(ctx, s.db, p)
}

func (s *Store) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}

func (s *Store) PaymentsBySale(ctx context.Context, id ledger.SaleID) ([]*ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paymentsBySale(ctx, s.db, id)
}

func (t *txStore) AppendPayment(ctx context.Context, p *ledger.Payment) error {
	return appendPayment(ctx, t.tx, p)
}

func (t *txStore) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return getPayment(ctx, t.tx, id)
}

func (t *txStore) PaymentsBySale(ctx context.Context, id ledger.SaleID) ([]*ledger.Payment, error) {
	return paymentsBySale(ctx, t.tx, id)
}

// =============================================================================
// HELPERS
// =============================================================================

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
