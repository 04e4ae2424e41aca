// Package store provides an in-memory ledger.TxStore implementation
// for tests and development.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plotwise/estate-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every entity in insertion-order slices. Linear scans are
// fine at test scale and keep listings deterministic.
//
// WithTx snapshots all state before running fn and restores it when fn
// fails, so rollback semantics match the SQLite store.
type Memory struct {
	mu sync.RWMutex
	st state
}

type state struct {
	projects []ledger.Project
	plots    []ledger.Plot
	clients  []ledger.Client
	agents   []ledger.Agent
	leads    []ledger.Lead
	visits   []ledger.SiteVisit
	sales    []ledger.Sale
	payments []ledger.Payment
}

func (s state) clone() state {
	c := state{
		projects: append([]ledger.Project(nil), s.projects...),
		plots:    append([]ledger.Plot(nil), s.plots...),
		clients:  append([]ledger.Client(nil), s.clients...),
		agents:   append([]ledger.Agent(nil), s.agents...),
		leads:    append([]ledger.Lead(nil), s.leads...),
		visits:   append([]ledger.SiteVisit(nil), s.visits...),
		sales:    append([]ledger.Sale(nil), s.sales...),
		payments: append([]ledger.Payment(nil), s.payments...),
	}
	for i := range c.leads {
		if c.leads[i].ConvertedAt != nil {
			t := *c.leads[i].ConvertedAt
			c.leads[i].ConvertedAt = &t
		}
	}
	return c
}

func NewMemory() *Memory {
	return &Memory{}
}

// WithTx runs fn against the store under one lock, restoring the prior
// state if fn fails. All-or-nothing, same contract as the SQLite store.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&view{m: m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// view exposes the unlocked internals to the function running inside
// WithTx, which already holds the lock.
type view struct {
	m *Memory
}

// =============================================================================
// PROJECTS
// =============================================================================

func (m *Memory) CreateProject(_ context.Context, p *ledger.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createProject(p)
}

func (v *view) CreateProject(_ context.Context, p *ledger.Project) error { return v.m.createProject(p) }

func (m *Memory) createProject(p *ledger.Project) error {
	m.st.projects = append(m.st.projects, *p)
	return nil
}

func (m *Memory) GetProject(_ context.Context, id ledger.ProjectID) (*ledger.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProject(id)
}

func (v *view) GetProject(_ context.Context, id ledger.ProjectID) (*ledger.Project, error) {
	return v.m.getProject(id)
}

func (m *Memory) getProject(id ledger.ProjectID) (*ledger.Project, error) {
	for i := range m.st.projects {
		if m.st.projects[i].ID == id {
			p := m.st.projects[i]
			return &p, nil
		}
	}
	return nil, ledger.ErrProjectNotFound
}

func (m *Memory) ListProjects(_ context.Context) ([]*ledger.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listProjects()
}

func (v *view) ListProjects(_ context.Context) ([]*ledger.Project, error) { return v.m.listProjects() }

func (m *Memory) listProjects() ([]*ledger.Project, error) {
	out := make([]*ledger.Project, len(m.st.projects))
	for i := range m.st.projects {
		p := m.st.projects[i]
		out[i] = &p
	}
	return out, nil
}

// =============================================================================
// PLOTS
// =============================================================================

func (m *Memory) CreatePlot(_ context.Context, p *ledger.Plot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPlot(p)
}

func (v *view) CreatePlot(_ context.Context, p *ledger.Plot) error { return v.m.createPlot(p) }

func (m *Memory) createPlot(p *ledger.Plot) error {
	m.st.plots = append(m.st.plots, *p)
	return nil
}

func (m *Memory) GetPlot(_ context.Context, id ledger.PlotID) (*ledger.Plot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPlot(id)
}

func (v *view) GetPlot(_ context.Context, id ledger.PlotID) (*ledger.Plot, error) {
	return v.m.getPlot(id)
}

func (m *Memory) getPlot(id ledger.PlotID) (*ledger.Plot, error) {
	for i := range m.st.plots {
		if m.st.plots[i].ID == id {
			p := m.st.plots[i]
			return &p, nil
		}
	}
	return nil, ledger.ErrPlotNotFound
}

func (m *Memory) ListPlots(_ context.Context) ([]*ledger.Plot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPlots()
}

func (v *view) ListPlots(_ context.Context) ([]*ledger.Plot, error) { return v.m.listPlots() }

func (m *Memory) listPlots() ([]*ledger.Plot, error) {
	out := make([]*ledger.Plot, len(m.st.plots))
	for i := range m.st.plots {
		p := m.st.plots[i]
		out[i] = &p
	}
	return out, nil
}

func (m *Memory) UpdatePlotStatus(_ context.Context, id ledger.PlotID, status ledger.PlotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePlotStatus(id, status)
}

func (v *view) UpdatePlotStatus(_ context.Context, id ledger.PlotID, status ledger.PlotStatus) error {
	return v.m.updatePlotStatus(id, status)
}

func (m *Memory) updatePlotStatus(id ledger.PlotID, status ledger.PlotStatus) error {
	for i := range m.st.plots {
		if m.st.plots[i].ID == id {
			m.st.plots[i].Status = status
			return nil
		}
	}
	return ledger.ErrPlotNotFound
}

// =============================================================================
// CLIENTS / AGENTS
// =============================================================================

func (m *Memory) CreateClient(_ context.Context, c *ledger.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createClient(c)
}

func (v *view) CreateClient(_ context.Context, c *ledger.Client) error { return v.m.createClient(c) }

func (m *Memory) createClient(c *ledger.Client) error {
	m.st.clients = append(m.st.clients, *c)
	return nil
}

func (m *Memory) GetClient(_ context.Context, id ledger.ClientID) (*ledger.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getClient(id)
}

func (v *view) GetClient(_ context.Context, id ledger.ClientID) (*ledger.Client, error) {
	return v.m.getClient(id)
}

func (m *Memory) getClient(id ledger.ClientID) (*ledger.Client, error) {
	for i := range m.st.clients {
		if m.st.clients[i].ID == id {
			c := m.st.clients[i]
			return &c, nil
		}
	}
	return nil, ledger.ErrClientNotFound
}

func (m *Memory) ListClients(_ context.Context) ([]*ledger.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listClients()
}

func (v *view) ListClients(_ context.Context) ([]*ledger.Client, error) { return v.m.listClients() }

func (m *Memory) listClients() ([]*ledger.Client, error) {
	out := make([]*ledger.Client, len(m.st.clients))
	for i := range m.st.clients {
		c := m.st.clients[i]
		out[i] = &c
	}
	return out, nil
}

func (m *Memory) CreateAgent(_ context.Context, a *ledger.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAgent(a)
}

func (v *view) CreateAgent(_ context.Context, a *ledger.Agent) error { return v.m.createAgent(a) }

func (m *Memory) createAgent(a *ledger.Agent) error {
	m.st.agents = append(m.st.agents, *a)
	return nil
}

func (m *Memory) GetAgent(_ context.Context, id ledger.AgentID) (*ledger.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAgent(id)
}

func (v *view) GetAgent(_ context.Context, id ledger.AgentID) (*ledger.Agent, error) {
	return v.m.getAgent(id)
}

func (m *Memory) getAgent(id ledger.AgentID) (*ledger.Agent, error) {
	for i := range m.st.agents {
		if m.st.agents[i].ID == id {
			a := m.st.agents[i]
			return &a, nil
		}
	}
	return nil, ledger.ErrAgentNotFound
}

func (m *Memory) ListAgents(_ context.Context) ([]*ledger.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAgents()
}

func (v *view) ListAgents(_ context.Context) ([]*ledger.Agent, error) { return v.m.listAgents() }

func (m *Memory) listAgents() ([]*ledger.Agent, error) {
	out := make([]*ledger.Agent, len(m.st.agents))
	for i := range m.st.agents {
		a := m.st.agents[i]
		out[i] = &a
	}
	return out, nil
}

// =============================================================================
// LEADS / VISITS
// =============================================================================

func (m *Memory) CreateLead(_ context.Context, l *ledger.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLead(l)
}

func (v *view) CreateLead(_ context.Context, l *ledger.Lead) error { return v.m.createLead(l) }

func (m *Memory) createLead(l *ledger.Lead) error {
	m.st.leads = append(m.st.leads, *l)
	return nil
}

func (m *Memory) GetLead(_ context.Context, id ledger.LeadID) (*ledger.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLead(id)
}

func (v *view) GetLead(_ context.Context, id ledger.LeadID) (*ledger.Lead, error) {
	return v.m.getLead(id)
}

func (m *Memory) getLead(id ledger.LeadID) (*ledger.Lead, error) {
	for i := range m.st.leads {
		if m.st.leads[i].ID == id {
			l := m.st.leads[i]
			return &l, nil
		}
	}
	return nil, ledger.ErrLeadNotFound
}

func (m *Memory) ListLeads(_ context.Context) ([]*ledger.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLeads()
}

func (v *view) ListLeads(_ context.Context) ([]*ledger.Lead, error) { return v.m.listLeads() }

func (m *Memory) listLeads() ([]*ledger.Lead, error) {
	out := make([]*ledger.Lead, len(m.st.leads))
	for i := range m.st.leads {
		l := m.st.leads[i]
		out[i] = &l
	}
	return out, nil
}

func (m *Memory) UpdateLeadStatus(_ context.Context, id ledger.LeadID, status ledger.LeadStatus, convertedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLeadStatus(id, status, convertedAt)
}

func (v *view) UpdateLeadStatus(_ context.Context, id ledger.LeadID, status ledger.LeadStatus, convertedAt *time.Time) error {
	return v.m.updateLeadStatus(id, status, convertedAt)
}

func (m *Memory) updateLeadStatus(id ledger.LeadID, status ledger.LeadStatus, convertedAt *time.Time) error {
	for i := range m.st.leads {
		if m.st.leads[i].ID == id {
			m.st.leads[i].Status = status
			if convertedAt != nil {
				t := *convertedAt
				m.st.leads[i].ConvertedAt = &t
			}
			return nil
		}
	}
	return ledger.ErrLeadNotFound
}

func (m *Memory) CreateVisit(_ context.Context, sv *ledger.SiteVisit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createVisit(sv)
}

func (v *view) CreateVisit(_ context.Context, sv *ledger.SiteVisit) error { return v.m.createVisit(sv) }

func (m *Memory) createVisit(sv *ledger.SiteVisit) error {
	m.st.visits = append(m.st.visits, *sv)
	return nil
}

func (m *Memory) ListVisits(_ context.Context) ([]*ledger.SiteVisit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listVisits()
}

func (v *view) ListVisits(_ context.Context) ([]*ledger.SiteVisit, error) { return v.m.listVisits() }

func (m *Memory) listVisits() ([]*ledger.SiteVisit, error) {
	out := make([]*ledger.SiteVisit, len(m.st.visits))
	for i := range m.st.visits {
		sv := m.st.visits[i]
		out[i] = &sv
	}
	return out, nil
}

// =============================================================================
// SALES
// =============================================================================

func (m *Memory) CreateSale(_ context.Context, s *ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSale(s)
}

func (v *view) CreateSale(_ context.Context, s *ledger.Sale) error { return v.m.createSale(s) }

func (m *Memory) createSale(s *ledger.Sale) error {
	m.st.sales = append(m.st.sales, *s)
	return nil
}

func (m *Memory) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSale(id)
}

func (v *view) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return v.m.getSale(id)
}

func (m *Memory) getSale(id ledger.SaleID) (*ledger.Sale, error) {
	for i := range m.st.sales {
		if m.st.sales[i].ID == id {
			s := m.st.sales[i]
			return &s, nil
		}
	}
	return nil, ledger.ErrSaleNotFound
}

func (m *Memory) ListSales(_ context.Context) ([]*ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSales()
}

func (v *view) ListSales(_ context.Context) ([]*ledger.Sale, error) { return v.m.listSales() }

func (m *Memory) listSales() ([]*ledger.Sale, error) {
	out := make([]*ledger.Sale, len(m.st.sales))
	for i := range m.st.sales {
		s := m.st.sales[i]
		out[i] = &s
	}
	return out, nil
}

func (m *Memory) UpdateSaleLedger(_ context.Context, id ledger.SaleID, balance decimal.Decimal, status ledger.SaleStatus, expectVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSaleLedger(id, balance, status, expectVersion)
}

func (v *view) UpdateSaleLedger(_ context.Context, id ledger.SaleID, balance decimal.Decimal, status ledger.SaleStatus, expectVersion int64) error {
	return v.m.updateSaleLedger(id, balance, status, expectVersion)
}

func (m *Memory) updateSaleLedger(id ledger.SaleID, balance decimal.Decimal, status ledger.SaleStatus, expectVersion int64) error {
	for i := range m.st.sales {
		if m.st.sales[i].ID == id {
			if m.st.sales[i].Version != expectVersion {
				return ledger.ErrConcurrentModification
			}
			m.st.sales[i].Balance = balance
			m.st.sales[i].Status = status
			m.st.sales[i].Version++
			return nil
		}
	}
	return ledger.ErrSaleNotFound
}

// =============================================================================
// PAYMENTS (append-only)
// =============================================================================

func (m *Memory) AppendPayment(_ context.Context, p *ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendPayment(p)
}

func (v *view) AppendPayment(_ context.Context, p *ledger.Payment) error { return v.m.appendPayment(p) }

func (m *Memory) appendPayment(p *ledger.Payment) error {
	m.st.payments = append(m.st.payments, *p)
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPayment(id)
}

func (v *view) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return v.m.getPayment(id)
}

func (m *Memory) getPayment(id ledger.PaymentID) (*ledger.Payment, error) {
	for i := range m.st.payments {
		if m.st.payments[i].ID == id {
			p := m.st.payments[i]
			return &p, nil
		}
	}
	return nil, ledger.ErrPaymentNotFound
}

func (m *Memory) PaymentsBySale(_ context.Context, id ledger.SaleID) ([]*ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paymentsBySale(id)
}

func (v *view) PaymentsBySale(_ context.Context, id ledger.SaleID) ([]*ledger.Payment, error) {
	return v.m.paymentsBySale(id)
}

func (m *Memory) paymentsBySale(id ledger.SaleID) ([]*ledger.Payment, error) {
	var out []*ledger.Payment
	for i := range m.st.payments {
		if m.st.payments[i].SaleID == id {
			p := m.st.payments[i]
			out = append(out, &p)
		}
	}
	return out, nil
}
