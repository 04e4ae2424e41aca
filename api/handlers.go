/*
handlers.go - HTTP API handlers for the estate sales back office

PURPOSE:
  Exposes the sales ledger and metrics engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Reference entities:
    POST/GET /api/projects, /api/plots, /api/clients, /api/agents
    POST/GET /api/leads, PUT /api/leads/{id}/status
    POST     /api/visits

  Ledger:
    POST /api/sales                   Open a sale (reserves the plot)
    GET  /api/sales, /api/sales/{id}
    POST /api/sales/{id}/payments     Record a payment
    GET  /api/sales/{id}/payments     Payment history
    POST /api/sales/{id}/cancel       Cancel and release the plot
    GET  /api/payments/{id}/receipt   Receipt projection

  Metrics:
    GET /api/metrics/forecast?months=N
    GET /api/metrics/funnel?from=&to=
    GET /api/metrics/agents?from=&to=
    GET /api/metrics/roi
    GET /api/metrics/dashboard

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (struct tags, go-playground/validator)
  3. Call domain logic (lifecycle manager, recorder, engine)
  4. Serialize response
  5. Classify errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (concurrent modification, double-booked plot)
  - 503: Conflict retries exhausted, client should retry
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plotwise/estate-engine/config"
	"github.com/plotwise/estate-engine/ledger"
	"github.com/plotwise/estate-engine/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     ledger.TxStore
	Lifecycle *ledger.LifecycleManager
	Recorder  *ledger.PaymentRecorder
	Engine    *metrics.Engine

	settings config.Settings
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler wires the handler with its domain services.
func NewHandler(store ledger.TxStore, lifecycle *ledger.LifecycleManager, recorder *ledger.PaymentRecorder, engine *metrics.Engine, settings config.Settings, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:     store,
		Lifecycle: lifecycle,
		Recorder:  recorder,
		Engine:    engine,
		settings:  settings,
		validate:  validator.New(),
		logger:    logger,
	}
}

// decodeAndValidate parses the JSON body into dst and runs struct-tag
// validation. A false return means the response was already written.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// REFERENCE ENTITY ENDPOINTS
// =============================================================================

// CreateProject registers a project.
// POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p := &ledger.Project{
		ID:        ledger.ProjectID(uuid.NewString()),
		Name:      req.Name,
		Location:  req.Location,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateProject(r.Context(), p); err != nil {
		writeDomainError(w, "Failed to create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

// ListProjects returns all projects.
// GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list projects", err)
		return
	}
	dtos := make([]ProjectDTO, 0, len(projects))
	for _, p := range projects {
		dtos = append(dtos, toProjectDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": dtos})
}

// CreatePlot registers a plot under a project.
// POST /api/plots
func (h *Handler) CreatePlot(w http.ResponseWriter, r *http.Request) {
	var req CreatePlotRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !req.Price.IsPositive() {
		writeError(w, http.StatusBadRequest, "Plot price must be positive", nil)
		return
	}

	// The project must exist; a plot without one breaks every join.
	if _, err := h.Store.GetProject(r.Context(), ledger.ProjectID(req.ProjectID)); err != nil {
		writeDomainError(w, "Unknown project", err)
		return
	}

	p := &ledger.Plot{
		ID:        ledger.PlotID(uuid.NewString()),
		ProjectID: ledger.ProjectID(req.ProjectID),
		Number:    req.Number,
		Price:     req.Price,
		Status:    ledger.PlotAvailable,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreatePlot(r.Context(), p); err != nil {
		writeDomainError(w, "Failed to create plot", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlotDTO(p))
}

// ListPlots returns all plots.
// GET /api/plots
func (h *Handler) ListPlots(w http.ResponseWriter, r *http.Request) {
	plots, err := h.Store.ListPlots(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list plots", err)
		return
	}
	dtos := make([]PlotDTO, 0, len(plots))
	for _, p := range plots {
		dtos = append(dtos, toPlotDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"plots": dtos})
}

// GetPlot returns a single plot.
// GET /api/plots/{id}
func (h *Handler) GetPlot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Store.GetPlot(r.Context(), ledger.PlotID(id))
	if err != nil {
		writeDomainError(w, "Failed to get plot", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlotDTO(p))
}

// CreateClient registers a client.
// POST /api/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	c := &ledger.Client{
		ID:        ledger.ClientID(uuid.NewString()),
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateClient(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

// ListClients returns all clients.
// GET /api/clients
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list clients", err)
		return
	}
	dtos := make([]ClientDTO, 0, len(clients))
	for _, c := range clients {
		dtos = append(dtos, toClientDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": dtos})
}

// CreateAgent registers a sales agent.
// POST /api/agents
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	a := &ledger.Agent{
		ID:        ledger.AgentID(uuid.NewString()),
		Name:      req.Name,
		Email:     req.Email,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateAgent(r.Context(), a); err != nil {
		writeDomainError(w, "Failed to create agent", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAgentDTO(a))
}

// ListAgents returns all agents.
// GET /api/agents
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Store.ListAgents(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list agents", err)
		return
	}
	dtos := make([]AgentDTO, 0, len(agents))
	for _, a := range agents {
		dtos = append(dtos, toAgentDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": dtos})
}

// =============================================================================
// LEAD / VISIT ENDPOINTS
// =============================================================================

// CreateLead opens a lead.
// POST /api/leads
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	status := ledger.LeadStatus(req.Status)
	if req.Status == "" {
		status = ledger.LeadNew
	}
	if !ledger.ValidLeadStatus(status) {
		writeError(w, http.StatusBadRequest, "Unknown lead status", nil)
		return
	}

	l := &ledger.Lead{
		ID:         ledger.LeadID(uuid.NewString()),
		ClientName: req.ClientName,
		AgentID:    ledger.AgentID(req.AgentID),
		Status:     status,
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Store.CreateLead(r.Context(), l); err != nil {
		writeDomainError(w, "Failed to create lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeadDTO(l))
}

// ListLeads returns all leads.
// GET /api/leads
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.Store.ListLeads(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list leads", err)
		return
	}
	dtos := make([]LeadDTO, 0, len(leads))
	for _, l := range leads {
		dtos = append(dtos, toLeadDTO(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": dtos})
}

// UpdateLeadStatus moves a lead along the funnel. Moving to converted
// stamps ConvertedAt, which feeds the agent speed bonus.
// PUT /api/leads/{id}/status
func (h *Handler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateLeadStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	status := ledger.LeadStatus(req.Status)
	if !ledger.ValidLeadStatus(status) {
		writeError(w, http.StatusBadRequest, "Unknown lead status", nil)
		return
	}
	var convertedAt *time.Time
	if status == ledger.LeadConverted {
		now := time.Now().UTC()
		convertedAt = &now
	}

	if err := h.Store.UpdateLeadStatus(r.Context(), ledger.LeadID(id), status, convertedAt); err != nil {
		writeDomainError(w, "Failed to update lead status", err)
		return
	}

	lead, err := h.Store.GetLead(r.Context(), ledger.LeadID(id))
	if err != nil {
		writeDomainError(w, "Failed to load updated lead", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadDTO(lead))
}

// CreateVisit records a site visit.
// POST /api/visits
func (h *Handler) CreateVisit(w http.ResponseWriter, r *http.Request) {
	var req CreateVisitRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	visitedAt := time.Now().UTC()
	if req.VisitedAt != "" {
		t, err := time.Parse(time.RFC3339, req.VisitedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid visited_at, expected RFC3339", err)
			return
		}
		visitedAt = t.UTC()
	}

	v := &ledger.SiteVisit{
		ID:        ledger.VisitID(uuid.NewString()),
		LeadID:    ledger.LeadID(req.LeadID),
		ProjectID: ledger.ProjectID(req.ProjectID),
		AgentID:   ledger.AgentID(req.AgentID),
		VisitedAt: visitedAt,
	}
	if err := h.Store.CreateVisit(r.Context(), v); err != nil {
		writeDomainError(w, "Failed to record visit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVisitDTO(v))
}

// =============================================================================
// SALE ENDPOINTS
// =============================================================================

// CreateSale opens a sale against an available plot. Atomic with the
// plot reservation and the optional deposit payment.
// POST /api/sales
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var saleDate time.Time
	if req.SaleDate != "" {
		t, err := time.Parse(time.RFC3339, req.SaleDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid sale_date, expected RFC3339", err)
			return
		}
		saleDate = t.UTC()
	}

	sale, err := h.Lifecycle.CreateSale(r.Context(), ledger.CreateSaleInput{
		ClientID:      ledger.ClientID(req.ClientID),
		PlotID:        ledger.PlotID(req.PlotID),
		AgentID:       ledger.AgentID(req.AgentID),
		Price:         req.Price,
		Deposit:       req.Deposit,
		DepositMethod: ledger.PaymentMethod(req.DepositMethod),
		PaymentPlan:   req.PaymentPlan,
		SaleDate:      saleDate,
		RecordedBy:    ledger.StaffID(req.RecordedBy),
	})
	if err != nil {
		writeDomainError(w, "Failed to create sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// ListSales returns all sales.
// GET /api/sales
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Store.ListSales(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": toSaleDTOs(sales)})
}

// GetSale returns a single sale with its live balance.
// GET /api/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sale, err := h.Store.GetSale(r.Context(), ledger.SaleID(id))
	if err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// CancelSale cancels an active sale and releases its plot.
// POST /api/sales/{id}/cancel
func (h *Handler) CancelSale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sale, err := h.Lifecycle.CancelSale(r.Context(), ledger.SaleID(id))
	if err != nil {
		writeDomainError(w, "Failed to cancel sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// =============================================================================
// PAYMENT ENDPOINTS
// =============================================================================

// RecordPayment applies a payment to a sale.
// POST /api/sales/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	saleID := chi.URLParam(r, "id")
	var req RecordPaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var paidAt time.Time
	if req.PaidAt != "" {
		t, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paid_at, expected RFC3339", err)
			return
		}
		paidAt = t.UTC()
	}

	payment, err := h.Recorder.RecordPayment(r.Context(), ledger.RecordPaymentInput{
		SaleID:     ledger.SaleID(saleID),
		Amount:     req.Amount,
		Method:     ledger.PaymentMethod(req.Method),
		Reference:  req.Reference,
		PaidAt:     paidAt,
		RecordedBy: ledger.StaffID(req.RecordedBy),
		Note:       req.Note,
	})
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// ListPayments returns the payment history for a sale, oldest first.
// GET /api/sales/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	saleID := chi.URLParam(r, "id")

	// 404 for an unknown sale rather than an empty list.
	if _, err := h.Store.GetSale(r.Context(), ledger.SaleID(saleID)); err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}

	payments, err := h.Store.PaymentsBySale(r.Context(), ledger.SaleID(saleID))
	if err != nil {
		writeDomainError(w, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": toPaymentDTOs(payments)})
}

// GetReceipt returns the receipt projection for a payment.
// GET /api/payments/{id}/receipt
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	receipt, err := h.Recorder.Receipt(r.Context(), ledger.PaymentID(id))
	if err != nil {
		writeDomainError(w, "Failed to build receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt, h.settings.CurrencySymbol))
}

// =============================================================================
// METRICS ENDPOINTS
// =============================================================================

// GetForecast returns the revenue forecast.
// GET /api/metrics/forecast?months=N
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	months := 3
	if m := r.URL.Query().Get("months"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > 24 {
			writeError(w, http.StatusBadRequest, "months must be an integer between 1 and 24", err)
			return
		}
		months = n
	}

	forecast, err := h.Engine.Forecast(r.Context(), months)
	if err != nil {
		writeDomainError(w, "Failed to compute forecast", err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

// GetFunnel returns the conversion funnel.
// GET /api/metrics/funnel?from=&to=
func (h *Handler) GetFunnel(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}
	funnel, err := h.Engine.Funnel(r.Context(), window)
	if err != nil {
		writeDomainError(w, "Failed to compute funnel", err)
		return
	}
	writeJSON(w, http.StatusOK, funnel)
}

// GetAgentScores returns the ranked agent performance composite.
// GET /api/metrics/agents?from=&to=
func (h *Handler) GetAgentScores(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}
	scores, err := h.Engine.AgentScores(r.Context(), window)
	if err != nil {
		writeDomainError(w, "Failed to compute agent scores", err)
		return
	}
	if scores == nil {
		scores = []*metrics.AgentScore{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": scores})
}

// GetProjectROI returns per-project ROI ranked descending.
// GET /api/metrics/roi
func (h *Handler) GetProjectROI(w http.ResponseWriter, r *http.Request) {
	roi, err := h.Engine.ProjectROI(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to compute project ROI", err)
		return
	}
	if roi == nil {
		roi = []*metrics.ProjectROI{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": roi})
}

// GetDashboard returns all four metric views. Individual metric failures
// degrade to zero values inside the engine; this endpoint never 500s on
// sparse data.
// GET /api/metrics/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	months := 3
	if m := r.URL.Query().Get("months"); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= 24 {
			months = n
		}
	}
	writeJSON(w, http.StatusOK, h.Engine.BuildDashboard(r.Context(), months))
}

// Health is the liveness probe.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the ledger error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrRetriesExhausted):
		writeError(w, http.StatusServiceUnavailable, "Concurrent updates, please retry", err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "Operation timed out, please retry", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// parseWindow reads optional from/to query params (RFC3339 or 2006-01-02).
// A false return means an error response was already written.
func parseWindow(w http.ResponseWriter, r *http.Request) (metrics.DateRange, bool) {
	var window metrics.DateRange
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := parseDateParam(from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return window, false
		}
		window.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := parseDateParam(to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return window, false
		}
		// A bare date as the upper bound means end of that day.
		if len(to) == len("2006-01-02") {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		window.To = t
	}
	return window, true
}

func parseDateParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
