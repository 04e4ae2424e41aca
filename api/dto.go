/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Monetary amounts cross the boundary as JSON strings holding 2dp
  decimals ("150000.00"), never floats. Request bodies accept numbers
  or strings via decimal.Decimal's own unmarshalling.

VALIDATION:
  Request types carry go-playground/validator struct tags; the handler
  runs the validator before touching the domain layer. Domain rules
  (overdraft, plot availability) stay in the ledger package.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: The domain model these map from
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/plotwise/estate-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateProjectRequest is the request to register a project.
type CreateProjectRequest struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location"`
}

// CreatePlotRequest is the request to register a plot under a project.
type CreatePlotRequest struct {
	ProjectID string          `json:"project_id" validate:"required"`
	Number    string          `json:"number" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"required"`
}

// CreateClientRequest is the request to register a client.
type CreateClientRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

// CreateAgentRequest is the request to register a sales agent.
type CreateAgentRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

// CreateLeadRequest is the request to open a lead.
type CreateLeadRequest struct {
	ClientName string `json:"client_name"`
	AgentID    string `json:"agent_id" validate:"required"`
	Status     string `json:"status"` // defaults to "new"; checked against the lead status set
	Notes      string `json:"notes"`
}

// UpdateLeadStatusRequest moves a lead along the funnel. The status set
// lives in the ledger package; the handler rejects anything outside it.
type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateVisitRequest records a site visit.
type CreateVisitRequest struct {
	LeadID    string `json:"lead_id"`
	ProjectID string `json:"project_id" validate:"required"`
	AgentID   string `json:"agent_id" validate:"required"`
	VisitedAt string `json:"visited_at"` // RFC3339, defaults to now
}

// CreateSaleRequest opens a sale against an available plot.
type CreateSaleRequest struct {
	ClientID      string          `json:"client_id" validate:"required"`
	PlotID        string          `json:"plot_id" validate:"required"`
	AgentID       string          `json:"agent_id" validate:"required"`
	Price         decimal.Decimal `json:"price" validate:"required"`
	Deposit       decimal.Decimal `json:"deposit"`
	DepositMethod string          `json:"deposit_method" validate:"omitempty,oneof=cash bank mobile_money card cheque"`
	PaymentPlan   string          `json:"payment_plan"`
	SaleDate      string          `json:"sale_date"` // RFC3339, defaults to now
	RecordedBy    string          `json:"recorded_by"`
}

// RecordPaymentRequest applies a payment to a sale.
type RecordPaymentRequest struct {
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Method     string          `json:"method" validate:"required,oneof=cash bank mobile_money card cheque"`
	Reference  string          `json:"reference"`
	PaidAt     string          `json:"paid_at"` // RFC3339, defaults to now
	RecordedBy string          `json:"recorded_by"`
	Note       string          `json:"note"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ProjectDTO represents a project in API responses.
type ProjectDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Location  string `json:"location,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// PlotDTO represents a plot in API responses.
type PlotDTO struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Number    string `json:"number"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ClientDTO represents a client in API responses.
type ClientDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// AgentDTO represents a sales agent in API responses.
type AgentDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

// LeadDTO represents a lead in API responses.
type LeadDTO struct {
	ID          string `json:"id"`
	ClientName  string `json:"client_name,omitempty"`
	AgentID     string `json:"agent_id"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	ConvertedAt string `json:"converted_at,omitempty"`
}

// VisitDTO represents a site visit in API responses.
type VisitDTO struct {
	ID        string `json:"id"`
	LeadID    string `json:"lead_id,omitempty"`
	ProjectID string `json:"project_id"`
	AgentID   string `json:"agent_id"`
	VisitedAt string `json:"visited_at"`
}

// SaleDTO represents a sale with its live balance.
type SaleDTO struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	PlotID      string `json:"plot_id"`
	AgentID     string `json:"agent_id"`
	Price       string `json:"price"`
	Balance     string `json:"balance"`
	Status      string `json:"status"`
	PaymentPlan string `json:"payment_plan,omitempty"`
	SaleDate    string `json:"sale_date"`
	Version     int64  `json:"version"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// PaymentDTO represents one immutable payment entry.
type PaymentDTO struct {
	ID         string `json:"id"`
	SaleID     string `json:"sale_id"`
	Amount     string `json:"amount"`
	Method     string `json:"method"`
	Reference  string `json:"reference,omitempty"`
	PaidAt     string `json:"paid_at"`
	RecordedBy string `json:"recorded_by,omitempty"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// ReceiptDTO is the display projection for a single payment.
type ReceiptDTO struct {
	PaymentID   string `json:"payment_id"`
	SaleID      string `json:"sale_id"`
	Amount      string `json:"amount"`
	Method      string `json:"method"`
	Reference   string `json:"reference,omitempty"`
	PaidAt      string `json:"paid_at"`
	RecordedBy  string `json:"recorded_by,omitempty"`
	Note        string `json:"note,omitempty"`
	ClientName  string `json:"client_name"`
	ProjectName string `json:"project_name"`
	PlotNumber  string `json:"plot_number"`
	SalePrice   string `json:"sale_price"`
	PaidToDate  string `json:"paid_to_date"`
	Outstanding string `json:"outstanding"`
	SaleStatus  string `json:"sale_status"`
	Currency    string `json:"currency"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toProjectDTO(p *ledger.Project) ProjectDTO {
	return ProjectDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Location:  p.Location,
		CreatedAt: fmtDate(p.CreatedAt),
	}
}

func toPlotDTO(p *ledger.Plot) PlotDTO {
	return PlotDTO{
		ID:        string(p.ID),
		ProjectID: string(p.ProjectID),
		Number:    p.Number,
		Price:     ledger.RoundMoney(p.Price).StringFixed(2),
		Status:    string(p.Status),
		CreatedAt: fmtDate(p.CreatedAt),
	}
}

func toClientDTO(c *ledger.Client) ClientDTO {
	return ClientDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Phone:     c.Phone,
		Email:     c.Email,
		CreatedAt: fmtDate(c.CreatedAt),
	}
}

func toAgentDTO(a *ledger.Agent) AgentDTO {
	return AgentDTO{
		ID:        string(a.ID),
		Name:      a.Name,
		Email:     a.Email,
		Active:    a.Active,
		CreatedAt: fmtDate(a.CreatedAt),
	}
}

func toLeadDTO(l *ledger.Lead) LeadDTO {
	dto := LeadDTO{
		ID:         string(l.ID),
		ClientName: l.ClientName,
		AgentID:    string(l.AgentID),
		Status:     string(l.Status),
		Notes:      l.Notes,
		CreatedAt:  fmtDate(l.CreatedAt),
	}
	if l.ConvertedAt != nil {
		dto.ConvertedAt = fmtDate(*l.ConvertedAt)
	}
	return dto
}

func toVisitDTO(v *ledger.SiteVisit) VisitDTO {
	return VisitDTO{
		ID:        string(v.ID),
		LeadID:    string(v.LeadID),
		ProjectID: string(v.ProjectID),
		AgentID:   string(v.AgentID),
		VisitedAt: fmtDate(v.VisitedAt),
	}
}

func toSaleDTO(s *ledger.Sale) SaleDTO {
	return SaleDTO{
		ID:          string(s.ID),
		ClientID:    string(s.ClientID),
		PlotID:      string(s.PlotID),
		AgentID:     string(s.AgentID),
		Price:       ledger.RoundMoney(s.Price).StringFixed(2),
		Balance:     ledger.RoundMoney(s.Balance).StringFixed(2),
		Status:      string(s.Status),
		PaymentPlan: s.PaymentPlan,
		SaleDate:    fmtDate(s.SaleDate),
		Version:     s.Version,
		CreatedAt:   fmtDate(s.CreatedAt),
	}
}

func toPaymentDTO(p *ledger.Payment) PaymentDTO {
	return PaymentDTO{
		ID:         string(p.ID),
		SaleID:     string(p.SaleID),
		Amount:     ledger.RoundMoney(p.Amount).StringFixed(2),
		Method:     string(p.Method),
		Reference:  p.Reference,
		PaidAt:     fmtDate(p.PaidAt),
		RecordedBy: string(p.RecordedBy),
		Note:       p.Note,
		CreatedAt:  fmtDate(p.CreatedAt),
	}
}

func toReceiptDTO(r *ledger.Receipt, currency string) ReceiptDTO {
	return ReceiptDTO{
		PaymentID:   string(r.PaymentID),
		SaleID:      string(r.SaleID),
		Amount:      r.Amount.StringFixed(2),
		Method:      string(r.Method),
		Reference:   r.Reference,
		PaidAt:      fmtDate(r.PaidAt),
		RecordedBy:  string(r.RecordedBy),
		Note:        r.Note,
		ClientName:  r.ClientName,
		ProjectName: r.ProjectName,
		PlotNumber:  r.PlotNumber,
		SalePrice:   r.SalePrice.StringFixed(2),
		PaidToDate:  r.PaidToDate.StringFixed(2),
		Outstanding: r.Outstanding.StringFixed(2),
		SaleStatus:  string(r.SaleStatus),
		Currency:    currency,
	}
}

func toSaleDTOs(sales []*ledger.Sale) []SaleDTO {
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	return dtos
}

func toPaymentDTOs(payments []*ledger.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}
