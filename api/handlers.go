/*
handlers.go - HTTP API handlers for the leave management engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Requests:
    POST   /api/requests                 Submit a leave request
    GET    /api/requests/{id}            Get request with approval ladder
    GET    /api/requests/pending         Requests awaiting the caller's role
    POST   /api/requests/{id}/decision   Approve or reject the active step
    POST   /api/requests/{id}/cancel     Cancel a pending request

  Balances:
    GET    /api/staff/{id}/balances      Balance summary per leave type

  Holidays:
    GET    /api/holidays                 List holidays (?year=YYYY)
    POST   /api/holidays                 Add a holiday (HR only)

  Admin:
    POST   /api/admin/rollover           Run year-end rollover (HR/CD only)
    POST   /api/admin/credit             Manual balance credit (HR only)

REQUEST FLOW:
  1. Read principal from context (set by auth middleware)
  2. Parse and validate input
  3. Call domain logic (service, ledger)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Caller not authorized for the action
  - 404: Staff, request or account not found
  - 409: Conflict (stale version, already processed)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer authentication
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kaacquah2/leave-portal-sub009/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HolidayStore persists the public holiday calendar.
type HolidayStore interface {
	AddHoliday(ctx context.Context, d leave.Date, name string) error
	Holidays(ctx context.Context, year int) (leave.HolidaySet, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *leave.Service
	Holidays HolidayStore
}

// NewHandler creates a new handler around the leave service.
func NewHandler(svc *leave.Service, holidays HolidayStore) *Handler {
	return &Handler{Service: svc, Holidays: holidays}
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a new leave request for the caller.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	typ, err := leave.ParseType(req.LeaveType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown leave type", err)
		return
	}
	start, err := leave.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := leave.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	created, err := h.Service.Submit(r.Context(), leave.SubmitInput{
		StaffID:             p.StaffID,
		Type:                typ,
		StartDate:           start,
		EndDate:             end,
		Reason:              req.Reason,
		OfficerTakingOver:   req.OfficerTakingOver,
		HandoverNotes:       req.HandoverNotes,
		DeclarationAccepted: req.DeclarationAccepted,
	})
	if err != nil {
		writeDomainError(w, "Failed to submit request", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// GetRequest returns a single request with its approval ladder.
// Visible to the requester and to anyone holding an approver role.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	id := leave.RequestID(chi.URLParam(r, "id"))
	req, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get request", err)
		return
	}
	if req.StaffID != p.StaffID && p.Role == leave.RoleStaff {
		writeError(w, http.StatusForbidden, "Not authorized to view this request", nil)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListPending returns requests whose active step matches the caller's role.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	reqs, err := h.Service.Requests.PendingForRole(r.Context(), p.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending requests", err)
		return
	}

	dtos := make([]RequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Decide approves or rejects the active step of a request.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var decision leave.Decision
	switch req.Decision {
	case "approve":
		decision = leave.DecisionApprove
	case "reject":
		decision = leave.DecisionReject
	default:
		writeError(w, http.StatusBadRequest, "Decision must be 'approve' or 'reject'", nil)
		return
	}

	id := leave.RequestID(chi.URLParam(r, "id"))
	updated, err := h.Service.Act(r.Context(), id, p.StaffID, p.Role, decision, req.Comment)
	if err != nil {
		writeDomainError(w, "Failed to record decision", err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// CancelRequest cancels a pending request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	id := leave.RequestID(chi.URLParam(r, "id"))
	updated, err := h.Service.Cancel(r.Context(), id, p.StaffID, p.Role)
	if err != nil {
		writeDomainError(w, "Failed to cancel request", err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalances returns the balance summary for a staff member.
// Staff can see their own; approver roles can see anyone's.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	staffID := leave.StaffID(chi.URLParam(r, "id"))
	if staffID != p.StaffID && p.Role == leave.RoleStaff {
		writeError(w, http.StatusForbidden, "Not authorized to view these balances", nil)
		return
	}

	accounts, err := h.Service.Ledger.Accounts(r.Context(), staffID)
	if err != nil {
		writeDomainError(w, "Failed to load balances", err)
		return
	}

	today := leave.Today()
	dtos := make([]BalanceDTO, 0, len(accounts))
	for _, a := range accounts {
		dto := BalanceDTO{
			LeaveType:      string(a.Type),
			PeriodYear:     a.PeriodYear,
			Entitlement:    a.Entitlement.String(),
			Consumed:       a.Consumed.String(),
			CarriedForward: a.CarriedForwardIn.String(),
			Unlimited:      h.Service.Ledger.Unlimited(a.Type),
		}
		if !a.CarryExpiresAt.IsZero() {
			dto.CarryExpiresAt = a.CarryExpiresAt.String()
		}
		available, err := a.AvailableAt(today)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Corrupt balance record", err)
			return
		}
		dto.Available = available.String()
		dtos = append(dtos, dto)
	}

	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the holiday calendar, optionally scoped to ?year=.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := 0
	if ys := r.URL.Query().Get("year"); ys != "" {
		var err error
		if year, err = strconv.Atoi(ys); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}

	set, err := h.Holidays.Holidays(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(set))
	for _, d := range set.Dates() {
		dtos = append(dtos, HolidayDTO{Date: d.String()})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a public holiday. HR only.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok || p.Role != leave.RoleHROfficer {
		writeError(w, http.StatusForbidden, "Only HR can manage holidays", nil)
		return
	}

	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	d, err := leave.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	if err := h.Holidays.AddHoliday(r.Context(), d, req.Name); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, HolidayDTO{Date: d.String(), Name: req.Name})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerRollover runs the year-end rollover batch. HR or chief director.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok || (p.Role != leave.RoleHROfficer && p.Role != leave.RoleChiefDirector) {
		writeError(w, http.StatusForbidden, "Only HR or the chief director can run rollover", nil)
		return
	}

	var req RolloverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ClosingYear < 2000 || req.ClosingYear > 2200 {
		writeError(w, http.StatusBadRequest, "Implausible closing_year", nil)
		return
	}

	report, err := h.Service.RunYearEndRollover(r.Context(), req.ClosingYear, p.StaffID)
	if err != nil {
		writeDomainError(w, "Rollover failed", err)
		return
	}

	dto := RolloverReportDTO{
		ClosedYear:       report.ClosedYear,
		Processed:        make([]RolloverResultDTO, len(report.Processed)),
		AlreadyProcessed: make([]string, len(report.AlreadyProcessed)),
		Failures:         make([]string, len(report.Failures)),
	}
	for i, res := range report.Processed {
		dto.Processed[i] = RolloverResultDTO{
			StaffID:     string(res.StaffID),
			LeaveType:   string(res.Type),
			CarriedOver: res.CarriedOver.String(),
			Expired:     res.Expired.String(),
		}
	}
	for i, id := range report.AlreadyProcessed {
		dto.AlreadyProcessed[i] = string(id)
	}
	for i, f := range report.Failures {
		dto.Failures[i] = f.Error()
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateCredit manually credits a balance. HR only.
func (h *Handler) CreateCredit(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok || p.Role != leave.RoleHROfficer {
		writeError(w, http.StatusForbidden, "Only HR can credit balances", nil)
		return
	}

	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	typ, err := leave.ParseType(req.LeaveType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown leave type", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, http.StatusBadRequest, "Amount must be a positive decimal", err)
		return
	}

	err = h.Service.Ledger.Credit(r.Context(), leave.StaffID(req.StaffID), typ, amount, p.StaffID, "", req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to credit balance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
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

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case leave.IsAuthError(err):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, leave.ErrConcurrentModification),
		errors.Is(err, leave.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, message, err)
	case leave.IsClientError(err), errors.Is(err, leave.ErrBalanceExhausted):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
