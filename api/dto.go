/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Requests:
    SubmitLeaveRequest, DecisionRequest, RequestDTO, ApprovalStepDTO

  Balances:
    BalanceDTO

  Holidays:
    HolidayDTO, CreateHolidayRequest

  Admin:
    RolloverRequest, RolloverReportDTO, CreditRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/request.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/kaacquah2/leave-portal-sub009/leave"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitLeaveRequest is the body of POST /api/requests.
type SubmitLeaveRequest struct {
	LeaveType           string `json:"leave_type"`
	StartDate           string `json:"start_date"` // YYYY-MM-DD
	EndDate             string `json:"end_date"`   // YYYY-MM-DD
	Reason              string `json:"reason"`
	OfficerTakingOver   string `json:"officer_taking_over"`
	HandoverNotes       string `json:"handover_notes"`
	DeclarationAccepted bool   `json:"declaration_accepted"`
}

// DecisionRequest is the body of POST /api/requests/{id}/decision.
type DecisionRequest struct {
	Decision string `json:"decision"` // "approve" | "reject"
	Comment  string `json:"comment"`
}

// CreateHolidayRequest is the body of POST /api/holidays.
type CreateHolidayRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
	Name string `json:"name"`
}

// RolloverRequest is the body of POST /api/admin/rollover.
type RolloverRequest struct {
	ClosingYear int `json:"closing_year"`
}

// CreditRequest is the body of POST /api/admin/credit.
type CreditRequest struct {
	StaffID   string `json:"staff_id"`
	LeaveType string `json:"leave_type"`
	Amount    string `json:"amount"` // decimal string
	Reason    string `json:"reason"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ApprovalStepDTO represents one step of a request's approval ladder.
type ApprovalStepDTO struct {
	Level     int    `json:"level"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	DecidedBy string `json:"decided_by,omitempty"`
	DecidedAt string `json:"decided_at,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID                  string            `json:"id"`
	StaffID             string            `json:"staff_id"`
	LeaveType           string            `json:"leave_type"`
	StartDate           string            `json:"start_date"`
	EndDate             string            `json:"end_date"`
	Days                int               `json:"days"`
	Reason              string            `json:"reason,omitempty"`
	OfficerTakingOver   string            `json:"officer_taking_over,omitempty"`
	HandoverNotes       string            `json:"handover_notes,omitempty"`
	DeclarationAccepted bool              `json:"declaration_accepted"`
	HRValidated         bool              `json:"hr_validated"`
	Status              string            `json:"status"`
	StatusReason        string            `json:"status_reason,omitempty"`
	Steps               []ApprovalStepDTO `json:"steps"`
	SubmittedAt         string            `json:"submitted_at"`
	UpdatedAt           string            `json:"updated_at"`
}

// BalanceDTO represents one leave type's balance for a staff member.
type BalanceDTO struct {
	LeaveType      string `json:"leave_type"`
	PeriodYear     int    `json:"period_year"`
	Entitlement    string `json:"entitlement"`
	Consumed       string `json:"consumed"`
	CarriedForward string `json:"carried_forward"`
	CarryExpiresAt string `json:"carry_expires_at,omitempty"`
	Available      string `json:"available"`
	Unlimited      bool   `json:"unlimited"`
}

// HolidayDTO represents a public holiday.
type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// RolloverResultDTO is one staff/type line of a rollover report.
type RolloverResultDTO struct {
	StaffID     string `json:"staff_id"`
	LeaveType   string `json:"leave_type"`
	CarriedOver string `json:"carried_over"`
	Expired     string `json:"expired"`
}

// RolloverReportDTO summarizes a year-end rollover run.
type RolloverReportDTO struct {
	ClosedYear       int                 `json:"closed_year"`
	Processed        []RolloverResultDTO `json:"processed"`
	AlreadyProcessed []string            `json:"already_processed"`
	Failures         []string            `json:"failures"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toRequestDTO(r *leave.Request) RequestDTO {
	steps := make([]ApprovalStepDTO, len(r.Steps))
	for i, st := range r.Steps {
		dto := ApprovalStepDTO{
			Level:     st.Level,
			Role:      string(st.Role),
			Status:    string(st.Status),
			DecidedBy: string(st.DecidedBy),
			Comment:   st.Comment,
		}
		if !st.DecidedAt.IsZero() {
			dto.DecidedAt = st.DecidedAt.UTC().Format(time.RFC3339)
		}
		steps[i] = dto
	}
	return RequestDTO{
		ID:                  string(r.ID),
		StaffID:             string(r.StaffID),
		LeaveType:           string(r.Type),
		StartDate:           r.StartDate.String(),
		EndDate:             r.EndDate.String(),
		Days:                r.Days,
		Reason:              r.Reason,
		OfficerTakingOver:   r.OfficerTakingOver,
		HandoverNotes:       r.HandoverNotes,
		DeclarationAccepted: r.DeclarationAccepted,
		HRValidated:         r.HRValidated,
		Status:              string(r.Status),
		StatusReason:        r.StatusReason,
		Steps:               steps,
		SubmittedAt:         r.SubmittedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
