/*
request.go - Leave request aggregate and lifecycle service

PURPOSE:
  The Service is the aggregate root for leave requests. It owns the
  pending -> {approved, rejected, cancelled} state machine, delegates
  day counting to the calendar, balance checks to the Ledger, and step
  progression to the workflow helpers.

LIFECYCLE:
  Submit: compute days, reserve-check, overlap-check, build ladder,
          store as pending (or finalize immediately when every step
          came back skipped).
  Act:    advance the lowest pending step; rejection short-circuits
          the whole request; the final approval debits the ledger.
  Cancel: owner or HR, pending only, no balance effect.

IMMUTABILITY:
  Terminal requests are never mutated again. Every entry point checks
  the status under the per-request lock and fails with
  RequestAlreadyFinalized, so a cancellation racing an approval
  resolves to whichever committed first.

SEE ALSO:
  - workflow.go: BuildSteps, lowestPendingStep, authorizeStep
  - balance.go: ReserveCheck and the atomic Debit
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE REQUEST - Aggregate root
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// ReasonBalanceExhausted marks requests rejected because the final
// debit lost a balance race.
const ReasonBalanceExhausted = "balance_exhausted"

type Request struct {
	ID      RequestID
	StaffID StaffID
	Type    Type

	StartDate Date
	EndDate   Date

	// Days is the computed day count (working or calendar days,
	// depending on the type's policy).
	Days int

	Reason            string
	OfficerTakingOver string
	HandoverNotes     string

	DeclarationAccepted bool
	HRValidated         bool

	Status       Status
	StatusReason string

	Steps []ApprovalStep

	SubmittedAt time.Time
	UpdatedAt   time.Time

	// Version for optimistic store updates.
	Version int
}

// Terminal reports whether the request reached a final state.
func (r *Request) Terminal() bool { return r.Status != StatusPending }

// Overlaps reports whether another date range intersects this request.
func (r *Request) Overlaps(start, end Date) bool {
	return start.BeforeOrEqual(r.EndDate) && r.StartDate.BeforeOrEqual(end)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates the request lifecycle.
type Service struct {
	Directory Directory
	Ledger    *Ledger
	Requests  RequestStore
	Audit     AuditSink // optional
	Holidays  HolidayCalendar
	Policies  map[Type]Policy

	// Now is the clock; overridable in tests.
	Now func() time.Time

	mu    sync.Mutex
	locks map[RequestID]*sync.Mutex
}

func NewService(dir Directory, ledger *Ledger, requests RequestStore, audit AuditSink, holidays HolidayCalendar, policies map[Type]Policy) *Service {
	if holidays == nil {
		holidays = NoHolidays
	}
	return &Service{
		Directory: dir,
		Ledger:    ledger,
		Requests:  requests,
		Audit:     audit,
		Holidays:  holidays,
		Policies:  policies,
		Now:       time.Now,
		locks:     make(map[RequestID]*sync.Mutex),
	}
}

// lockFor serializes approval actions and cancellation on one request.
func (s *Service) lockFor(id RequestID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[id] == nil {
		s.locks[id] = &sync.Mutex{}
	}
	return s.locks[id]
}

func (s *Service) policy(typ Type) (Policy, error) {
	p, ok := s.Policies[typ]
	if !ok {
		return Policy{}, fmt.Errorf("no policy for leave type %q", typ)
	}
	return p, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

type SubmitInput struct {
	StaffID             StaffID
	Type                Type
	StartDate           Date
	EndDate             Date
	Reason              string
	OfficerTakingOver   string
	HandoverNotes       string
	DeclarationAccepted bool
}

// Submit validates and stores a new request in pending state. No
// balance is debited at submission; the reserve check is read-only.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Request, error) {
	policy, err := s.policy(in.Type)
	if err != nil {
		return nil, err
	}
	if !in.DeclarationAccepted {
		return nil, ErrDeclarationRequired
	}

	pos, err := s.Directory.Position(ctx, in.StaffID)
	if err != nil {
		return nil, err
	}

	// Day count via the calendar service.
	var count int
	if policy.InCalendarDays {
		count, err = CalendarDays(in.StartDate, in.EndDate)
	} else {
		count, err = WorkingDays(in.StartDate, in.EndDate, true, s.Holidays)
	}
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no countable days between %s and %s",
			ErrInvalidRange, in.StartDate, in.EndDate)
	}

	// Overlap check across all leave types.
	active, err := s.Requests.ActiveRequests(ctx, in.StaffID)
	if err != nil {
		return nil, err
	}
	for _, other := range active {
		if other.Overlaps(in.StartDate, in.EndDate) {
			return nil, &OverlapError{
				ExistingID: other.ID,
				Start:      other.StartDate, End: other.EndDate,
			}
		}
	}

	// Read-only balance validation; non-accruing types are exempt.
	if err := s.Ledger.ReserveCheck(ctx, in.StaffID, in.Type, decimal.NewFromInt(int64(count))); err != nil {
		return nil, err
	}

	steps, err := BuildSteps(ctx, s.Directory, pos, policy)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	r := &Request{
		ID:                  RequestID(uuid.NewString()),
		StaffID:             in.StaffID,
		Type:                in.Type,
		StartDate:           in.StartDate,
		EndDate:             in.EndDate,
		Days:                count,
		Reason:              in.Reason,
		OfficerTakingOver:   in.OfficerTakingOver,
		HandoverNotes:       in.HandoverNotes,
		DeclarationAccepted: true,
		Status:              StatusPending,
		Steps:               steps,
		SubmittedAt:         now,
		UpdatedAt:           now,
	}

	if err := s.Requests.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	s.emit(ctx, AuditEvent{
		Action: AuditSubmitted, ActorID: in.StaffID, ActorRole: RoleStaff,
		StaffID: in.StaffID, RequestID: r.ID,
		Detail: map[string]any{
			"type": string(in.Type), "start": in.StartDate.String(),
			"end": in.EndDate.String(), "days": count,
		},
	})

	// Requester at the top of their branch with no validation step:
	// every step came back skipped and the request finalizes now.
	if lowestPendingStep(r.Steps) == -1 {
		if err := s.finalize(ctx, r, in.StaffID, RoleStaff); err != nil {
			return r, err
		}
	}
	return r, nil
}

// =============================================================================
// ACT - Approver decision on the lowest pending step
// =============================================================================

// Act advances the request by one approver decision. The acting role
// must match the lowest pending step (OutOfOrder otherwise) and the
// actor must hold that role for the requester's org position
// (NotAuthorized otherwise).
func (s *Service) Act(ctx context.Context, id RequestID, actorID StaffID, actorRole Role, decision Decision, comment string) (*Request, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.Requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Terminal() {
		return r, fmt.Errorf("%w: request %s is %s", ErrRequestAlreadyFinalized, r.ID, r.Status)
	}

	idx := lowestPendingStep(r.Steps)
	if idx == -1 {
		return r, fmt.Errorf("%w: request %s has no pending step", ErrRequestAlreadyFinalized, r.ID)
	}
	step := &r.Steps[idx]

	if step.Role != actorRole {
		return r, fmt.Errorf("%w: level %d requires %s, got %s",
			ErrOutOfOrder, step.Level, step.Role, actorRole)
	}

	pos, err := s.Directory.Position(ctx, r.StaffID)
	if err != nil {
		return nil, err
	}
	if err := authorizeStep(ctx, s.Directory, pos, *step, actorID); err != nil {
		return r, err
	}

	now := s.Now()
	step.DecidedBy = actorID
	step.DecidedAt = now
	step.Comment = comment
	r.UpdatedAt = now

	switch decision {
	case DecisionReject:
		// Short-circuit: later steps are never evaluated.
		step.Status = StepRejected
		r.Status = StatusRejected
		r.StatusReason = comment
		if err := s.Requests.UpdateRequest(ctx, r); err != nil {
			return nil, err
		}
		s.emit(ctx, AuditEvent{
			Action: AuditRejected, ActorID: actorID, ActorRole: actorRole,
			StaffID: r.StaffID, RequestID: r.ID,
			Detail: map[string]any{"level": step.Level, "comment": comment},
		})
		return r, nil

	case DecisionApprove:
		step.Status = StepApproved
		if step.Role == RoleHROfficer {
			r.HRValidated = true
		}
		s.emit(ctx, AuditEvent{
			Action: AuditApproved, ActorID: actorID, ActorRole: actorRole,
			StaffID: r.StaffID, RequestID: r.ID,
			Detail: map[string]any{"level": step.Level, "comment": comment},
		})

		if lowestPendingStep(r.Steps) != -1 {
			// More approvals required.
			if err := s.Requests.UpdateRequest(ctx, r); err != nil {
				return nil, err
			}
			return r, nil
		}
		if err := s.finalize(ctx, r, actorID, actorRole); err != nil {
			return r, err
		}
		return r, nil

	default:
		return r, fmt.Errorf("unknown decision %q", decision)
	}
}

// finalize commits the terminal state of a fully-approved request:
// debit the ledger and mark approved, or, when the entitlement was
// consumed by a race since submission, mark rejected with reason
// BalanceExhausted rather than approving an unfunded leave.
func (s *Service) finalize(ctx context.Context, r *Request, actorID StaffID, actorRole Role) error {
	policy, err := s.policy(r.Type)
	if err != nil {
		return err
	}
	if policy.RequiresHRValidation && !r.HRValidated && !hrStepSkipped(r.Steps) {
		return fmt.Errorf("request %s fully approved without HR validation", r.ID)
	}

	err = s.Ledger.Debit(ctx, r.StaffID, r.Type, decimal.NewFromInt(int64(r.Days)), actorID, r.ID)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			r.Status = StatusRejected
			r.StatusReason = ReasonBalanceExhausted
			r.UpdatedAt = s.Now()
			if uerr := s.Requests.UpdateRequest(ctx, r); uerr != nil {
				return uerr
			}
			return fmt.Errorf("%w: %v", ErrBalanceExhausted, err)
		}
		return err
	}

	r.Status = StatusApproved
	r.UpdatedAt = s.Now()
	return s.Requests.UpdateRequest(ctx, r)
}

// hrStepSkipped: the HR officer step skipped at build time (the
// requester is the HR officer) satisfies the validation gate.
func hrStepSkipped(steps []ApprovalStep) bool {
	for _, st := range steps {
		if st.Role == RoleHROfficer {
			return st.Status == StepSkipped
		}
	}
	return false
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel terminates a pending request. Permitted only to the owning
// staff member or an HR officer; no balance effect, none was debited.
func (s *Service) Cancel(ctx context.Context, id RequestID, actorID StaffID, actorRole Role) (*Request, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.Requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Terminal() {
		return r, fmt.Errorf("%w: request %s is %s", ErrRequestAlreadyFinalized, r.ID, r.Status)
	}
	if actorID != r.StaffID && actorRole != RoleHROfficer {
		return r, fmt.Errorf("%w: only the owner or HR may cancel", ErrNotAuthorized)
	}

	r.Status = StatusCancelled
	r.UpdatedAt = s.Now()
	if err := s.Requests.UpdateRequest(ctx, r); err != nil {
		return nil, err
	}
	s.emit(ctx, AuditEvent{
		Action: AuditCancelled, ActorID: actorID, ActorRole: actorRole,
		StaffID: r.StaffID, RequestID: r.ID,
	})
	return r, nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id RequestID) (*Request, error) {
	return s.Requests.GetRequest(ctx, id)
}

func (s *Service) emit(ctx context.Context, e AuditEvent) {
	if s.Audit == nil {
		return
	}
	e.ID = uuid.NewString()
	e.At = s.Now()
	_ = s.Audit.Append(ctx, e)
}
