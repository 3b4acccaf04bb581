/*
rollover.go - Year-end rollover batch

PURPOSE:
  Closes the given accrual period for every staff member: carries
  unused balance forward (capped), sets the carry expiry, resets
  consumed, grants the new period's entitlement.

GUARANTEES:
  - Idempotent per (staff, period): a record already rolled into the
    new period reports AlreadyProcessed and is left untouched.
  - Per-staff isolation: one staff member's failure is collected in
    the report and never aborts the batch.
  - Each account closes under the same per-account lock the ledger
    uses for debits, so an in-flight approval and the rollover never
    interleave on one record.
*/
package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLLOVER REPORT
// =============================================================================

type RolloverResult struct {
	StaffID     StaffID
	Type        Type
	CarriedOver decimal.Decimal
	Expired     decimal.Decimal
}

type RolloverFailure struct {
	StaffID StaffID
	Type    Type
	Err     error
}

func (f RolloverFailure) Error() string {
	return fmt.Sprintf("rollover failed for %s/%s: %v", f.StaffID, f.Type, f.Err)
}

// RolloverReport summarizes one batch run. Failures are collected,
// not thrown; AlreadyProcessed entries are informational.
type RolloverReport struct {
	ClosedYear       int
	Processed        []RolloverResult
	AlreadyProcessed []StaffID
	Failures         []RolloverFailure
}

// =============================================================================
// BATCH OPERATION
// =============================================================================

// RunYearEndRollover closes closingYear and opens closingYear+1 for
// every staff member in the directory.
func (s *Service) RunYearEndRollover(ctx context.Context, closingYear int, actorID StaffID) (*RolloverReport, error) {
	staff, err := s.Directory.AllStaff(ctx)
	if err != nil {
		return nil, err
	}

	report := &RolloverReport{ClosedYear: closingYear}
	for _, staffID := range staff {
		results, err := s.rolloverStaff(ctx, staffID, closingYear)
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			report.AlreadyProcessed = append(report.AlreadyProcessed, staffID)
		case err != nil:
			report.Failures = append(report.Failures, RolloverFailure{StaffID: staffID, Err: err})
		default:
			report.Processed = append(report.Processed, results...)
			s.emit(ctx, AuditEvent{
				Action:  AuditRollover,
				ActorID: actorID, StaffID: staffID,
				Detail: map[string]any{"closed_year": closingYear},
			})
		}
	}
	return report, nil
}

// rolloverStaff closes one staff member's accounts as an independent
// unit of work. Returns ErrAlreadyProcessed when every account was
// already in the new period.
func (s *Service) rolloverStaff(ctx context.Context, staffID StaffID, closingYear int) ([]RolloverResult, error) {
	newYear := closingYear + 1
	closingEnd := EndOfYear(closingYear)

	var results []RolloverResult
	touched := false

	for _, typ := range AllTypes() {
		policy, ok := s.Policies[typ]
		if !ok || !policy.Accrues {
			continue
		}

		lock := s.Ledger.lockFor(staffID, typ)
		lock.Lock()
		result, err := s.rolloverAccount(ctx, staffID, policy, closingEnd, newYear)
		lock.Unlock()

		if errors.Is(err, ErrAlreadyProcessed) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("closing %s: %w", typ, err)
		}
		touched = true
		results = append(results, result)
	}

	if !touched {
		return nil, fmt.Errorf("%w: %s already in period %d", ErrAlreadyProcessed, staffID, newYear)
	}
	return results, nil
}

// rolloverAccount closes one account. Caller holds the account lock.
func (s *Service) rolloverAccount(ctx context.Context, staffID StaffID, policy Policy, closingEnd Date, newYear int) (RolloverResult, error) {
	a, err := s.Ledger.store.GetAccount(ctx, staffID, policy.Type)
	if errors.Is(err, ErrAccountNotFound) {
		// No account yet: open the new period fresh.
		a = Account{StaffID: staffID, Type: policy.Type, PeriodYear: newYear - 1}
	} else if err != nil {
		return RolloverResult{}, err
	}

	// Re-running for an already-closed period is a no-op, never a
	// silent double-grant.
	if a.PeriodYear >= newYear {
		return RolloverResult{}, fmt.Errorf("%w: %s/%s in period %d",
			ErrAlreadyProcessed, staffID, policy.Type, a.PeriodYear)
	}

	available, err := a.AvailableAt(closingEnd)
	if err != nil {
		return RolloverResult{}, err
	}

	carry := decimal.Zero
	if policy.CarriesForward {
		carry = decimal.Min(available, policy.CarryForwardCap)
	}
	expired := available.Sub(carry)

	a.PeriodYear = newYear
	a.Entitlement = policy.AnnualEntitlement
	a.Consumed = decimal.Zero
	a.CarriedForwardIn = carry
	a.CarryExpiresAt = Date{}
	if policy.CarriesForward {
		a.CarryExpiresAt = policy.CarryExpiry(newYear)
	}

	if err := s.Ledger.store.PutAccount(ctx, a); err != nil {
		return RolloverResult{}, err
	}
	return RolloverResult{
		StaffID: staffID, Type: policy.Type,
		CarriedOver: carry, Expired: expired,
	}, nil
}
