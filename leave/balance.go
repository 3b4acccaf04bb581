/*
balance.go - Per (staff, leave type) balance ledger

PURPOSE:
  Tracks entitlement, consumption and carry-forward per staff member
  per leave type, and exposes the debit/credit operations the request
  lifecycle relies on.

AVAILABILITY:
  available = entitlement + carry-forward-in (if not expired as of the
  read date) - consumed

  Expired carry is excluded on READ, not deleted: the record keeps the
  carried amount until rollover physically closes the period. A
  negative available is a CorruptBalance operator error, never clamped.

CONCURRENCY:
  Every mutation runs under a mutex scoped to the (staff, type)
  account, so Debit's re-validate-and-decrement is atomic. Reads and
  checks outside that lock (ReserveCheck at submission) may race by
  design; the final debit is the single check-and-act point.

SEE ALSO:
  - rollover.go: closes periods using the same account lock
  - request.go: calls ReserveCheck at submission, Debit at approval
*/
package leave

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT - One (staff, leave type) balance record
// =============================================================================

type Account struct {
	StaffID StaffID
	Type    Type

	// PeriodYear is the accrual period this record covers.
	PeriodYear int

	// Entitlement granted for this period.
	Entitlement decimal.Decimal

	// Consumed so far this period. Invariant: Consumed never exceeds
	// Entitlement + unexpired CarriedForwardIn.
	Consumed decimal.Decimal

	// CarriedForwardIn rolled in from the previous period.
	CarriedForwardIn decimal.Decimal

	// CarryExpiresAt: the carried portion stops being spendable after
	// this date. Zero means no expiry.
	CarryExpiresAt Date

	// Version for optimistic store updates.
	Version int
}

// UnexpiredCarry returns the carried-forward amount still spendable as
// of the given date.
func (a Account) UnexpiredCarry(asOf Date) decimal.Decimal {
	if !a.CarryExpiresAt.IsZero() && asOf.After(a.CarryExpiresAt) {
		return decimal.Zero
	}
	return a.CarriedForwardIn
}

// AvailableAt computes the spendable balance as of a date. A negative
// result is reported as CorruptBalance.
func (a Account) AvailableAt(asOf Date) (decimal.Decimal, error) {
	ceiling := a.Entitlement.Add(a.UnexpiredCarry(asOf))
	available := ceiling.Sub(a.Consumed)
	if available.IsNegative() {
		return decimal.Zero, &CorruptBalanceError{
			StaffID: a.StaffID, Type: a.Type,
			Consumed: a.Consumed, Ceiling: ceiling,
		}
	}
	return available, nil
}

// =============================================================================
// LEDGER - Balance operations with per-account serialization
// =============================================================================

type Ledger struct {
	store    BalanceStore
	policies map[Type]Policy
	audit    AuditSink // optional

	mu    sync.Mutex
	locks map[accountKey]*sync.Mutex

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

type accountKey struct {
	StaffID StaffID
	Type    Type
}

func NewLedger(store BalanceStore, policies map[Type]Policy, audit AuditSink) *Ledger {
	return &Ledger{
		store:    store,
		policies: policies,
		audit:    audit,
		locks:    make(map[accountKey]*sync.Mutex),
		Now:      time.Now,
	}
}

// lockFor returns the mutex serializing mutations of one account.
func (l *Ledger) lockFor(staffID StaffID, typ Type) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := accountKey{StaffID: staffID, Type: typ}
	if l.locks[k] == nil {
		l.locks[k] = &sync.Mutex{}
	}
	return l.locks[k]
}

func (l *Ledger) policy(typ Type) (Policy, error) {
	p, ok := l.policies[typ]
	if !ok {
		return Policy{}, fmt.Errorf("no policy for leave type %q", typ)
	}
	return p, nil
}

// Unlimited reports whether the type has no tracked balance.
func (l *Ledger) Unlimited(typ Type) bool {
	p, ok := l.policies[typ]
	return ok && !p.Accrues
}

// Available returns the spendable balance as of today. Non-accruing
// types report zero with ok semantics via Unlimited; callers should
// check Unlimited first when presenting balances.
func (l *Ledger) Available(ctx context.Context, staffID StaffID, typ Type) (decimal.Decimal, error) {
	if l.Unlimited(typ) {
		return decimal.Zero, nil
	}
	a, err := l.store.GetAccount(ctx, staffID, typ)
	if err != nil {
		return decimal.Zero, err
	}
	return a.AvailableAt(DateOf(l.Now()))
}

// ReserveCheck validates that the amount could be debited right now.
// Read-only: no hold is taken, so concurrent submissions may race; the
// debit at final approval re-validates atomically.
func (l *Ledger) ReserveCheck(ctx context.Context, staffID StaffID, typ Type, amount decimal.Decimal) error {
	if l.Unlimited(typ) {
		return nil
	}
	available, err := l.Available(ctx, staffID, typ)
	if err != nil {
		return err
	}
	if amount.GreaterThan(available) {
		return &InsufficientBalanceError{
			StaffID: staffID, Type: typ,
			Available: available, Requested: amount,
		}
	}
	return nil
}

// Debit atomically re-validates availability and increments consumed.
// This is the single check-and-act point; separating the check from
// the decrement would reintroduce a double-spend race.
func (l *Ledger) Debit(ctx context.Context, staffID StaffID, typ Type, amount decimal.Decimal, actorID StaffID, ref RequestID) error {
	if l.Unlimited(typ) {
		return nil
	}
	if !amount.IsPositive() {
		return fmt.Errorf("debit amount must be positive, got %s", amount)
	}

	lock := l.lockFor(staffID, typ)
	lock.Lock()
	defer lock.Unlock()

	a, err := l.store.GetAccount(ctx, staffID, typ)
	if err != nil {
		return err
	}
	asOf := DateOf(l.Now())
	available, err := a.AvailableAt(asOf)
	if err != nil {
		return err
	}
	if amount.GreaterThan(available) {
		return &InsufficientBalanceError{
			StaffID: staffID, Type: typ,
			Available: available, Requested: amount,
		}
	}

	a.Consumed = a.Consumed.Add(amount)
	if err := l.store.PutAccount(ctx, a); err != nil {
		return err
	}

	l.emit(ctx, AuditEvent{
		Action: AuditDebited, ActorID: actorID, StaffID: staffID, RequestID: ref,
		Detail: map[string]any{"type": string(typ), "amount": amount.String()},
	})
	return nil
}

// Credit restores a previously debited amount. Never used for
// entitlement grants; those go through rollover.
func (l *Ledger) Credit(ctx context.Context, staffID StaffID, typ Type, amount decimal.Decimal, actorID StaffID, ref RequestID, reason string) error {
	if l.Unlimited(typ) {
		return nil
	}
	if !amount.IsPositive() {
		return fmt.Errorf("credit amount must be positive, got %s", amount)
	}

	lock := l.lockFor(staffID, typ)
	lock.Lock()
	defer lock.Unlock()

	a, err := l.store.GetAccount(ctx, staffID, typ)
	if err != nil {
		return err
	}
	a.Consumed = a.Consumed.Sub(amount)
	if a.Consumed.IsNegative() {
		// Crediting more than was consumed corrupts the record.
		return &CorruptBalanceError{
			StaffID: staffID, Type: typ,
			Consumed: a.Consumed, Ceiling: a.Entitlement,
		}
	}
	if err := l.store.PutAccount(ctx, a); err != nil {
		return err
	}

	l.emit(ctx, AuditEvent{
		Action: AuditCredited, ActorID: actorID, StaffID: staffID, RequestID: ref,
		Detail: map[string]any{"type": string(typ), "amount": amount.String(), "reason": reason},
	})
	return nil
}

// OpenAccounts seeds a staff member's accounts for a period with the
// policy entitlements. Existing accounts are left untouched.
func (l *Ledger) OpenAccounts(ctx context.Context, staffID StaffID, periodYear int) error {
	for _, typ := range AllTypes() {
		p, err := l.policy(typ)
		if err != nil {
			return err
		}
		if !p.Accrues {
			continue
		}
		if _, err := l.store.GetAccount(ctx, staffID, typ); err == nil {
			continue
		} else if !IsNotFound(err) {
			return err
		}
		a := Account{
			StaffID: staffID, Type: typ, PeriodYear: periodYear,
			Entitlement: p.AnnualEntitlement,
			Consumed:    decimal.Zero, CarriedForwardIn: decimal.Zero,
		}
		if err := l.store.PutAccount(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Accounts returns every account of a staff member.
func (l *Ledger) Accounts(ctx context.Context, staffID StaffID) ([]Account, error) {
	return l.store.AccountsFor(ctx, staffID)
}

func (l *Ledger) emit(ctx context.Context, e AuditEvent) {
	if l.audit == nil {
		return
	}
	e.ID = uuid.NewString()
	e.At = l.Now()
	// The sink is append-only and advisory; a sink failure must not
	// roll back a committed balance mutation.
	_ = l.audit.Append(ctx, e)
}
