/*
policy.go - Per-type leave policy table

PURPOSE:
  Defines how each leave type behaves: whether it accrues against a
  tracked balance, whether unused days carry forward at year end (and
  up to what cap), whether the carried portion expires, whether the
  approval ladder includes a mandatory HR validation step, and whether
  days are counted as working days or calendar days.

CUSTOMIZATION:
  StandardPolicies() encodes the default civil-service scheme. Real
  deployments adjust entitlements and caps per grade; the engine only
  reads the Policy fields and never hard-codes a type's behavior.

SEE ALSO:
  - balance.go: reads AnnualEntitlement/CarryForwardCap
  - workflow.go: reads RequiresHRValidation
  - rollover.go: reads CarriesForward/CarryExpiryMonths
*/
package leave

import "github.com/shopspring/decimal"

// =============================================================================
// POLICY - Rules governing one leave type
// =============================================================================

type Policy struct {
	Type Type

	// Accrues: false means the type has no tracked balance (unpaid
	// leave) and always reports unlimited availability.
	Accrues bool

	// CarriesForward: unused balance rolls into the next period at
	// year end, up to CarryForwardCap.
	CarriesForward bool

	// Expires: the carried-forward portion becomes unspendable
	// CarryExpiryMonths into the new period.
	Expires bool

	// RequiresHRValidation: the approval ladder includes an HR officer
	// validation step for this type.
	RequiresHRValidation bool

	// InCalendarDays: day count ignores weekends and holidays
	// (maternity, paternity). Everything else counts working days.
	InCalendarDays bool

	// AnnualEntitlement granted at the start of each accrual period.
	AnnualEntitlement decimal.Decimal

	// CarryForwardCap bounds the carry at rollover.
	CarryForwardCap decimal.Decimal

	// CarryExpiryMonths: months into the new period after which the
	// carried portion expires. Zero with Expires=false means no expiry.
	CarryExpiryMonths int
}

// CarryExpiry returns the date the carried-forward portion of the
// given period year stops being spendable, or the period end when the
// type does not expire.
func (p Policy) CarryExpiry(periodYear int) Date {
	if !p.Expires || p.CarryExpiryMonths <= 0 {
		return EndOfYear(periodYear)
	}
	return StartOfYear(periodYear).AddMonths(p.CarryExpiryMonths).AddDays(-1)
}

// =============================================================================
// STANDARD POLICY TABLE
// =============================================================================

func days(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

// StandardPolicies returns the default policy for every leave type.
// Carry-forward exists only for annual, sick, special service,
// training and study leave; maternity and paternity are granted in
// calendar days.
func StandardPolicies() map[Type]Policy {
	return map[Type]Policy{
		Annual: {
			Type: Annual, Accrues: true, CarriesForward: true, Expires: true,
			RequiresHRValidation: true,
			AnnualEntitlement:    days(30), CarryForwardCap: days(10), CarryExpiryMonths: 3,
		},
		Sick: {
			Type: Sick, Accrues: true, CarriesForward: true, Expires: true,
			AnnualEntitlement: days(15), CarryForwardCap: days(7), CarryExpiryMonths: 3,
		},
		Unpaid: {
			Type: Unpaid, Accrues: false,
		},
		SpecialService: {
			Type: SpecialService, Accrues: true, CarriesForward: true, Expires: true,
			RequiresHRValidation: true,
			AnnualEntitlement:    days(10), CarryForwardCap: days(5), CarryExpiryMonths: 3,
		},
		Training: {
			Type: Training, Accrues: true, CarriesForward: true, Expires: true,
			RequiresHRValidation: true,
			AnnualEntitlement:    days(10), CarryForwardCap: days(5), CarryExpiryMonths: 3,
		},
		Study: {
			Type: Study, Accrues: true, CarriesForward: true, Expires: true,
			RequiresHRValidation: true,
			AnnualEntitlement:    days(12), CarryForwardCap: days(6), CarryExpiryMonths: 3,
		},
		Maternity: {
			Type: Maternity, Accrues: true, InCalendarDays: true,
			RequiresHRValidation: true,
			AnnualEntitlement:    days(90),
		},
		Paternity: {
			Type: Paternity, Accrues: true, InCalendarDays: true,
			RequiresHRValidation: true,
			AnnualEntitlement:    days(10),
		},
		Compassionate: {
			Type: Compassionate, Accrues: true,
			AnnualEntitlement: days(7),
		},
	}
}
