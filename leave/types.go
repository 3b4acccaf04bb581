/*
Package leave implements the leave request lifecycle engine.

PURPOSE:
  This package contains the core of the HR portal: the multi-level
  approval workflow, the per-staff per-type balance ledger with
  carry-forward and expiry, the working-day calendar, and the year-end
  rollover batch. The HTTP layer, authentication, and persistence are
  thin collaborators around this package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Type: enumerated leave type (annual, sick, ...)
  - Role: canonical organizational approver role
  - Branch: tagged variant over directorate vs independent unit
  - StaffPosition: where a staff member sits in the org tree

DESIGN PRINCIPLES:
  1. Precision: day balances use decimal.Decimal, never floats
  2. One normalization boundary: raw role strings are parsed into Role
     exactly once, at the RBAC edge; the core never compares strings
  3. Tagged org variant: directorate vs independent unit is a type
     switch, not a scattered boolean flag

SEE ALSO:
  - policy.go: per-type accrual/carry-forward/validation policy
  - workflow.go: approval ladder construction and progression
  - balance.go: the balance ledger
*/
package leave

import (
	"fmt"
	"strings"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StaffID string
type RequestID string

// =============================================================================
// LEAVE TYPE
// =============================================================================

type Type string

const (
	Annual         Type = "annual"
	Sick           Type = "sick"
	Unpaid         Type = "unpaid"
	SpecialService Type = "special_service"
	Training       Type = "training"
	Study          Type = "study"
	Maternity      Type = "maternity"
	Paternity      Type = "paternity"
	Compassionate  Type = "compassionate"
)

// AllTypes returns every leave type in a stable order.
func AllTypes() []Type {
	return []Type{
		Annual, Sick, Unpaid, SpecialService, Training,
		Study, Maternity, Paternity, Compassionate,
	}
}

// ParseType converts a raw string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown leave type %q", s)
}

// =============================================================================
// ROLES - Canonical approver roles
// =============================================================================

// Role is the canonical organizational role used in approval steps.
// The engine never compares raw role strings; external callers must
// go through ParseRole at their boundary.
type Role string

const (
	RoleStaff                 Role = "staff"
	RoleSupervisor            Role = "supervisor"
	RoleDirector              Role = "director"
	RoleHeadOfIndependentUnit Role = "head_of_independent_unit"
	RoleHROfficer             Role = "hr_officer"
	RoleChiefDirector         Role = "chief_director"
)

// ParseRole normalizes a raw role string (any casing, spaces or
// hyphens) into a canonical Role. This is the single normalization
// boundary: handlers call it once and the core only ever sees Role.
func ParseRole(s string) (Role, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch Role(norm) {
	case RoleStaff, RoleSupervisor, RoleDirector,
		RoleHeadOfIndependentUnit, RoleHROfficer, RoleChiefDirector:
		return Role(norm), nil
	}
	// Common spellings seen in imported role tables.
	switch norm {
	case "hr", "hrofficer", "hr_official":
		return RoleHROfficer, nil
	case "head_of_department", "hod":
		return RoleDirector, nil
	case "employee", "officer":
		return RoleStaff, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// =============================================================================
// ORGANIZATIONAL BRANCH - Tagged variant, not boolean flags
// =============================================================================

// Branch identifies the organizational branch a staff member belongs
// to: a standard directorate or an independent unit. Exactly one of
// the two variants applies to any staff member.
type Branch interface {
	// BranchName returns the branch identifier (directorate or unit name).
	BranchName() string

	// HeadRole returns the role that heads this branch in the
	// approval ladder.
	HeadRole() Role
}

// Directorate is a standard directorate headed by a director.
type Directorate struct {
	Name string
}

func (d Directorate) BranchName() string { return d.Name }
func (d Directorate) HeadRole() Role     { return RoleDirector }

// IndependentUnit is a branch outside the directorate structure with
// its own top-level approver.
type IndependentUnit struct {
	Name string
}

func (u IndependentUnit) BranchName() string { return u.Name }
func (u IndependentUnit) HeadRole() Role     { return RoleHeadOfIndependentUnit }

var (
	_ Branch = Directorate{}
	_ Branch = IndependentUnit{}
)

// =============================================================================
// STAFF POSITION
// =============================================================================

// StaffPosition is the read-only view of where a staff member sits in
// the organization. It is resolved by the external directory; the
// engine never re-derives it.
type StaffPosition struct {
	StaffID StaffID
	Branch  Branch
	Unit    string

	// SupervisorID is the immediate supervisor, or empty when the
	// staff member has none (top of their branch).
	SupervisorID StaffID
}
