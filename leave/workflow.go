/*
workflow.go - Approval ladder construction and step progression

PURPOSE:
  Builds the ordered approval step sequence for a requester's org
  position and leave type, and answers the two questions every approver
  action raises: is it this role's turn (OutOfOrder), and is this
  person entitled to act in that role for THIS requester
  (NotAuthorized).

LADDER:
  1. Supervisor
  2. Branch head: director, or head of independent unit
  3. HR officer validation (only for types requiring it)
  4. Chief director (final approving authority)

  Levels are dense from 1. The HR step is omitted entirely (not
  skipped) for types without validation, so levels stay dense. A step
  whose resolved approver is the requester is marked skipped at build
  time: skipped steps occupy a level, never block progression, and are
  never self-approved.

AUTHORIZATION:
  Role names alone never authorize: two directors in different
  directorates hold the same title. The supervisor step is checked
  against the requester's supervisor link; branch-head steps against
  the role holder for the requester's branch; HR and chief director
  are organization-wide holders.

SEE ALSO:
  - request.go: drives act/cancel through these helpers
  - types.go: Branch variant dispatch
*/
package leave

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// APPROVAL STEP
// =============================================================================

type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
	StepSkipped  StepStatus = "skipped"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ApprovalStep is one ordered gate in a request's approval ladder.
// Levels are strictly increasing and unique within a request; a step
// leaves pending only once every lower level is approved or skipped.
type ApprovalStep struct {
	Level     int
	Role      Role
	Status    StepStatus
	DecidedBy StaffID
	DecidedAt time.Time
	Comment   string
}

// =============================================================================
// STEP CONSTRUCTION
// =============================================================================

// BuildSteps constructs the approval ladder for a requester. Steps
// whose resolved approver is the requester (self-approval) come back
// skipped; an unfilled supervisor link also skips the supervisor step.
func BuildSteps(ctx context.Context, dir Directory, pos StaffPosition, policy Policy) ([]ApprovalStep, error) {
	roles := []Role{RoleSupervisor, pos.Branch.HeadRole()}
	if policy.RequiresHRValidation {
		roles = append(roles, RoleHROfficer)
	}
	roles = append(roles, RoleChiefDirector)

	steps := make([]ApprovalStep, 0, len(roles))
	for i, role := range roles {
		holder, err := approverFor(ctx, dir, pos, role)
		if err != nil {
			return nil, fmt.Errorf("resolving %s approver: %w", role, err)
		}
		status := StepPending
		if holder == "" || holder == pos.StaffID {
			status = StepSkipped
		}
		steps = append(steps, ApprovalStep{Level: i + 1, Role: role, Status: status})
	}
	return steps, nil
}

// approverFor resolves who acts in a role for this requester's position.
func approverFor(ctx context.Context, dir Directory, pos StaffPosition, role Role) (StaffID, error) {
	if role == RoleSupervisor {
		return pos.SupervisorID, nil
	}
	return dir.RoleHolder(ctx, pos.Branch, role)
}

// =============================================================================
// STEP PROGRESSION HELPERS
// =============================================================================

// lowestPendingStep returns the index of the lowest-level pending
// step, or -1 when none remain.
func lowestPendingStep(steps []ApprovalStep) int {
	for i, s := range steps {
		if s.Status == StepPending {
			return i
		}
	}
	return -1
}

// authorizeStep verifies the acting staff member is entitled to act in
// the step's role for this requester's position.
func authorizeStep(ctx context.Context, dir Directory, pos StaffPosition, step ApprovalStep, actorID StaffID) error {
	holder, err := approverFor(ctx, dir, pos, step.Role)
	if err != nil {
		return err
	}
	if holder == "" || holder != actorID {
		return fmt.Errorf("%w: %s does not act as %s for %s",
			ErrNotAuthorized, actorID, step.Role, pos.StaffID)
	}
	return nil
}
