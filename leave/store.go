/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines the interfaces between the engine and its external
  collaborators: balance account persistence, request persistence, the
  staff directory (org position + role-holder resolution), and the
  append-only audit sink.

ATOMICITY CONTRACT:
  PutAccount and UpdateRequest are optimistic: they compare the record
  Version and fail with ErrConcurrentModification on mismatch. The
  engine serializes writers per (staff, type) and per request, so a
  version miss indicates a bug or an out-of-band write.

IMPLEMENTATIONS:
  - leave/store: in-memory, for tests and development
  - store/sqlite: production SQLite

SEE ALSO:
  - balance.go: Ledger built on BalanceStore
  - request.go: Service built on RequestStore + Directory + AuditSink
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// BALANCE STORE
// =============================================================================

// BalanceStore persists balance accounts.
type BalanceStore interface {
	// GetAccount returns the account for (staff, type).
	// Returns ErrAccountNotFound when none exists.
	GetAccount(ctx context.Context, staffID StaffID, typ Type) (Account, error)

	// PutAccount inserts or updates an account. For updates the stored
	// Version must match Account.Version; on success the stored version
	// is incremented. Mismatch fails with ErrConcurrentModification.
	PutAccount(ctx context.Context, a Account) error

	// AccountsFor returns all accounts of a staff member.
	AccountsFor(ctx context.Context, staffID StaffID) ([]Account, error)
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestStore persists leave requests with their ordered steps.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *Request) error

	// GetRequest returns ErrRequestNotFound when the id is unknown.
	GetRequest(ctx context.Context, id RequestID) (*Request, error)

	// UpdateRequest writes the request and its steps atomically, with
	// an optimistic version check (ErrConcurrentModification).
	UpdateRequest(ctx context.Context, r *Request) error

	// ActiveRequests returns the staff member's pending and approved
	// requests; used for overlap detection.
	ActiveRequests(ctx context.Context, staffID StaffID) ([]*Request, error)

	// PendingForRole returns pending requests whose lowest pending
	// step requires the given role. Used by approver work queues.
	PendingForRole(ctx context.Context, role Role) ([]*Request, error)
}

// =============================================================================
// STAFF DIRECTORY - External RBAC/org collaborator
// =============================================================================

// Directory resolves organizational positions and role holders. The
// engine trusts this resolution and never re-derives it.
type Directory interface {
	// Position returns ErrStaffNotFound for unknown staff.
	Position(ctx context.Context, staffID StaffID) (StaffPosition, error)

	// RoleHolder returns the staff member holding the given role for
	// the given branch. HR officer and chief director are
	// organization-wide; implementations ignore the branch for them.
	// Returns empty StaffID when the role is unfilled.
	RoleHolder(ctx context.Context, branch Branch, role Role) (StaffID, error)

	// AllStaff lists every staff identifier, for the rollover batch.
	AllStaff(ctx context.Context) ([]StaffID, error)
}

// =============================================================================
// AUDIT SINK - Append-only, never read back
// =============================================================================

type AuditAction string

const (
	AuditSubmitted AuditAction = "request_submitted"
	AuditApproved  AuditAction = "step_approved"
	AuditRejected  AuditAction = "step_rejected"
	AuditCancelled AuditAction = "request_cancelled"
	AuditDebited   AuditAction = "balance_debited"
	AuditCredited  AuditAction = "balance_credited"
	AuditRollover  AuditAction = "rollover_processed"
)

// AuditEvent records one immutable state transition.
type AuditEvent struct {
	ID        string
	Action    AuditAction
	ActorID   StaffID
	ActorRole Role
	StaffID   StaffID
	RequestID RequestID
	At        time.Time
	Detail    map[string]any
}

// AuditSink receives events. Append-only; the engine never reads back.
type AuditSink interface {
	Append(ctx context.Context, e AuditEvent) error
}
