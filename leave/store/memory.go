// Package store provides in-memory implementations of the engine's
// persistence and collaborator interfaces, for tests and development.
package store

import (
	"context"
	"sync"

	"github.com/kaacquah2/leave-portal-sub009/leave"
)

var (
	_ leave.BalanceStore = (*MemoryBalances)(nil)
	_ leave.RequestStore = (*MemoryRequests)(nil)
	_ leave.Directory    = (*MemoryDirectory)(nil)
	_ leave.AuditSink    = (*MemoryAudit)(nil)
)

// =============================================================================
// MEMORY BALANCE STORE
// =============================================================================

type MemoryBalances struct {
	mu       sync.RWMutex
	accounts map[balanceKey]leave.Account
}

type balanceKey struct {
	StaffID leave.StaffID
	Type    leave.Type
}

func NewMemoryBalances() *MemoryBalances {
	return &MemoryBalances{accounts: make(map[balanceKey]leave.Account)}
}

func (m *MemoryBalances) GetAccount(_ context.Context, staffID leave.StaffID, typ leave.Type) (leave.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[balanceKey{StaffID: staffID, Type: typ}]
	if !ok {
		return leave.Account{}, leave.ErrAccountNotFound
	}
	return a, nil
}

func (m *MemoryBalances) PutAccount(_ context.Context, a leave.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := balanceKey{StaffID: a.StaffID, Type: a.Type}
	if existing, ok := m.accounts[k]; ok && existing.Version != a.Version {
		return leave.ErrConcurrentModification
	}
	a.Version++
	m.accounts[k] = a
	return nil
}

func (m *MemoryBalances) AccountsFor(_ context.Context, staffID leave.StaffID) ([]leave.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.Account
	for k, a := range m.accounts {
		if k.StaffID == staffID {
			out = append(out, a)
		}
	}
	return out, nil
}

// =============================================================================
// MEMORY REQUEST STORE
// =============================================================================

type MemoryRequests struct {
	mu       sync.RWMutex
	requests map[leave.RequestID]*leave.Request
}

func NewMemoryRequests() *MemoryRequests {
	return &MemoryRequests{requests: make(map[leave.RequestID]*leave.Request)}
}

func cloneRequest(r *leave.Request) *leave.Request {
	c := *r
	c.Steps = append([]leave.ApprovalStep(nil), r.Steps...)
	return &c
}

func (m *MemoryRequests) CreateRequest(_ context.Context, r *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (m *MemoryRequests) GetRequest(_ context.Context, id leave.RequestID) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, leave.ErrRequestNotFound
	}
	return cloneRequest(r), nil
}

func (m *MemoryRequests) UpdateRequest(_ context.Context, r *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.requests[r.ID]
	if !ok {
		return leave.ErrRequestNotFound
	}
	if existing.Version != r.Version {
		return leave.ErrConcurrentModification
	}
	r.Version++
	m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (m *MemoryRequests) ActiveRequests(_ context.Context, staffID leave.StaffID) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.Request
	for _, r := range m.requests {
		if r.StaffID != staffID {
			continue
		}
		if r.Status == leave.StatusPending || r.Status == leave.StatusApproved {
			out = append(out, cloneRequest(r))
		}
	}
	return out, nil
}

func (m *MemoryRequests) PendingForRole(_ context.Context, role leave.Role) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.Request
	for _, r := range m.requests {
		if r.Status != leave.StatusPending {
			continue
		}
		for _, st := range r.Steps {
			if st.Status == leave.StepPending {
				if st.Role == role {
					out = append(out, cloneRequest(r))
				}
				break
			}
		}
	}
	return out, nil
}

// =============================================================================
// MEMORY DIRECTORY
// =============================================================================

// MemoryDirectory holds staff positions and role holders. HR officer
// and chief director are organization-wide; branch heads are keyed by
// branch name.
type MemoryDirectory struct {
	mu          sync.RWMutex
	positions   map[leave.StaffID]leave.StaffPosition
	branchRoles map[branchRoleKey]leave.StaffID
	globalRoles map[leave.Role]leave.StaffID
}

type branchRoleKey struct {
	Branch string
	Role   leave.Role
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		positions:   make(map[leave.StaffID]leave.StaffPosition),
		branchRoles: make(map[branchRoleKey]leave.StaffID),
		globalRoles: make(map[leave.Role]leave.StaffID),
	}
}

func (m *MemoryDirectory) AddStaff(pos leave.StaffPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.StaffID] = pos
}

// SetBranchHead records who heads a branch (director or head of
// independent unit).
func (m *MemoryDirectory) SetBranchHead(branch leave.Branch, staffID leave.StaffID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branchRoles[branchRoleKey{Branch: branch.BranchName(), Role: branch.HeadRole()}] = staffID
}

// SetGlobalRole records an organization-wide role holder (HR officer,
// chief director).
func (m *MemoryDirectory) SetGlobalRole(role leave.Role, staffID leave.StaffID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globalRoles[role] = staffID
}

func (m *MemoryDirectory) Position(_ context.Context, staffID leave.StaffID) (leave.StaffPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[staffID]
	if !ok {
		return leave.StaffPosition{}, leave.ErrStaffNotFound
	}
	return pos, nil
}

func (m *MemoryDirectory) RoleHolder(_ context.Context, branch leave.Branch, role leave.Role) (leave.StaffID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch role {
	case leave.RoleHROfficer, leave.RoleChiefDirector:
		return m.globalRoles[role], nil
	default:
		return m.branchRoles[branchRoleKey{Branch: branch.BranchName(), Role: role}], nil
	}
}

func (m *MemoryDirectory) AllStaff(_ context.Context) ([]leave.StaffID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.StaffID, 0, len(m.positions))
	for id := range m.positions {
		out = append(out, id)
	}
	return out, nil
}

// =============================================================================
// MEMORY AUDIT SINK
// =============================================================================

// MemoryAudit records events for inspection in tests. Append-only.
type MemoryAudit struct {
	mu     sync.Mutex
	events []leave.AuditEvent
}

func NewMemoryAudit() *MemoryAudit { return &MemoryAudit{} }

func (m *MemoryAudit) Append(_ context.Context, e leave.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of everything appended so far.
func (m *MemoryAudit) Events() []leave.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]leave.AuditEvent(nil), m.events...)
}
