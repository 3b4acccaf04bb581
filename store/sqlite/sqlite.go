/*
Package sqlite provides a SQLite-backed implementation of the engine's
storage interfaces.

PURPOSE:
  Implements leave.BalanceStore, leave.RequestStore, leave.Directory
  and leave.AuditSink over a single SQLite database, plus holiday
  persistence for the calendar service.

KEY TABLES:
  employees        staff positions and held roles (the directory)
  leave_balances   one row per (staff, leave type) balance account
  leave_requests   request aggregate
  approval_steps   ordered steps, one row per level
  audit_logs       append-only transition log
  holidays         public holiday dates per year

ATOMICITY:
  Balance and request updates carry an optimistic version column;
  UPDATE ... WHERE version = ? with zero rows affected maps to
  leave.ErrConcurrentModification. Request + step writes share one
  database transaction so step advancement commits atomically.

APPEND-ONLY:
  audit_logs has no UPDATE or DELETE path. Ever.

WAL MODE:
  The database is opened with WAL so readers never block the single
  writer.

SEE ALSO:
  - leave/store.go: interface contracts
  - leave/store/memory.go: in-memory equivalent for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/kaacquah2/leave-portal-sub009/leave"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ leave.BalanceStore = (*Store)(nil)
	_ leave.RequestStore = (*Store)(nil)
	_ leave.Directory    = (*Store)(nil)
	_ leave.AuditSink    = (*Store)(nil)
)

// New opens (and migrates) a SQLite database. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		staff_id    TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		branch_kind TEXT NOT NULL,            -- 'directorate' | 'independent_unit'
		branch_name TEXT NOT NULL,
		unit        TEXT NOT NULL DEFAULT '',
		supervisor_id TEXT NOT NULL DEFAULT '',
		role        TEXT NOT NULL DEFAULT 'staff'
	);
	CREATE INDEX IF NOT EXISTS idx_employees_branch_role ON employees(branch_name, role);
	CREATE INDEX IF NOT EXISTS idx_employees_role ON employees(role);

	CREATE TABLE IF NOT EXISTS leave_balances (
		staff_id          TEXT NOT NULL,
		leave_type        TEXT NOT NULL,
		period_year       INTEGER NOT NULL,
		entitlement       TEXT NOT NULL,
		consumed          TEXT NOT NULL,
		carried_forward_in TEXT NOT NULL,
		carry_expires_at  TEXT NOT NULL DEFAULT '',
		version           INTEGER NOT NULL DEFAULT 0,
		updated_at        TEXT NOT NULL,
		PRIMARY KEY (staff_id, leave_type)
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id            TEXT PRIMARY KEY,
		staff_id      TEXT NOT NULL,
		leave_type    TEXT NOT NULL,
		start_date    TEXT NOT NULL,
		end_date      TEXT NOT NULL,
		days          INTEGER NOT NULL,
		reason        TEXT NOT NULL DEFAULT '',
		officer_taking_over TEXT NOT NULL DEFAULT '',
		handover_notes TEXT NOT NULL DEFAULT '',
		declaration_accepted INTEGER NOT NULL DEFAULT 0,
		hr_validated  INTEGER NOT NULL DEFAULT 0,
		status        TEXT NOT NULL,
		status_reason TEXT NOT NULL DEFAULT '',
		submitted_at  TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		version       INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_requests_staff_status ON leave_requests(staff_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON leave_requests(status);

	CREATE TABLE IF NOT EXISTS approval_steps (
		request_id TEXT NOT NULL,
		level      INTEGER NOT NULL,
		role       TEXT NOT NULL,
		status     TEXT NOT NULL,
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT NOT NULL DEFAULT '',
		comment    TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (request_id, level),
		FOREIGN KEY (request_id) REFERENCES leave_requests(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id         TEXT PRIMARY KEY,
		action     TEXT NOT NULL,
		actor_id   TEXT NOT NULL,
		actor_role TEXT NOT NULL DEFAULT '',
		staff_id   TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		at         TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_audit_staff ON audit_logs(staff_id);

	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, staffID leave.StaffID, typ leave.Type) (leave.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT staff_id, leave_type, period_year, entitlement, consumed,
		       carried_forward_in, carry_expires_at, version
		FROM leave_balances WHERE staff_id = ? AND leave_type = ?`,
		string(staffID), string(typ))
	return scanAccount(row)
}

func (s *Store) PutAccount(ctx context.Context, a leave.Account) error {
	expires := ""
	if !a.CarryExpiresAt.IsZero() {
		expires = a.CarryExpiresAt.String()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	if a.Version == 0 {
		// First write may be an insert or an update of a version-0 row.
		res, err := s.db.ExecContext(ctx, `
			UPDATE leave_balances
			SET period_year = ?, entitlement = ?, consumed = ?,
			    carried_forward_in = ?, carry_expires_at = ?,
			    version = version + 1, updated_at = ?
			WHERE staff_id = ? AND leave_type = ? AND version = 0`,
			a.PeriodYear, a.Entitlement.String(), a.Consumed.String(),
			a.CarriedForwardIn.String(), expires, now,
			string(a.StaffID), string(a.Type))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO leave_balances
				(staff_id, leave_type, period_year, entitlement, consumed,
				 carried_forward_in, carry_expires_at, version, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			string(a.StaffID), string(a.Type), a.PeriodYear,
			a.Entitlement.String(), a.Consumed.String(),
			a.CarriedForwardIn.String(), expires, now)
		if isUniqueViolation(err) {
			return leave.ErrConcurrentModification
		}
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_balances
		SET period_year = ?, entitlement = ?, consumed = ?,
		    carried_forward_in = ?, carry_expires_at = ?,
		    version = version + 1, updated_at = ?
		WHERE staff_id = ? AND leave_type = ? AND version = ?`,
		a.PeriodYear, a.Entitlement.String(), a.Consumed.String(),
		a.CarriedForwardIn.String(), expires, now,
		string(a.StaffID), string(a.Type), a.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrConcurrentModification
	}
	return nil
}

func (s *Store) AccountsFor(ctx context.Context, staffID leave.StaffID) ([]leave.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT staff_id, leave_type, period_year, entitlement, consumed,
		       carried_forward_in, carry_expires_at, version
		FROM leave_balances WHERE staff_id = ? ORDER BY leave_type`,
		string(staffID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (leave.Account, error) {
	var (
		a                                  leave.Account
		staffID, typ, ent, cons, cf, exp string
	)
	err := row.Scan(&staffID, &typ, &a.PeriodYear, &ent, &cons, &cf, &exp, &a.Version)
	if err == sql.ErrNoRows {
		return leave.Account{}, leave.ErrAccountNotFound
	}
	if err != nil {
		return leave.Account{}, err
	}
	a.StaffID = leave.StaffID(staffID)
	a.Type = leave.Type(typ)
	if a.Entitlement, err = decimal.NewFromString(ent); err != nil {
		return leave.Account{}, fmt.Errorf("bad entitlement %q: %w", ent, err)
	}
	if a.Consumed, err = decimal.NewFromString(cons); err != nil {
		return leave.Account{}, fmt.Errorf("bad consumed %q: %w", cons, err)
	}
	if a.CarriedForwardIn, err = decimal.NewFromString(cf); err != nil {
		return leave.Account{}, fmt.Errorf("bad carry %q: %w", cf, err)
	}
	if exp != "" {
		if a.CarryExpiresAt, err = leave.ParseDate(exp); err != nil {
			return leave.Account{}, err
		}
	}
	return a, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r *leave.Request) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leave_requests
			(id, staff_id, leave_type, start_date, end_date, days, reason,
			 officer_taking_over, handover_notes, declaration_accepted,
			 hr_validated, status, status_reason, submitted_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		string(r.ID), string(r.StaffID), string(r.Type),
		r.StartDate.String(), r.EndDate.String(), r.Days, r.Reason,
		r.OfficerTakingOver, r.HandoverNotes,
		boolInt(r.DeclarationAccepted), boolInt(r.HRValidated),
		string(r.Status), r.StatusReason,
		r.SubmittedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	if err := insertSteps(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, staff_id, leave_type, start_date, end_date, days, reason,
		       officer_taking_over, handover_notes, declaration_accepted,
		       hr_validated, status, status_reason, submitted_at, updated_at, version
		FROM leave_requests WHERE id = ?`, string(id))
	r, err := scanRequest(row)
	if err != nil {
		return nil, err
	}
	if r.Steps, err = s.loadSteps(ctx, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) UpdateRequest(ctx context.Context, r *leave.Request) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE leave_requests
		SET hr_validated = ?, status = ?, status_reason = ?, updated_at = ?,
		    version = version + 1
		WHERE id = ? AND version = ?`,
		boolInt(r.HRValidated), string(r.Status), r.StatusReason,
		r.UpdatedAt.UTC().Format(time.RFC3339),
		string(r.ID), r.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrConcurrentModification
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM approval_steps WHERE request_id = ?`, string(r.ID)); err != nil {
		return err
	}
	if err := insertSteps(ctx, tx, r); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.Version++
	return nil
}

func (s *Store) ActiveRequests(ctx context.Context, staffID leave.StaffID) ([]*leave.Request, error) {
	return s.queryRequests(ctx, `
		SELECT id, staff_id, leave_type, start_date, end_date, days, reason,
		       officer_taking_over, handover_notes, declaration_accepted,
		       hr_validated, status, status_reason, submitted_at, updated_at, version
		FROM leave_requests
		WHERE staff_id = ? AND status IN ('pending', 'approved')`,
		string(staffID))
}

func (s *Store) PendingForRole(ctx context.Context, role leave.Role) ([]*leave.Request, error) {
	// Lowest pending step per request, filtered to the given role.
	return s.queryRequests(ctx, `
		SELECT r.id, r.staff_id, r.leave_type, r.start_date, r.end_date, r.days,
		       r.reason, r.officer_taking_over, r.handover_notes,
		       r.declaration_accepted, r.hr_validated, r.status, r.status_reason,
		       r.submitted_at, r.updated_at, r.version
		FROM leave_requests r
		JOIN approval_steps st ON st.request_id = r.id
		WHERE r.status = 'pending'
		  AND st.status = 'pending'
		  AND st.role = ?
		  AND st.level = (
			SELECT MIN(level) FROM approval_steps
			WHERE request_id = r.id AND status = 'pending'
		  )`,
		string(role))
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]*leave.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*leave.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, r := range out {
		if r.Steps, err = s.loadSteps(ctx, r.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func insertSteps(ctx context.Context, tx *sql.Tx, r *leave.Request) error {
	for _, st := range r.Steps {
		decidedAt := ""
		if !st.DecidedAt.IsZero() {
			decidedAt = st.DecidedAt.UTC().Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO approval_steps
				(request_id, level, role, status, decided_by, decided_at, comment)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(r.ID), st.Level, string(st.Role), string(st.Status),
			string(st.DecidedBy), decidedAt, st.Comment); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadSteps(ctx context.Context, id leave.RequestID) ([]leave.ApprovalStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT level, role, status, decided_by, decided_at, comment
		FROM approval_steps WHERE request_id = ? ORDER BY level`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []leave.ApprovalStep
	for rows.Next() {
		var (
			st                  leave.ApprovalStep
			role, status        string
			decidedBy, decided  string
		)
		if err := rows.Scan(&st.Level, &role, &status, &decidedBy, &decided, &st.Comment); err != nil {
			return nil, err
		}
		st.Role = leave.Role(role)
		st.Status = leave.StepStatus(status)
		st.DecidedBy = leave.StaffID(decidedBy)
		if decided != "" {
			if st.DecidedAt, err = time.Parse(time.RFC3339, decided); err != nil {
				return nil, err
			}
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func scanRequest(row rowScanner) (*leave.Request, error) {
	var (
		r                              leave.Request
		id, staffID, typ, start, end   string
		status                         string
		declaration, validated         int
		submitted, updated             string
	)
	err := row.Scan(&id, &staffID, &typ, &start, &end, &r.Days, &r.Reason,
		&r.OfficerTakingOver, &r.HandoverNotes, &declaration, &validated,
		&status, &r.StatusReason, &submitted, &updated, &r.Version)
	if err == sql.ErrNoRows {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	r.ID = leave.RequestID(id)
	r.StaffID = leave.StaffID(staffID)
	r.Type = leave.Type(typ)
	r.Status = leave.Status(status)
	r.DeclarationAccepted = declaration != 0
	r.HRValidated = validated != 0
	if r.StartDate, err = leave.ParseDate(start); err != nil {
		return nil, err
	}
	if r.EndDate, err = leave.ParseDate(end); err != nil {
		return nil, err
	}
	if r.SubmittedAt, err = time.Parse(time.RFC3339, submitted); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return nil, err
	}
	return &r, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

// UpsertStaff stores a staff member's position and held role.
func (s *Store) UpsertStaff(ctx context.Context, pos leave.StaffPosition, name string, role leave.Role) error {
	kind := "directorate"
	if _, ok := pos.Branch.(leave.IndependentUnit); ok {
		kind = "independent_unit"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (staff_id, name, branch_kind, branch_name, unit, supervisor_id, role)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(staff_id) DO UPDATE SET
			name = excluded.name, branch_kind = excluded.branch_kind,
			branch_name = excluded.branch_name, unit = excluded.unit,
			supervisor_id = excluded.supervisor_id, role = excluded.role`,
		string(pos.StaffID), name, kind, pos.Branch.BranchName(),
		pos.Unit, string(pos.SupervisorID), string(role))
	return err
}

func (s *Store) Position(ctx context.Context, staffID leave.StaffID) (leave.StaffPosition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT staff_id, branch_kind, branch_name, unit, supervisor_id
		FROM employees WHERE staff_id = ?`, string(staffID))

	var id, kind, branch, unit, supervisor string
	err := row.Scan(&id, &kind, &branch, &unit, &supervisor)
	if err == sql.ErrNoRows {
		return leave.StaffPosition{}, leave.ErrStaffNotFound
	}
	if err != nil {
		return leave.StaffPosition{}, err
	}

	pos := leave.StaffPosition{
		StaffID:      leave.StaffID(id),
		Unit:         unit,
		SupervisorID: leave.StaffID(supervisor),
	}
	if kind == "independent_unit" {
		pos.Branch = leave.IndependentUnit{Name: branch}
	} else {
		pos.Branch = leave.Directorate{Name: branch}
	}
	return pos, nil
}

func (s *Store) RoleHolder(ctx context.Context, branch leave.Branch, role leave.Role) (leave.StaffID, error) {
	var (
		row *sql.Row
	)
	switch role {
	case leave.RoleHROfficer, leave.RoleChiefDirector:
		row = s.db.QueryRowContext(ctx,
			`SELECT staff_id FROM employees WHERE role = ? LIMIT 1`, string(role))
	default:
		row = s.db.QueryRowContext(ctx,
			`SELECT staff_id FROM employees WHERE role = ? AND branch_name = ? LIMIT 1`,
			string(role), branch.BranchName())
	}

	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return leave.StaffID(id), nil
}

func (s *Store) AllStaff(ctx context.Context) ([]leave.StaffID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT staff_id FROM employees ORDER BY staff_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.StaffID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, leave.StaffID(id))
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT SINK - Append-only
// =============================================================================

func (s *Store) Append(ctx context.Context, e leave.AuditEvent) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		detail = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, actor_id, actor_role, staff_id, request_id, at, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), string(e.ActorID), string(e.ActorRole),
		string(e.StaffID), string(e.RequestID),
		e.At.UTC().Format(time.RFC3339), string(detail))
	return err
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) AddHoliday(ctx context.Context, d leave.Date, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (date, name) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET name = excluded.name`,
		d.String(), name)
	return err
}

// Holidays returns the holiday set for a year (year 0 = all years).
func (s *Store) Holidays(ctx context.Context, year int) (leave.HolidaySet, error) {
	query := `SELECT date FROM holidays`
	var args []any
	if year != 0 {
		query += ` WHERE date >= ? AND date <= ?`
		args = append(args, leave.StartOfYear(year).String(), leave.EndOfYear(year).String())
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := leave.NewHolidaySet()
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, err
		}
		d, err := leave.ParseDate(ds)
		if err != nil {
			return nil, err
		}
		set.Add(d)
	}
	return set, rows.Err()
}

// IsHoliday satisfies leave.HolidayCalendar directly against the
// holidays table. Lookup errors count as "not a holiday".
func (s *Store) IsHoliday(d leave.Date) bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM holidays WHERE date = ?`, d.String()).Scan(&one)
	return err == nil
}

// =============================================================================
// HELPERS
// =============================================================================

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "constraint failed")
}
