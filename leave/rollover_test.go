package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaacquah2/leave-portal-sub009/leave"
	"github.com/kaacquah2/leave-portal-sub009/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type rolloverEnv struct {
	svc      *leave.Service
	balances *store.MemoryBalances
	dir      *store.MemoryDirectory
}

// newRolloverEnv builds a two-person org with 2025 accounts.
func newRolloverEnv(t *testing.T) *rolloverEnv {
	t.Helper()
	dir := store.NewMemoryDirectory()
	finance := leave.Directorate{Name: "finance"}
	dir.AddStaff(leave.StaffPosition{StaffID: "staff-1", Branch: finance, SupervisorID: "sup-1"})
	dir.AddStaff(leave.StaffPosition{StaffID: "staff-2", Branch: finance, SupervisorID: "sup-1"})

	balances := store.NewMemoryBalances()
	audit := store.NewMemoryAudit()
	policies := leave.StandardPolicies()
	ledger := leave.NewLedger(balances, policies, audit)
	svc := leave.NewService(dir, ledger, store.NewMemoryRequests(), audit, leave.NoHolidays, policies)

	clock := func() time.Time {
		return time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC)
	}
	ledger.Now = clock
	svc.Now = clock

	ctx := context.Background()
	require.NoError(t, ledger.OpenAccounts(ctx, "staff-1", 2025))
	require.NoError(t, ledger.OpenAccounts(ctx, "staff-2", 2025))
	return &rolloverEnv{svc: svc, balances: balances, dir: dir}
}

func getAccount(t *testing.T, env *rolloverEnv, staffID leave.StaffID, typ leave.Type) leave.Account {
	t.Helper()
	a, err := env.balances.GetAccount(context.Background(), staffID, typ)
	require.NoError(t, err)
	return a
}

func consume(t *testing.T, env *rolloverEnv, staffID leave.StaffID, typ leave.Type, n int64) {
	t.Helper()
	require.NoError(t, env.svc.Ledger.Debit(context.Background(), staffID, typ,
		decimal.NewFromInt(n), "hr-1", ""))
}

// =============================================================================
// CARRY-FORWARD
// =============================================================================

func TestRollover_CarryCappedAtPolicyLimit(t *testing.T) {
	// GIVEN: 25 of 30 annual days unused at year end (cap 10)
	// WHEN: Rolling 2025 into 2026
	// THEN: 10 carried, 15 expired, entitlement reset to 30

	env := newRolloverEnv(t)
	ctx := context.Background()
	consume(t, env, "staff-1", leave.Annual, 5)
	consume(t, env, "staff-2", leave.Annual, 5)

	report, err := env.svc.RunYearEndRollover(ctx, 2025, "hr-1")
	require.NoError(t, err)
	assert.Empty(t, report.Failures)
	assert.Empty(t, report.AlreadyProcessed)

	a := getAccount(t, env, "staff-1", leave.Annual)
	assert.Equal(t, 2026, a.PeriodYear)
	assert.True(t, a.Entitlement.Equal(decimal.NewFromInt(30)))
	assert.True(t, a.Consumed.IsZero())
	assert.True(t, a.CarriedForwardIn.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "2026-03-31", a.CarryExpiresAt.String())

	// The report carries the same numbers.
	var annual *leave.RolloverResult
	for i := range report.Processed {
		if report.Processed[i].StaffID == "staff-1" && report.Processed[i].Type == leave.Annual {
			annual = &report.Processed[i]
		}
	}
	require.NotNil(t, annual)
	assert.True(t, annual.CarriedOver.Equal(decimal.NewFromInt(10)))
	assert.True(t, annual.Expired.Equal(decimal.NewFromInt(15)))
}

func TestRollover_CarryBelowCap_FullRemainder(t *testing.T) {
	env := newRolloverEnv(t)
	consume(t, env, "staff-1", leave.Annual, 27)
	consume(t, env, "staff-2", leave.Annual, 27)

	_, err := env.svc.RunYearEndRollover(context.Background(), 2025, "hr-1")
	require.NoError(t, err)

	a := getAccount(t, env, "staff-1", leave.Annual)
	assert.True(t, a.CarriedForwardIn.Equal(decimal.NewFromInt(3)))
}

func TestRollover_NonCarryingType_NothingCarried(t *testing.T) {
	// Compassionate leave does not carry forward.
	env := newRolloverEnv(t)

	_, err := env.svc.RunYearEndRollover(context.Background(), 2025, "hr-1")
	require.NoError(t, err)

	a := getAccount(t, env, "staff-1", leave.Compassionate)
	assert.Equal(t, 2026, a.PeriodYear)
	assert.True(t, a.CarriedForwardIn.IsZero())
	assert.True(t, a.Entitlement.Equal(decimal.NewFromInt(7)))
	assert.True(t, a.CarryExpiresAt.IsZero())
}

func TestRollover_ExpiredCarryInClosingYear_NotReCarried(t *testing.T) {
	// Carry from 2024 that expired in March 2025 is dead at the 2025
	// close; only the unused entitlement competes for the new carry.
	env := newRolloverEnv(t)
	ctx := context.Background()

	a := getAccount(t, env, "staff-1", leave.Annual)
	a.Consumed = decimal.NewFromInt(25)
	a.CarriedForwardIn = decimal.NewFromInt(10)
	a.CarryExpiresAt = leave.NewDate(2025, time.March, 31)
	require.NoError(t, env.balances.PutAccount(ctx, a))

	_, err := env.svc.RunYearEndRollover(ctx, 2025, "hr-1")
	require.NoError(t, err)

	got := getAccount(t, env, "staff-1", leave.Annual)
	assert.True(t, got.CarriedForwardIn.Equal(decimal.NewFromInt(5)),
		"30 - 25 consumed, expired carry excluded")
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestRollover_SecondRun_NoDoubleGrant(t *testing.T) {
	env := newRolloverEnv(t)
	ctx := context.Background()
	consume(t, env, "staff-1", leave.Annual, 5)
	consume(t, env, "staff-2", leave.Annual, 5)

	first, err := env.svc.RunYearEndRollover(ctx, 2025, "hr-1")
	require.NoError(t, err)
	require.NotEmpty(t, first.Processed)

	before := getAccount(t, env, "staff-1", leave.Annual)

	second, err := env.svc.RunYearEndRollover(ctx, 2025, "hr-1")
	require.NoError(t, err)
	assert.Empty(t, second.Processed)
	assert.ElementsMatch(t, []leave.StaffID{"staff-1", "staff-2"}, second.AlreadyProcessed)

	after := getAccount(t, env, "staff-1", leave.Annual)
	assert.Equal(t, before.PeriodYear, after.PeriodYear)
	assert.True(t, before.CarriedForwardIn.Equal(after.CarriedForwardIn), "no double carry")
	assert.True(t, before.Entitlement.Equal(after.Entitlement))
}

func TestRollover_NewHire_MidBatch_GetsFreshAccounts(t *testing.T) {
	// A staff member with no accounts at all still gets the new
	// period opened.
	env := newRolloverEnv(t)
	env.dir.AddStaff(leave.StaffPosition{
		StaffID: "staff-3", Branch: leave.Directorate{Name: "finance"}, SupervisorID: "sup-1",
	})

	_, err := env.svc.RunYearEndRollover(context.Background(), 2025, "hr-1")
	require.NoError(t, err)

	a := getAccount(t, env, "staff-3", leave.Annual)
	assert.Equal(t, 2026, a.PeriodYear)
	assert.True(t, a.Entitlement.Equal(decimal.NewFromInt(30)))
	assert.True(t, a.CarriedForwardIn.IsZero())
}

// =============================================================================
// FAILURE ISOLATION
// =============================================================================

func TestRollover_CorruptAccount_FailureIsolated(t *testing.T) {
	// GIVEN: staff-1 has a corrupt annual account
	// WHEN: Running the batch
	// THEN: staff-1 lands in Failures, staff-2 is processed normally

	env := newRolloverEnv(t)
	ctx := context.Background()

	a := getAccount(t, env, "staff-1", leave.Annual)
	a.Consumed = decimal.NewFromInt(99)
	require.NoError(t, env.balances.PutAccount(ctx, a))

	report, err := env.svc.RunYearEndRollover(ctx, 2025, "hr-1")
	require.NoError(t, err, "per-staff failures never abort the batch")

	require.Len(t, report.Failures, 1)
	assert.Equal(t, leave.StaffID("staff-1"), report.Failures[0].StaffID)
	assert.ErrorIs(t, report.Failures[0].Err, leave.ErrCorruptBalance)

	got := getAccount(t, env, "staff-2", leave.Annual)
	assert.Equal(t, 2026, got.PeriodYear)
}
