package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaacquah2/leave-portal-sub009/api"
	"github.com/kaacquah2/leave-portal-sub009/leave"
	"github.com/kaacquah2/leave-portal-sub009/leave/store"
)

const testSecret = "test-secret"

// =============================================================================
// TEST SETUP
// =============================================================================

// memoryHolidays adapts a HolidaySet to the HolidayStore interface.
type memoryHolidays struct {
	set leave.HolidaySet
}

func (m *memoryHolidays) AddHoliday(_ context.Context, d leave.Date, _ string) error {
	m.set.Add(d)
	return nil
}

func (m *memoryHolidays) Holidays(_ context.Context, year int) (leave.HolidaySet, error) {
	if year == 0 {
		return m.set, nil
	}
	out := leave.NewHolidaySet()
	for _, d := range m.set.Dates() {
		if d.Year() == year {
			out.Add(d)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := store.NewMemoryDirectory()
	finance := leave.Directorate{Name: "finance"}
	dir.AddStaff(leave.StaffPosition{StaffID: "staff-1", Branch: finance, SupervisorID: "sup-1"})
	dir.AddStaff(leave.StaffPosition{StaffID: "sup-1", Branch: finance, SupervisorID: "dir-1"})
	dir.AddStaff(leave.StaffPosition{StaffID: "dir-1", Branch: finance})
	dir.AddStaff(leave.StaffPosition{StaffID: "hr-1", Branch: finance})
	dir.AddStaff(leave.StaffPosition{StaffID: "cd-1", Branch: finance})
	dir.SetBranchHead(finance, "dir-1")
	dir.SetGlobalRole(leave.RoleHROfficer, "hr-1")
	dir.SetGlobalRole(leave.RoleChiefDirector, "cd-1")

	policies := leave.StandardPolicies()
	ledger := leave.NewLedger(store.NewMemoryBalances(), policies, nil)
	svc := leave.NewService(dir, ledger, store.NewMemoryRequests(), nil, leave.NoHolidays, policies)

	clock := func() time.Time {
		return time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	}
	ledger.Now = clock
	svc.Now = clock

	ctx := context.Background()
	for _, id := range []leave.StaffID{"staff-1", "sup-1", "dir-1", "hr-1", "cd-1"} {
		require.NoError(t, ledger.OpenAccounts(ctx, id, 2025))
	}

	h := api.NewHandler(svc, &memoryHolidays{set: leave.NewHolidaySet()})
	ts := httptest.NewServer(api.NewRouter(h, testSecret))
	t.Cleanup(ts.Close)
	return ts
}

func tokenFor(t *testing.T, staffID leave.StaffID, role leave.Role) string {
	t.Helper()
	tok, err := api.GenerateToken(testSecret, api.Principal{StaffID: staffID, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func submitRequest(t *testing.T, ts *httptest.Server) api.RequestDTO {
	t.Helper()
	resp, body := doJSON(t, ts, http.MethodPost, "/api/requests", tokenFor(t, "staff-1", leave.RoleStaff),
		api.SubmitLeaveRequest{
			LeaveType:           "annual",
			StartDate:           "2025-06-02",
			EndDate:             "2025-06-06",
			Reason:              "annual leave",
			DeclarationAccepted: true,
		})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)

	var dto api.RequestDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	return dto
}

// =============================================================================
// AUTH
// =============================================================================

func TestAPI_NoToken_Unauthorized(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts, http.MethodGet, "/api/requests/pending", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_GarbageToken_Unauthorized(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts, http.MethodGet, "/api/requests/pending", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Healthz_Unauthenticated(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// REQUEST LIFECYCLE OVER HTTP
// =============================================================================

func TestAPI_SubmitRequest(t *testing.T) {
	ts := newTestServer(t)
	dto := submitRequest(t, ts)

	assert.Equal(t, "staff-1", dto.StaffID)
	assert.Equal(t, 5, dto.Days)
	assert.Equal(t, "pending", dto.Status)
	assert.Len(t, dto.Steps, 4)
}

func TestAPI_SubmitRequest_UnknownType(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts, http.MethodPost, "/api/requests", tokenFor(t, "staff-1", leave.RoleStaff),
		api.SubmitLeaveRequest{
			LeaveType: "gardening", StartDate: "2025-06-02", EndDate: "2025-06-06",
			DeclarationAccepted: true,
		})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SubmitRequest_MissingDeclaration(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts, http.MethodPost, "/api/requests", tokenFor(t, "staff-1", leave.RoleStaff),
		api.SubmitLeaveRequest{
			LeaveType: "annual", StartDate: "2025-06-02", EndDate: "2025-06-06",
		})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_PendingQueue_ScopedToRole(t *testing.T) {
	ts := newTestServer(t)
	submitRequest(t, ts)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/requests/pending", tokenFor(t, "sup-1", leave.RoleSupervisor), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var queue []api.RequestDTO
	require.NoError(t, json.Unmarshal(body, &queue))
	assert.Len(t, queue, 1)

	resp, body = doJSON(t, ts, http.MethodGet, "/api/requests/pending", tokenFor(t, "dir-1", leave.RoleDirector), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &queue))
	assert.Empty(t, queue, "not the director's turn yet")
}

func TestAPI_DecisionFlow(t *testing.T) {
	ts := newTestServer(t)
	dto := submitRequest(t, ts)

	approve := api.DecisionRequest{Decision: "approve", Comment: "ok"}
	path := "/api/requests/" + dto.ID + "/decision"

	// Director acting first is out of order.
	resp, _ := doJSON(t, ts, http.MethodPost, path, tokenFor(t, "dir-1", leave.RoleDirector), approve)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, path, tokenFor(t, "sup-1", leave.RoleSupervisor), approve)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	var updated api.RequestDTO
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "approved", updated.Steps[0].Status)
	assert.Equal(t, "pending", updated.Status)
}

func TestAPI_Cancel_ByStranger_Forbidden(t *testing.T) {
	ts := newTestServer(t)
	dto := submitRequest(t, ts)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/requests/"+dto.ID+"/cancel",
		tokenFor(t, "sup-1", leave.RoleSupervisor), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_GetRequest_VisibilityRules(t *testing.T) {
	ts := newTestServer(t)
	dto := submitRequest(t, ts)

	// Owner sees it.
	resp, _ := doJSON(t, ts, http.MethodGet, "/api/requests/"+dto.ID, tokenFor(t, "staff-1", leave.RoleStaff), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Another plain staff member does not.
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/requests/"+dto.ID, tokenFor(t, "other-1", leave.RoleStaff), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Unknown request is 404 for an approver role.
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/requests/nope", tokenFor(t, "hr-1", leave.RoleHROfficer), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// BALANCES
// =============================================================================

func TestAPI_Balances_SelfAndHR(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/staff/staff-1/balances", tokenFor(t, "staff-1", leave.RoleStaff), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balances []api.BalanceDTO
	require.NoError(t, json.Unmarshal(body, &balances))
	require.NotEmpty(t, balances)

	for _, b := range balances {
		if b.LeaveType == "annual" {
			assert.Equal(t, "30", b.Available)
		}
	}

	// Staff cannot read someone else's balances; HR can.
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/staff/sup-1/balances", tokenFor(t, "staff-1", leave.RoleStaff), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/staff/sup-1/balances", tokenFor(t, "hr-1", leave.RoleHROfficer), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// HOLIDAYS AND ADMIN
// =============================================================================

func TestAPI_Holidays_HRManaged(t *testing.T) {
	ts := newTestServer(t)

	create := api.CreateHolidayRequest{Date: "2025-12-25", Name: "Christmas Day"}

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/holidays", tokenFor(t, "staff-1", leave.RoleStaff), create)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/holidays", tokenFor(t, "hr-1", leave.RoleHROfficer), create)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/holidays?year=2025", tokenFor(t, "staff-1", leave.RoleStaff), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var holidays []api.HolidayDTO
	require.NoError(t, json.Unmarshal(body, &holidays))
	assert.Len(t, holidays, 1)
}

func TestAPI_Rollover_RequiresPrivilegedRole(t *testing.T) {
	ts := newTestServer(t)
	body := api.RolloverRequest{ClosingYear: 2025}

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/admin/rollover", tokenFor(t, "staff-1", leave.RoleStaff), body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw := doJSON(t, ts, http.MethodPost, "/api/admin/rollover", tokenFor(t, "hr-1", leave.RoleHROfficer), body)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	var report api.RolloverReportDTO
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, 2025, report.ClosedYear)
	assert.NotEmpty(t, report.Processed)
}

func TestAPI_Credit_HROnly(t *testing.T) {
	ts := newTestServer(t)
	body := api.CreditRequest{StaffID: "staff-1", LeaveType: "annual", Amount: "2", Reason: "adjustment"}

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/admin/credit", tokenFor(t, "sup-1", leave.RoleSupervisor), body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Crediting an untouched account would push consumed negative.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/admin/credit", tokenFor(t, "hr-1", leave.RoleHROfficer), body)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
