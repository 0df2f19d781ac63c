package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1fach/einfach-budget/internal/core"
	"github.com/1fach/einfach-budget/internal/services"
	"github.com/1fach/einfach-budget/internal/storage"
)

const testUser = "user-1"

type testEnv struct {
	server    *Server
	repo      *storage.SQLiteRepository
	budgetID  string
	accountID string
	catID     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}

	budget, err := repo.CreateBudget(ctx, core.Budget{Name: "Household", UserID: testUser})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	account, err := repo.CreateAccount(ctx, core.Account{BudgetID: budget.ID, Name: "Checking"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	group, err := repo.CreateCategoryGroup(ctx, core.CategoryGroup{BudgetID: budget.ID, Name: "Essentials", SortOrder: 1})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	category, err := repo.CreateCategory(ctx, core.Category{GroupID: group.ID, Name: "Groceries", SortOrder: 1})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	svc := services.NewBudgetService(repo, nil)
	srv := NewServer(":0", svc)
	t.Cleanup(func() {
		srv.cacheManager.Stop()
		repo.Close()
	})

	return &testEnv{
		server:    srv,
		repo:      repo,
		budgetID:  budget.ID,
		accountID: account.ID,
		catID:     category.ID,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.Server.Handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) doAs(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	return e.do(t, method, path, body, map[string]string{"X-User-ID": testUser})
}

func TestMissingUserHeaderRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/budgets/"+env.budgetID+"/months/2024/3", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestInitMonthCreatesAssignments(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAs(t, http.MethodPost, "/api/budgets/"+env.budgetID+"/months/2024/3/init", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Created []core.CategoryMonth `json:"created"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(resp.Created))
	}
	if resp.Created[0].CategoryID != env.catID {
		t.Errorf("created category = %s, want %s", resp.Created[0].CategoryID, env.catID)
	}

	// Second call finds nothing left to create.
	w = env.doAs(t, http.MethodPost, "/api/budgets/"+env.budgetID+"/months/2024/3/init", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Created) != 0 {
		t.Errorf("second init created = %d, want 0", len(resp.Created))
	}
}

func TestAssignReturnsTriad(t *testing.T) {
	env := newTestEnv(t)

	env.doAs(t, http.MethodPost, "/api/budgets/"+env.budgetID+"/months/2024/3/init", "")

	w := env.doAs(t, http.MethodPut, "/api/categories/"+env.catID+"/months/2024/3/assigned", `{"assigned": "300.00"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var cm core.CategoryMonth
	if err := json.Unmarshal(w.Body.Bytes(), &cm); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if cm.Assigned.Cents != 30000 {
		t.Errorf("assigned = %d cents, want 30000", cm.Assigned.Cents)
	}
	if cm.Available.Cents != 30000 {
		t.Errorf("available = %d cents, want 30000", cm.Available.Cents)
	}
}

func TestAssignWithoutInitReturns404(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAs(t, http.MethodPut, "/api/categories/"+env.catID+"/months/2024/3/assigned", `{"assigned": "300.00"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAssignMalformedBodyReturns400(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAs(t, http.MethodPut, "/api/categories/"+env.catID+"/months/2024/3/assigned", `{"assigned": `)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestInvalidMonthReturns422(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/budgets/" + env.budgetID + "/months/2024/13",
		"/api/budgets/" + env.budgetID + "/months/2024/zero",
	} {
		w := env.doAs(t, http.MethodGet, path, "")
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("GET %s: status = %d, want %d", path, w.Code, http.StatusUnprocessableEntity)
		}
	}
}

func TestForeignBudgetHidden(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/budgets/"+env.budgetID+"/months/2024/3", "",
		map[string]string{"X-User-ID": "someone-else"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMonthlyBudgetReportsReadyToAssign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := core.NewPeriod(2024, 3)

	env.doAs(t, http.MethodPost, "/api/budgets/"+env.budgetID+"/months/2024/3/init", "")

	assignmentID, err := env.repo.AssignmentID(ctx, env.catID, p)
	if err != nil {
		t.Fatalf("assignment id: %v", err)
	}
	_, err = env.repo.CreateTransaction(ctx, core.Transaction{
		AccountID:    env.accountID,
		Description:  "paycheck",
		Inflow:       core.Money{Cents: 100000},
		AssignmentID: assignmentID,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	w := env.doAs(t, http.MethodGet, "/api/budgets/"+env.budgetID+"/months/2024/3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var mb core.MonthlyBudget
	if err := json.Unmarshal(w.Body.Bytes(), &mb); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if mb.ReadyToAssign.Cents != 100000 {
		t.Errorf("readyToAssign = %d cents, want 100000", mb.ReadyToAssign.Cents)
	}
}

func TestAssignRefreshesReadyToAssign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := core.NewPeriod(2024, 3)
	monthPath := "/api/budgets/" + env.budgetID + "/months/2024/3"

	env.doAs(t, http.MethodPost, monthPath+"/init", "")

	assignmentID, err := env.repo.AssignmentID(ctx, env.catID, p)
	if err != nil {
		t.Fatalf("assignment id: %v", err)
	}
	_, err = env.repo.CreateTransaction(ctx, core.Transaction{
		AccountID:    env.accountID,
		Description:  "paycheck",
		Inflow:       core.Money{Cents: 100000},
		AssignmentID: assignmentID,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	var mb core.MonthlyBudget
	w := env.doAs(t, http.MethodGet, monthPath, "")
	if err := json.Unmarshal(w.Body.Bytes(), &mb); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if mb.ReadyToAssign.Cents != 100000 {
		t.Fatalf("readyToAssign before assign = %d cents, want 100000", mb.ReadyToAssign.Cents)
	}

	// The first GET cached the figure; the assign must push it out.
	env.doAs(t, http.MethodPut, "/api/categories/"+env.catID+"/months/2024/3/assigned", `{"assigned": "300.00"}`)

	w = env.doAs(t, http.MethodGet, monthPath, "")
	if err := json.Unmarshal(w.Body.Bytes(), &mb); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if mb.ReadyToAssign.Cents != 70000 {
		t.Errorf("readyToAssign after assign = %d cents, want 70000", mb.ReadyToAssign.Cents)
	}
}

func TestGroupRollupEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.doAs(t, http.MethodPost, "/api/budgets/"+env.budgetID+"/months/2024/3/init", "")
	env.doAs(t, http.MethodPut, "/api/categories/"+env.catID+"/months/2024/3/assigned", `{"assigned": "50.00"}`)

	w := env.doAs(t, http.MethodGet, "/api/budgets/"+env.budgetID+"/months/2024/3/groups", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var groups []core.GroupMonth
	if err := json.Unmarshal(w.Body.Bytes(), &groups); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if groups[0].Assigned.Cents != 5000 {
		t.Errorf("group assigned = %d cents, want 5000", groups[0].Assigned.Cents)
	}
}

func TestCategoryMonthCachedBetweenReads(t *testing.T) {
	env := newTestEnv(t)

	env.doAs(t, http.MethodPost, "/api/budgets/"+env.budgetID+"/months/2024/3/init", "")

	path := "/api/categories/" + env.catID + "/months/2024/3"
	if w := env.doAs(t, http.MethodGet, path, ""); w.Code != http.StatusOK {
		t.Fatalf("first read status = %d", w.Code)
	}
	if env.server.categoryCache.Size() != 1 {
		t.Errorf("cache size = %d after read, want 1", env.server.categoryCache.Size())
	}

	// Assignment invalidates the cached triad.
	env.doAs(t, http.MethodPut, path+"/assigned", `{"assigned": "10.00"}`)
	if env.server.categoryCache.Size() != 0 {
		t.Errorf("cache size = %d after assign, want 0", env.server.categoryCache.Size())
	}

	w := env.doAs(t, http.MethodGet, path, "")
	var cm core.CategoryMonth
	if err := json.Unmarshal(w.Body.Bytes(), &cm); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if cm.Assigned.Cents != 1000 {
		t.Errorf("assigned = %d cents after invalidation, want 1000", cm.Assigned.Cents)
	}
}
