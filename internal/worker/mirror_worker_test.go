package worker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/1fach/einfach-budget/internal/amqp"
	"github.com/1fach/einfach-budget/internal/core"
	"github.com/1fach/einfach-budget/internal/sheets/memory"
	"github.com/1fach/einfach-budget/internal/storage"
)

func setup(t *testing.T) (*MirrorWorker, *storage.SQLiteRepository, *memory.Store, core.Budget, core.Category) {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	budget, err := repo.CreateBudget(ctx, core.Budget{Name: "Mirrored", UserID: "u1"})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	group, err := repo.CreateCategoryGroup(ctx, core.CategoryGroup{BudgetID: budget.ID, Name: "Fixed", SortOrder: 1})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	category, err := repo.CreateCategory(ctx, core.Category{GroupID: group.ID, Name: "Rent", SortOrder: 1})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	store := memory.New()
	return NewMirrorWorker(repo, store), repo, store, budget, category
}

func TestHandleAssignmentChanged(t *testing.T) {
	w, repo, store, _, category := setup(t)
	ctx := context.Background()
	p := core.NewPeriod(2024, 5)

	if _, err := repo.CreateAssignment(ctx, category.ID, p); err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if err := repo.UpdateAssigned(ctx, category.ID, p, core.Money{Cents: 5000}); err != nil {
		t.Fatalf("update assigned: %v", err)
	}

	err := w.HandleAssignmentChanged(ctx, &amqp.AssignmentChangedMessage{
		CategoryID:    category.ID,
		Month:         p.Month,
		Year:          p.Year,
		AssignedCents: 5000,
	})
	if err != nil {
		t.Fatalf("handle assignment changed: %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 mirrored row, got %d", len(rows))
	}
	if rows[0].CategoryID != category.ID || rows[0].Assigned.Cents != 5000 {
		t.Errorf("mirrored row = %+v", rows[0])
	}
}

func TestHandleAssignmentChangedUnknownCategory(t *testing.T) {
	w, _, store, _, _ := setup(t)

	err := w.HandleAssignmentChanged(context.Background(), &amqp.AssignmentChangedMessage{
		CategoryID: "missing",
		Month:      1,
		Year:       2024,
	})
	if err == nil {
		t.Error("expected error for unknown category")
	}
	if len(store.Rows()) != 0 {
		t.Error("row mirrored despite failure")
	}
}

func TestHandleMonthInitialized(t *testing.T) {
	w, repo, store, budget, category := setup(t)
	ctx := context.Background()
	p := core.NewPeriod(2024, 5)

	if _, err := repo.CreateAssignment(ctx, category.ID, p); err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	err := w.HandleMonthInitialized(ctx, &amqp.MonthInitializedMessage{
		BudgetID: budget.ID,
		Month:    p.Month,
		Year:     p.Year,
		Created:  1,
	})
	if err != nil {
		t.Fatalf("handle month initialized: %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 mirrored row, got %d", len(rows))
	}
	if !rows[0].Assigned.IsZero() {
		t.Errorf("fresh assignment mirrored with non-zero amount: %+v", rows[0])
	}
}
