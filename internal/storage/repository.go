// Package storage implements the ledger store on SQLite.
//
// The engine above it is stateless; every durable fact about budgets,
// categories, assignments and transactions lives here. All aggregate reads
// coalesce NULL sums to zero before any arithmetic touches them.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/1fach/einfach-budget/internal/core"
	"github.com/1fach/einfach-budget/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateBudget inserts a budget and returns it with its generated ID.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	b.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budget (id, name, user_id) VALUES (?, ?, ?)`,
		b.ID, b.Name, b.UserID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget created", log.FieldBudgetID, b.ID, "name", b.Name)
	return b, nil
}

// GetBudget returns the budget only if it belongs to the given user.
func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, budgetID string) (core.Budget, error) {
	var b core.Budget
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, user_id FROM budget WHERE id = ? AND user_id = ?`,
		budgetID, userID).Scan(&b.ID, &b.Name, &b.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", budgetID, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	a.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account (id, budget_id, name) VALUES (?, ?, ?)`,
		a.ID, a.BudgetID, a.Name)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) CreateCategoryGroup(ctx context.Context, g core.CategoryGroup) (core.CategoryGroup, error) {
	if err := g.Validate(); err != nil {
		return core.CategoryGroup{}, err
	}

	g.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budget_category_group (id, budget_id, name, sort_order) VALUES (?, ?, ?, ?)`,
		g.ID, g.BudgetID, g.Name, g.SortOrder)
	if err != nil {
		return core.CategoryGroup{}, fmt.Errorf("create category group: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	c.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budget_category (id, budget_category_group_id, name, sort_order) VALUES (?, ?, ?, ?)`,
		c.ID, c.GroupID, c.Name, c.SortOrder)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// GetCategory returns the category only if it belongs to a budget owned by
// the given user.
func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, categoryID string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `
		SELECT bc.id, bc.budget_category_group_id, bg.budget_id, bc.name, bc.sort_order
		FROM budget_category bc
		JOIN budget_category_group bg ON bg.id = bc.budget_category_group_id
		JOIN budget b ON b.id = bg.budget_id
		WHERE bc.id = ? AND b.user_id = ?`,
		categoryID, userID).Scan(&c.ID, &c.GroupID, &c.BudgetID, &c.Name, &c.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", categoryID, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// CreateTransaction inserts a ledger row. An empty AssignmentID stores NULL,
// marking the transaction as uncategorized.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var assignmentID sql.NullString
	if t.AssignmentID != "" {
		assignmentID = sql.NullString{String: t.AssignmentID, Valid: true}
	}

	t.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO "transaction" (id, account_id, description, inflow_cents, outflow_cents, monthly_budget_per_category_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Description, t.Inflow.Cents, t.Outflow.Cents, assignmentID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

// AssignmentID resolves the assignment row for a (category, period) pair.
func (r *SQLiteRepository) AssignmentID(ctx context.Context, categoryID string, p core.Period) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM monthly_budget_per_category
		WHERE budget_category_id = ? AND month = ? AND year = ?`,
		categoryID, p.Month, p.Year).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("assignment for category %s in %s: %w", categoryID, p, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get assignment id: %w", err)
	}
	return id, nil
}

// CategoriesWithoutAssignment lists the budget's categories that have no
// assignment row for the period yet, in display order.
func (r *SQLiteRepository) CategoriesWithoutAssignment(ctx context.Context, budgetID string, p core.Period) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bc.id, bc.budget_category_group_id, bc.name, bc.sort_order
		FROM budget_category bc
		JOIN budget_category_group bg ON bg.id = bc.budget_category_group_id
		WHERE bg.budget_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM monthly_budget_per_category m
			WHERE m.budget_category_id = bc.id AND m.month = ? AND m.year = ?
		  )
		ORDER BY bg.sort_order, bg.id, bc.sort_order, bc.id`,
		budgetID, p.Month, p.Year)
	if err != nil {
		return nil, fmt.Errorf("categories without assignment: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.GroupID, &c.Name, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

// CreateAssignment inserts a zero assignment row for the (category, period)
// pair. A concurrent caller may have inserted the row already; the uniqueness
// constraint turns that into a skipped insert, reported as created = false.
func (r *SQLiteRepository) CreateAssignment(ctx context.Context, categoryID string, p core.Period) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO monthly_budget_per_category (id, budget_category_id, month, year, assigned_cents)
		VALUES (?, ?, ?, ?, 0)`,
		uuid.NewString(), categoryID, p.Month, p.Year)
	if err != nil {
		return false, fmt.Errorf("create assignment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create assignment rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateAssigned sets the assigned amount on an existing assignment row.
// It never creates the row; a missing row surfaces as ErrNotFound.
func (r *SQLiteRepository) UpdateAssigned(ctx context.Context, categoryID string, p core.Period, amount core.Money) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE monthly_budget_per_category SET assigned_cents = ?
		WHERE budget_category_id = ? AND month = ? AND year = ?`,
		amount.Cents, categoryID, p.Month, p.Year)
	if err != nil {
		return fmt.Errorf("update assigned: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assigned rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("assignment for category %s in %s: %w", categoryID, p, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Assignment updated",
		log.FieldOperation, log.OpAssign,
		log.FieldCategoryID, categoryID,
		log.FieldPeriod, p.String(),
		log.FieldAssigned, amount.Cents)
	return nil
}
