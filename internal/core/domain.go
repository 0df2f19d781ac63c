package core

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyName     = errors.New("empty name")
)

type (
	// Budget is the top-level container a user budgets within.
	Budget struct {
		ID     string
		Name   string
		UserID string
	}

	// Account holds transactions and belongs to exactly one budget.
	Account struct {
		ID       string
		BudgetID string
		Name     string
	}

	// CategoryGroup orders related categories inside a budget.
	CategoryGroup struct {
		ID        string
		BudgetID  string
		Name      string
		SortOrder int
	}

	// Category is a single envelope inside a group. BudgetID is resolved
	// through the group when the category is read back.
	Category struct {
		ID        string
		GroupID   string
		BudgetID  string
		Name      string
		SortOrder int
	}

	// Assignment is the amount allocated to one category for one period.
	// At most one row exists per (category, period).
	Assignment struct {
		ID         string
		CategoryID string
		Period     Period
		Assigned   Money
	}

	// Transaction is a ledger row on an account. When categorized it
	// references the assignment of a (category, period); uncategorized
	// rows carry no reference and never count toward category activity.
	Transaction struct {
		ID           string
		AccountID    string
		Description  string
		Inflow       Money
		Outflow      Money
		AssignmentID string // empty for uncategorized transactions
	}
)

// CategoryMonth is the derived {assigned, activity, available} view of one
// category for one period. It is recomputed on read, never persisted.
type CategoryMonth struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	SortOrder  int    `json:"sortOrder"`
	Period     Period `json:"period"`
	Assigned   Money  `json:"assigned"`
	Activity   Money  `json:"activity"`
	Available  Money  `json:"available"`
}

// GroupMonth is the per-field sum of the member categories' CategoryMonth
// values for the same period.
type GroupMonth struct {
	GroupID   string `json:"groupId"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	Period    Period `json:"period"`
	Assigned  Money  `json:"assigned"`
	Activity  Money  `json:"activity"`
	Available Money  `json:"available"`
}

// MonthlyBudget is the budget-wide view for one period.
type MonthlyBudget struct {
	BudgetID      string `json:"budgetId"`
	Name          string `json:"name"`
	Period        Period `json:"period"`
	ReadyToAssign Money  `json:"readyToAssign"`
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(b.UserID) == "" {
		return errors.New("budget requires an owning user")
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if a.BudgetID == "" {
		return errors.New("account requires a budget")
	}
	return nil
}

func (g CategoryGroup) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.BudgetID == "" {
		return errors.New("category group requires a budget")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.GroupID == "" {
		return errors.New("category requires a group")
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.AccountID == "" {
		return errors.New("transaction requires an account")
	}
	if t.Inflow.IsNegative() || t.Outflow.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Net is the transaction's signed effect, inflow minus outflow.
func (t Transaction) Net() Money {
	return t.Inflow.Sub(t.Outflow)
}
