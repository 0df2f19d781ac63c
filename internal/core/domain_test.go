package core

import (
	"errors"
	"testing"
)

func TestBudgetValidate(t *testing.T) {
	valid := Budget{ID: "b1", Name: "Household", UserID: "u1"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid budget rejected: %v", err)
	}

	noName := Budget{ID: "b1", Name: "  ", UserID: "u1"}
	if err := noName.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}

	noUser := Budget{ID: "b1", Name: "Household"}
	if err := noUser.Validate(); err == nil {
		t.Error("budget without user accepted")
	}
}

func TestCategoryValidate(t *testing.T) {
	valid := Category{ID: "c1", GroupID: "g1", Name: "Groceries"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid category rejected: %v", err)
	}

	orphan := Category{ID: "c1", Name: "Groceries"}
	if err := orphan.Validate(); err == nil {
		t.Error("category without group accepted")
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{ID: "t1", AccountID: "a1", Inflow: Money{Cents: 100}}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid transaction rejected: %v", err)
	}

	negative := Transaction{ID: "t1", AccountID: "a1", Outflow: Money{Cents: -1}}
	if err := negative.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransactionNet(t *testing.T) {
	tx := Transaction{Inflow: Money{Cents: 1000}, Outflow: Money{Cents: 300}}
	if got := tx.Net(); got.Cents != 700 {
		t.Errorf("Net = %d, want 700", got.Cents)
	}
}
