// Package services implements the monthly envelope budget engine.
//
// The engine is a stateless computation layer over the ledger store: every
// operation is a self-contained read-or-write unit scoped to the requesting
// user. Derived values (triads, ready-to-assign) are recomputed on every
// read and never persisted.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/1fach/einfach-budget/internal/amqp"
	"github.com/1fach/einfach-budget/internal/core"
	"github.com/1fach/einfach-budget/internal/log"
	"github.com/1fach/einfach-budget/internal/storage"
)

// BudgetService exposes the monthly budget operations. The AMQP client is
// optional; without one, change events are skipped.
type BudgetService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewBudgetService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *BudgetService {
	return &BudgetService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// InitializeMonth creates a zero assignment row for every category of the
// budget that lacks one for the period, and returns the created categories
// with their zero triads. Idempotent: a second call returns an empty list.
// A row that fails to insert (for instance a duplicate-key race with a
// concurrent initializer) is left out of the result rather than failing the
// whole batch.
func (s *BudgetService) InitializeMonth(ctx context.Context, userID, budgetID string, p core.Period) ([]core.CategoryMonth, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.storage.GetBudget(ctx, userID, budgetID); err != nil {
		return nil, err
	}

	missing, err := s.storage.CategoriesWithoutAssignment(ctx, budgetID, p)
	if err != nil {
		return nil, fmt.Errorf("find categories without assignment: %w", err)
	}

	created := make([]core.CategoryMonth, 0, len(missing))
	for _, c := range missing {
		ok, err := s.storage.CreateAssignment(ctx, c.ID, p)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create assignment row",
				log.FieldCategoryID, c.ID,
				log.FieldPeriod, p.String(),
				log.FieldError, err)
			continue
		}
		if !ok {
			// Raced with a concurrent initializer; the row exists now.
			continue
		}
		created = append(created, core.CategoryMonth{
			CategoryID: c.ID,
			Name:       c.Name,
			SortOrder:  c.SortOrder,
			Period:     p,
		})
	}

	if len(created) > 0 {
		s.publishMonthInitialized(ctx, budgetID, p, len(created))
	}

	slog.InfoContext(ctx, "Month initialized",
		log.FieldOperation, log.OpInit,
		log.FieldBudgetID, budgetID,
		log.FieldPeriod, p.String(),
		log.FieldCreated, len(created))
	return created, nil
}

// MonthlyBudget returns the budget header with its ready-to-assign figure
// for the period.
func (s *BudgetService) MonthlyBudget(ctx context.Context, userID, budgetID string, p core.Period) (core.MonthlyBudget, error) {
	if err := p.Validate(); err != nil {
		return core.MonthlyBudget{}, err
	}

	budget, err := s.storage.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return core.MonthlyBudget{}, err
	}

	rta, err := s.readyToAssign(ctx, budgetID, p)
	if err != nil {
		return core.MonthlyBudget{}, err
	}

	return core.MonthlyBudget{
		BudgetID:      budget.ID,
		Name:          budget.Name,
		Period:        p,
		ReadyToAssign: rta,
	}, nil
}

// readyToAssign computes the unallocated income for the period:
//
//	rta = income through p − prior overspending − assigned through p
//
// A non-negative result is further reduced by future assignments, clamped at
// zero. A negative result is returned unchanged: the budget is already
// over-assigned relative to income, and subtracting future assignments on
// top would penalize it twice.
func (s *BudgetService) readyToAssign(ctx context.Context, budgetID string, p core.Period) (core.Money, error) {
	var (
		income      core.Money
		overspent   core.Money
		till, later core.Money
	)

	// The three aggregates are independent reads; fetch them concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, err = s.storage.IncomeThrough(gctx, budgetID, p)
		return err
	})
	g.Go(func() error {
		var err error
		overspent, err = s.storage.PriorOverspending(gctx, budgetID, p)
		return err
	})
	g.Go(func() error {
		var err error
		till, later, err = s.storage.AssignedTotals(gctx, budgetID, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Money{}, fmt.Errorf("ready to assign aggregates: %w", err)
	}

	rta := income.Sub(overspent).Sub(till)
	if rta.IsNegative() {
		return rta, nil
	}

	rta = rta.Sub(later)
	if rta.IsNegative() {
		return core.Money{}, nil
	}
	return rta, nil
}

// Category returns the category when it belongs to one of the user's
// budgets, including the budget it resolves to through its group.
func (s *BudgetService) Category(ctx context.Context, userID, categoryID string) (core.Category, error) {
	return s.storage.GetCategory(ctx, userID, categoryID)
}

// CategoryMonth returns the {assigned, activity, available} triad of one
// category for the period.
func (s *BudgetService) CategoryMonth(ctx context.Context, userID, categoryID string, p core.Period) (core.CategoryMonth, error) {
	if err := p.Validate(); err != nil {
		return core.CategoryMonth{}, err
	}
	if _, err := s.storage.GetCategory(ctx, userID, categoryID); err != nil {
		return core.CategoryMonth{}, err
	}
	return s.storage.CategoryMonth(ctx, categoryID, p)
}

// CategoryMonths lists the triads of every category in the budget for the
// period, in group and category display order.
func (s *BudgetService) CategoryMonths(ctx context.Context, userID, budgetID string, p core.Period) ([]core.CategoryMonth, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.storage.GetBudget(ctx, userID, budgetID); err != nil {
		return nil, err
	}
	return s.storage.CategoryMonths(ctx, budgetID, p)
}

// GroupMonths rolls category triads up to group totals for the period.
func (s *BudgetService) GroupMonths(ctx context.Context, userID, budgetID string, p core.Period) ([]core.GroupMonth, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.storage.GetBudget(ctx, userID, budgetID); err != nil {
		return nil, err
	}
	return s.storage.GroupMonths(ctx, budgetID, p)
}

// Assign updates the assigned amount of one category for one period and
// returns the recomputed triad. The assignment row must already exist
// (InitializeMonth creates it); a missing row surfaces as ErrNotFound.
// Ready-to-assign is not recomputed here; callers request it separately.
func (s *BudgetService) Assign(ctx context.Context, userID, categoryID string, p core.Period, amount core.Money) (core.CategoryMonth, error) {
	if err := p.Validate(); err != nil {
		return core.CategoryMonth{}, err
	}
	if _, err := s.storage.GetCategory(ctx, userID, categoryID); err != nil {
		return core.CategoryMonth{}, err
	}

	if err := s.storage.UpdateAssigned(ctx, categoryID, p, amount); err != nil {
		return core.CategoryMonth{}, err
	}

	// Write-then-read without a wrapping transaction: a concurrent writer
	// can slip in between, which is tolerable for a single-user tool.
	cm, err := s.storage.CategoryMonth(ctx, categoryID, p)
	if err != nil {
		return core.CategoryMonth{}, err
	}

	s.publishAssignmentChanged(ctx, categoryID, p, amount)
	return cm, nil
}

func (s *BudgetService) publishAssignmentChanged(ctx context.Context, categoryID string, p core.Period, amount core.Money) {
	if s.amqpClient == nil {
		return
	}
	err := s.amqpClient.PublishAssignmentChanged(ctx, amqp.AssignmentChangedMessage{
		CategoryID:    categoryID,
		Month:         p.Month,
		Year:          p.Year,
		AssignedCents: amount.Cents,
	})
	if err != nil {
		// The local write succeeded; the mirror catches up later.
		slog.ErrorContext(ctx, "Failed to publish assignment changed event",
			log.FieldCategoryID, categoryID,
			log.FieldPeriod, p.String(),
			log.FieldError, err)
	}
}

func (s *BudgetService) publishMonthInitialized(ctx context.Context, budgetID string, p core.Period, created int) {
	if s.amqpClient == nil {
		return
	}
	err := s.amqpClient.PublishMonthInitialized(ctx, amqp.MonthInitializedMessage{
		BudgetID: budgetID,
		Month:    p.Month,
		Year:     p.Year,
		Created:  created,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish month initialized event",
			log.FieldBudgetID, budgetID,
			log.FieldPeriod, p.String(),
			log.FieldError, err)
	}
}

// Close releases the service's resources.
func (s *BudgetService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close budget service: %v", errs)
	}
	return nil
}
