package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/1fach/einfach-budget/internal/core"
)

// Per-assignment transaction sums, folded once so joins against the unique
// (category, period) assignment row never fan out.
const activityByAssignment = `
	SELECT monthly_budget_per_category_id AS assignment_id,
	       SUM(inflow_cents) AS inflow_cents,
	       SUM(outflow_cents) AS outflow_cents
	FROM "transaction"
	WHERE monthly_budget_per_category_id IS NOT NULL
	GROUP BY monthly_budget_per_category_id`

// CategoryMonth computes the {assigned, activity, available} triad for one
// category and period. A missing assignment row reads as assigned 0; a period
// with no transactions reads as activity 0.
func (r *SQLiteRepository) CategoryMonth(ctx context.Context, categoryID string, p core.Period) (core.CategoryMonth, error) {
	cm := core.CategoryMonth{Period: p}
	var assigned, inflow, outflow int64

	err := r.db.QueryRowContext(ctx, `
		SELECT bc.id, bc.name, bc.sort_order,
		       IFNULL(m.assigned_cents, 0),
		       IFNULL(act.inflow_cents, 0),
		       IFNULL(act.outflow_cents, 0)
		FROM budget_category bc
		LEFT JOIN monthly_budget_per_category m
		       ON m.budget_category_id = bc.id AND m.month = ? AND m.year = ?
		LEFT JOIN (`+activityByAssignment+`) act ON act.assignment_id = m.id
		WHERE bc.id = ?`,
		p.Month, p.Year, categoryID).
		Scan(&cm.CategoryID, &cm.Name, &cm.SortOrder, &assigned, &inflow, &outflow)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CategoryMonth{}, fmt.Errorf("category %s: %w", categoryID, core.ErrNotFound)
	}
	if err != nil {
		return core.CategoryMonth{}, fmt.Errorf("category month: %w", err)
	}

	cm.Assigned = core.Money{Cents: assigned}
	cm.Activity = core.Money{Cents: inflow - outflow}
	cm.Available = cm.Activity.Add(cm.Assigned)
	return cm, nil
}

// CategoryMonths lists the triads of every category in the budget for the
// period, ordered by group then category sort order.
func (r *SQLiteRepository) CategoryMonths(ctx context.Context, budgetID string, p core.Period) ([]core.CategoryMonth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bc.id, bc.name, bc.sort_order,
		       IFNULL(m.assigned_cents, 0),
		       IFNULL(act.inflow_cents, 0),
		       IFNULL(act.outflow_cents, 0)
		FROM budget_category bc
		JOIN budget_category_group bg ON bg.id = bc.budget_category_group_id
		LEFT JOIN monthly_budget_per_category m
		       ON m.budget_category_id = bc.id AND m.month = ? AND m.year = ?
		LEFT JOIN (`+activityByAssignment+`) act ON act.assignment_id = m.id
		WHERE bg.budget_id = ?
		ORDER BY bg.sort_order, bg.id, bc.sort_order, bc.id`,
		p.Month, p.Year, budgetID)
	if err != nil {
		return nil, fmt.Errorf("category months: %w", err)
	}
	defer rows.Close()

	var result []core.CategoryMonth
	for rows.Next() {
		cm := core.CategoryMonth{Period: p}
		var assigned, inflow, outflow int64
		if err := rows.Scan(&cm.CategoryID, &cm.Name, &cm.SortOrder, &assigned, &inflow, &outflow); err != nil {
			return nil, fmt.Errorf("scan category month: %w", err)
		}
		cm.Assigned = core.Money{Cents: assigned}
		cm.Activity = core.Money{Cents: inflow - outflow}
		cm.Available = cm.Activity.Add(cm.Assigned)
		result = append(result, cm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category months: %w", err)
	}

	return result, nil
}

// GroupMonths rolls the per-category triads up to category groups for the
// period. Groups without categories or assignments still appear, with zeros.
func (r *SQLiteRepository) GroupMonths(ctx context.Context, budgetID string, p core.Period) ([]core.GroupMonth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bg.id, bg.name, bg.sort_order,
		       IFNULL(SUM(m.assigned_cents), 0),
		       IFNULL(SUM(act.inflow_cents), 0),
		       IFNULL(SUM(act.outflow_cents), 0)
		FROM budget_category_group bg
		LEFT JOIN budget_category bc ON bc.budget_category_group_id = bg.id
		LEFT JOIN monthly_budget_per_category m
		       ON m.budget_category_id = bc.id AND m.month = ? AND m.year = ?
		LEFT JOIN (`+activityByAssignment+`) act ON act.assignment_id = m.id
		WHERE bg.budget_id = ?
		GROUP BY bg.id, bg.name, bg.sort_order
		ORDER BY bg.sort_order, bg.id`,
		p.Month, p.Year, budgetID)
	if err != nil {
		return nil, fmt.Errorf("group months: %w", err)
	}
	defer rows.Close()

	var result []core.GroupMonth
	for rows.Next() {
		gm := core.GroupMonth{Period: p}
		var assigned, inflow, outflow int64
		if err := rows.Scan(&gm.GroupID, &gm.Name, &gm.SortOrder, &assigned, &inflow, &outflow); err != nil {
			return nil, fmt.Errorf("scan group month: %w", err)
		}
		gm.Assigned = core.Money{Cents: assigned}
		gm.Activity = core.Money{Cents: inflow - outflow}
		gm.Available = gm.Activity.Add(gm.Assigned)
		result = append(result, gm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group months: %w", err)
	}

	return result, nil
}

// IncomeThrough sums every categorized inflow across the budget's accounts
// whose attributed period is at or before p.
func (r *SQLiteRepository) IncomeThrough(ctx context.Context, budgetID string, p core.Period) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT IFNULL(SUM(t.inflow_cents), 0)
		FROM "transaction" t
		JOIN account a ON a.id = t.account_id
		JOIN monthly_budget_per_category m ON m.id = t.monthly_budget_per_category_id
		WHERE a.budget_id = ?
		  AND (m.year < ? OR (m.year = ? AND m.month <= ?))`,
		budgetID, p.Year, p.Year, p.Month).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("income through %s: %w", p, err)
	}
	return core.Money{Cents: total}, nil
}

// PriorOverspending totals, as a positive amount, every assignment in a
// period strictly before p whose spending exceeded its assigned amount plus
// credited inflow. Assignments without transactions never qualify.
func (r *SQLiteRepository) PriorOverspending(ctx context.Context, budgetID string, p core.Period) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT IFNULL(SUM(o.overspent_cents), 0)
		FROM (
			SELECT MAX(m.assigned_cents) + SUM(t.inflow_cents) - SUM(t.outflow_cents) AS overspent_cents
			FROM "transaction" t
			JOIN monthly_budget_per_category m ON m.id = t.monthly_budget_per_category_id
			JOIN budget_category bc ON bc.id = m.budget_category_id
			JOIN budget_category_group bg ON bg.id = bc.budget_category_group_id
			WHERE bg.budget_id = ?
			  AND (m.year < ? OR (m.year = ? AND m.month < ?))
			GROUP BY m.id
			HAVING MAX(m.assigned_cents) + SUM(t.inflow_cents) - SUM(t.outflow_cents) < 0
		) o`,
		budgetID, p.Year, p.Year, p.Month).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("prior overspending before %s: %w", p, err)
	}
	return core.Money{Cents: -total}, nil
}

// AssignedTotals splits the budget's assignments into the sum at or before p
// and the sum strictly after p, in one pass.
func (r *SQLiteRepository) AssignedTotals(ctx context.Context, budgetID string, p core.Period) (till, future core.Money, err error) {
	var tillCents, futureCents int64
	err = r.db.QueryRowContext(ctx, `
		SELECT IFNULL(SUM(CASE WHEN m.year < ? OR (m.year = ? AND m.month <= ?) THEN m.assigned_cents ELSE 0 END), 0),
		       IFNULL(SUM(CASE WHEN m.year > ? OR (m.year = ? AND m.month > ?) THEN m.assigned_cents ELSE 0 END), 0)
		FROM monthly_budget_per_category m
		JOIN budget_category bc ON bc.id = m.budget_category_id
		JOIN budget_category_group bg ON bg.id = bc.budget_category_group_id
		WHERE bg.budget_id = ?`,
		p.Year, p.Year, p.Month,
		p.Year, p.Year, p.Month,
		budgetID).Scan(&tillCents, &futureCents)
	if err != nil {
		return core.Money{}, core.Money{}, fmt.Errorf("assigned totals around %s: %w", p, err)
	}
	return core.Money{Cents: tillCents}, core.Money{Cents: futureCents}, nil
}
