// Package worker consumes budget change events and mirrors the affected
// month views to the configured spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/1fach/einfach-budget/internal/amqp"
	"github.com/1fach/einfach-budget/internal/core"
	"github.com/1fach/einfach-budget/internal/log"
	"github.com/1fach/einfach-budget/internal/sheets"
	"github.com/1fach/einfach-budget/internal/storage"
)

// MirrorWorker keeps a spreadsheet copy of assignment month views. It reads
// the current triad from storage on every event, so replayed or reordered
// deliveries converge on the latest state.
type MirrorWorker struct {
	storage *storage.SQLiteRepository
	sheets  sheets.SnapshotWriter
}

func NewMirrorWorker(storage *storage.SQLiteRepository, sheets sheets.SnapshotWriter) *MirrorWorker {
	return &MirrorWorker{
		storage: storage,
		sheets:  sheets,
	}
}

// Handlers wires the worker's handlers into the AMQP consumer.
func (w *MirrorWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		AssignmentChanged: w.HandleAssignmentChanged,
		MonthInitialized:  w.HandleMonthInitialized,
	}
}

// HandleAssignmentChanged mirrors the single category the event names.
func (w *MirrorWorker) HandleAssignmentChanged(ctx context.Context, msg *amqp.AssignmentChangedMessage) error {
	p := core.NewPeriod(msg.Year, msg.Month)

	cm, err := w.storage.CategoryMonth(ctx, msg.CategoryID, p)
	if err != nil {
		return fmt.Errorf("read category month: %w", err)
	}

	if err := w.sheets.WriteCategoryMonth(ctx, cm); err != nil {
		return fmt.Errorf("mirror category month: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored assignment change",
		log.FieldOperation, log.OpMirror,
		log.FieldCategoryID, msg.CategoryID,
		log.FieldPeriod, p.String())
	return nil
}

// HandleMonthInitialized mirrors every category of the budget for the
// initialized period, so freshly created zero rows show up too.
func (w *MirrorWorker) HandleMonthInitialized(ctx context.Context, msg *amqp.MonthInitializedMessage) error {
	p := core.NewPeriod(msg.Year, msg.Month)

	months, err := w.storage.CategoryMonths(ctx, msg.BudgetID, p)
	if err != nil {
		return fmt.Errorf("read category months: %w", err)
	}

	for _, cm := range months {
		if err := w.sheets.WriteCategoryMonth(ctx, cm); err != nil {
			return fmt.Errorf("mirror category %s: %w", cm.CategoryID, err)
		}
	}

	slog.InfoContext(ctx, "Mirrored initialized month",
		log.FieldOperation, log.OpMirror,
		log.FieldBudgetID, msg.BudgetID,
		log.FieldPeriod, p.String(),
		"categories", len(months))
	return nil
}
