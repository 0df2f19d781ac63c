// Package sheets defines the outbound port for the spreadsheet mirror.
package sheets

import (
	"context"

	"github.com/1fach/einfach-budget/internal/core"
)

// SnapshotWriter records the current month view of a category in an
// external spreadsheet. Writes are append-only snapshots; consumers keep
// the latest row per (category, period).
type SnapshotWriter interface {
	WriteCategoryMonth(ctx context.Context, cm core.CategoryMonth) error
}
