// Package memory is an in-process SnapshotWriter used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"github.com/1fach/einfach-budget/internal/core"
	"github.com/1fach/einfach-budget/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []core.CategoryMonth
}

var _ sheets.SnapshotWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) WriteCategoryMonth(_ context.Context, cm core.CategoryMonth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, cm)
	return nil
}

// Rows returns a copy of everything written so far.
func (s *Store) Rows() []core.CategoryMonth {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.CategoryMonth, len(s.rows))
	copy(out, s.rows)
	return out
}
