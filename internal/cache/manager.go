package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cleaner is implemented by caches that support expiry sweeps.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps expired entries out of registered caches.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

func NewManager() *Manager {
	return &Manager{stopCleanup: make(chan struct{})}
}

// Register adds a cache to the sweep set. Not safe to call after
// StartCleanup.
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins the periodic sweep in a background goroutine.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				total := 0
				for _, c := range m.caches {
					total += c.CleanExpired()
				}
				if total > 0 {
					slog.Debug("Cache cleanup completed", "entries_removed", total)
				}
			case <-m.stopCleanup:
				return
			}
		}
	}()
}

// Stop ends the periodic sweep. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})
}
