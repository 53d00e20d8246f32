// Package health provides periodic health checks with auto-recovery.
package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/astra-mentor/astra/internal/domain"
	"github.com/astra-mentor/astra/internal/infra/logger"
	"github.com/astra-mentor/astra/internal/infra/metrics"
)

// Store is the storage surface the checks need.
type Store interface {
	Ping() error
	BadgeCatalog(ctx context.Context) ([]domain.BadgeDefinition, error)
}

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Recovered bool      `json:"recovered,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      *logger.Logger
}

var errEmptyCatalog = errors.New("badge catalog is empty")

// NewChecker creates a checker for the database, the data directory, and
// the badge catalog. reseed restores the default catalog when it is empty.
func NewChecker(store Store, dataDir string, reseed func(ctx context.Context) error, log *logger.Logger) *Checker {
	if log == nil {
		log = logger.Nop()
	}
	return &Checker{
		interval: 60 * time.Second,
		log:      log,
		checks: []Check{
			{
				Name: "sqlite",
				CheckFn: func(ctx context.Context) error {
					return store.Ping()
				},
			},
			{
				Name: "data_dir",
				CheckFn: func(ctx context.Context) error {
					return checkDataDir(dataDir)
				},
			},
			{
				Name: "badge_catalog",
				CheckFn: func(ctx context.Context) error {
					defs, err := store.BadgeCatalog(ctx)
					if err != nil {
						return fmt.Errorf("load catalog: %w", err)
					}
					if len(defs) == 0 {
						return errEmptyCatalog
					}
					return nil
				},
				RecoverFn: reseed,
			},
		},
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check once. A failed check with a recovery action is
// re-checked after the recovery succeeds.
func (c *Checker) RunOnce(ctx context.Context) {
	log := c.log
	if log == nil {
		log = logger.Nop()
	}
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{Name: check.Name, CheckedAt: time.Now()}
		err := check.CheckFn(ctx)
		if err != nil && check.RecoverFn != nil {
			metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
			if rerr := check.RecoverFn(ctx); rerr != nil {
				log.Warn("health recovery failed", "check", check.Name, "error", rerr)
			} else if err = check.CheckFn(ctx); err == nil {
				s.Recovered = true
				log.Info("health check recovered", "check", check.Name)
			}
		}

		if err != nil {
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
			log.Warn("health check failed", "check", check.Name, "error", err)
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", dir)
	}
	return nil
}
