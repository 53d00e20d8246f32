package gamification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/astra-mentor/astra/internal/domain"
	"github.com/astra-mentor/astra/internal/infra/logger"
	"github.com/astra-mentor/astra/internal/infra/metrics"
)

// Notifier is told about every committed award.
type Notifier interface {
	NotifyAward(ctx context.Context, userID string, result domain.AwardResult) error
}

// Engine is the sole writer of child stats, skills, and earned badges.
// Writes for one user are serialized in-process; the stats row's version
// column catches writers in other processes.
type Engine struct {
	store    domain.GamificationStore
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
	notifier Notifier
	locks    *userLocks
	inits    singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithNotifier registers a post-commit award observer.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// NewEngine creates an engine over the given store.
func NewEngine(store domain.GamificationStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   logger.Nop(),
		now:   time.Now,
		newID: uuid.NewString,
		locks: newUserLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SeedBadges loads DefaultBadges into storage without touching existing rows.
func (e *Engine) SeedBadges(ctx context.Context) error {
	return e.store.SeedBadges(ctx, DefaultBadges())
}

// InitializeChild creates stats and skills for a user if absent.
// Concurrent calls for the same user share one storage round-trip.
func (e *Engine) InitializeChild(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	shared := context.WithoutCancel(ctx)
	_, err, _ := e.inits.Do(userID, func() (interface{}, error) {
		return nil, e.store.InitializeChild(shared, userID, e.now())
	})
	if err != nil {
		return fmt.Errorf("initialize %s: %w", userID, err)
	}
	return nil
}

// ─── Awards ─────────────────────────────────────────────────────────────────

// AwardXP grants amount XP to a user and applies every derived effect:
// level, streak, audit log entry, skill XP (half, rounded up), and badges.
// Everything after loading stats happens in one storage transaction.
// A user without stats is initialized and the award retried once.
func (e *Engine) AwardXP(ctx context.Context, userID string, amount int64, reason string, skill *domain.SkillName) (domain.AwardResult, error) {
	if err := validateUserID(userID); err != nil {
		return domain.AwardResult{}, err
	}
	if err := ValidateAmount(amount); err != nil {
		return domain.AwardResult{}, err
	}
	if skill != nil && !skill.Valid() {
		return domain.AwardResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidSkill, *skill)
	}

	start := time.Now()
	unlock := e.locks.lock(userID)
	result, err := e.award(ctx, userID, amount, reason, skill, true)
	unlock()
	metrics.AwardDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AwardFailures.WithLabelValues(failureReason(err)).Inc()
		return domain.AwardResult{}, err
	}

	skillLabel := "none"
	if skill != nil {
		skillLabel = string(*skill)
	}
	metrics.XPAwarded.WithLabelValues(skillLabel).Add(float64(amount))
	if result.LeveledUp {
		metrics.LevelUps.Inc()
	}

	e.log.Debug("xp awarded", "user_id", userID, "amount", amount,
		"reason", reason, "total", result.NewXP, "level", result.NewLevel)

	if e.notifier != nil && (result.LeveledUp || len(result.BadgesEarned) > 0) {
		if err := e.notifier.NotifyAward(ctx, userID, result); err != nil {
			e.log.Warn("award notification failed", "user_id", userID, "error", err)
		}
	}
	return result, nil
}

func (e *Engine) award(ctx context.Context, userID string, amount int64, reason string,
	skill *domain.SkillName, retry bool) (domain.AwardResult, error) {

	var result domain.AwardResult
	missing := false

	err := e.store.InTx(ctx, func(tx domain.GamificationTx) error {
		stats, err := tx.ChildStats(userID)
		if err != nil {
			return fmt.Errorf("load stats: %w", err)
		}
		if stats == nil {
			missing = true
			return nil
		}
		if stats.TotalXPEarned > math.MaxInt64-amount || stats.XPBalance > math.MaxInt64-amount {
			return domain.ErrInvalidAmount
		}

		now := e.now()
		today := CalendarDay(now)

		newTotal := stats.TotalXPEarned + amount
		newLevel := LevelFromXP(newTotal)
		leveledUp := newLevel > stats.CurrentLevel
		streak := NextStreak(*stats, today)

		updated := *stats
		updated.XPBalance += amount
		updated.TotalXPEarned = newTotal
		updated.CurrentLevel = newLevel
		updated.CurrentStreak = streak.Current
		updated.LongestStreak = streak.Longest
		updated.LastActivityDate = today.Format(domain.DateLayout)
		updated.UpdatedAt = now
		if err := tx.UpdateChildStats(updated); err != nil {
			return err
		}

		if err := tx.InsertXPTransaction(domain.XPTransaction{
			ID:            e.newID(),
			UserID:        userID,
			Amount:        amount,
			Reason:        reason,
			SkillAffected: skill,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		if skill != nil {
			if err := e.applySkillXP(tx, userID, *skill, SkillXPFor(amount), now); err != nil {
				return err
			}
		}

		newly, err := awardBadges(tx, e.newID, userID, newTotal, newLevel, streak.Current, now)
		if err != nil {
			return err
		}
		for _, b := range newly {
			metrics.BadgesEarned.WithLabelValues(b.ID).Inc()
		}

		result = domain.AwardResult{
			NewXP:        newTotal,
			LeveledUp:    leveledUp,
			NewLevel:     newLevel,
			BadgesEarned: badgeNames(newly),
		}
		return nil
	})
	if err != nil {
		return domain.AwardResult{}, fmt.Errorf("award xp: %w", err)
	}

	if missing {
		if !retry {
			return domain.AwardResult{}, domain.ErrStatsMissing
		}
		if err := e.InitializeChild(ctx, userID); err != nil {
			return domain.AwardResult{}, err
		}
		return e.award(ctx, userID, amount, reason, skill, false)
	}
	return result, nil
}

// ─── Skills ─────────────────────────────────────────────────────────────────

// UpdateSkillXP adds xp to one of the user's skills. Users whose skills
// were never initialized are left untouched.
func (e *Engine) UpdateSkillXP(ctx context.Context, userID string, skill domain.SkillName, xp int64) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if !skill.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSkill, skill)
	}
	if err := ValidateAmount(xp); err != nil {
		return err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	return e.store.InTx(ctx, func(tx domain.GamificationTx) error {
		return e.applySkillXP(tx, userID, skill, xp, e.now())
	})
}

func (e *Engine) applySkillXP(tx domain.GamificationTx, userID string, skill domain.SkillName, xp int64, now time.Time) error {
	sk, err := tx.Skill(userID, skill)
	if err != nil {
		return fmt.Errorf("load skill %s: %w", skill, err)
	}
	if sk == nil {
		return nil
	}
	return tx.UpdateSkill(ApplySkillXP(*sk, xp, now))
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// CheckAndAwardBadges records every badge the given stats qualify for and
// returns the names of badges earned by this call. Re-running is harmless.
func (e *Engine) CheckAndAwardBadges(ctx context.Context, userID string, totalXP int64, level, streak int) ([]string, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	var newly []domain.BadgeDefinition
	err := e.store.InTx(ctx, func(tx domain.GamificationTx) error {
		var err error
		newly, err = awardBadges(tx, e.newID, userID, totalXP, level, streak, e.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, b := range newly {
		metrics.BadgesEarned.WithLabelValues(b.ID).Inc()
	}
	return badgeNames(newly), nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Dashboard returns a user's full progression snapshot, initializing the
// user first if needed.
func (e *Engine) Dashboard(ctx context.Context, userID string) (*domain.Dashboard, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	stats, err := e.store.ChildStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if stats == nil {
		if err := e.InitializeChild(ctx, userID); err != nil {
			return nil, err
		}
	}

	var dash domain.Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := e.store.ChildStats(gctx, userID)
		if err != nil {
			return fmt.Errorf("load stats: %w", err)
		}
		if s == nil {
			return domain.ErrStatsMissing
		}
		dash.Stats = s
		return nil
	})
	g.Go(func() error {
		skills, err := e.store.Skills(gctx, userID)
		if err != nil {
			return fmt.Errorf("load skills: %w", err)
		}
		dash.Skills = skills
		return nil
	})
	g.Go(func() error {
		earned, err := e.store.EarnedBadges(gctx, userID)
		if err != nil {
			return fmt.Errorf("load earned badges: %w", err)
		}
		dash.EarnedBadges = earned
		return nil
	})
	g.Go(func() error {
		all, err := e.store.BadgeCatalog(gctx)
		if err != nil {
			return fmt.Errorf("load badge catalog: %w", err)
		}
		dash.AllBadges = all
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dash.Progress = XPProgressInLevel(dash.Stats.TotalXPEarned)
	return &dash, nil
}

// History returns the user's latest XP transactions, newest first.
// limit is clamped to [1, 100]; zero means 20.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]domain.XPTransaction, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	switch {
	case limit == 0:
		limit = 20
	case limit < 1:
		limit = 1
	case limit > 100:
		limit = 100
	}
	return e.store.XPHistory(ctx, userID, limit)
}

// Catalog returns every badge definition.
func (e *Engine) Catalog(ctx context.Context) ([]domain.BadgeDefinition, error) {
	return e.store.BadgeCatalog(ctx)
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrInvalidUserID
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrStaleStats):
		return "stale"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid"
	case errors.Is(err, domain.ErrStatsMissing):
		return "missing"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "storage"
	}
}
