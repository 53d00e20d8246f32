package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// Infrastructure implements these; the application layer depends on them.

// GamificationStore is persistent storage for progression state.
// Implemented by infra/sqlite.DB.
type GamificationStore interface {
	// InitializeChild creates stats and the three skills if absent.
	// Existing rows are never overwritten.
	InitializeChild(ctx context.Context, userID string, now time.Time) error

	ChildStats(ctx context.Context, userID string) (*ChildStats, error)
	Skills(ctx context.Context, userID string) ([]Skill, error)
	BadgeCatalog(ctx context.Context) ([]BadgeDefinition, error)
	EarnedBadges(ctx context.Context, userID string) ([]EarnedBadge, error)
	XPHistory(ctx context.Context, userID string, limit int) ([]XPTransaction, error)

	// SeedBadges inserts catalog entries that do not exist yet.
	SeedBadges(ctx context.Context, defs []BadgeDefinition) error

	// InTx runs fn inside a single storage transaction.
	// fn's error rolls the transaction back.
	InTx(ctx context.Context, fn func(tx GamificationTx) error) error
}

// GamificationTx is the write surface available inside a transaction.
type GamificationTx interface {
	ChildStats(userID string) (*ChildStats, error)

	// UpdateChildStats writes stats if the stored version still equals
	// stats.Version, bumping it. Returns ErrStaleStats otherwise.
	UpdateChildStats(stats ChildStats) error

	InsertXPTransaction(txn XPTransaction) error
	Skill(userID string, name SkillName) (*Skill, error)
	UpdateSkill(skill Skill) error
	BadgeCatalog() ([]BadgeDefinition, error)
	EarnedBadgeIDs(userID string) (map[string]bool, error)

	// AwardBadge records a badge. Returns false if already earned.
	AwardBadge(id, userID, badgeID string, at time.Time) (bool, error)
}

// NotificationStore persists per-user notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n Notification) (int64, error)
	NotificationCountSince(ctx context.Context, userID string, since time.Time) (int, error)
	PendingNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationShown(ctx context.Context, userID string, id int64) error
}

// Completer produces the mentor's next reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}
