package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/astra-mentor/astra/internal/domain"
)

// ─── Badge Catalog ──────────────────────────────────────────────────────────

// SeedBadges inserts catalog entries that are not present yet.
// Existing definitions are never rewritten.
func (d *DB) SeedBadges(ctx context.Context, defs []domain.BadgeDefinition) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	for _, b := range defs {
		_, err := sqlTx.ExecContext(ctx,
			`INSERT OR IGNORE INTO badge_definitions
				(id, name, description, icon, category, requirement_type, requirement_value)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Name, b.Description, b.Icon, string(b.Category),
			string(b.RequirementType), b.RequirementValue,
		)
		if err != nil {
			return fmt.Errorf("seed badge %s: %w", b.ID, err)
		}
	}
	return sqlTx.Commit()
}

// BadgeCatalog returns every badge definition.
func (d *DB) BadgeCatalog(ctx context.Context) ([]domain.BadgeDefinition, error) {
	return badgeCatalog(ctx, d.db)
}

// BadgeCatalog returns every badge definition within the transaction.
func (t *Tx) BadgeCatalog() ([]domain.BadgeDefinition, error) {
	return badgeCatalog(t.ctx, t.tx)
}

func badgeCatalog(ctx context.Context, q querier) ([]domain.BadgeDefinition, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, description, icon, category, requirement_type, requirement_value
		 FROM badge_definitions ORDER BY requirement_type, requirement_value, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := []domain.BadgeDefinition{}
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *b)
	}
	return defs, rows.Err()
}

func scanBadge(s scanner) (*domain.BadgeDefinition, error) {
	var b domain.BadgeDefinition
	var category, reqType string
	if err := s.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &category, &reqType, &b.RequirementValue); err != nil {
		return nil, err
	}
	b.Category = domain.BadgeCategory(category)
	b.RequirementType = domain.RequirementType(reqType)
	return &b, nil
}

// ─── Badge Ledger ───────────────────────────────────────────────────────────

// EarnedBadges returns a user's badges joined with their definitions.
func (d *DB) EarnedBadges(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT ub.id, ub.user_id, ub.badge_id, ub.earned_at,
			bd.id, bd.name, bd.description, bd.icon, bd.category, bd.requirement_type, bd.requirement_value
		 FROM user_badges ub
		 JOIN badge_definitions bd ON bd.id = ub.badge_id
		 WHERE ub.user_id = ?
		 ORDER BY ub.earned_at ASC, ub.rowid ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	earned := []domain.EarnedBadge{}
	for rows.Next() {
		var e domain.EarnedBadge
		var earnedAt int64
		var category, reqType string
		err := rows.Scan(&e.ID, &e.UserID, &e.BadgeID, &earnedAt,
			&e.Badge.ID, &e.Badge.Name, &e.Badge.Description, &e.Badge.Icon,
			&category, &reqType, &e.Badge.RequirementValue)
		if err != nil {
			return nil, err
		}
		e.EarnedAt = fromUnix(earnedAt)
		e.Badge.Category = domain.BadgeCategory(category)
		e.Badge.RequirementType = domain.RequirementType(reqType)
		earned = append(earned, e)
	}
	return earned, rows.Err()
}

// EarnedBadgeIDs returns the set of badge ids a user already holds.
func (t *Tx) EarnedBadgeIDs(userID string) (map[string]bool, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT badge_id FROM user_badges WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// AwardBadge records a badge as earned.
// Returns false if the user already held it (idempotent).
func (t *Tx) AwardBadge(id, userID, badgeID string, at time.Time) (bool, error) {
	result, err := t.tx.ExecContext(t.ctx,
		`INSERT OR IGNORE INTO user_badges (id, user_id, badge_id, earned_at) VALUES (?, ?, ?, ?)`,
		id, userID, badgeID, at.Unix(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil // true = newly earned
}
