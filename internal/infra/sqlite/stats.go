package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/astra-mentor/astra/internal/domain"
)

// ─── Initialization ─────────────────────────────────────────────────────────

// InitializeChild creates the stats row and all skill rows for a user.
// Uniqueness on (user_id) and (user_id, skill_name) makes this idempotent;
// existing progress is left untouched.
func (d *DB) InitializeChild(ctx context.Context, userID string, now time.Time) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx,
		`INSERT INTO child_stats (user_id, xp_balance, current_level, total_xp_earned,
			current_streak, longest_streak, version, created_at, updated_at)
		 VALUES (?, 0, 1, 0, 0, 0, 0, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert stats: %w", err)
	}

	for _, name := range domain.AllSkills() {
		_, err = sqlTx.ExecContext(ctx,
			`INSERT INTO skills (user_id, skill_name, current_level, xp_in_level, xp_to_next_level, updated_at)
			 VALUES (?, ?, 1, 0, ?, ?)
			 ON CONFLICT(user_id, skill_name) DO NOTHING`,
			userID, string(name), domain.SkillXPToNext(1), now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert skill %s: %w", name, err)
		}
	}

	return sqlTx.Commit()
}

// ─── Child Stats ────────────────────────────────────────────────────────────

const statsColumns = `user_id, xp_balance, current_level, total_xp_earned, current_streak,
	longest_streak, last_activity_date, version, created_at, updated_at`

// ChildStats returns the stats row for a user, or nil if absent.
func (d *DB) ChildStats(ctx context.Context, userID string) (*domain.ChildStats, error) {
	return childStats(ctx, d.db, userID)
}

// ChildStats returns the stats row for a user within the transaction.
func (t *Tx) ChildStats(userID string) (*domain.ChildStats, error) {
	return childStats(t.ctx, t.tx, userID)
}

// UpdateChildStats writes stats guarded by the version column.
func (t *Tx) UpdateChildStats(s domain.ChildStats) error {
	result, err := t.tx.ExecContext(t.ctx,
		`UPDATE child_stats SET
			xp_balance = ?, current_level = ?, total_xp_earned = ?,
			current_streak = ?, longest_streak = ?, last_activity_date = ?,
			version = version + 1, updated_at = ?
		 WHERE user_id = ? AND version = ?`,
		s.XPBalance, s.CurrentLevel, s.TotalXPEarned,
		s.CurrentStreak, s.LongestStreak, nullStr(s.LastActivityDate),
		s.UpdatedAt.Unix(), s.UserID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrStaleStats
	}
	return nil
}

func childStats(ctx context.Context, q querier, userID string) (*domain.ChildStats, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+statsColumns+` FROM child_stats WHERE user_id = ?`, userID)
	return scanStats(row)
}

func scanStats(s scanner) (*domain.ChildStats, error) {
	var st domain.ChildStats
	var lastActivity sql.NullString
	var createdAt, updatedAt int64

	err := s.Scan(&st.UserID, &st.XPBalance, &st.CurrentLevel, &st.TotalXPEarned,
		&st.CurrentStreak, &st.LongestStreak, &lastActivity, &st.Version,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	if lastActivity.Valid {
		st.LastActivityDate = lastActivity.String
	}
	st.CreatedAt = fromUnix(createdAt)
	st.UpdatedAt = fromUnix(updatedAt)
	return &st, nil
}

// ─── Skills ─────────────────────────────────────────────────────────────────

// Skills returns all skill rows for a user in declaration order.
func (d *DB) Skills(ctx context.Context, userID string) ([]domain.Skill, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, skill_name, current_level, xp_in_level, xp_to_next_level, updated_at
		 FROM skills WHERE user_id = ?
		 ORDER BY CASE skill_name
			WHEN 'communication' THEN 0
			WHEN 'problem_solving' THEN 1
			WHEN 'leadership' THEN 2
			ELSE 3 END`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := []domain.Skill{}
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		skills = append(skills, *sk)
	}
	return skills, rows.Err()
}

// Skill returns one skill row within the transaction, or nil if absent.
func (t *Tx) Skill(userID string, name domain.SkillName) (*domain.Skill, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT user_id, skill_name, current_level, xp_in_level, xp_to_next_level, updated_at
		 FROM skills WHERE user_id = ? AND skill_name = ?`, userID, string(name),
	)
	sk, err := scanSkill(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sk, err
}

// UpdateSkill persists a skill's level and in-level XP.
func (t *Tx) UpdateSkill(sk domain.Skill) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE skills SET current_level = ?, xp_in_level = ?, xp_to_next_level = ?, updated_at = ?
		 WHERE user_id = ? AND skill_name = ?`,
		sk.CurrentLevel, sk.XPInLevel, sk.XPToNextLevel, sk.UpdatedAt.Unix(),
		sk.UserID, string(sk.SkillName),
	)
	if err != nil {
		return fmt.Errorf("update skill %s: %w", sk.SkillName, err)
	}
	return nil
}

func scanSkill(s scanner) (*domain.Skill, error) {
	var sk domain.Skill
	var name string
	var updatedAt int64
	if err := s.Scan(&sk.UserID, &name, &sk.CurrentLevel, &sk.XPInLevel, &sk.XPToNextLevel, &updatedAt); err != nil {
		return nil, err
	}
	sk.SkillName = domain.SkillName(name)
	sk.UpdatedAt = fromUnix(updatedAt)
	return &sk, nil
}
