package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/astra-mentor/astra/internal/domain"
)

// ─── XP Transaction Log ─────────────────────────────────────────────────────

// InsertXPTransaction appends an entry to the XP audit log.
func (t *Tx) InsertXPTransaction(txn domain.XPTransaction) error {
	var skill sql.NullString
	if txn.SkillAffected != nil {
		skill = sql.NullString{String: string(*txn.SkillAffected), Valid: true}
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO xp_transactions (id, user_id, amount, reason, skill_affected, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, txn.Amount, txn.Reason, skill, txn.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert xp transaction: %w", err)
	}
	return nil
}

// XPHistory returns a user's most recent XP transactions, newest first.
func (d *DB) XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPTransaction, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, amount, reason, skill_affected, created_at
		 FROM xp_transactions WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.XPTransaction{}
	for rows.Next() {
		var e domain.XPTransaction
		var skill sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Reason, &skill, &createdAt); err != nil {
			return nil, err
		}
		if skill.Valid {
			s := domain.SkillName(skill.String)
			e.SkillAffected = &s
		}
		e.CreatedAt = fromUnix(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// XPTotal sums every logged award for a user.
func (d *DB) XPTotal(ctx context.Context, userID string) (int64, error) {
	var total sql.NullInt64
	err := d.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM xp_transactions WHERE user_id = ?`, userID,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}
