// Package domain holds the core types of the Astra mentor service.
// The gamification engine turns chat activity into XP, levels, skill
// progression, streaks, and badges.
package domain

import "time"

// ─── Child Stats ────────────────────────────────────────────────────────────

// ChildStats is the per-user progression row.
// CurrentLevel always equals the level derived from TotalXPEarned and
// LongestStreak is never below CurrentStreak.
type ChildStats struct {
	UserID           string    `json:"user_id"`
	XPBalance        int64     `json:"xp_balance"`
	CurrentLevel     int       `json:"current_level"`
	TotalXPEarned    int64     `json:"total_xp_earned"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	LastActivityDate string    `json:"last_activity_date,omitempty"` // YYYY-MM-DD, empty if never active
	Version          int64     `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DateLayout is the calendar-day format used for LastActivityDate.
const DateLayout = "2006-01-02"

// LastActivity parses LastActivityDate. ok is false if the user was never active.
func (s ChildStats) LastActivity() (day time.Time, ok bool) {
	if s.LastActivityDate == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, s.LastActivityDate, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ─── Skills ─────────────────────────────────────────────────────────────────

// SkillName identifies one of the three progression tracks.
type SkillName string

const (
	SkillCommunication  SkillName = "communication"
	SkillProblemSolving SkillName = "problem_solving"
	SkillLeadership     SkillName = "leadership"
)

// MaxSkillLevel is the level cap for every skill.
const MaxSkillLevel = 5

// AllSkills lists skills in declaration order. Detection ties resolve in this order.
func AllSkills() []SkillName {
	return []SkillName{SkillCommunication, SkillProblemSolving, SkillLeadership}
}

// Valid reports whether s is a known skill.
func (s SkillName) Valid() bool {
	switch s {
	case SkillCommunication, SkillProblemSolving, SkillLeadership:
		return true
	}
	return false
}

// Skill is a user's progress on one skill track.
type Skill struct {
	UserID        string    `json:"user_id"`
	SkillName     SkillName `json:"skill_name"`
	CurrentLevel  int       `json:"current_level"`
	XPInLevel     int64     `json:"xp_in_level"`
	XPToNextLevel int64     `json:"xp_to_next_level"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SkillXPToNext returns the XP needed to leave the given skill level.
func SkillXPToNext(level int) int64 {
	return int64(100 * level)
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// BadgeCategory groups badges for display.
type BadgeCategory string

const (
	BadgeLearning    BadgeCategory = "learning"
	BadgeStreak      BadgeCategory = "streak"
	BadgeSkill       BadgeCategory = "skill"
	BadgeAchievement BadgeCategory = "achievement"
)

// RequirementType is the stat a badge threshold is checked against.
type RequirementType string

const (
	RequireTotalXP RequirementType = "total_xp"
	RequireLevel   RequirementType = "level"
	RequireStreak  RequirementType = "streak"
)

// BadgeDefinition is a read-only catalog entry.
type BadgeDefinition struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Icon             string          `json:"icon"`
	Category         BadgeCategory   `json:"category"`
	RequirementType  RequirementType `json:"requirement_type"`
	RequirementValue int64           `json:"requirement_value"`
}

// Satisfied evaluates the badge threshold. Unknown requirement types never match.
func (b BadgeDefinition) Satisfied(totalXP int64, level, streak int) bool {
	switch b.RequirementType {
	case RequireTotalXP:
		return totalXP >= b.RequirementValue
	case RequireLevel:
		return int64(level) >= b.RequirementValue
	case RequireStreak:
		return int64(streak) >= b.RequirementValue
	default:
		return false
	}
}

// EarnedBadge is a user badge joined with its definition.
type EarnedBadge struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	BadgeID  string          `json:"badge_id"`
	EarnedAt time.Time       `json:"earned_at"`
	Badge    BadgeDefinition `json:"badge"`
}

// ─── XP ─────────────────────────────────────────────────────────────────────

// XPTransaction is one entry of the append-only XP audit log.
type XPTransaction struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Amount        int64      `json:"amount"`
	Reason        string     `json:"reason"`
	SkillAffected *SkillName `json:"skill_affected"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AwardResult is the outcome of a single XP award.
type AwardResult struct {
	NewXP        int64    `json:"newXP"`
	LeveledUp    bool     `json:"leveledUp"`
	NewLevel     int      `json:"newLevel"`
	BadgesEarned []string `json:"badgesEarned"`
}

// LevelProgress describes progress inside the current level.
type LevelProgress struct {
	Current    int64   `json:"current"`
	Required   int64   `json:"required"`
	Percentage float64 `json:"percentage"`
}

// Dashboard is everything the progress screen needs for one user.
type Dashboard struct {
	Stats        *ChildStats       `json:"stats"`
	Skills       []Skill           `json:"skills"`
	EarnedBadges []EarnedBadge     `json:"earnedBadges"`
	AllBadges    []BadgeDefinition `json:"allBadges"`
	Progress     LevelProgress     `json:"progress"`
}

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationType categorizes a notification.
type NotificationType string

const (
	NotifyLevelUp     NotificationType = "level_up"
	NotifyBadgeEarned NotificationType = "badge_earned"
)

// Notification is a pending message for the child's progress screen.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
	Shown     bool             `json:"shown"`
}

// NotificationPolicy limits how many notifications a child gets per day.
type NotificationPolicy struct {
	MaxPerDay int `json:"max_per_day"`
}

// DefaultNotificationPolicy returns the default policy.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{MaxPerDay: 5}
}
