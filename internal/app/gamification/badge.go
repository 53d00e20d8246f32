package gamification

import (
	"fmt"
	"time"

	"github.com/astra-mentor/astra/internal/domain"
)

// ─── Badge Catalog ──────────────────────────────────────────────────────────

// DefaultBadges returns the catalog seeded into storage at startup.
func DefaultBadges() []domain.BadgeDefinition {
	return []domain.BadgeDefinition{
		// ── Learning ───────────────────────────────────────────────────
		{
			ID: "first_steps", Name: "First Steps", Icon: "🌱", Category: domain.BadgeLearning,
			Description:     "Earn your very first XP by chatting with Astra.",
			RequirementType: domain.RequireTotalXP, RequirementValue: 1,
		},
		{
			ID: "curious_mind", Name: "Curious Mind", Icon: "🔍", Category: domain.BadgeLearning,
			Description:     "Collect 100 XP.",
			RequirementType: domain.RequireTotalXP, RequirementValue: 100,
		},
		{
			ID: "knowledge_seeker", Name: "Knowledge Seeker", Icon: "📚", Category: domain.BadgeLearning,
			Description:     "Collect 500 XP.",
			RequirementType: domain.RequireTotalXP, RequirementValue: 500,
		},
		{
			ID: "wise_owl", Name: "Wise Owl", Icon: "🦉", Category: domain.BadgeLearning,
			Description:     "Collect 2,000 XP.",
			RequirementType: domain.RequireTotalXP, RequirementValue: 2000,
		},

		// ── Streaks ────────────────────────────────────────────────────
		{
			ID: "on_a_roll", Name: "On a Roll", Icon: "🔥", Category: domain.BadgeStreak,
			Description:     "Talk with Astra 3 days in a row.",
			RequirementType: domain.RequireStreak, RequirementValue: 3,
		},
		{
			ID: "week_warrior", Name: "Week Warrior", Icon: "📅", Category: domain.BadgeStreak,
			Description:     "Keep a 7-day streak.",
			RequirementType: domain.RequireStreak, RequirementValue: 7,
		},
		{
			ID: "unstoppable", Name: "Unstoppable", Icon: "🚀", Category: domain.BadgeStreak,
			Description:     "Keep a 30-day streak.",
			RequirementType: domain.RequireStreak, RequirementValue: 30,
		},

		// ── Levels ─────────────────────────────────────────────────────
		{
			ID: "rising_star", Name: "Rising Star", Icon: "⭐", Category: domain.BadgeAchievement,
			Description:     "Reach level 3.",
			RequirementType: domain.RequireLevel, RequirementValue: 3,
		},
		{
			ID: "super_star", Name: "Super Star", Icon: "🌟", Category: domain.BadgeAchievement,
			Description:     "Reach level 5.",
			RequirementType: domain.RequireLevel, RequirementValue: 5,
		},
		{
			ID: "astra_explorer", Name: "Astra Explorer", Icon: "🪐", Category: domain.BadgeAchievement,
			Description:     "Reach level 8.",
			RequirementType: domain.RequireLevel, RequirementValue: 8,
		},
	}
}

// ─── Badge Evaluation ───────────────────────────────────────────────────────

// awardBadges records every unearned badge whose threshold is met.
// Returns only badges that were newly earned by this call.
func awardBadges(tx domain.GamificationTx, newID func() string, userID string,
	totalXP int64, level, streak int, now time.Time) ([]domain.BadgeDefinition, error) {

	catalog, err := tx.BadgeCatalog()
	if err != nil {
		return nil, fmt.Errorf("load badge catalog: %w", err)
	}
	earned, err := tx.EarnedBadgeIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("load earned badges: %w", err)
	}

	var newly []domain.BadgeDefinition
	for _, def := range catalog {
		if earned[def.ID] {
			continue
		}
		if !def.Satisfied(totalXP, level, streak) {
			continue
		}
		isNew, err := tx.AwardBadge(newID(), userID, def.ID, now)
		if err != nil {
			return nil, fmt.Errorf("award badge %s: %w", def.ID, err)
		}
		if isNew {
			newly = append(newly, def)
		}
	}
	return newly, nil
}

func badgeNames(defs []domain.BadgeDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return names
}
