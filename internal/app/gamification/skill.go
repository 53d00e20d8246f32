package gamification

import (
	"strings"
	"time"

	"github.com/astra-mentor/astra/internal/domain"
)

// ─── Skill Detection ────────────────────────────────────────────────────────

var skillKeywords = map[domain.SkillName][]string{
	domain.SkillCommunication: {
		"explain", "describe", "tell", "share", "discuss", "talk", "express",
		"communicate", "say", "speak", "write", "story", "conversation",
	},
	domain.SkillProblemSolving: {
		"solve", "figure", "how", "why", "what if", "calculate", "think",
		"puzzle", "math", "science", "build", "create", "fix", "solution",
	},
	domain.SkillLeadership: {
		"help", "team", "lead", "organize", "plan", "decide", "teach",
		"guide", "support", "responsible", "goal", "achieve", "inspire",
	},
}

// DetectSkill maps free text to the skill whose keywords it mentions most.
// Each keyword counts once if it appears anywhere (case-insensitive).
// Ties go to the earlier skill in domain.AllSkills order; ok is false if
// nothing matched.
func DetectSkill(text string) (skill domain.SkillName, ok bool) {
	lower := strings.ToLower(text)

	best := 0
	for _, name := range domain.AllSkills() {
		matches := 0
		for _, kw := range skillKeywords[name] {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > best {
			best = matches
			skill = name
		}
	}
	return skill, best > 0
}

// ─── Skill Progression ──────────────────────────────────────────────────────

// ApplySkillXP adds xp to a skill and cascades level-ups up to
// domain.MaxSkillLevel. At the cap, XP keeps accumulating in XPInLevel.
func ApplySkillXP(sk domain.Skill, xp int64, now time.Time) domain.Skill {
	if sk.CurrentLevel < 1 {
		sk.CurrentLevel = 1
	}
	sk.XPToNextLevel = domain.SkillXPToNext(sk.CurrentLevel)
	sk.XPInLevel += xp

	for sk.XPInLevel >= sk.XPToNextLevel && sk.CurrentLevel < domain.MaxSkillLevel {
		sk.XPInLevel -= sk.XPToNextLevel
		sk.CurrentLevel++
		sk.XPToNextLevel = domain.SkillXPToNext(sk.CurrentLevel)
	}

	sk.UpdatedAt = now
	return sk
}
