package gamification

import (
	"strings"

	"github.com/astra-mentor/astra/internal/domain"
)

// ─── Reward Table ───────────────────────────────────────────────────────────

// Fixed XP rewards per event type.
const (
	RewardChatMessage     int64 = 5
	RewardQuestionAsked   int64 = 10
	RewardSessionComplete int64 = 25
	RewardDailyLogin      int64 = 15
	RewardStreakBonus     int64 = 5 // per day of streak

	// MaxAward caps a single award.
	MaxAward int64 = 1_000_000
)

// Rewards returns the reward table keyed by event name.
func Rewards() map[string]int64 {
	return map[string]int64{
		"CHAT_MESSAGE":     RewardChatMessage,
		"QUESTION_ASKED":   RewardQuestionAsked,
		"SESSION_COMPLETE": RewardSessionComplete,
		"DAILY_LOGIN":      RewardDailyLogin,
		"STREAK_BONUS":     RewardStreakBonus,
	}
}

// ValidateAmount rejects non-positive XP amounts and amounts above MaxAward.
func ValidateAmount(amount int64) error {
	if amount <= 0 || amount > MaxAward {
		return domain.ErrInvalidAmount
	}
	return nil
}

// SkillXPFor returns the skill share of an award: half, rounded up.
func SkillXPFor(amount int64) int64 {
	return amount/2 + amount%2
}

// IsQuestion reports whether a message reads as a question: it ends with
// "?" or opens with why, how, or what.
func IsQuestion(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if strings.HasSuffix(t, "?") {
		return true
	}
	for _, prefix := range []string{"why", "how", "what"} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// ChatReward picks the XP reward for a chat message.
func ChatReward(text string) (amount int64, reason string) {
	if IsQuestion(text) {
		return RewardQuestionAsked, "Asked a question"
	}
	return RewardChatMessage, "Chatted with Astra"
}
