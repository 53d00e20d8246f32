package mentor

import (
	"context"
	"strings"
	"time"

	"github.com/astra-mentor/astra/internal/app/gamification"
	"github.com/astra-mentor/astra/internal/domain"
	"github.com/astra-mentor/astra/internal/infra/logger"
	"github.com/astra-mentor/astra/internal/infra/metrics"
)

// Awarder grants XP. Implemented by *gamification.Engine.
type Awarder interface {
	AwardXP(ctx context.Context, userID string, amount int64, reason string, skill *domain.SkillName) (domain.AwardResult, error)
}

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	Messages  []domain.ChatMessage `json:"messages"`
	ChildName string               `json:"childName,omitempty"`
	UserID    string               `json:"userId,omitempty"`
}

// ChatResponse is Astra's reply plus the XP it earned, if any.
type ChatResponse struct {
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
	XPReward  *domain.AwardResult `json:"xpReward"`
	Fallback  bool                `json:"fallback,omitempty"`
}

// ChatService answers chat turns and credits XP for them.
type ChatService struct {
	mentor  *Service
	awarder Awarder
	log     *logger.Logger
	now     func() time.Time
}

// NewChatService creates a chat service. awarder may be nil to disable XP.
func NewChatService(m *Service, awarder Awarder, log *logger.Logger) *ChatService {
	if log == nil {
		log = logger.Nop()
	}
	return &ChatService{mentor: m, awarder: awarder, log: log, now: time.Now}
}

// SetClock overrides time.Now.
func (c *ChatService) SetClock(now func() time.Time) { c.now = now }

// Handle replies to the conversation. With a user id it also awards XP for
// the latest user message: a question earns more than a plain message, and
// a detected skill gets half the award. A conversation without a user turn
// earns nothing. Award failures are logged and leave XPReward nil; they
// never fail the reply.
func (c *ChatService) Handle(ctx context.Context, req ChatRequest) ChatResponse {
	if !c.mentor.Configured() {
		metrics.ChatMessages.WithLabelValues("unconfigured").Inc()
		return ChatResponse{Message: SetupMessage, Timestamp: c.now().UTC(), Fallback: true}
	}

	reply, fallback := c.mentor.Reply(ctx, req.Messages, req.ChildName)
	resp := ChatResponse{Message: reply, Timestamp: c.now().UTC(), Fallback: fallback}

	text, ok := domain.LastUserMessage(req.Messages)
	if !ok {
		metrics.ChatMessages.WithLabelValues("no_user_turn").Inc()
		return resp
	}
	amount, reason := gamification.ChatReward(text)
	kind := "chat"
	if amount == gamification.RewardQuestionAsked {
		kind = "question"
	}
	metrics.ChatMessages.WithLabelValues(kind).Inc()

	userID := strings.TrimSpace(req.UserID)
	if userID == "" || c.awarder == nil {
		return resp
	}

	var skill *domain.SkillName
	if s, ok := gamification.DetectSkill(text); ok {
		skill = &s
	}

	result, err := c.awarder.AwardXP(ctx, userID, amount, reason, skill)
	if err != nil {
		c.log.Warn("chat xp award failed", "user_id", userID, "amount", amount, "error", err)
		return resp
	}
	resp.XPReward = &result
	return resp
}

// Configured reports whether the mentor can produce real replies.
func (c *ChatService) Configured() bool { return c.mentor.Configured() }
