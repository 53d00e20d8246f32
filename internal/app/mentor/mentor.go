// Package mentor wraps the completion service behind the Astra persona and
// turns chat turns into XP awards.
package mentor

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/astra-mentor/astra/internal/domain"
	"github.com/astra-mentor/astra/internal/infra/logger"
	"github.com/astra-mentor/astra/internal/infra/metrics"
)

// SystemPrompt is Astra's persona.
const SystemPrompt = `You are Astra, a kind, wise, slightly playful mentor helping a child learn real-world life skills.

Your personality:
- Kind and encouraging, never judgmental
- Wise but not overly serious
- Slightly playful and fun to talk with
- Patient and understanding
- Curious about the child's thoughts and experiences

Your approach:
- Always respond with encouragement and positivity
- Ask open-ended questions to promote thinking
- Show emotional intelligence and empathy
- Help children reflect on their experiences
- Guide them to discover answers rather than just giving solutions
- Use age-appropriate language
- Keep responses conversational and not too long

Your goal is to help children develop:
- Communication skills
- Problem-solving abilities
- Leadership qualities
- Emotional intelligence
- Confidence and self-awareness

Remember: You're talking to a child, so be warm, supportive, and engaging!`

// SetupMessage is shown when no completion service is configured.
const SetupMessage = "Hi there! I'm Astra, your AI mentor. I'd love to chat with you, " +
	"but it looks like the grown-ups need to set up my connection first. " +
	"Ask them to check the setup instructions!"

// FallbackReplies stand in for a completion that failed or came back empty.
var FallbackReplies = []string{
	"I'm sorry, I'm having trouble connecting right now. Can you try asking me again?",
	"Hmm, I seem to be having a little technical hiccup. What would you like to talk about?",
	"Oops! Something went wrong on my end. But I'm here and ready to chat with you!",
}

// configurable is implemented by completers that can be unconfigured.
type configurable interface {
	Configured() bool
}

// Service produces Astra's replies.
type Service struct {
	completer domain.Completer
	log       *logger.Logger
	pick      func(n int) int
}

// NewService creates a mentor over the given completer.
func NewService(c domain.Completer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{completer: c, log: log, pick: rand.Intn}
}

// Configured reports whether replies can come from the completer.
func (s *Service) Configured() bool {
	if s.completer == nil {
		return false
	}
	if c, ok := s.completer.(configurable); ok {
		return c.Configured()
	}
	return true
}

// Prompt builds the conversation sent to the completer: the persona,
// optionally personalised with the child's name, then the caller's turns.
// Caller-supplied system turns are dropped.
func Prompt(messages []domain.ChatMessage, childName string) []domain.ChatMessage {
	system := SystemPrompt
	if name := strings.TrimSpace(childName); name != "" {
		system += "\n\nThe child's name is " + name + ". Feel free to use their name naturally in conversation."
	}

	out := make([]domain.ChatMessage, 0, len(messages)+1)
	out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			continue
		}
		out = append(out, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// Reply asks the completer for Astra's next turn. Any failure is swallowed
// and one of FallbackReplies returned instead, with fallback set.
func (s *Service) Reply(ctx context.Context, messages []domain.ChatMessage, childName string) (reply string, fallback bool) {
	if !s.Configured() {
		metrics.MentorFallbacks.WithLabelValues("unconfigured").Inc()
		return s.fallback(), true
	}

	start := time.Now()
	text, err := s.completer.Complete(ctx, Prompt(messages, childName))
	metrics.MentorLatency.Observe(time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(text) == "" {
		err = domain.ErrEmptyCompletion
	}
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, domain.ErrEmptyCompletion):
			reason = "empty"
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			reason = "timeout"
		}
		metrics.MentorFallbacks.WithLabelValues(reason).Inc()
		s.log.Warn("mentor completion failed", "reason", reason, "error", err)
		return s.fallback(), true
	}
	return text, false
}

func (s *Service) fallback() string {
	return FallbackReplies[s.pick(len(FallbackReplies))]
}
