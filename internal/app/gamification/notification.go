package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/astra-mentor/astra/internal/domain"
)

// NotificationService turns level-ups and new badges into notifications
// for the child's progress screen.
//   - At most MaxPerDay notifications per child per UTC day
//   - Only level-ups and badges, never "streak at risk" nags
type NotificationService struct {
	store  domain.NotificationStore
	policy domain.NotificationPolicy
	now    func() time.Time
}

var _ Notifier = (*NotificationService)(nil)

// NewNotificationService creates a notification service with the default policy.
func NewNotificationService(store domain.NotificationStore) *NotificationService {
	return NewNotificationServiceWithPolicy(store, domain.DefaultNotificationPolicy())
}

// NewNotificationServiceWithPolicy creates a notification service with a custom policy.
func NewNotificationServiceWithPolicy(store domain.NotificationStore, policy domain.NotificationPolicy) *NotificationService {
	return &NotificationService{store: store, policy: policy, now: time.Now}
}

// SetClock overrides time.Now.
func (n *NotificationService) SetClock(now func() time.Time) { n.now = now }

// Create stores a notification if the daily cap allows it.
// Returns the notification ID, or 0 if suppressed by policy.
func (n *NotificationService) Create(ctx context.Context, notif domain.Notification) (int64, error) {
	now := n.now()
	todayCount, err := n.store.NotificationCountSince(ctx, notif.UserID, CalendarDay(now))
	if err != nil {
		return 0, fmt.Errorf("count today: %w", err)
	}
	if todayCount >= n.policy.MaxPerDay {
		return 0, nil // Suppressed, daily limit reached
	}

	notif.CreatedAt = now
	notif.Shown = false

	id, err := n.store.InsertNotification(ctx, notif)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// NotifyAward creates one notification for a level-up and one per new badge.
func (n *NotificationService) NotifyAward(ctx context.Context, userID string, result domain.AwardResult) error {
	if result.LeveledUp {
		_, err := n.Create(ctx, domain.Notification{
			UserID: userID,
			Type:   domain.NotifyLevelUp,
			Title:  fmt.Sprintf("Level %d!", result.NewLevel),
			Body:   fmt.Sprintf("Amazing! You reached level %d with %d XP.", result.NewLevel, result.NewXP),
		})
		if err != nil {
			return err
		}
	}
	for _, name := range result.BadgesEarned {
		_, err := n.Create(ctx, domain.Notification{
			UserID: userID,
			Type:   domain.NotifyBadgeEarned,
			Title:  "New badge: " + name,
			Body:   fmt.Sprintf("You earned the %s badge. Keep it up!", name),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Pending returns a user's unshown notifications.
func (n *NotificationService) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return n.store.PendingNotifications(ctx, userID, limit)
}

// MarkShown marks a notification as shown.
func (n *NotificationService) MarkShown(ctx context.Context, userID string, id int64) error {
	return n.store.MarkNotificationShown(ctx, userID, id)
}

// Policy returns the current notification policy.
func (n *NotificationService) Policy() domain.NotificationPolicy {
	return n.policy
}
