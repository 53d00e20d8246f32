package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, no infrastructure dependency.

var (
	// Input errors
	ErrInvalidAmount = errors.New("xp amount must be a positive integer no larger than the award limit")
	ErrInvalidSkill  = errors.New("unknown skill name")
	ErrInvalidUserID = errors.New("user id is required")

	// Progression errors
	ErrStatsMissing = errors.New("child stats missing after initialization")
	ErrStaleStats   = errors.New("child stats changed concurrently")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")

	// Mentor errors
	ErrMentorUnavailable = errors.New("mentor completion service is not configured")
	ErrEmptyCompletion   = errors.New("mentor returned an empty reply")

	// Auth errors
	ErrUnauthorized = errors.New("missing or invalid bearer token")
	ErrForbidden    = errors.New("caller may not access this user")
)
