package gamification

import (
	"time"

	"github.com/astra-mentor/astra/internal/domain"
)

// Streak is the result of a streak transition.
type Streak struct {
	Current int
	Longest int
}

// CalendarDay truncates t to its UTC calendar day.
func CalendarDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// NextStreak applies one day of activity to the stats' streak.
// First activity starts at 1. The next calendar day extends the streak,
// a longer gap restarts it at 1, and the same day leaves it alone.
// A last-activity date in the future (clock skew) also leaves it alone.
func NextStreak(stats domain.ChildStats, today time.Time) Streak {
	s := Streak{Current: stats.CurrentStreak, Longest: stats.LongestStreak}

	last, ok := stats.LastActivity()
	if !ok {
		s.Current = 1
	} else {
		diffDays := int(CalendarDay(today).Sub(last).Hours() / 24)
		switch {
		case diffDays == 1:
			s.Current++
		case diffDays > 1:
			s.Current = 1
		}
	}

	s.Longest = max(s.Longest, s.Current)
	return s
}
