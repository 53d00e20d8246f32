package gamification_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/astra-mentor/astra/internal/app/gamification"
	"github.com/astra-mentor/astra/internal/domain"
	"github.com/astra-mentor/astra/internal/infra/sqlite"
)

// testDB creates a temporary SQLite database with the default badge catalog.
func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.SeedBadges(context.Background(), gamification.DefaultBadges()); err != nil {
		t.Fatalf("seed badges: %v", err)
	}
	return db
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) AddDays(n int) {
	c.mu.Lock()
	c.now = c.now.AddDate(0, 0, n)
	c.mu.Unlock()
}

func newEngine(t *testing.T, db domain.GamificationStore, c *clock, opts ...gamification.Option) *gamification.Engine {
	t.Helper()
	opts = append([]gamification.Option{gamification.WithClock(c.Now)}, opts...)
	return gamification.NewEngine(db, opts...)
}

func skillPtr(s domain.SkillName) *domain.SkillName { return &s }

func mustStats(t *testing.T, db *sqlite.DB, userID string) *domain.ChildStats {
	t.Helper()
	stats, err := db.ChildStats(context.Background(), userID)
	if err != nil {
		t.Fatalf("ChildStats: %v", err)
	}
	if stats == nil {
		t.Fatalf("stats for %s missing", userID)
	}
	return stats
}

func mustSkill(t *testing.T, db *sqlite.DB, userID string, name domain.SkillName) domain.Skill {
	t.Helper()
	skills, err := db.Skills(context.Background(), userID)
	if err != nil {
		t.Fatalf("Skills: %v", err)
	}
	for _, s := range skills {
		if s.SkillName == name {
			return s
		}
	}
	t.Fatalf("skill %s missing", name)
	return domain.Skill{}
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Table Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestLevelFromXP_Boundaries(t *testing.T) {
	tests := []struct {
		xp    int64
		level int
	}{
		{0, 1}, {99, 1}, {100, 2}, {249, 2}, {250, 3}, {500, 4},
		{1000, 5}, {2000, 6}, {4000, 7}, {8000, 8}, {16000, 9},
		{31999, 9}, {32000, 10}, {1_000_000, 10}, {-5, 1},
	}
	for _, tt := range tests {
		if got := gamification.LevelFromXP(tt.xp); got != tt.level {
			t.Errorf("LevelFromXP(%d) = %d, want %d", tt.xp, got, tt.level)
		}
	}
}

func TestLevelFromXP_Monotonic(t *testing.T) {
	prev := gamification.LevelFromXP(0)
	for xp := int64(1); xp <= 40000; xp++ {
		lvl := gamification.LevelFromXP(xp)
		if lvl < prev {
			t.Fatalf("LevelFromXP(%d) = %d < LevelFromXP(%d) = %d", xp, lvl, xp-1, prev)
		}
		prev = lvl
	}
}

func TestXPForNextLevel(t *testing.T) {
	tests := []struct {
		level int
		want  int64
	}{
		{1, 100}, {2, 250}, {9, 32000},
		// Past the table: doubled last threshold
		{10, 64000}, {15, 64000},
	}
	for _, tt := range tests {
		if got := gamification.XPForNextLevel(tt.level); got != tt.want {
			t.Errorf("XPForNextLevel(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestXPProgressInLevel(t *testing.T) {
	p := gamification.XPProgressInLevel(175)
	if p.Current != 75 || p.Required != 150 || p.Percentage != 50 {
		t.Errorf("XPProgressInLevel(175) = %+v, want {75 150 50}", p)
	}

	p = gamification.XPProgressInLevel(0)
	if p.Current != 0 || p.Required != 100 || p.Percentage != 0 {
		t.Errorf("XPProgressInLevel(0) = %+v", p)
	}

	// Beyond the doubled threshold the percentage is capped
	p = gamification.XPProgressInLevel(100_000)
	if p.Percentage != 100 {
		t.Errorf("percentage = %v, want 100", p.Percentage)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestRewardTable(t *testing.T) {
	want := map[string]int64{
		"CHAT_MESSAGE": 5, "QUESTION_ASKED": 10, "SESSION_COMPLETE": 25,
		"DAILY_LOGIN": 15, "STREAK_BONUS": 5,
	}
	got := gamification.Rewards()
	if len(got) != len(want) {
		t.Fatalf("Rewards() has %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Rewards()[%s] = %d, want %d", k, got[k], v)
		}
	}
}

func TestSkillXPFor_RoundsUp(t *testing.T) {
	tests := map[int64]int64{1: 1, 5: 3, 10: 5, 25: 13, math.MaxInt64: math.MaxInt64/2 + 1}
	for in, want := range tests {
		if got := gamification.SkillXPFor(in); got != want {
			t.Errorf("SkillXPFor(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	for _, amt := range []int64{0, -1, -100, gamification.MaxAward + 1, math.MaxInt64} {
		if err := gamification.ValidateAmount(amt); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("ValidateAmount(%d) = %v, want ErrInvalidAmount", amt, err)
		}
	}
	for _, amt := range []int64{1, gamification.MaxAward} {
		if err := gamification.ValidateAmount(amt); err != nil {
			t.Errorf("ValidateAmount(%d) = %v", amt, err)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Skill Progression Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestApplySkillXP_Cascade(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	sk := domain.Skill{SkillName: domain.SkillLeadership, CurrentLevel: 2, XPInLevel: 180, XPToNextLevel: 200}

	got := gamification.ApplySkillXP(sk, 50, now)
	if got.CurrentLevel != 3 || got.XPInLevel != 30 || got.XPToNextLevel != 300 {
		t.Errorf("ApplySkillXP() = level %d, xp %d/%d; want 3, 30/300",
			got.CurrentLevel, got.XPInLevel, got.XPToNextLevel)
	}
}

func TestApplySkillXP_MultiLevel(t *testing.T) {
	sk := domain.Skill{CurrentLevel: 1, XPInLevel: 0, XPToNextLevel: 100}

	// 100 (L1→2) + 200 (L2→3) + 50 left over
	got := gamification.ApplySkillXP(sk, 350, time.Now())
	if got.CurrentLevel != 3 || got.XPInLevel != 50 || got.XPToNextLevel != 300 {
		t.Errorf("got level %d, xp %d/%d; want 3, 50/300", got.CurrentLevel, got.XPInLevel, got.XPToNextLevel)
	}
}

func TestApplySkillXP_CapAccumulates(t *testing.T) {
	sk := domain.Skill{CurrentLevel: 4, XPInLevel: 390, XPToNextLevel: 400}

	got := gamification.ApplySkillXP(sk, 1000, time.Now())
	if got.CurrentLevel != domain.MaxSkillLevel {
		t.Fatalf("level = %d, want %d", got.CurrentLevel, domain.MaxSkillLevel)
	}
	// 390+1000-400 = 990 retained past the 500 ceiling
	if got.XPInLevel != 990 || got.XPToNextLevel != 500 {
		t.Errorf("xp = %d/%d, want 990/500", got.XPInLevel, got.XPToNextLevel)
	}

	again := gamification.ApplySkillXP(got, 10, time.Now())
	if again.CurrentLevel != domain.MaxSkillLevel || again.XPInLevel != 1000 {
		t.Errorf("capped skill = level %d, xp %d", again.CurrentLevel, again.XPInLevel)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Transition Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestNextStreak(t *testing.T) {
	today := time.Date(2025, 7, 10, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		name        string
		stats       domain.ChildStats
		wantCurrent int
		wantLongest int
	}{
		{"first activity", domain.ChildStats{}, 1, 1},
		{"same day", domain.ChildStats{CurrentStreak: 4, LongestStreak: 6, LastActivityDate: "2025-07-10"}, 4, 6},
		{"next day", domain.ChildStats{CurrentStreak: 4, LongestStreak: 4, LastActivityDate: "2025-07-09"}, 5, 5},
		{"gap resets", domain.ChildStats{CurrentStreak: 9, LongestStreak: 9, LastActivityDate: "2025-07-07"}, 1, 9},
		{"future date unchanged", domain.ChildStats{CurrentStreak: 2, LongestStreak: 3, LastActivityDate: "2025-07-12"}, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gamification.NextStreak(tt.stats, today)
			if got.Current != tt.wantCurrent || got.Longest != tt.wantLongest {
				t.Errorf("NextStreak() = %+v, want {%d %d}", got, tt.wantCurrent, tt.wantLongest)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Engine Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestAwardXP_NewUserAsksQuestion(t *testing.T) {
	db := testDB(t)
	c := newClock()
	eng := newEngine(t, db, c)
	ctx := context.Background()

	msg := "Why do plants need sunlight?"
	amount, reason := gamification.ChatReward(msg)
	skill, ok := gamification.DetectSkill(msg)
	if !ok {
		t.Fatal("expected a skill to be detected")
	}

	res, err := eng.AwardXP(ctx, "kid-1", amount, reason, &skill)
	if err != nil {
		t.Fatalf("AwardXP: %v", err)
	}
	if res.NewXP != 10 || res.NewLevel != 1 || res.LeveledUp {
		t.Errorf("result = %+v", res)
	}

	stats := mustStats(t, db, "kid-1")
	if stats.TotalXPEarned != 10 || stats.CurrentLevel != 1 || stats.CurrentStreak != 1 {
		t.Errorf("stats = total %d, level %d, streak %d; want 10, 1, 1",
			stats.TotalXPEarned, stats.CurrentLevel, stats.CurrentStreak)
	}
	if stats.XPBalance != 10 {
		t.Errorf("XPBalance = %d, want 10", stats.XPBalance)
	}
	if stats.LastActivityDate != "2025-07-01" {
		t.Errorf("LastActivityDate = %q", stats.LastActivityDate)
	}

	sk := mustSkill(t, db, "kid-1", skill)
	if sk.XPInLevel != 5 {
		t.Errorf("%s xpInLevel = %d, want 5", skill, sk.XPInLevel)
	}

	history, _ := db.XPHistory(ctx, "kid-1", 10)
	if len(history) != 1 || history[0].Reason != "Asked a question" {
		t.Errorf("history = %+v", history)
	}
}

func TestAwardXP_TotalEqualsSum(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	amounts := []int64{5, 10, 25, 15, 5, 10, 100, 3}
	var sum int64
	for _, a := range amounts {
		if _, err := eng.AwardXP(ctx, "kid-1", a, "test", nil); err != nil {
			t.Fatalf("AwardXP(%d): %v", a, err)
		}
		sum += a
	}

	stats := mustStats(t, db, "kid-1")
	if stats.TotalXPEarned != sum {
		t.Errorf("TotalXPEarned = %d, want %d", stats.TotalXPEarned, sum)
	}
	if stats.CurrentLevel != gamification.LevelFromXP(sum) {
		t.Errorf("CurrentLevel = %d, want %d", stats.CurrentLevel, gamification.LevelFromXP(sum))
	}
	logged, _ := db.XPTotal(ctx, "kid-1")
	if logged != sum {
		t.Errorf("logged total = %d, want %d", logged, sum)
	}
}

func TestAwardXP_SameDayKeepsStreak(t *testing.T) {
	db := testDB(t)
	c := newClock()
	eng := newEngine(t, db, c)
	ctx := context.Background()

	_, _ = eng.AwardXP(ctx, "kid-1", 5, "chat", nil)
	first := mustStats(t, db, "kid-1").CurrentStreak

	_, _ = eng.AwardXP(ctx, "kid-1", 5, "chat", nil)
	_, _ = eng.AwardXP(ctx, "kid-1", 5, "chat", nil)
	second := mustStats(t, db, "kid-1").CurrentStreak

	if first != 1 || second != first {
		t.Errorf("streak after same-day awards = %d then %d, want 1 then 1", first, second)
	}
}

func TestAwardXP_StreakAcrossDays(t *testing.T) {
	db := testDB(t)
	c := newClock()
	eng := newEngine(t, db, c)
	ctx := context.Background()

	// Four consecutive days
	for i := 0; i < 4; i++ {
		if _, err := eng.AwardXP(ctx, "kid-1", 5, "chat", nil); err != nil {
			t.Fatalf("day %d: %v", i, err)
		}
		c.AddDays(1)
	}
	stats := mustStats(t, db, "kid-1")
	if stats.CurrentStreak != 4 || stats.LongestStreak != 4 {
		t.Fatalf("streak = %d/%d, want 4/4", stats.CurrentStreak, stats.LongestStreak)
	}

	// Skip two days: restart at 1, longest stays
	c.AddDays(2)
	_, _ = eng.AwardXP(ctx, "kid-1", 5, "chat", nil)
	stats = mustStats(t, db, "kid-1")
	if stats.CurrentStreak != 1 {
		t.Errorf("after gap streak = %d, want 1", stats.CurrentStreak)
	}
	if stats.LongestStreak != 4 {
		t.Errorf("longest = %d, want 4 (never decreases)", stats.LongestStreak)
	}

	// Next day extends the new streak
	c.AddDays(1)
	_, _ = eng.AwardXP(ctx, "kid-1", 5, "chat", nil)
	stats = mustStats(t, db, "kid-1")
	if stats.CurrentStreak != 2 || stats.LongestStreak != 4 {
		t.Errorf("streak = %d/%d, want 2/4", stats.CurrentStreak, stats.LongestStreak)
	}
}

func TestAwardXP_LevelUpAndBadges(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	res, err := eng.AwardXP(ctx, "kid-1", 95, "bulk", nil)
	if err != nil {
		t.Fatalf("AwardXP: %v", err)
	}
	if res.LeveledUp {
		t.Error("95 XP should not level up")
	}
	if len(res.BadgesEarned) != 1 || res.BadgesEarned[0] != "First Steps" {
		t.Errorf("badges = %v, want [First Steps]", res.BadgesEarned)
	}

	res, _ = eng.AwardXP(ctx, "kid-1", 10, "chat", nil)
	if !res.LeveledUp || res.NewLevel != 2 {
		t.Errorf("result = %+v, want level-up to 2", res)
	}
	if len(res.BadgesEarned) != 1 || res.BadgesEarned[0] != "Curious Mind" {
		t.Errorf("badges = %v, want [Curious Mind]", res.BadgesEarned)
	}

	res, _ = eng.AwardXP(ctx, "kid-1", 5, "chat", nil)
	if res.LeveledUp || len(res.BadgesEarned) != 0 {
		t.Errorf("no new level or badges expected, got %+v", res)
	}
	if res.BadgesEarned == nil {
		t.Error("BadgesEarned should be an empty slice, not nil")
	}
}

func TestCheckAndAwardBadges_OnlyOnce(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()
	_ = eng.InitializeChild(ctx, "kid-1")

	first, err := eng.CheckAndAwardBadges(ctx, "kid-1", 120, 2, 3)
	if err != nil {
		t.Fatalf("CheckAndAwardBadges: %v", err)
	}
	// First Steps, Curious Mind, On a Roll
	if len(first) != 3 {
		t.Fatalf("first run earned %v, want 3 badges", first)
	}

	for i := 0; i < 3; i++ {
		again, err := eng.CheckAndAwardBadges(ctx, "kid-1", 120, 2, 3)
		if err != nil {
			t.Fatalf("rerun: %v", err)
		}
		if len(again) != 0 {
			t.Errorf("rerun %d earned %v, want none", i, again)
		}
	}

	earned, _ := db.EarnedBadges(ctx, "kid-1")
	if len(earned) != 3 {
		t.Errorf("ledger has %d badges, want 3", len(earned))
	}
}

func TestUpdateSkillXP(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	// Uninitialized user: no-op, no error, nothing created
	if err := eng.UpdateSkillXP(ctx, "ghost", domain.SkillCommunication, 50); err != nil {
		t.Fatalf("UpdateSkillXP on ghost: %v", err)
	}
	if skills, _ := db.Skills(ctx, "ghost"); len(skills) != 0 {
		t.Errorf("ghost skills = %d, want 0", len(skills))
	}

	_ = eng.InitializeChild(ctx, "kid-1")
	if err := eng.UpdateSkillXP(ctx, "kid-1", domain.SkillCommunication, 280); err != nil {
		t.Fatalf("UpdateSkillXP: %v", err)
	}
	sk := mustSkill(t, db, "kid-1", domain.SkillCommunication)
	// 280 - 100 (L1) = 180 at L2
	if sk.CurrentLevel != 2 || sk.XPInLevel != 180 || sk.XPToNextLevel != 200 {
		t.Fatalf("skill = %+v", sk)
	}

	_ = eng.UpdateSkillXP(ctx, "kid-1", domain.SkillCommunication, 50)
	sk = mustSkill(t, db, "kid-1", domain.SkillCommunication)
	if sk.CurrentLevel != 3 || sk.XPInLevel != 30 || sk.XPToNextLevel != 300 {
		t.Errorf("skill = level %d, xp %d/%d; want 3, 30/300", sk.CurrentLevel, sk.XPInLevel, sk.XPToNextLevel)
	}

	if err := eng.UpdateSkillXP(ctx, "kid-1", "juggling", 5); !errors.Is(err, domain.ErrInvalidSkill) {
		t.Errorf("unknown skill err = %v", err)
	}
}

func TestAwardXP_RejectsBadInput(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	if _, err := eng.AwardXP(ctx, "kid-1", 0, "zero", nil); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero amount err = %v", err)
	}
	if _, err := eng.AwardXP(ctx, "kid-1", -5, "negative", nil); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("negative amount err = %v", err)
	}
	if _, err := eng.AwardXP(ctx, "  ", 5, "blank", nil); !errors.Is(err, domain.ErrInvalidUserID) {
		t.Errorf("blank user err = %v", err)
	}
	if _, err := eng.AwardXP(ctx, "kid-1", 5, "bad skill", skillPtr("juggling")); !errors.Is(err, domain.ErrInvalidSkill) {
		t.Errorf("bad skill err = %v", err)
	}

	// Nothing was written
	if stats, _ := db.ChildStats(ctx, "kid-1"); stats != nil {
		t.Error("rejected awards must not initialize the user")
	}
}

func TestAwardXP_RejectsOversizedAmount(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	if _, err := eng.AwardXP(ctx, "kid-1", math.MaxInt64, "big", skillPtr(domain.SkillLeadership)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("max int award err = %v, want ErrInvalidAmount", err)
	}
	if stats, _ := db.ChildStats(ctx, "kid-1"); stats != nil {
		t.Error("oversized award must not initialize the user")
	}
}

func TestAwardXP_RejectsTotalOverflow(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	if _, err := eng.AwardXP(ctx, "kid-1", 10, "seed", nil); err != nil {
		t.Fatalf("AwardXP() error: %v", err)
	}
	err := db.InTx(ctx, func(tx domain.GamificationTx) error {
		s, err := tx.ChildStats("kid-1")
		if err != nil {
			return err
		}
		s.TotalXPEarned = math.MaxInt64 - 5
		s.XPBalance = math.MaxInt64 - 5
		return tx.UpdateChildStats(*s)
	})
	if err != nil {
		t.Fatalf("set stats: %v", err)
	}

	_, err = eng.AwardXP(ctx, "kid-1", 10, "overflow", skillPtr(domain.SkillLeadership))
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("overflowing award err = %v, want ErrInvalidAmount", err)
	}

	stats := mustStats(t, db, "kid-1")
	if stats.TotalXPEarned != math.MaxInt64-5 {
		t.Errorf("total = %d, want unchanged", stats.TotalXPEarned)
	}
	if sk := mustSkill(t, db, "kid-1", domain.SkillLeadership); sk.XPInLevel != 0 || sk.CurrentLevel != 1 {
		t.Errorf("skill = level %d, xp %d; want untouched", sk.CurrentLevel, sk.XPInLevel)
	}
	if history, _ := eng.History(ctx, "kid-1", 10); len(history) != 1 {
		t.Errorf("history has %d entries, want 1", len(history))
	}
}

func TestAwardXP_ConcurrentSameUser(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.AwardXP(ctx, "kid-1", 5, "race", skillPtr(domain.SkillLeadership)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent award: %v", err)
	}

	stats := mustStats(t, db, "kid-1")
	if stats.TotalXPEarned != workers*5 {
		t.Errorf("TotalXPEarned = %d, want %d (lost update)", stats.TotalXPEarned, workers*5)
	}
	if stats.CurrentStreak != 1 {
		t.Errorf("streak = %d, want 1", stats.CurrentStreak)
	}
	sk := mustSkill(t, db, "kid-1", domain.SkillLeadership)
	// 20 × ceil(5/2) = 60
	if sk.XPInLevel != 60 {
		t.Errorf("leadership xp = %d, want 60", sk.XPInLevel)
	}
}

// failingStore fails XP log writes inside transactions.
type failingStore struct {
	*sqlite.DB
}

type failingTx struct {
	domain.GamificationTx
}

var errLogWrite = errors.New("disk full")

func (f failingStore) InTx(ctx context.Context, fn func(tx domain.GamificationTx) error) error {
	return f.DB.InTx(ctx, func(tx domain.GamificationTx) error {
		return fn(failingTx{tx})
	})
}

func (failingTx) InsertXPTransaction(domain.XPTransaction) error { return errLogWrite }

func TestAwardXP_AtomicOnFailure(t *testing.T) {
	db := testDB(t)
	c := newClock()
	eng := newEngine(t, failingStore{db}, c)
	ctx := context.Background()

	_, err := eng.AwardXP(ctx, "kid-1", 50, "chat", skillPtr(domain.SkillCommunication))
	if !errors.Is(err, errLogWrite) {
		t.Fatalf("expected log write error, got %v", err)
	}

	// Lazy init committed; the award itself rolled back entirely
	stats := mustStats(t, db, "kid-1")
	if stats.TotalXPEarned != 0 || stats.CurrentStreak != 0 || stats.LastActivityDate != "" {
		t.Errorf("stats changed despite failure: %+v", stats)
	}
	if sk := mustSkill(t, db, "kid-1", domain.SkillCommunication); sk.XPInLevel != 0 {
		t.Errorf("skill changed despite failure: %+v", sk)
	}
}

func TestDashboard_LazyInit(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	dash, err := eng.Dashboard(ctx, "new-kid")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dash.Stats == nil || dash.Stats.CurrentLevel != 1 {
		t.Errorf("stats = %+v", dash.Stats)
	}
	if len(dash.Skills) != 3 {
		t.Errorf("skills = %d, want 3", len(dash.Skills))
	}
	if len(dash.EarnedBadges) != 0 {
		t.Errorf("earned = %d, want 0", len(dash.EarnedBadges))
	}
	if len(dash.AllBadges) != len(gamification.DefaultBadges()) {
		t.Errorf("allBadges = %d, want %d", len(dash.AllBadges), len(gamification.DefaultBadges()))
	}
	if dash.Progress.Required != 100 {
		t.Errorf("progress = %+v", dash.Progress)
	}
}

func TestDashboard_AfterAwards(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	_, _ = eng.AwardXP(ctx, "kid-1", 175, "bulk", nil)

	dash, err := eng.Dashboard(ctx, "kid-1")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dash.Stats.TotalXPEarned != 175 {
		t.Errorf("total = %d", dash.Stats.TotalXPEarned)
	}
	if dash.Progress.Current != 75 || dash.Progress.Percentage != 50 {
		t.Errorf("progress = %+v", dash.Progress)
	}
	if len(dash.EarnedBadges) != 2 {
		t.Errorf("earned = %d, want 2", len(dash.EarnedBadges))
	}
}

func TestHistory_Limit(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		_, _ = eng.AwardXP(ctx, "kid-1", 5, "chat", nil)
	}

	h, err := eng.History(ctx, "kid-1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h) != 20 {
		t.Errorf("default limit = %d, want 20", len(h))
	}
	h, _ = eng.History(ctx, "kid-1", 500)
	if len(h) != 30 {
		t.Errorf("clamped limit = %d, want 30", len(h))
	}
}

func TestInitializeChild_ConcurrentCallers(t *testing.T) {
	db := testDB(t)
	eng := newEngine(t, db, newClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := eng.InitializeChild(ctx, "kid-1"); err != nil {
				t.Errorf("InitializeChild: %v", err)
			}
		}()
	}
	wg.Wait()

	skills, _ := db.Skills(ctx, "kid-1")
	if len(skills) != 3 {
		t.Errorf("skills = %d, want 3", len(skills))
	}
}

func TestDefaultBadges_CategoryMatchesRequirement(t *testing.T) {
	want := map[domain.RequirementType]domain.BadgeCategory{
		domain.RequireTotalXP: domain.BadgeLearning,
		domain.RequireStreak:  domain.BadgeStreak,
		domain.RequireLevel:   domain.BadgeAchievement,
	}
	seen := map[string]bool{}
	for _, b := range gamification.DefaultBadges() {
		if seen[b.ID] {
			t.Errorf("duplicate badge id %s", b.ID)
		}
		seen[b.ID] = true
		if b.Category != want[b.RequirementType] {
			t.Errorf("%s: category %s for requirement %s, want %s",
				b.ID, b.Category, b.RequirementType, want[b.RequirementType])
		}
	}
}

// gatedStore holds InitializeChild until release is closed.
type gatedStore struct {
	*sqlite.DB
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) InitializeChild(ctx context.Context, userID string, now time.Time) error {
	close(g.entered)
	<-g.release
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.DB.InitializeChild(ctx, userID, now)
}

func TestInitializeChild_SharedCallSurvivesCancel(t *testing.T) {
	db := testDB(t)
	store := &gatedStore{DB: db, entered: make(chan struct{}), release: make(chan struct{})}
	eng := newEngine(t, store, newClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.InitializeChild(ctx, "kid-1") }()

	<-store.entered
	cancel()
	close(store.release)

	if err := <-done; err != nil {
		t.Fatalf("InitializeChild() error: %v", err)
	}
	mustStats(t, db, "kid-1")
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestNotifications_FromAwards(t *testing.T) {
	db := testDB(t)
	c := newClock()
	notifs := gamification.NewNotificationService(db)
	notifs.SetClock(c.Now)
	eng := newEngine(t, db, c, gamification.WithNotifier(notifs))
	ctx := context.Background()

	// First Steps + Curious Mind + level 2
	if _, err := eng.AwardXP(ctx, "kid-1", 100, "bulk", nil); err != nil {
		t.Fatalf("AwardXP: %v", err)
	}

	pending, err := notifs.Pending(ctx, "kid-1", 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}

	kinds := map[domain.NotificationType]int{}
	for _, n := range pending {
		kinds[n.Type]++
	}
	if kinds[domain.NotifyLevelUp] != 1 || kinds[domain.NotifyBadgeEarned] != 2 {
		t.Errorf("kinds = %v", kinds)
	}

	if err := notifs.MarkShown(ctx, "kid-1", pending[0].ID); err != nil {
		t.Fatalf("MarkShown: %v", err)
	}
	pending, _ = notifs.Pending(ctx, "kid-1", 10)
	if len(pending) != 2 {
		t.Errorf("pending after shown = %d, want 2", len(pending))
	}

	// Plain awards produce nothing
	_, _ = eng.AwardXP(ctx, "kid-1", 5, "chat", nil)
	pending, _ = notifs.Pending(ctx, "kid-1", 10)
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2", len(pending))
	}
}

func TestNotifications_DailyCap(t *testing.T) {
	db := testDB(t)
	c := newClock()
	notifs := gamification.NewNotificationServiceWithPolicy(db, domain.NotificationPolicy{MaxPerDay: 2})
	notifs.SetClock(c.Now)
	ctx := context.Background()

	var created int
	for i := 0; i < 5; i++ {
		id, err := notifs.Create(ctx, domain.Notification{UserID: "kid-1", Type: domain.NotifyLevelUp, Title: "t", Body: "b"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if id > 0 {
			created++
		}
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	// Another child has their own budget
	id, _ := notifs.Create(ctx, domain.Notification{UserID: "kid-2", Type: domain.NotifyLevelUp, Title: "t", Body: "b"})
	if id == 0 {
		t.Error("kid-2 should not be capped by kid-1")
	}

	// Next day resets the budget
	c.AddDays(1)
	id, _ = notifs.Create(ctx, domain.Notification{UserID: "kid-1", Type: domain.NotifyLevelUp, Title: "t", Body: "b"})
	if id == 0 {
		t.Error("cap should reset on a new day")
	}
}
