package service

import (
	"context"
	"edumate_backend/internal/config"
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardPointsLevelUp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "alice", model.Student)

	res, err := env.reward.AwardPoints(ctx, user.ID, 95, model.TransactionEarned, "warm up")
	require.NoError(t, err)
	assert.Equal(t, 95, res.Balance)
	assert.Equal(t, 1, res.Level)
	assert.False(t, res.LeveledUp())

	res, err = env.reward.AwardPoints(ctx, user.ID, 10, model.TransactionBonus, "bonus")
	require.NoError(t, err)
	assert.Equal(t, 105, res.Balance)
	assert.Equal(t, 2, res.Level)
	assert.Equal(t, 1, res.PreviousLevel)
	assert.True(t, res.LeveledUp())

	stored := env.reloadUser(t, user.ID)
	assert.Equal(t, 105, stored.Points)
	assert.Equal(t, 2, stored.Level)
	assert.Equal(t, stored.Points, env.ledgerSum(t, user.ID))
	assert.Equal(t, 2, env.notifier.count(NotifyPointsAwarded))
	assert.Equal(t, 1, env.notifier.count(NotifyLevelUp))

	entry, err := env.board.GetUserRank(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 105, entry.Points)
	assert.Equal(t, 1, entry.Rank)
}

func TestAwardPointsRejectsInvalidTransactions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "bob", model.Student)

	tests := []struct {
		name   string
		points int
		kind   model.TransactionKind
	}{
		{"negative earned", -5, model.TransactionEarned},
		{"zero bonus", 0, model.TransactionBonus},
		{"positive spent", 5, model.TransactionSpent},
		{"positive penalty", 3, model.TransactionPenalty},
		{"unknown kind", 5, model.TransactionKind("gift")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.reward.AwardPoints(ctx, user.ID, tt.points, tt.kind, "")
			assert.ErrorIs(t, err, util.ErrInvalidTransaction)
		})
	}
	assert.Equal(t, 0, env.ledgerSum(t, user.ID))

	_, err := env.reward.AwardPoints(ctx, 9999, 5, model.TransactionEarned, "")
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestSpendingLowersLevel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "carol", model.Student)

	_, err := env.reward.AwardPoints(ctx, user.ID, 260, model.TransactionEarned, "")
	require.NoError(t, err)
	res, err := env.reward.AwardPoints(ctx, user.ID, -200, model.TransactionSpent, "shop")
	require.NoError(t, err)
	assert.Equal(t, 60, res.Balance)
	assert.Equal(t, 1, res.Level)
	assert.Equal(t, 3, res.PreviousLevel)

	history, err := env.reward.GetPointsHistory(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, history.Total)
	assert.Len(t, history.Items, 2)
}

func TestBadgeCascade(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "dave", model.Student)

	first, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Fifty", PointsRequired: 50, PointsReward: 60})
	require.NoError(t, err)
	second, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Hundred", PointsRequired: 100})
	require.NoError(t, err)

	_, err = env.reward.AwardPoints(ctx, user.ID, 50, model.TransactionEarned, "")
	require.NoError(t, err)

	// 第一个徽章的奖励积分触发第二个徽章
	badges, err := env.reward.ListUserBadges(ctx, user.ID)
	require.NoError(t, err)
	ids := []uint{}
	for _, b := range badges {
		ids = append(ids, b.BadgeID)
	}
	assert.ElementsMatch(t, []uint{first.ID, second.ID}, ids)

	stored := env.reloadUser(t, user.ID)
	assert.Equal(t, 110, stored.Points)
	assert.Equal(t, stored.Points, env.ledgerSum(t, user.ID))
	assert.Equal(t, 2, env.notifier.count(NotifyBadgeEarned))
}

func TestBadgeCascadeStopsAtDepthLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "erin", model.Student)

	cfg := config.DefaultRewardConfig()
	cfg.MaxPropagationDepth = 1
	require.NoError(t, env.reward.UpdateSettings(cfg))

	_, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Fifty", PointsRequired: 50, PointsReward: 60})
	require.NoError(t, err)
	_, err = env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Hundred", PointsRequired: 100})
	require.NoError(t, err)

	_, err = env.reward.AwardPoints(ctx, user.ID, 50, model.TransactionEarned, "")
	require.NoError(t, err)

	count, err := env.reward.BadgeRepo.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 110, env.reloadUser(t, user.ID).Points)

	// 下一次判定时补发
	earned, err := env.reward.CheckBadgeEligibility(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, "Hundred", earned[0].Name)
}

func TestConcurrentBadgeChecksGrantOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "frank", model.Student)

	_, err := env.reward.AwardPoints(ctx, user.ID, 20, model.TransactionEarned, "")
	require.NoError(t, err)
	badge, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Twenty", PointsRequired: 20, PointsReward: 5})
	require.NoError(t, err)

	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			earned, err := env.reward.CheckBadgeEligibility(ctx, user.ID)
			assert.NoError(t, err)
			mu.Lock()
			total += len(earned)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)
	badges, err := env.reward.ListUserBadges(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, badge.ID, badges[0].BadgeID)

	stored := env.reloadUser(t, user.ID)
	assert.Equal(t, 25, stored.Points)
	assert.Equal(t, 25, env.ledgerSum(t, user.ID))
}

func TestCriterionBadgeOnCourseCompletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	f := env.newQuizFixture(t, 0)
	student := env.createUser(t, "grace", model.Student)

	graduate, err := env.catalog.CreateBadge(ctx, BadgeRequest{
		Name:         "Graduate",
		PointsReward: 25,
		Criterion:    &CriterionInput{ProgressType: model.ProgressCourseCompletion, Threshold: 1, CourseID: &f.course.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, model.BadgeProgress, graduate.BadgeType)

	_, err = env.enrollment.Enroll(ctx, student.ID, f.course.ID)
	require.NoError(t, err)
	attempt, err := env.quiz.StartAttempt(ctx, student.ID, f.quiz.ID)
	require.NoError(t, err)
	_, err = env.quiz.RecordAnswer(ctx, student.ID, attempt.ID, AnswerRequest{QuestionID: f.choice.ID, AnswerID: f.correctChoice()})
	require.NoError(t, err)
	_, err = env.quiz.RecordAnswer(ctx, student.ID, attempt.ID, AnswerRequest{QuestionID: f.short.ID, Text: "PARIS"})
	require.NoError(t, err)
	_, err = env.quiz.SubmitAttempt(ctx, student.ID, attempt.ID)
	require.NoError(t, err)

	badges, err := env.reward.ListUserBadges(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, graduate.ID, badges[0].BadgeID)

	// 105 + 徽章奖励 25
	stored := env.reloadUser(t, student.ID)
	assert.Equal(t, 130, stored.Points)
	assert.Equal(t, stored.Points, env.ledgerSum(t, student.ID))
}

func TestAchievementGrantsLinkedBadge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "heidi", model.Student)

	badge, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Explorer", PointsReward: 7})
	require.NoError(t, err)
	achievement, err := env.catalog.CreateAchievement(ctx, AchievementRequest{
		Name:         "First Steps",
		Type:         model.AchievementEnrollment,
		Threshold:    1,
		PointsReward: 5,
		BadgeID:      &badge.ID,
	})
	require.NoError(t, err)

	unlocked, err := env.reward.CheckAchievements(ctx, user.ID, model.AchievementEnrollment, 0)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	unlocked, err = env.reward.CheckAchievements(ctx, user.ID, model.AchievementEnrollment, 1)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, achievement.ID, unlocked[0].ID)

	assert.Equal(t, 12, env.reloadUser(t, user.ID).Points)
	badges, err := env.reward.ListUserBadges(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, badge.ID, badges[0].BadgeID)
	assert.Equal(t, 1, env.notifier.count(NotifyAchievementUnlocked))

	unlocked, err = env.reward.CheckAchievements(ctx, user.ID, model.AchievementEnrollment, 3)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
	assert.Equal(t, 12, env.reloadUser(t, user.ID).Points)
	assert.Equal(t, 12, env.ledgerSum(t, user.ID))
}

func TestUpdateStreakUnlocksStreakAchievement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ivan", model.Student)

	_, err := env.catalog.CreateAchievement(ctx, AchievementRequest{Name: "Two Days", Type: model.AchievementStreak, Threshold: 2, PointsReward: 15})
	require.NoError(t, err)

	day := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	s, err := env.reward.UpdateStreak(ctx, user.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStreak)

	s, err = env.reward.UpdateStreak(ctx, user.ID, day.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 0, env.reloadUser(t, user.ID).Points)

	s, err = env.reward.UpdateStreak(ctx, user.ID, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, s.CurrentStreak)
	assert.Equal(t, 15, env.reloadUser(t, user.ID).Points)

	stored, err := env.reward.GetStreak(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.LongestStreak)
	assert.Equal(t, "2024-06-02", stored.LastActivityDate)
}

func TestDispatchEnrolledEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "judy", model.Student)

	env.reward.Dispatch(ctx, Event{Kind: EventEnrolled, UserID: user.ID, Title: "Go"})
	assert.Equal(t, 10, env.reloadUser(t, user.ID).Points)

	streak, err := env.reward.GetStreak(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, streak.CurrentStreak)

	// 未知用户的事件只记录失败
	assert.NotPanics(t, func() {
		env.reward.Dispatch(ctx, Event{Kind: EventQuizSubmitted, UserID: 9999, Passed: true, Percentage: 80})
	})
	assert.Equal(t, 0, env.ledgerSum(t, 9999))
}

func TestQuizPassPoints(t *testing.T) {
	cfg := config.DefaultRewardConfig()
	assert.Equal(t, 45, QuizPassPoints(cfg, 100))
	assert.Equal(t, 37, QuizPassPoints(cfg, 70.9))

	cfg.QuizScoreBonusDivisor = 0
	assert.Equal(t, 20, QuizPassPoints(cfg, 100))
}

func TestGrantBadgeManually(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "mallory", model.Student)
	badge, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Helper", PointsReward: 3})
	require.NoError(t, err)

	granted, err := env.reward.GrantBadge(ctx, user.ID, badge.ID)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = env.reward.GrantBadge(ctx, user.ID, badge.ID)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, 3, env.reloadUser(t, user.ID).Points)

	_, err = env.reward.GrantBadge(ctx, user.ID, 9999)
	assert.ErrorIs(t, err, util.ErrBadgeNotFound)
}

func TestRewardSummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.createUser(t, "niaj", model.Student)

	_, err := env.reward.AwardPoints(ctx, user.ID, 95, model.TransactionEarned, "")
	require.NoError(t, err)

	summary, err := env.reward.GetSummary(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 95, summary.Points)
	assert.Equal(t, 1, summary.Level)
	require.NotNil(t, summary.NextLevelPoints)
	assert.Equal(t, 100, *summary.NextLevelPoints)

	_, err = env.reward.GetSummary(ctx, 9999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestUpdateSettingsRejectsInvalidThresholds(t *testing.T) {
	env := newTestEnv(t, nil)
	cfg := config.DefaultRewardConfig()
	cfg.LevelThresholds = []int{100, 100}

	assert.Error(t, env.reward.UpdateSettings(cfg))
	assert.Equal(t, []int{100, 250, 500, 1000}, env.reward.Settings().LevelThresholds)
}

func TestAchievementProgress(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	f := env.newQuizFixture(t, 0)
	user := env.createUser(t, "mallory", model.Student)

	create := func(name string, typ model.AchievementType, threshold int) *model.Achievement {
		a, err := env.catalog.CreateAchievement(ctx, AchievementRequest{Name: name, Type: typ, Threshold: threshold})
		require.NoError(t, err)
		return a
	}
	firstCourse := create("First Course", model.AchievementEnrollment, 1)
	fourCourses := create("Four Courses", model.AchievementEnrollment, 4)
	graduate := create("Graduate", model.AchievementCourseCompletion, 2)
	sharp := create("Sharp", model.AchievementQuizScore, 80)
	weekly := create("Weekly", model.AchievementStreak, 7)

	_, err := env.enrollment.Enroll(ctx, user.ID, f.course.ID)
	require.NoError(t, err)
	a, err := env.quiz.StartAttempt(ctx, user.ID, f.quiz.ID)
	require.NoError(t, err)
	_, err = env.quiz.RecordAnswer(ctx, user.ID, a.ID, AnswerRequest{QuestionID: f.choice.ID, AnswerID: f.correctChoice()})
	require.NoError(t, err)
	_, err = env.quiz.SubmitAttempt(ctx, user.ID, a.ID)
	require.NoError(t, err)

	list, err := env.reward.AchievementProgress(ctx, user.ID)
	require.NoError(t, err)
	byID := make(map[uint]AchievementProgress, len(list))
	for _, p := range list {
		byID[p.Achievement.ID] = p
	}
	require.Len(t, byID, 5)

	tests := []struct {
		name     string
		id       uint
		unlocked bool
		current  int
		progress int
	}{
		{"unlocked enrollment", firstCourse.ID, true, 1, 100},
		{"partial enrollment", fourCourses.ID, false, 1, 25},
		{"no completed course", graduate.ID, false, 0, 0},
		{"best quiz score", sharp.ID, false, 50, 62},
		{"streak", weekly.ID, false, 1, 14},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := byID[tt.id]
			assert.Equal(t, tt.unlocked, p.Unlocked)
			assert.Equal(t, tt.current, p.Current)
			assert.Equal(t, tt.progress, p.Progress)
			if tt.unlocked {
				assert.NotNil(t, p.AchievedAt)
			} else {
				assert.Nil(t, p.AchievedAt)
			}
		})
	}

	_, err = env.reward.AchievementProgress(ctx, 9999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		current, threshold, want int
	}{
		{0, 10, 0},
		{-3, 10, 0},
		{3, 10, 30},
		{10, 10, 100},
		{25, 10, 100},
		{0, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, progressPercent(tt.current, tt.threshold), "%d/%d", tt.current, tt.threshold)
	}
}
