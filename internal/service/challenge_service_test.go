package service

import (
	"context"
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeProgressAndReward(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	env.challenge.now = func() time.Time { return now }

	student := env.createUser(t, "alice", model.Student)
	outsider := env.createUser(t, "bob", model.Student)
	coach := env.createUser(t, "coach", model.Instructor)
	staff := Actor{UserID: coach.ID, Role: model.Instructor}
	badge, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Sprinter", PointsReward: 5})
	require.NoError(t, err)

	c, err := env.challenge.CreateChallenge(ctx, ChallengeRequest{Title: "Week sprint", PointsReward: 30, BadgeID: &badge.ID})
	require.NoError(t, err)
	assert.True(t, c.IsActive)
	assert.True(t, c.StartDate.Equal(now))

	uc, err := env.challenge.Accept(ctx, student.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChallengeAccepted, uc.Status)

	// 重复接受返回已有记录
	again, err := env.challenge.Accept(ctx, student.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, uc.ID, again.ID)

	_, err = env.challenge.UpdateProgress(ctx, staff, outsider.ID, c.ID, 50)
	assert.ErrorIs(t, err, util.ErrChallengeNotAccepted)

	uc, err = env.challenge.UpdateProgress(ctx, staff, student.ID, c.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, uc.Progress)
	assert.Equal(t, model.ChallengeInProgress, uc.Status)

	// 进度只增不减
	uc, err = env.challenge.UpdateProgress(ctx, staff, student.ID, c.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 40, uc.Progress)

	uc, err = env.challenge.UpdateProgress(ctx, staff, student.ID, c.ID, 150)
	require.NoError(t, err)
	assert.Equal(t, 100, uc.Progress)
	assert.Equal(t, model.ChallengeCompleted, uc.Status)
	require.NotNil(t, uc.CompletedAt)

	assert.Equal(t, 35, env.reloadUser(t, student.ID).Points)
	assert.Equal(t, 1, env.notifier.count(NotifyChallengeCompleted))

	// 完成后不再重复发放
	_, err = env.challenge.UpdateProgress(ctx, staff, student.ID, c.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 35, env.reloadUser(t, student.ID).Points)
	assert.Equal(t, 35, env.ledgerSum(t, student.ID))

	list, err := env.challenge.ListUserChallenges(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.ChallengeCompleted, list[0].Status)
}

func TestChallengeAvailability(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	env.challenge.now = func() time.Time { return now }
	student := env.createUser(t, "carol", model.Student)

	inactive := false
	start := now.AddDate(0, 0, -7)
	ended := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 3)
	nextWeek := now.AddDate(0, 0, 7)

	open, err := env.challenge.CreateChallenge(ctx, ChallengeRequest{Title: "Open", StartDate: &start, EndDate: &nextWeek})
	require.NoError(t, err)
	disabled, err := env.challenge.CreateChallenge(ctx, ChallengeRequest{Title: "Disabled", IsActive: &inactive})
	require.NoError(t, err)
	past, err := env.challenge.CreateChallenge(ctx, ChallengeRequest{Title: "Past", StartDate: &start, EndDate: &ended})
	require.NoError(t, err)
	upcoming, err := env.challenge.CreateChallenge(ctx, ChallengeRequest{Title: "Upcoming", StartDate: &future})
	require.NoError(t, err)

	active, err := env.challenge.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)

	for _, id := range []uint{disabled.ID, past.ID, upcoming.ID} {
		_, err := env.challenge.Accept(ctx, student.ID, id)
		assert.ErrorIs(t, err, util.ErrChallengeInactive)
	}

	_, err = env.challenge.Accept(ctx, student.ID, 9999)
	assert.ErrorIs(t, err, util.ErrChallengeNotFound)

	_, err = env.challenge.CreateChallenge(ctx, ChallengeRequest{Title: "Broken", StartDate: &nextWeek, EndDate: &start})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestChallengeClosedBeforeCompletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	env.challenge.now = func() time.Time { return now }
	student := env.createUser(t, "dave", model.Student)
	admin := env.createUser(t, "root", model.Admin)
	staff := Actor{UserID: admin.ID, Role: model.Admin}

	end := now.Add(time.Hour)
	c, err := env.challenge.CreateChallenge(ctx, ChallengeRequest{Title: "Short", PointsReward: 10, EndDate: &end})
	require.NoError(t, err)
	_, err = env.challenge.Accept(ctx, student.ID, c.ID)
	require.NoError(t, err)

	env.challenge.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = env.challenge.UpdateProgress(ctx, staff, student.ID, c.ID, 100)
	assert.ErrorIs(t, err, util.ErrChallengeInactive)
	assert.Equal(t, 0, env.reloadUser(t, student.ID).Points)
}

func TestStudentCannotReportOwnChallengeProgress(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	env.challenge.now = func() time.Time { return now }

	student := env.createUser(t, "erin", model.Student)
	classmate := env.createUser(t, "finn", model.Student)
	coach := env.createUser(t, "grace", model.Instructor)

	c, err := env.challenge.CreateChallenge(ctx, ChallengeRequest{Title: "Marathon", PointsReward: 500})
	require.NoError(t, err)
	_, err = env.challenge.Accept(ctx, student.ID, c.ID)
	require.NoError(t, err)
	_, err = env.challenge.Accept(ctx, coach.ID, c.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		actor  Actor
		target uint
	}{
		{"student for self", Actor{UserID: student.ID, Role: model.Student}, student.ID},
		{"student for classmate", Actor{UserID: classmate.ID, Role: model.Student}, student.ID},
		{"instructor for self", Actor{UserID: coach.ID, Role: model.Instructor}, coach.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.challenge.UpdateProgress(ctx, tt.actor, tt.target, c.ID, 100)
			assert.ErrorIs(t, err, util.ErrPermissionDenied)
		})
	}

	list, err := env.challenge.ListUserChallenges(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.ChallengeAccepted, list[0].Status)
	assert.Equal(t, 0, list[0].Progress)
	assert.Equal(t, 0, env.reloadUser(t, student.ID).Points)
	assert.Equal(t, 0, env.reloadUser(t, coach.ID).Points)
}
