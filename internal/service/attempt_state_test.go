package service

import (
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAttempt() *model.QuizAttempt {
	key := model.AttemptOpenKey(1, 2)
	return &model.QuizAttempt{UserID: 1, QuizID: 2, Status: model.AttemptCreated, OpenKey: &key}
}

func TestTransitionAttempt(t *testing.T) {
	now := time.Now()

	a := openAttempt()
	require.NoError(t, transitionAttempt(a, model.AttemptInProgress, now))
	assert.Equal(t, model.AttemptInProgress, a.Status)
	assert.NotNil(t, a.OpenKey)

	// 同状态视为无操作
	require.NoError(t, transitionAttempt(a, model.AttemptInProgress, now))

	require.NoError(t, transitionAttempt(a, model.AttemptCompleted, now))
	assert.Nil(t, a.OpenKey)
	require.NotNil(t, a.CompletedAt)
	assert.True(t, a.CompletedAt.Equal(now))

	assert.ErrorIs(t, transitionAttempt(a, model.AttemptExpired, now), util.ErrAlreadyCompleted)
	assert.ErrorIs(t, transitionAttempt(a, model.AttemptCompleted, now), util.ErrAlreadyCompleted)
}

func TestTransitionAttemptExpired(t *testing.T) {
	a := openAttempt()
	require.NoError(t, transitionAttempt(a, model.AttemptExpired, time.Now()))
	assert.Nil(t, a.OpenKey)
	assert.Nil(t, a.CompletedAt)
	assert.ErrorIs(t, transitionAttempt(a, model.AttemptCompleted, time.Now()), util.ErrAttemptExpired)
}

func TestTransitionAttemptRejectsBackwards(t *testing.T) {
	a := openAttempt()
	a.Status = model.AttemptInProgress
	assert.Error(t, transitionAttempt(a, model.AttemptCreated, time.Now()))
	assert.Equal(t, model.AttemptInProgress, a.Status)
}

func TestDeadlinePassed(t *testing.T) {
	now := time.Now()
	a := openAttempt()
	assert.False(t, deadlinePassed(a, now, 0), "untimed attempts never expire")

	expires := now.Add(-time.Minute)
	a.ExpiresAt = &expires
	assert.True(t, deadlinePassed(a, now, 0))
	assert.False(t, deadlinePassed(a, now, 2*time.Minute), "still inside grace period")
}
