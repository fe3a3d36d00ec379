package service

import (
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsFixture() *model.UserMetrics {
	return &model.UserMetrics{
		UserID:             1,
		Points:             120,
		CompletedCourseIDs: []uint{1, 2},
		ModuleProgress: []model.ModuleProgress{
			{ModuleID: 10, CourseID: 1, CompletionPercentage: 100},
			{ModuleID: 11, CourseID: 1, CompletionPercentage: 50},
			{ModuleID: 20, CourseID: 2, CompletionPercentage: 100},
		},
		LessonCompletions: []model.LessonCompletion{
			{LessonID: 100, ModuleID: 10, CourseID: 1},
			{LessonID: 101, ModuleID: 10, CourseID: 1},
			{LessonID: 200, ModuleID: 20, CourseID: 2},
		},
		PassedAttempts: []model.PassedAttempt{
			{AttemptID: 1, QuizID: 5, ModuleID: 10, CourseID: 1, Percentage: 95},
			{AttemptID: 2, QuizID: 6, ModuleID: 20, CourseID: 2, Percentage: 70},
		},
		ActivityCount: 12,
		Modules:       map[uint]uint{10: 1, 20: 2},
		Courses:       map[uint]bool{1: true, 2: true},
	}
}

func TestEvaluateCriterion(t *testing.T) {
	tests := []struct {
		name      string
		criterion model.BadgeCriterion
		want      bool
	}{
		{"courses completed", model.BadgeCriterion{ProgressType: model.ProgressCourseCompletion, Threshold: 2}, true},
		{"courses not enough", model.BadgeCriterion{ProgressType: model.ProgressCourseCompletion, Threshold: 3}, false},
		{"specific course", model.BadgeCriterion{ProgressType: model.ProgressCourseCompletion, Threshold: 1, CourseID: uintPtr(2)}, true},
		{"modules in course", model.BadgeCriterion{ProgressType: model.ProgressModuleCompletion, Threshold: 2, CourseID: uintPtr(1)}, false},
		{"modules anywhere", model.BadgeCriterion{ProgressType: model.ProgressModuleCompletion, Threshold: 2}, true},
		{"lessons in module", model.BadgeCriterion{ProgressType: model.ProgressLessonCompletion, Threshold: 2, ModuleID: uintPtr(10)}, true},
		{"high score quizzes", model.BadgeCriterion{ProgressType: model.ProgressQuizPerformance, Threshold: 1, MinScore: 90}, true},
		{"too many high scores", model.BadgeCriterion{ProgressType: model.ProgressQuizPerformance, Threshold: 2, MinScore: 90}, false},
		{"activity count", model.BadgeCriterion{ProgressType: model.ProgressActivityCount, Threshold: 12}, true},
		{"points", model.BadgeCriterion{ProgressType: model.ProgressPointsMilestone, Threshold: 121}, false},
	}

	m := metricsFixture()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.criterion
			got, err := EvaluateCriterion(m, 1, &c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCriterionScopeErrors(t *testing.T) {
	tests := []struct {
		name      string
		criterion model.BadgeCriterion
	}{
		{"unknown type", model.BadgeCriterion{ProgressType: "karma", Threshold: 1}},
		{"deleted course", model.BadgeCriterion{ProgressType: model.ProgressCourseCompletion, Threshold: 1, CourseID: uintPtr(99)}},
		{"deleted module", model.BadgeCriterion{ProgressType: model.ProgressModuleCompletion, Threshold: 1, ModuleID: uintPtr(99)}},
		{"module outside course", model.BadgeCriterion{ProgressType: model.ProgressLessonCompletion, Threshold: 1, CourseID: uintPtr(1), ModuleID: uintPtr(20)}},
	}

	m := metricsFixture()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.criterion
			ok, err := EvaluateCriterion(m, 7, &c)
			assert.False(t, ok)
			assert.ErrorIs(t, err, util.ErrCriterionEvaluation)

			var ce *util.CriterionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, uint(7), ce.BadgeID)
		})
	}
}

func TestBadgeCriterionFallsBackToPointsRequired(t *testing.T) {
	b := &model.Badge{PointsRequired: 100}
	c := badgeCriterion(b)
	require.NotNil(t, c)
	assert.Equal(t, model.ProgressPointsMilestone, c.ProgressType)
	assert.Equal(t, 100, c.Threshold)

	assert.Nil(t, badgeCriterion(&model.Badge{}))
}

func TestRegisterCriterion(t *testing.T) {
	const streakType model.ProgressType = "streak_days"
	assert.False(t, KnownProgressType(streakType))

	RegisterCriterion(streakType, func(m *model.UserMetrics, _ *model.BadgeCriterion) int { return m.CurrentStreak })
	t.Cleanup(func() { delete(criterionRegistry, streakType) })

	assert.True(t, KnownProgressType(streakType))
	ok, err := EvaluateCriterion(&model.UserMetrics{CurrentStreak: 4}, 1, &model.BadgeCriterion{ProgressType: streakType, Threshold: 3})
	require.NoError(t, err)
	assert.True(t, ok)
}
