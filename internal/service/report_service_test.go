package service

import (
	"context"
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestQuizReports(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	f := env.newQuizFixture(t, 10)
	passer := env.createUser(t, "alice", model.Student)
	failer := env.createUser(t, "bob", model.Student)
	late := env.createUser(t, "carol", model.Student)

	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	env.quiz.now = func() time.Time { return t0 }

	for _, u := range []*model.User{passer, failer, late} {
		_, err := env.enrollment.Enroll(ctx, u.ID, f.course.ID)
		require.NoError(t, err)
	}

	a, err := env.quiz.StartAttempt(ctx, passer.ID, f.quiz.ID)
	require.NoError(t, err)
	_, err = env.quiz.RecordAnswer(ctx, passer.ID, a.ID, AnswerRequest{QuestionID: f.choice.ID, AnswerID: f.correctChoice()})
	require.NoError(t, err)
	_, err = env.quiz.RecordAnswer(ctx, passer.ID, a.ID, AnswerRequest{QuestionID: f.short.ID, Text: "Paris"})
	require.NoError(t, err)
	_, err = env.quiz.SubmitAttempt(ctx, passer.ID, a.ID)
	require.NoError(t, err)

	b, err := env.quiz.StartAttempt(ctx, failer.ID, f.quiz.ID)
	require.NoError(t, err)
	_, err = env.quiz.SubmitAttempt(ctx, failer.ID, b.ID)
	require.NoError(t, err)

	_, err = env.quiz.StartAttempt(ctx, late.ID, f.quiz.ID)
	require.NoError(t, err)
	env.quiz.now = func() time.Time { return t0.Add(time.Hour) }
	n, err := env.quiz.ExpireStaleAttempts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stats, err := env.report.QuizStats(ctx, f.quiz.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Attempts)
	assert.EqualValues(t, 2, stats.Completed)
	assert.EqualValues(t, 1, stats.Expired)
	assert.EqualValues(t, 1, stats.Passed)
	assert.InDelta(t, 50, stats.AveragePercentage, 0.001)
	assert.InDelta(t, 50, stats.PassRate, 0.001)

	_, err = env.report.QuizStats(ctx, 9999)
	assert.ErrorIs(t, err, util.ErrQuizNotFound)

	buf, name, err := env.report.ExportQuizAttempts(ctx, f.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("quiz_%d_attempts.xlsx", f.quiz.ID), name)

	book, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Attempt ID", rows[0][0])
	assert.Equal(t, "alice", rows[1][2])
	assert.Equal(t, "100.00", rows[1][7])

	summary, err := env.report.UserSummary(ctx, passer.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", summary.Name)
	assert.EqualValues(t, 1, summary.PassedQuizzes)
	assert.Equal(t, 105, summary.Points)
	require.NotNil(t, summary.Rank)
	assert.Equal(t, 1, *summary.Rank)

	_, err = env.report.UserSummary(ctx, 9999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestCourseCompletionAndEngagement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	f := env.newQuizFixture(t, 0)
	owner := Actor{UserID: f.instructor.ID, Role: model.Instructor}

	reportNow := time.Now().AddDate(0, 0, 30)
	env.report.now = func() time.Time { return reportNow }

	alice := env.createUser(t, "alice", model.Student)
	bob := env.createUser(t, "bob", model.Student)
	carol := env.createUser(t, "carol", model.Student)
	for _, u := range []*model.User{alice, bob, carol} {
		_, err := env.enrollment.Enroll(ctx, u.ID, f.course.ID)
		require.NoError(t, err)
	}
	require.NoError(t, env.db.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", bob.ID, f.course.ID).
		Update("status", model.EnrollmentCompleted).Error)
	// 只有 alice 在统计窗口内有行为记录
	require.NoError(t, env.db.Create(&model.UserActivity{
		UserID:       alice.ID,
		ActivityType: model.ActivityLessonView,
		CreatedAt:    reportNow.Add(-24 * time.Hour),
	}).Error)

	empty, err := env.catalog.CreateCourse(ctx, owner, CourseRequest{Title: "Empty"})
	require.NoError(t, err)

	other := env.newQuizFixture(t, 0)
	dave := env.createUser(t, "dave", model.Student)
	_, err = env.enrollment.Enroll(ctx, dave.ID, other.course.ID)
	require.NoError(t, err)

	stats, err := env.report.CourseCompletionRate(ctx, owner, f.course.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalStudents)
	assert.EqualValues(t, 1, stats.CompletedStudents)
	assert.EqualValues(t, 1, stats.ActiveStudents)
	assert.InDelta(t, 33.33, stats.CompletionRate, 0.01)
	assert.InDelta(t, 33.33, stats.ActivePercentage, 0.01)

	stats, err = env.report.CourseCompletionRate(ctx, owner, empty.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.TotalStudents)
	assert.Zero(t, stats.CompletionRate)

	_, err = env.report.CourseCompletionRate(ctx, Actor{UserID: other.instructor.ID, Role: model.Instructor}, f.course.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = env.report.CourseCompletionRate(ctx, owner, 9999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	mine, err := env.report.CourseEngagement(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.course.ID, mine[0].CourseID)

	admin := env.createUser(t, "root", model.Admin)
	all, err := env.report.CourseEngagement(ctx, Actor{UserID: admin.ID, Role: model.Admin})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, other.course.ID, all[1].CourseID)
	assert.EqualValues(t, 1, all[1].TotalStudents)
	assert.EqualValues(t, 0, all[1].ActiveStudents)

	_, err = env.report.CourseEngagement(ctx, Actor{UserID: alice.ID, Role: model.Student})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestWeakAreas(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	first := env.newQuizFixture(t, 0)
	second := env.newQuizFixture(t, 0)
	passer := env.createUser(t, "alice", model.Student)
	failer := env.createUser(t, "bob", model.Student)

	for _, f := range []*quizFixture{first, second} {
		for _, u := range []*model.User{passer, failer} {
			_, err := env.enrollment.Enroll(ctx, u.ID, f.course.ID)
			require.NoError(t, err)
		}
	}

	submit := func(userID uint, f *quizFixture, answers ...AnswerRequest) {
		t.Helper()
		a, err := env.quiz.StartAttempt(ctx, userID, f.quiz.ID)
		require.NoError(t, err)
		for _, ans := range answers {
			_, err = env.quiz.RecordAnswer(ctx, userID, a.ID, ans)
			require.NoError(t, err)
		}
		_, err = env.quiz.SubmitAttempt(ctx, userID, a.ID)
		require.NoError(t, err)
	}

	submit(passer.ID, first,
		AnswerRequest{QuestionID: first.choice.ID, AnswerID: first.correctChoice()},
		AnswerRequest{QuestionID: first.short.ID, Text: "Paris"})
	// bob: 第一个模块 0%，第二个模块 50%
	submit(failer.ID, first)
	submit(failer.ID, second, AnswerRequest{QuestionID: second.choice.ID, AnswerID: second.correctChoice()})

	areas, err := env.report.WeakAreas(ctx, failer.ID)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, first.module.ID, areas[0].ModuleID)
	assert.Equal(t, "Capitals", areas[0].Topic)
	assert.EqualValues(t, 1, areas[0].Attempts)
	assert.InDelta(t, 0, areas[0].AveragePercentage, 0.001)
	assert.Equal(t, second.module.ID, areas[1].ModuleID)
	assert.InDelta(t, 50, areas[1].AveragePercentage, 0.001)

	areas, err = env.report.WeakAreas(ctx, passer.ID)
	require.NoError(t, err)
	assert.Empty(t, areas)

	_, err = env.report.WeakAreas(ctx, 9999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}
