package service

import (
	"bytes"
	"context"
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name    string
		req     QuestionRequest
		wantErr bool
	}{
		{
			name: "multiple choice",
			req: QuestionRequest{Type: model.MultipleChoice, Points: 2, Answers: []AnswerInput{
				{Text: "a", IsCorrect: true}, {Text: "b"}, {Text: "c"},
			}},
		},
		{
			name:    "multiple choice with one option",
			req:     QuestionRequest{Type: model.MultipleChoice, Answers: []AnswerInput{{Text: "a", IsCorrect: true}}},
			wantErr: true,
		},
		{
			name: "multiple choice with two correct",
			req: QuestionRequest{Type: model.MultipleChoice, Answers: []AnswerInput{
				{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true},
			}},
			wantErr: true,
		},
		{
			name: "true false",
			req: QuestionRequest{Type: model.TrueFalse, Answers: []AnswerInput{
				{Text: "True", IsCorrect: true}, {Text: "False"},
			}},
		},
		{
			name: "true false with three options",
			req: QuestionRequest{Type: model.TrueFalse, Answers: []AnswerInput{
				{Text: "True", IsCorrect: true}, {Text: "False"}, {Text: "Maybe"},
			}},
			wantErr: true,
		},
		{
			name: "short answer",
			req:  QuestionRequest{Type: model.ShortAnswer, Answers: []AnswerInput{{Text: "Paris", IsCorrect: true}, {Text: "paris", IsCorrect: true}}},
		},
		{
			name:    "short answer without accepted answer",
			req:     QuestionRequest{Type: model.ShortAnswer, Answers: []AnswerInput{{Text: "Paris"}}},
			wantErr: true,
		},
		{
			name:    "blank answer text",
			req:     QuestionRequest{Type: model.ShortAnswer, Answers: []AnswerInput{{Text: "  ", IsCorrect: true}}},
			wantErr: true,
		},
		{
			name:    "negative points",
			req:     QuestionRequest{Type: model.ShortAnswer, Points: -1, Answers: []AnswerInput{{Text: "x", IsCorrect: true}}},
			wantErr: true,
		},
		{
			name:    "unknown type",
			req:     QuestionRequest{Type: "essay"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestion(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, util.ErrInvalidQuestion)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCatalogPermissions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	f := env.newQuizFixture(t, 0)
	other := env.createUser(t, "other", model.Instructor)
	admin := env.createUser(t, "root", model.Admin)

	_, err := env.catalog.CreateModule(ctx, Actor{UserID: other.ID, Role: model.Instructor}, f.course.ID, ModuleRequest{Title: "x"})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = env.catalog.CreateModule(ctx, Actor{UserID: admin.ID, Role: model.Admin}, f.course.ID, ModuleRequest{Title: "Rivers"})
	assert.NoError(t, err)

	_, err = env.catalog.CreateModule(ctx, Actor{UserID: admin.ID, Role: model.Admin}, 9999, ModuleRequest{Title: "x"})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	_, err = env.catalog.GetQuizWithAnswers(ctx, Actor{UserID: other.ID, Role: model.Instructor}, f.quiz.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	quiz, err := env.catalog.GetQuizWithAnswers(ctx, Actor{UserID: f.instructor.ID, Role: model.Instructor}, f.quiz.ID)
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 2)

	tooHigh := 120
	_, err = env.catalog.CreateQuiz(ctx, Actor{UserID: f.instructor.ID, Role: model.Instructor}, f.module.ID, QuizRequest{Title: "bad", PassingScore: &tooHigh})
	assert.ErrorIs(t, err, util.ErrInvalidQuestion)
}

func TestDeleteQuestion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	f := env.newQuizFixture(t, 0)
	owner := Actor{UserID: f.instructor.ID, Role: model.Instructor}

	require.NoError(t, env.catalog.DeleteQuestion(ctx, owner, f.short.ID))
	assert.ErrorIs(t, env.catalog.DeleteQuestion(ctx, owner, f.short.ID), util.ErrInvalidQuestionReference)

	quiz, err := env.catalog.GetQuizWithAnswers(ctx, owner, f.quiz.ID)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, f.choice.ID, quiz.Questions[0].ID)
}

func TestCreateBadgeAndAchievementValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	_, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "bad", Criterion: &CriterionInput{ProgressType: "karma", Threshold: 1}})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = env.catalog.CreateBadge(ctx, BadgeRequest{Name: "bad", Criterion: &CriterionInput{ProgressType: model.ProgressActivityCount}})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = env.catalog.CreateBadge(ctx, BadgeRequest{Name: "bad", PointsReward: -1})
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	b, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Busy", Criterion: &CriterionInput{ProgressType: model.ProgressActivityCount, Threshold: 10}})
	require.NoError(t, err)
	require.NotNil(t, b.Criterion)
	assert.Equal(t, b.ID, b.Criterion.BadgeID)

	_, err = env.catalog.CreateAchievement(ctx, AchievementRequest{Name: "x", Type: "karma"})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	missing := uint(9999)
	_, err = env.catalog.CreateAchievement(ctx, AchievementRequest{Name: "x", Type: model.AchievementActivity, Threshold: 1, BadgeID: &missing})
	assert.ErrorIs(t, err, util.ErrBadgeNotFound)
}

func TestUploadBadgeImage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	b, err := env.catalog.CreateBadge(ctx, BadgeRequest{Name: "Shiny"})
	require.NoError(t, err)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	url, err := env.catalog.UploadBadgeImage(ctx, b.ID, "shiny.png", bytes.NewReader(png), int64(len(png)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/badges/"))

	stored, err := env.catalog.BadgeRepo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, url, stored.ImageURL)

	_, err = env.catalog.UploadBadgeImage(ctx, b.ID, "notes.txt", strings.NewReader("hello"), 5)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = env.catalog.UploadBadgeImage(ctx, b.ID, "fake.png", strings.NewReader("plain text pretending"), 21)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = env.catalog.UploadBadgeImage(ctx, 9999, "shiny.png", bytes.NewReader(png), int64(len(png)))
	assert.ErrorIs(t, err, util.ErrBadgeNotFound)
}

func TestQuestionEditsSerializeWithAttemptStarts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	f := env.newQuizFixture(t, 0)
	owner := Actor{UserID: f.instructor.ID, Role: model.Instructor}

	var students []*model.User
	for i := 0; i < 6; i++ {
		u := env.createUser(t, fmt.Sprintf("student-%d", i), model.Student)
		_, err := env.enrollment.Enroll(ctx, u.ID, f.course.ID)
		require.NoError(t, err)
		students = append(students, u)
	}

	var (
		wg       sync.WaitGroup
		addErr   error
		mu       sync.Mutex
		attempts []*model.QuizAttempt
	)
	wg.Add(len(students) + 1)
	go func() {
		defer wg.Done()
		_, addErr = env.catalog.AddQuestion(ctx, owner, f.quiz.ID, QuestionRequest{
			Text: "Capital of Spain?", Type: model.ShortAnswer, Points: 5,
			Answers: []AnswerInput{{Text: "Madrid", IsCorrect: true}},
		})
	}()
	for _, u := range students {
		go func(userID uint) {
			defer wg.Done()
			a, err := env.quiz.StartAttempt(ctx, userID, f.quiz.ID)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			attempts = append(attempts, a)
			mu.Unlock()
		}(u.ID)
	}
	wg.Wait()
	require.Len(t, attempts, len(students))

	// 题目新增成功则所有作答都按新满分计分，否则新增被拒绝
	want := 10
	if addErr == nil {
		want = 15
	} else {
		assert.ErrorIs(t, addErr, util.ErrQuizHasOpenAttempts)
	}
	for _, a := range attempts {
		assert.Equal(t, want, a.MaxScore, "attempt %d", a.ID)
	}

	assert.ErrorIs(t, env.catalog.DeleteQuestion(ctx, owner, f.short.ID), util.ErrQuizHasOpenAttempts)
	_, err := env.catalog.AddQuestion(ctx, owner, 9999, QuestionRequest{
		Text: "?", Type: model.ShortAnswer, Points: 1,
		Answers: []AnswerInput{{Text: "x", IsCorrect: true}},
	})
	assert.ErrorIs(t, err, util.ErrQuizNotFound)
}
