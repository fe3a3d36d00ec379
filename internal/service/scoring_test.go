package service

import (
	"edumate_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func uintPtr(v uint) *uint { return &v }

func question(id uint, t model.QuestionType, points int, answers ...model.Answer) model.Question {
	q := model.Question{QuizID: 1, Type: t, Points: points, Answers: answers}
	q.ID = id
	return q
}

func answer(id uint, text string, correct bool) model.Answer {
	a := model.Answer{Text: text, IsCorrect: correct}
	a.ID = id
	return a
}

func TestScoreAttempt(t *testing.T) {
	questions := []model.Question{
		question(1, model.MultipleChoice, 5, answer(11, "A", true), answer(12, "B", false)),
		question(2, model.ShortAnswer, 5, answer(21, "Paris", true)),
	}

	tests := []struct {
		name       string
		selections map[uint]Selection
		passing    int
		wantScore  int
		wantPct    float64
		wantPassed bool
	}{
		{
			name: "half correct below passing",
			selections: map[uint]Selection{
				1: {QuestionID: 1, AnswerID: uintPtr(11)},
				2: {QuestionID: 2, Text: "London"},
			},
			passing:    60,
			wantScore:  5,
			wantPct:    50,
			wantPassed: false,
		},
		{
			name: "short answer ignores case and surrounding spaces",
			selections: map[uint]Selection{
				1: {QuestionID: 1, AnswerID: uintPtr(11)},
				2: {QuestionID: 2, Text: " paris "},
			},
			passing:    60,
			wantScore:  10,
			wantPct:    100,
			wantPassed: true,
		},
		{
			name:       "unanswered questions score zero",
			selections: map[uint]Selection{},
			passing:    1,
			wantScore:  0,
			wantPct:    0,
			wantPassed: false,
		},
		{
			name: "wrong option",
			selections: map[uint]Selection{
				1: {QuestionID: 1, AnswerID: uintPtr(12)},
			},
			passing:   0,
			wantScore: 0,
			wantPct:   0,
			// 及格线为 0 时任何得分都通过
			wantPassed: true,
		},
		{
			name: "option from another question",
			selections: map[uint]Selection{
				1: {QuestionID: 1, AnswerID: uintPtr(21)},
			},
			passing:    50,
			wantScore:  0,
			wantPct:    0,
			wantPassed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreAttempt(questions, tt.selections, tt.passing)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, 10, got.MaxScore)
			assert.InDelta(t, tt.wantPct, got.Percentage, 0.0001)
			assert.Equal(t, tt.wantPassed, got.Passed)
			assert.Len(t, got.Questions, 2)
		})
	}
}

func TestScoreAttemptEmptyShortAnswerNeverMatches(t *testing.T) {
	questions := []model.Question{
		question(1, model.ShortAnswer, 3, answer(11, "  ", true)),
	}
	got := ScoreAttempt(questions, map[uint]Selection{1: {QuestionID: 1, Text: ""}}, 50)
	assert.Equal(t, 0, got.Score)
	assert.False(t, got.Questions[0].Correct)
}

func TestPercentageAndPasses(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.InDelta(t, 33.3333, Percentage(1, 3), 0.001)

	// 无题目的测验：只有及格线为 0 时通过
	assert.True(t, Passes(0, 0, 0))
	assert.False(t, Passes(0, 0, 70))

	// 整数比较避免 2/3 的浮点误差
	assert.True(t, Passes(2, 3, 66))
	assert.False(t, Passes(2, 3, 67))
	assert.True(t, Passes(7, 10, 70))
}

func TestSelectionsFromAnswers(t *testing.T) {
	got := selectionsFromAnswers([]model.AttemptAnswer{
		{QuestionID: 1, AnswerID: uintPtr(3)},
		{QuestionID: 2, TextAnswer: "x"},
	})
	assert.Len(t, got, 2)
	assert.Equal(t, uint(3), *got[1].AnswerID)
	assert.Equal(t, "x", got[2].Text)
}
