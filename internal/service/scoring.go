package service

import (
	"edumate_backend/internal/model"
	"strings"
)

// Selection 用户对某题的作答
type Selection struct {
	QuestionID uint
	AnswerID   *uint
	Text       string
}

type QuestionResult struct {
	QuestionID   uint `json:"questionId"`
	Correct      bool `json:"correct"`
	PointsEarned int  `json:"pointsEarned"`
	Points       int  `json:"points"`
}

type ScoreResult struct {
	Score      int              `json:"score"`
	MaxScore   int              `json:"maxScore"`
	Percentage float64          `json:"percentage"`
	Passed     bool             `json:"passed"`
	Questions  []QuestionResult `json:"questions"`
}

// ScoreAttempt 纯函数：按题目分值累计得分，未作答视为错误
func ScoreAttempt(questions []model.Question, selections map[uint]Selection, passingScore int) ScoreResult {
	res := ScoreResult{Questions: make([]QuestionResult, 0, len(questions))}
	for i := range questions {
		q := &questions[i]
		res.MaxScore += q.Points

		sel, answered := selections[q.ID]
		correct := answered && isCorrect(q, sel)
		qr := QuestionResult{QuestionID: q.ID, Correct: correct, Points: q.Points}
		if correct {
			qr.PointsEarned = q.Points
			res.Score += q.Points
		}
		res.Questions = append(res.Questions, qr)
	}
	res.Percentage = Percentage(res.Score, res.MaxScore)
	res.Passed = Passes(res.Score, res.MaxScore, passingScore)
	return res
}

// Percentage 满分为 0 时记 0
func Percentage(score, maxScore int) float64 {
	if maxScore <= 0 {
		return 0
	}
	return float64(score*100) / float64(maxScore)
}

// Passes 用整数比较 score/max*100 >= passing，避免浮点误差
func Passes(score, maxScore, passingScore int) bool {
	if maxScore <= 0 {
		return 0 >= passingScore
	}
	return score*100 >= passingScore*maxScore
}

func isCorrect(q *model.Question, sel Selection) bool {
	switch q.Type {
	case model.MultipleChoice, model.TrueFalse:
		if sel.AnswerID == nil {
			return false
		}
		for _, a := range q.Answers {
			if a.ID == *sel.AnswerID {
				return a.IsCorrect
			}
		}
		return false
	case model.ShortAnswer:
		given := normalizeShortAnswer(sel.Text)
		if given == "" {
			return false
		}
		for _, a := range q.Answers {
			if a.IsCorrect && normalizeShortAnswer(a.Text) == given {
				return true
			}
		}
	}
	return false
}

func normalizeShortAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func selectionsFromAnswers(answers []model.AttemptAnswer) map[uint]Selection {
	m := make(map[uint]Selection, len(answers))
	for _, a := range answers {
		m[a.QuestionID] = Selection{QuestionID: a.QuestionID, AnswerID: a.AnswerID, Text: a.TextAnswer}
	}
	return m
}
