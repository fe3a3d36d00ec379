package model

import (
	"fmt"
	"time"
)

type AttemptStatus string

const (
	AttemptCreated    AttemptStatus = "created"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptExpired    AttemptStatus = "expired"
)

func (s AttemptStatus) IsOpen() bool {
	return s == AttemptCreated || s == AttemptInProgress
}

func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptExpired
}

// QuizAttempt 一次测验作答，进入终态后不可再修改
// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel
	UserID      uint            `gorm:"index:idx_attempt_user_quiz;not null" json:"userId"`
	QuizID      uint            `gorm:"index:idx_attempt_user_quiz;not null" json:"quizId"`
	Status      AttemptStatus   `gorm:"size:20;not null;index" json:"status"`
	Score       int             `gorm:"not null" json:"score"`
	MaxScore    int             `gorm:"not null" json:"maxScore"`
	Percentage  float64         `gorm:"not null" json:"percentage"`
	Passed      bool            `gorm:"not null" json:"passed"`
	StartedAt   time.Time       `gorm:"not null" json:"startedAt"`
	ExpiresAt   *time.Time      `gorm:"index" json:"expiresAt"`
	CompletedAt *time.Time      `json:"completedAt"`
	OpenKey     *string         `gorm:"size:64;uniqueIndex" json:"-"` // 未结束时为 user:quiz，结束后置空
	Answers     []AttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
	Quiz        *Quiz           `gorm:"foreignKey:QuizID" json:"quiz,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

func AttemptOpenKey(userID, quizID uint) string {
	return fmt.Sprintf("%d:%d", userID, quizID)
}

// swagger:model AttemptAnswer
type AttemptAnswer struct {
	BaseModel
	AttemptID    uint   `gorm:"uniqueIndex:idx_attempt_question;not null" json:"attemptId"`
	QuestionID   uint   `gorm:"uniqueIndex:idx_attempt_question;not null" json:"questionId"`
	AnswerID     *uint  `json:"answerId"`
	TextAnswer   string `gorm:"size:500" json:"textAnswer"`
	IsCorrect    bool   `json:"isCorrect"`
	PointsEarned int    `json:"pointsEarned"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
