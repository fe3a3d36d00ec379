package util

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidInput       = errors.New("invalid input")

	// 目录
	ErrCourseNotFound      = errors.New("course not found")
	ErrModuleNotFound      = errors.New("module not found")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrInvalidQuestion     = errors.New("invalid question definition")
	ErrQuizHasOpenAttempts = errors.New("quiz has attempts in progress")

	// 选课
	ErrNotEnrolled     = errors.New("user is not enrolled in the course")
	ErrAlreadyEnrolled = errors.New("user is already enrolled in the course")

	// 作答
	ErrAttemptNotFound          = errors.New("attempt not found")
	ErrActiveAttemptExists      = errors.New("an attempt for this quiz is already in progress")
	ErrAlreadyCompleted         = errors.New("attempt already completed")
	ErrAttemptExpired           = errors.New("attempt expired")
	ErrInvalidQuestionReference = errors.New("question does not belong to the attempt's quiz")
	ErrInvalidAnswer            = errors.New("answer does not belong to the question")

	// 奖励
	ErrInvalidTransaction   = errors.New("points delta does not match transaction kind")
	ErrCriterionEvaluation  = errors.New("criterion evaluation failed")
	ErrBadgeNotFound        = errors.New("badge not found")
	ErrAchievementNotFound  = errors.New("achievement not found")
	ErrChallengeNotFound    = errors.New("challenge not found")
	ErrChallengeInactive    = errors.New("challenge is not active")
	ErrChallengeNotAccepted = errors.New("challenge not accepted")
)

// CriterionError 单个徽章条件判定失败，只记录不影响其它条件
type CriterionError struct {
	BadgeID uint
	Reason  string
}

func (e *CriterionError) Error() string {
	return fmt.Sprintf("%s: badge %d: %s", ErrCriterionEvaluation, e.BadgeID, e.Reason)
}

func (e *CriterionError) Unwrap() error {
	return ErrCriterionEvaluation
}
