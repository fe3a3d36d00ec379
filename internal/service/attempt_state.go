package service

import (
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"fmt"
	"time"
)

// 作答状态流转：created -> in_progress -> completed | expired
var attemptTransitions = map[model.AttemptStatus][]model.AttemptStatus{
	model.AttemptCreated:    {model.AttemptInProgress, model.AttemptCompleted, model.AttemptExpired},
	model.AttemptInProgress: {model.AttemptCompleted, model.AttemptExpired},
}

// transitionAttempt 唯一修改作答状态的入口，终态不可再流转
func transitionAttempt(a *model.QuizAttempt, to model.AttemptStatus, now time.Time) error {
	switch a.Status {
	case model.AttemptCompleted:
		return util.ErrAlreadyCompleted
	case model.AttemptExpired:
		return util.ErrAttemptExpired
	}
	if a.Status == to {
		return nil
	}

	allowed := false
	for _, s := range attemptTransitions[a.Status] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid attempt transition %s -> %s", a.Status, to)
	}

	a.Status = to
	if to.IsTerminal() {
		a.OpenKey = nil
	}
	if to == model.AttemptCompleted {
		a.CompletedAt = &now
	}
	return nil
}

// deadlinePassed 超过限时加宽限期
func deadlinePassed(a *model.QuizAttempt, now time.Time, grace time.Duration) bool {
	return a.ExpiresAt != nil && now.After(a.ExpiresAt.Add(grace))
}
