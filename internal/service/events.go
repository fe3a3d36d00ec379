package service

import (
	"context"
	"time"
)

type EventKind string

const (
	EventEnrolled        EventKind = "enrolled"
	EventQuizSubmitted   EventKind = "quiz_submitted"
	EventLessonCompleted EventKind = "lesson_completed"
	EventModuleCompleted EventKind = "module_completed"
	EventCourseCompleted EventKind = "course_completed"
	EventActivity        EventKind = "activity"
)

// Event 领域事件，由主流程在写入提交后发出
type Event struct {
	Kind       EventKind
	UserID     uint
	CourseID   uint
	ModuleID   uint
	QuizID     uint
	AttemptID  uint
	Title      string
	Percentage float64
	Passed     bool
	At         time.Time
}

// EventDispatcher 奖励传播入口，失败只记录日志，不影响主流程结果
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, Event) {}
