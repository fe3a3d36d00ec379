package model

import "time"

type LessonCompletion struct {
	BaseModel
	UserID      uint      `gorm:"uniqueIndex:idx_user_lesson;not null" json:"userId"`
	LessonID    uint      `gorm:"uniqueIndex:idx_user_lesson;not null" json:"lessonId"`
	ModuleID    uint      `gorm:"index;not null" json:"moduleId"`
	CourseID    uint      `gorm:"index;not null" json:"courseId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (LessonCompletion) TableName() string {
	return "lesson_completions"
}

// QuizCompletion 用户首次通过测验的记录
type QuizCompletion struct {
	BaseModel
	UserID      uint      `gorm:"uniqueIndex:idx_user_quiz;not null" json:"userId"`
	QuizID      uint      `gorm:"uniqueIndex:idx_user_quiz;not null" json:"quizId"`
	ModuleID    uint      `gorm:"index;not null" json:"moduleId"`
	CourseID    uint      `gorm:"index;not null" json:"courseId"`
	AttemptID   uint      `json:"attemptId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (QuizCompletion) TableName() string {
	return "quiz_completions"
}

// ModuleProgress 模块完成度 = (已完成课时 + 已通过测验) / (课时 + 测验) * 100
// swagger:model ModuleProgress
type ModuleProgress struct {
	BaseModel
	UserID               uint       `gorm:"uniqueIndex:idx_user_module;not null" json:"userId"`
	ModuleID             uint       `gorm:"uniqueIndex:idx_user_module;not null" json:"moduleId"`
	CourseID             uint       `gorm:"index;not null" json:"courseId"`
	CompletionPercentage float64    `gorm:"not null" json:"completionPercentage"`
	CompletedAt          *time.Time `json:"completedAt"`
}

func (ModuleProgress) TableName() string {
	return "module_progress"
}
