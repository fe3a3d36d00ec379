package model

import (
	"time"

	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AllModels 参与 AutoMigrate 的全部模型，顺序即建表顺序
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&Module{},
		&Lesson{},
		&Enrollment{},
		&Quiz{},
		&Question{},
		&Answer{},
		&QuizAttempt{},
		&AttemptAnswer{},
		&LessonCompletion{},
		&QuizCompletion{},
		&ModuleProgress{},
		&PointsTransaction{},
		&LeaderboardEntry{},
		&Badge{},
		&BadgeCriterion{},
		&UserBadge{},
		&Achievement{},
		&UserAchievement{},
		&Streak{},
		&UserActivity{},
		&Challenge{},
		&UserChallenge{},
	}
}
