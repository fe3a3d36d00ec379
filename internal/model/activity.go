package model

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityType string

const (
	ActivityLogin       ActivityType = "login"
	ActivityLogout      ActivityType = "logout"
	ActivityPageView    ActivityType = "page_view"
	ActivityCourseView  ActivityType = "course_view"
	ActivityLessonView  ActivityType = "lesson_view"
	ActivityQuizAttempt ActivityType = "quiz_attempt"
	ActivitySearch      ActivityType = "search"
	ActivityDownload    ActivityType = "download"
	ActivityComment     ActivityType = "comment"
	ActivityRating      ActivityType = "rating"
)

// UserActivity 用户行为日志
// swagger:model UserActivity
type UserActivity struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint           `gorm:"index;not null" json:"userId"`
	ActivityType ActivityType   `gorm:"size:30;not null;index" json:"activityType"`
	ObjectType   string         `gorm:"size:50" json:"objectType,omitempty"`
	ObjectID     *uint          `json:"objectId,omitempty"`
	Data         datatypes.JSON `json:"data,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"createdAt"`
}

func (UserActivity) TableName() string {
	return "user_activities"
}
