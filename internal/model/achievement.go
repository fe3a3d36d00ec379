package model

import "time"

type AchievementType string

const (
	AchievementQuizScore        AchievementType = "quiz_score"
	AchievementCourseCompletion AchievementType = "course_completion"
	AchievementStreak           AchievementType = "streak"
	AchievementActivity         AchievementType = "activity"
	AchievementEnrollment       AchievementType = "enrollment"
)

func (t AchievementType) Valid() bool {
	switch t {
	case AchievementQuizScore, AchievementCourseCompletion, AchievementStreak, AchievementActivity, AchievementEnrollment:
		return true
	}
	return false
}

// swagger:model Achievement
type Achievement struct {
	BaseModel
	Name         string          `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description  string          `gorm:"type:text" json:"description"`
	Icon         string          `gorm:"size:50" json:"icon"`
	Type         AchievementType `gorm:"size:30;not null;index" json:"type"`
	Threshold    int             `gorm:"not null" json:"threshold"`
	PointsReward int             `gorm:"not null" json:"pointsReward"`
	BadgeID      *uint           `json:"badgeId"`
	Badge        *Badge          `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// swagger:model UserAchievement
type UserAchievement struct {
	BaseModel
	UserID        uint         `gorm:"uniqueIndex:idx_user_achievement;not null" json:"userId"`
	AchievementID uint         `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievementId"`
	AchievedAt    time.Time    `json:"achievedAt"`
	Achievement   *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}
