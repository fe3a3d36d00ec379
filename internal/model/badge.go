package model

import "time"

type BadgeType string

const (
	BadgeAchievement BadgeType = "achievement"
	BadgeProgress    BadgeType = "progress"
	BadgeActivity    BadgeType = "activity"
	BadgeSpecial     BadgeType = "special"
	BadgeMastery     BadgeType = "mastery"
)

type ProgressType string

const (
	ProgressCourseCompletion ProgressType = "course_completion"
	ProgressModuleCompletion ProgressType = "module_completion"
	ProgressLessonCompletion ProgressType = "lesson_completion"
	ProgressQuizPerformance  ProgressType = "quiz_performance"
	ProgressActivityCount    ProgressType = "activity_count"
	ProgressPointsMilestone  ProgressType = "points_milestone"
)

// Badge 徽章。没有 Criterion 的徽章按 PointsRequired 作为积分里程碑判定
// swagger:model Badge
type Badge struct {
	BaseModel
	Name           string          `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description"`
	Icon           string          `gorm:"size:50" json:"icon"`
	ImageURL       string          `gorm:"size:255" json:"imageUrl"`
	BadgeType      BadgeType       `gorm:"size:20;not null" json:"badgeType"`
	PointsRequired int             `gorm:"not null" json:"pointsRequired"`
	PointsReward   int             `gorm:"not null" json:"pointsReward"`
	Criterion      *BadgeCriterion `gorm:"foreignKey:BadgeID" json:"criterion,omitempty"`
}

func (Badge) TableName() string {
	return "badges"
}

// BadgeCriterion 进度徽章的判定条件，CourseID/ModuleID 为空表示不限范围
// swagger:model BadgeCriterion
type BadgeCriterion struct {
	BaseModel
	BadgeID      uint         `gorm:"uniqueIndex;not null" json:"badgeId"`
	ProgressType ProgressType `gorm:"size:30;not null" json:"progressType"`
	Threshold    int          `gorm:"not null" json:"threshold"`
	CourseID     *uint        `json:"courseId"`
	ModuleID     *uint        `json:"moduleId"`
	MinScore     float64      `json:"minScore"`
	Difficulty   string       `gorm:"size:20" json:"difficulty"`
}

func (BadgeCriterion) TableName() string {
	return "badge_criteria"
}

// swagger:model UserBadge
type UserBadge struct {
	BaseModel
	UserID   uint      `gorm:"uniqueIndex:idx_user_badge;not null" json:"userId"`
	BadgeID  uint      `gorm:"uniqueIndex:idx_user_badge;not null" json:"badgeId"`
	EarnedAt time.Time `json:"earnedAt"`
	Badge    *Badge    `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}
