package model

import "time"

// swagger:model Challenge
type Challenge struct {
	BaseModel
	Title        string     `gorm:"size:200;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Difficulty   string     `gorm:"size:20" json:"difficulty"`
	PointsReward int        `gorm:"not null" json:"pointsReward"`
	BadgeID      *uint      `json:"badgeId"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	IsActive     bool       `gorm:"index" json:"isActive"`
	Badge        *Badge     `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// OpenAt 挑战在 t 时刻是否可参与
func (c *Challenge) OpenAt(t time.Time) bool {
	if !c.IsActive || t.Before(c.StartDate) {
		return false
	}
	return c.EndDate == nil || !t.After(*c.EndDate)
}

type UserChallengeStatus string

const (
	ChallengeAccepted   UserChallengeStatus = "accepted"
	ChallengeInProgress UserChallengeStatus = "in_progress"
	ChallengeCompleted  UserChallengeStatus = "completed"
)

// swagger:model UserChallenge
type UserChallenge struct {
	BaseModel
	UserID      uint                `gorm:"uniqueIndex:idx_user_challenge;not null" json:"userId"`
	ChallengeID uint                `gorm:"uniqueIndex:idx_user_challenge;not null" json:"challengeId"`
	Status      UserChallengeStatus `gorm:"size:20;not null" json:"status"`
	Progress    int                 `gorm:"not null" json:"progress"`
	AcceptedAt  time.Time           `json:"acceptedAt"`
	CompletedAt *time.Time          `json:"completedAt"`
	Challenge   *Challenge          `gorm:"foreignKey:ChallengeID" json:"challenge,omitempty"`
}

func (UserChallenge) TableName() string {
	return "user_challenges"
}
