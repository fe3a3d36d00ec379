package model

// Streak 连续学习天数，LastActivityDate 为 UTC 日期 "2006-01-02"，空串表示尚无记录
// swagger:model Streak
type Streak struct {
	BaseModel
	UserID           uint   `gorm:"uniqueIndex;not null" json:"userId"`
	CurrentStreak    int    `gorm:"not null" json:"currentStreak"`
	LongestStreak    int    `gorm:"not null" json:"longestStreak"`
	LastActivityDate string `gorm:"size:10;not null" json:"lastActivityDate"`
}

func (Streak) TableName() string {
	return "streaks"
}
