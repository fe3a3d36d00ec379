package model

import "time"

type TransactionKind string

const (
	TransactionEarned  TransactionKind = "earned"
	TransactionSpent   TransactionKind = "spent"
	TransactionBonus   TransactionKind = "bonus"
	TransactionPenalty TransactionKind = "penalty"
)

// ValidDelta earned/bonus 为正，spent/penalty 为负
func (k TransactionKind) ValidDelta(points int) bool {
	switch k {
	case TransactionEarned, TransactionBonus:
		return points > 0
	case TransactionSpent, TransactionPenalty:
		return points < 0
	}
	return false
}

// PointsTransaction 积分流水，只追加不修改
// swagger:model PointsTransaction
type PointsTransaction struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint            `gorm:"index;not null" json:"userId"`
	Points      int             `gorm:"not null" json:"points"`
	Kind        TransactionKind `gorm:"size:20;not null;index" json:"kind"`
	Description string          `gorm:"size:255" json:"description"`
	CreatedAt   time.Time       `gorm:"index" json:"createdAt"`
}

func (PointsTransaction) TableName() string {
	return "points_transactions"
}

// LeaderboardEntry 排行榜条目，Rank 由定时任务批量写入。
// Version 为产生该积分的最新流水ID，缓存写入按它丢弃过期的值
// swagger:model LeaderboardEntry
type LeaderboardEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"userId"`
	Points    int       `gorm:"index;not null" json:"points"`
	Rank      int       `gorm:"not null;default:0" json:"rank"`
	Version   uint      `gorm:"not null;default:0" json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (LeaderboardEntry) TableName() string {
	return "leaderboard"
}
