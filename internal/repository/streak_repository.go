package repository

import (
	"context"
	"edumate_backend/internal/model"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StreakRepository struct {
	DB *gorm.DB
}

func NewStreakRepository(db *gorm.DB) *StreakRepository {
	return &StreakRepository{DB: db}
}

func (r *StreakRepository) WithTx(tx *gorm.DB) *StreakRepository {
	return &StreakRepository{DB: tx}
}

// LockOrCreate 事务内读取并锁定用户的连续记录，不存在时创建空记录
func (r *StreakRepository) LockOrCreate(ctx context.Context, userID uint) (*model.Streak, error) {
	db := r.DB.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Streak{UserID: userID}).Error; err != nil {
		return nil, err
	}
	var s model.Streak
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StreakRepository) Save(ctx context.Context, s *model.Streak) error {
	return r.DB.WithContext(ctx).Save(s).Error
}

// FindByUser 没有记录时返回零值
func (r *StreakRepository) FindByUser(ctx context.Context, userID uint) (*model.Streak, error) {
	var s model.Streak
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.Streak{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
