package repository

import (
	"context"
	"edumate_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) WithTx(tx *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: tx}
}

func (r *AchievementRepository) Create(ctx context.Context, a *model.Achievement) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *AchievementRepository) List(ctx context.Context) ([]model.Achievement, error) {
	var list []model.Achievement
	err := r.DB.WithContext(ctx).Preload("Badge").Order("type, threshold").Find(&list).Error
	return list, err
}

// ListReachable 指定类型中阈值不超过 metric 且用户尚未获得的成就
func (r *AchievementRepository) ListReachable(ctx context.Context, userID uint, t model.AchievementType, metric int) ([]model.Achievement, error) {
	var list []model.Achievement
	err := r.DB.WithContext(ctx).Preload("Badge").
		Where("type = ? AND threshold <= ?", t, metric).
		Where("id NOT IN (?)", r.DB.Model(&model.UserAchievement{}).Select("achievement_id").Where("user_id = ?", userID)).
		Order("threshold").Find(&list).Error
	return list, err
}

// Grant 依赖 (user_id, achievement_id) 唯一索引保证幂等，返回是否本次新发放
func (r *AchievementRepository) Grant(ctx context.Context, userID, achievementID uint) (bool, error) {
	ua := model.UserAchievement{UserID: userID, AchievementID: achievementID, AchievedAt: time.Now()}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ua)
	return res.RowsAffected > 0, res.Error
}

func (r *AchievementRepository) ListByUser(ctx context.Context, userID uint) ([]model.UserAchievement, error) {
	var list []model.UserAchievement
	err := r.DB.WithContext(ctx).Preload("Achievement").Where("user_id = ?", userID).Order("achieved_at DESC").Find(&list).Error
	return list, err
}
