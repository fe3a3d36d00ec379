package repository

import (
	"context"
	"edumate_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeRepository struct {
	DB *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{DB: db}
}

func (r *BadgeRepository) WithTx(tx *gorm.DB) *BadgeRepository {
	return &BadgeRepository{DB: tx}
}

// Create 徽章与判定条件一起写入
func (r *BadgeRepository) Create(ctx context.Context, badge *model.Badge) error {
	return r.DB.WithContext(ctx).Create(badge).Error
}

func (r *BadgeRepository) FindByID(ctx context.Context, id uint) (*model.Badge, error) {
	var badge model.Badge
	if err := r.DB.WithContext(ctx).Preload("Criterion").First(&badge, id).Error; err != nil {
		return nil, err
	}
	return &badge, nil
}

func (r *BadgeRepository) List(ctx context.Context) ([]model.Badge, error) {
	var badges []model.Badge
	err := r.DB.WithContext(ctx).Preload("Criterion").Order("id").Find(&badges).Error
	return badges, err
}

// ListUnearned 用户尚未获得的徽章
func (r *BadgeRepository) ListUnearned(ctx context.Context, userID uint) ([]model.Badge, error) {
	var badges []model.Badge
	err := r.DB.WithContext(ctx).Preload("Criterion").
		Where("id NOT IN (?)", r.DB.Model(&model.UserBadge{}).Select("badge_id").Where("user_id = ?", userID)).
		Order("id").Find(&badges).Error
	return badges, err
}

// Grant 依赖 (user_id, badge_id) 唯一索引保证幂等，返回是否本次新发放
func (r *BadgeRepository) Grant(ctx context.Context, userID, badgeID uint) (bool, error) {
	ub := model.UserBadge{UserID: userID, BadgeID: badgeID, EarnedAt: time.Now()}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ub)
	return res.RowsAffected > 0, res.Error
}

func (r *BadgeRepository) ListByUser(ctx context.Context, userID uint) ([]model.UserBadge, error) {
	var list []model.UserBadge
	err := r.DB.WithContext(ctx).Preload("Badge").Where("user_id = ?", userID).Order("earned_at DESC").Find(&list).Error
	return list, err
}

func (r *BadgeRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.UserBadge{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *BadgeRepository) UpdateImage(ctx context.Context, badgeID uint, url string) error {
	return r.DB.WithContext(ctx).Model(&model.Badge{}).Where("id = ?", badgeID).Update("image_url", url).Error
}
