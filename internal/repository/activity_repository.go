package repository

import (
	"context"
	"edumate_backend/internal/model"

	"gorm.io/gorm"
)

type ActivityRepository struct {
	DB *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

func (r *ActivityRepository) WithTx(tx *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: tx}
}

func (r *ActivityRepository) Create(ctx context.Context, a *model.UserActivity) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *ActivityRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.UserActivity{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *ActivityRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]model.UserActivity, error) {
	var list []model.UserActivity
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Find(&list).Error
	return list, err
}
