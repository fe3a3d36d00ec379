package repository

import (
	"context"
	"edumate_backend/internal/model"

	"gorm.io/gorm"
)

// PointsRepository 积分流水
type PointsRepository struct {
	DB *gorm.DB
}

func NewPointsRepository(db *gorm.DB) *PointsRepository {
	return &PointsRepository{DB: db}
}

func (r *PointsRepository) WithTx(tx *gorm.DB) *PointsRepository {
	return &PointsRepository{DB: tx}
}

func (r *PointsRepository) Create(ctx context.Context, t *model.PointsTransaction) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

// SumByUser 积分总额以流水为准
func (r *PointsRepository) SumByUser(ctx context.Context, userID uint) (int, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.PointsTransaction{}).Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").Scan(&total).Error
	return int(total), err
}

func (r *PointsRepository) ListByUser(ctx context.Context, userID uint, page, limit int) ([]model.PointsTransaction, int64, error) {
	var (
		list  []model.PointsTransaction
		total int64
	)
	db := r.DB.WithContext(ctx).Model(&model.PointsTransaction{}).Where("user_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&list).Error
	return list, total, err
}

type KindTotal struct {
	Kind  model.TransactionKind `json:"kind"`
	Total int                   `json:"total"`
}

func (r *PointsRepository) TotalsByKind(ctx context.Context, userID uint) ([]KindTotal, error) {
	var totals []KindTotal
	err := r.DB.WithContext(ctx).Model(&model.PointsTransaction{}).
		Select("kind, COALESCE(SUM(points), 0) AS total").
		Where("user_id = ?", userID).Group("kind").Order("kind").Scan(&totals).Error
	return totals, err
}
