package repository

import (
	"context"
	"edumate_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChallengeRepository struct {
	DB *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{DB: db}
}

func (r *ChallengeRepository) WithTx(tx *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{DB: tx}
}

func (r *ChallengeRepository) Create(ctx context.Context, c *model.Challenge) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *ChallengeRepository) FindByID(ctx context.Context, id uint) (*model.Challenge, error) {
	var c model.Challenge
	if err := r.DB.WithContext(ctx).Preload("Badge").First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChallengeRepository) ListActive(ctx context.Context, now time.Time) ([]model.Challenge, error) {
	var list []model.Challenge
	err := r.DB.WithContext(ctx).Preload("Badge").
		Where("is_active = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)", true, now, now).
		Order("start_date DESC").Find(&list).Error
	return list, err
}

// Accept 已接受时忽略，返回是否新建
func (r *ChallengeRepository) Accept(ctx context.Context, uc *model.UserChallenge) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(uc)
	return res.RowsAffected > 0, res.Error
}

func (r *ChallengeRepository) LockUserChallenge(ctx context.Context, userID, challengeID uint) (*model.UserChallenge, error) {
	var uc model.UserChallenge
	err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&uc).Error
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

func (r *ChallengeRepository) SaveUserChallenge(ctx context.Context, uc *model.UserChallenge) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(uc).Error
}

func (r *ChallengeRepository) ListByUser(ctx context.Context, userID uint) ([]model.UserChallenge, error) {
	var list []model.UserChallenge
	err := r.DB.WithContext(ctx).Preload("Challenge").Where("user_id = ?", userID).Order("accepted_at DESC").Find(&list).Error
	return list, err
}
