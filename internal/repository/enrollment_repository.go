package repository

import (
	"context"
	"edumate_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: tx}
}

func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) error {
	return r.DB.WithContext(ctx).Create(e).Error
}

func (r *EnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LockByUserAndCourse 事务内行锁读取
func (r *EnrollmentRepository) LockByUserAndCourse(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var list []model.Enrollment
	err := r.DB.WithContext(ctx).Preload("Course").Where("user_id = ?", userID).Order("enrolled_at DESC").Find(&list).Error
	return list, err
}

func (r *EnrollmentRepository) Save(ctx context.Context, e *model.Enrollment) error {
	return r.DB.WithContext(ctx).Save(e).Error
}

func (r *EnrollmentRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *EnrollmentRepository) CountCompletedByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND status = ?", userID, model.EnrollmentCompleted).Count(&count).Error
	return count, err
}

func (r *EnrollmentRepository) CompletedCourseIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND status = ?", userID, model.EnrollmentCompleted).Pluck("course_id", &ids).Error
	return ids, err
}
