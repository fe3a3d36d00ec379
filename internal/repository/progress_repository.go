package repository

import (
	"context"
	"edumate_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

// CreateLessonCompletion 已存在时忽略，返回是否新写入
func (r *ProgressRepository) CreateLessonCompletion(ctx context.Context, c *model.LessonCompletion) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	return res.RowsAffected > 0, res.Error
}

// CreateQuizCompletion 已存在时忽略，返回是否新写入
func (r *ProgressRepository) CreateQuizCompletion(ctx context.Context, c *model.QuizCompletion) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	return res.RowsAffected > 0, res.Error
}

func (r *ProgressRepository) CountLessonCompletions(ctx context.Context, userID, moduleID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.LessonCompletion{}).
		Where("user_id = ? AND module_id = ?", userID, moduleID).Count(&count).Error
	return count, err
}

func (r *ProgressRepository) CountQuizCompletions(ctx context.Context, userID, moduleID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.QuizCompletion{}).
		Where("user_id = ? AND module_id = ?", userID, moduleID).Count(&count).Error
	return count, err
}

func (r *ProgressRepository) LockModuleProgress(ctx context.Context, userID, moduleID uint) (*model.ModuleProgress, error) {
	var p model.ModuleProgress
	err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND module_id = ?", userID, moduleID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProgressRepository) SaveModuleProgress(ctx context.Context, p *model.ModuleProgress) error {
	if p.ID == 0 {
		return r.DB.WithContext(ctx).Create(p).Error
	}
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *ProgressRepository) ListModuleProgressByCourse(ctx context.Context, userID, courseID uint) ([]model.ModuleProgress, error) {
	var list []model.ModuleProgress
	err := r.DB.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).Find(&list).Error
	return list, err
}

func (r *ProgressRepository) ListModuleProgress(ctx context.Context, userID uint) ([]model.ModuleProgress, error) {
	var list []model.ModuleProgress
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&list).Error
	return list, err
}

func (r *ProgressRepository) ListLessonCompletions(ctx context.Context, userID uint) ([]model.LessonCompletion, error) {
	var list []model.LessonCompletion
	err := r.DB.WithContext(ctx).Select("lesson_id", "module_id", "course_id").Where("user_id = ?", userID).Find(&list).Error
	return list, err
}
