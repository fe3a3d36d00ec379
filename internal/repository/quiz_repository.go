package repository

import (
	"context"
	"edumate_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuizRepository 测验、题目、选项
type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Create(quiz).Error
}

func (r *QuizRepository) FindByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.DB.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

// LockByID 排他锁，修改题目前使用
func (r *QuizRepository) LockByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&quiz, id).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ShareLockByID 共享锁，开始作答时使用，与 LockByID 互斥
func (r *QuizRepository) ShareLockByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "SHARE"}).First(&quiz, id).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

// FindWithQuestions 预加载题目和选项，按排序字段
func (r *QuizRepository) FindWithQuestions(ctx context.Context, id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Preload("Questions.Answers", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&quiz, id).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) ListByModule(ctx context.Context, moduleID uint) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.WithContext(ctx).Where("module_id = ?", moduleID).Order("id").Find(&quizzes).Error
	return quizzes, err
}

func (r *QuizRepository) CountByModule(ctx context.Context, moduleID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Quiz{}).Where("module_id = ?", moduleID).Count(&count).Error
	return count, err
}

// MaxScore 当前题目分值之和
func (r *QuizRepository) MaxScore(ctx context.Context, quizID uint) (int, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.Question{}).Where("quiz_id = ?", quizID).
		Select("COALESCE(SUM(points), 0)").Scan(&total).Error
	return int(total), err
}

// CreateQuestion 题目与选项一起写入
func (r *QuizRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *QuizRepository) FindQuestion(ctx context.Context, questionID uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).Preload("Answers").First(&q, questionID).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) DeleteQuestion(ctx context.Context, questionID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", questionID).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Question{}, questionID).Error
	})
}
