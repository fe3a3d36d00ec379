package repository

import (
	"context"
	"edumate_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *AttemptRepository) FindByID(ctx context.Context, id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("question_id") }).
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// LockByID 事务内行锁读取，提交与过期清理通过它串行化
func (r *AttemptRepository) LockByID(ctx context.Context, id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindOpen(ctx context.Context, userID, quizID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND status IN ?", userID, quizID,
			[]model.AttemptStatus{model.AttemptCreated, model.AttemptInProgress}).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) ListByUserAndQuiz(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) CountOpenByQuiz(ctx context.Context, quizID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Where("quiz_id = ? AND status IN ?", quizID, []model.AttemptStatus{model.AttemptCreated, model.AttemptInProgress}).
		Count(&count).Error
	return count, err
}

// ListOverdue 截止时间早于 cutoff 的未结束作答
func (r *AttemptRepository) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			[]model.AttemptStatus{model.AttemptCreated, model.AttemptInProgress}, cutoff).
		Order("expires_at").Limit(limit).Find(&attempts).Error
	return attempts, err
}

// Save 更新作答主记录，不级联答案
func (r *AttemptRepository) Save(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(attempt).Error
}

// UpsertAnswer 同一题重复作答以最后一次为准
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, answer *model.AttemptAnswer) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer_id", "text_answer", "updated_at"}),
	}).Create(answer).Error
}

func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uint) ([]model.AttemptAnswer, error) {
	var answers []model.AttemptAnswer
	err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).Order("question_id").Find(&answers).Error
	return answers, err
}

// SaveGrading 写回每题判分结果
func (r *AttemptRepository) SaveGrading(ctx context.Context, answers []model.AttemptAnswer) error {
	for i := range answers {
		err := r.DB.WithContext(ctx).Model(&model.AttemptAnswer{}).Where("id = ?", answers[i].ID).
			Updates(map[string]interface{}{
				"is_correct":    answers[i].IsCorrect,
				"points_earned": answers[i].PointsEarned,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
