package repository

import (
	"context"
	"edumate_backend/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// MetricsRepository 汇总徽章判定需要的用户指标
type MetricsRepository struct {
	DB *gorm.DB
}

func NewMetricsRepository(db *gorm.DB) *MetricsRepository {
	return &MetricsRepository{DB: db}
}

// Load 读取用户指标快照，moduleIDs/courseIDs 为判定条件引用到的范围
func (r *MetricsRepository) Load(ctx context.Context, userID uint, moduleIDs, courseIDs []uint) (*model.UserMetrics, error) {
	db := r.DB.WithContext(ctx)
	m := &model.UserMetrics{UserID: userID}

	var user model.User
	if err := db.Select("id", "points").First(&user, userID).Error; err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	m.Points = user.Points

	var enrollments int64
	if err := db.Model(&model.Enrollment{}).Where("user_id = ?", userID).Count(&enrollments).Error; err != nil {
		return nil, errors.Wrap(err, "count enrollments")
	}
	m.EnrollmentCount = int(enrollments)

	if err := db.Model(&model.Enrollment{}).
		Where("user_id = ? AND status = ?", userID, model.EnrollmentCompleted).
		Pluck("course_id", &m.CompletedCourseIDs).Error; err != nil {
		return nil, errors.Wrap(err, "load completed courses")
	}

	if err := db.Where("user_id = ?", userID).Find(&m.ModuleProgress).Error; err != nil {
		return nil, errors.Wrap(err, "load module progress")
	}

	if err := db.Select("lesson_id", "module_id", "course_id").Where("user_id = ?", userID).
		Find(&m.LessonCompletions).Error; err != nil {
		return nil, errors.Wrap(err, "load lesson completions")
	}

	if err := db.Table("quiz_attempts qa").
		Select("qa.id AS attempt_id, qa.quiz_id, q.module_id, q.course_id, qa.percentage").
		Joins("JOIN quizzes q ON q.id = qa.quiz_id").
		Where("qa.user_id = ? AND qa.status = ? AND qa.passed = ? AND qa.deleted_at IS NULL", userID, model.AttemptCompleted, true).
		Scan(&m.PassedAttempts).Error; err != nil {
		return nil, errors.Wrap(err, "load passed attempts")
	}

	var activities int64
	if err := db.Model(&model.UserActivity{}).Where("user_id = ?", userID).Count(&activities).Error; err != nil {
		return nil, errors.Wrap(err, "count activities")
	}
	m.ActivityCount = int(activities)

	var streak model.Streak
	err := db.Where("user_id = ?", userID).First(&streak).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "load streak")
	}
	m.CurrentStreak = streak.CurrentStreak

	courses := NewCourseRepository(r.DB)
	if m.Modules, err = courses.ModuleCourses(ctx, moduleIDs); err != nil {
		return nil, errors.Wrap(err, "load referenced modules")
	}
	if m.Courses, err = courses.ExistingCourseIDs(ctx, courseIDs); err != nil {
		return nil, errors.Wrap(err, "load referenced courses")
	}

	return m, nil
}

// AchievementMetrics 各成就类型当前对应的指标值
func (r *MetricsRepository) AchievementMetrics(ctx context.Context, userID uint) (map[model.AchievementType]int, error) {
	db := r.DB.WithContext(ctx)

	var enrolled, completed, activities int64
	if err := db.Model(&model.Enrollment{}).Where("user_id = ?", userID).Count(&enrolled).Error; err != nil {
		return nil, errors.Wrap(err, "count enrollments")
	}
	if err := db.Model(&model.Enrollment{}).
		Where("user_id = ? AND status = ?", userID, model.EnrollmentCompleted).
		Count(&completed).Error; err != nil {
		return nil, errors.Wrap(err, "count completed courses")
	}
	if err := db.Model(&model.UserActivity{}).Where("user_id = ?", userID).Count(&activities).Error; err != nil {
		return nil, errors.Wrap(err, "count activities")
	}

	var best float64
	if err := db.Model(&model.QuizAttempt{}).
		Select("COALESCE(MAX(percentage), 0)").
		Where("user_id = ? AND status = ?", userID, model.AttemptCompleted).
		Scan(&best).Error; err != nil {
		return nil, errors.Wrap(err, "load best quiz score")
	}

	var streak model.Streak
	err := db.Where("user_id = ?", userID).First(&streak).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "load streak")
	}

	return map[model.AchievementType]int{
		model.AchievementQuizScore:        int(best),
		model.AchievementCourseCompletion: int(completed),
		model.AchievementStreak:           streak.CurrentStreak,
		model.AchievementActivity:         int(activities),
		model.AchievementEnrollment:       int(enrolled),
	}, nil
}
