package repository

import (
	"context"
	"database/sql"
	"edumate_backend/internal/model"
	"time"

	"github.com/jmoiron/sqlx"
)

// ReportRepository 只读统计查询，走 sqlx
type ReportRepository struct {
	SQLX *sqlx.DB
}

func NewReportRepository(sx *sqlx.DB) *ReportRepository {
	return &ReportRepository{SQLX: sx}
}

type QuizStats struct {
	QuizID            uint    `db:"-" json:"quizId"`
	Attempts          int64   `db:"attempts" json:"attempts"`
	Completed         int64   `db:"completed" json:"completed"`
	Expired           int64   `db:"expired" json:"expired"`
	Passed            int64   `db:"passed" json:"passed"`
	AveragePercentage float64 `db:"average_percentage" json:"averagePercentage"`
	PassRate          float64 `db:"-" json:"passRate"`
}

func (r *ReportRepository) QuizStats(ctx context.Context, quizID uint) (*QuizStats, error) {
	query := r.SQLX.Rebind(`
SELECT COUNT(*) AS attempts,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS expired,
	COALESCE(SUM(CASE WHEN status = ? AND passed THEN 1 ELSE 0 END), 0) AS passed,
	COALESCE(AVG(CASE WHEN status = ? THEN percentage END), 0) AS average_percentage
FROM quiz_attempts
WHERE quiz_id = ? AND deleted_at IS NULL`)

	var stats QuizStats
	err := r.SQLX.GetContext(ctx, &stats, query,
		model.AttemptCompleted, model.AttemptExpired, model.AttemptCompleted, model.AttemptCompleted, quizID)
	if err != nil {
		return nil, err
	}
	stats.QuizID = quizID
	if stats.Completed > 0 {
		stats.PassRate = float64(stats.Passed) / float64(stats.Completed) * 100
	}
	return &stats, nil
}

// AttemptRow 导出用的作答明细
type AttemptRow struct {
	AttemptID   uint         `db:"attempt_id"`
	UserID      uint         `db:"user_id"`
	UserName    string       `db:"user_name"`
	Email       string       `db:"email"`
	Status      string       `db:"status"`
	Score       int          `db:"score"`
	MaxScore    int          `db:"max_score"`
	Percentage  float64      `db:"percentage"`
	Passed      bool         `db:"passed"`
	StartedAt   sql.NullTime `db:"started_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func (r *ReportRepository) AttemptRows(ctx context.Context, quizID uint) ([]AttemptRow, error) {
	query := r.SQLX.Rebind(`
SELECT qa.id AS attempt_id, qa.user_id, u.name AS user_name, u.email, qa.status,
	qa.score, qa.max_score, qa.percentage, qa.passed, qa.started_at, qa.completed_at
FROM quiz_attempts qa
JOIN users u ON u.id = qa.user_id
WHERE qa.quiz_id = ? AND qa.deleted_at IS NULL
ORDER BY qa.started_at, qa.id`)

	var rows []AttemptRow
	err := r.SQLX.SelectContext(ctx, &rows, query, quizID)
	return rows, err
}

// PassedQuizCount 用户通过的不同测验数
func (r *ReportRepository) PassedQuizCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	query := r.SQLX.Rebind(`SELECT COUNT(*) FROM quiz_completions WHERE user_id = ? AND deleted_at IS NULL`)
	err := r.SQLX.GetContext(ctx, &count, query, userID)
	return count, err
}

// CourseEngagement 单门课程的选课、活跃与完成情况
type CourseEngagement struct {
	CourseID          uint    `db:"course_id" json:"courseId"`
	Title             string  `db:"title" json:"title"`
	InstructorID      uint    `db:"instructor_id" json:"instructorId"`
	TotalStudents     int64   `db:"total_students" json:"totalStudents"`
	ActiveStudents    int64   `db:"active_students" json:"activeStudents"`
	CompletedStudents int64   `db:"completed_students" json:"completedStudents"`
	ActivePercentage  float64 `db:"-" json:"activePercentage"`
	CompletionRate    float64 `db:"-" json:"completionRate"`
}

// EngagementFilter 为 0 的字段不参与过滤
type EngagementFilter struct {
	InstructorID uint
	CourseID     uint
	ActiveSince  time.Time
}

// CourseEngagement 活跃学生指 ActiveSince 之后有行为记录的选课学生
func (r *ReportRepository) CourseEngagement(ctx context.Context, f EngagementFilter) ([]CourseEngagement, error) {
	query := r.SQLX.Rebind(`
SELECT c.id AS course_id, c.title, c.instructor_id,
	COUNT(e.id) AS total_students,
	COALESCE(SUM(CASE WHEN act.user_id IS NOT NULL THEN 1 ELSE 0 END), 0) AS active_students,
	COALESCE(SUM(CASE WHEN e.status = ? THEN 1 ELSE 0 END), 0) AS completed_students
FROM courses c
LEFT JOIN enrollments e ON e.course_id = c.id AND e.deleted_at IS NULL
LEFT JOIN (SELECT DISTINCT user_id FROM user_activities WHERE created_at >= ?) act ON act.user_id = e.user_id
WHERE c.deleted_at IS NULL AND (? = 0 OR c.instructor_id = ?) AND (? = 0 OR c.id = ?)
GROUP BY c.id, c.title, c.instructor_id
ORDER BY c.id`)

	var rows []CourseEngagement
	err := r.SQLX.SelectContext(ctx, &rows, query,
		model.EnrollmentCompleted, f.ActiveSince, f.InstructorID, f.InstructorID, f.CourseID, f.CourseID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].TotalStudents > 0 {
			total := float64(rows[i].TotalStudents)
			rows[i].ActivePercentage = float64(rows[i].ActiveStudents) / total * 100
			rows[i].CompletionRate = float64(rows[i].CompletedStudents) / total * 100
		}
	}
	return rows, nil
}

// WeakArea 某个模块下已完成作答的平均得分
type WeakArea struct {
	ModuleID          uint    `db:"module_id" json:"moduleId"`
	CourseID          uint    `db:"course_id" json:"courseId"`
	Topic             string  `db:"topic" json:"topic"`
	Attempts          int64   `db:"attempts" json:"attempts"`
	AveragePercentage float64 `db:"average_percentage" json:"averagePercentage"`
}

// WeakAreas 按模块汇总用户已完成的作答，只返回平均分低于 below 的模块，从低到高
func (r *ReportRepository) WeakAreas(ctx context.Context, userID uint, below float64) ([]WeakArea, error) {
	query := r.SQLX.Rebind(`
SELECT m.id AS module_id, m.course_id, m.title AS topic,
	COUNT(qa.id) AS attempts,
	AVG(qa.percentage) AS average_percentage
FROM quiz_attempts qa
JOIN quizzes q ON q.id = qa.quiz_id
JOIN modules m ON m.id = q.module_id
WHERE qa.user_id = ? AND qa.status = ? AND qa.deleted_at IS NULL
GROUP BY m.id, m.course_id, m.title
HAVING AVG(qa.percentage) < ?
ORDER BY average_percentage ASC, m.id ASC`)

	var rows []WeakArea
	err := r.SQLX.SelectContext(ctx, &rows, query, userID, model.AttemptCompleted, below)
	return rows, err
}
