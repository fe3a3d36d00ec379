package service

import (
	"bytes"
	"context"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/internal/util"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	exportSheet = "Sheet1"

	// WeakAreaThreshold 平均分低于该百分比的模块视为薄弱
	WeakAreaThreshold = 70.0
	// engagementWindow 统计活跃学生的时间窗口
	engagementWindow = 7 * 24 * time.Hour
)

// ReportService 只读统计与导出
type ReportService struct {
	ReportRepo  *repository.ReportRepository
	QuizRepo    *repository.QuizRepository
	UserRepo    *repository.UserRepository
	Rewards     *RewardService
	Leaderboard *LeaderboardService

	now func() time.Time
}

func NewReportService(
	reportRepo *repository.ReportRepository,
	quizRepo *repository.QuizRepository,
	userRepo *repository.UserRepository,
	rewards *RewardService,
	leaderboard *LeaderboardService,
) *ReportService {
	return &ReportService{
		ReportRepo:  reportRepo,
		QuizRepo:    quizRepo,
		UserRepo:    userRepo,
		Rewards:     rewards,
		Leaderboard: leaderboard,
		now:         time.Now,
	}
}

type UserSummary struct {
	UserID        uint          `json:"userId"`
	Name          string        `json:"name"`
	Points        int           `json:"points"`
	Level         int           `json:"level"`
	Rank          *int          `json:"rank"`
	BadgeCount    int           `json:"badgeCount"`
	PassedQuizzes int64         `json:"passedQuizzes"`
	Streak        *model.Streak `json:"streak"`
}

func (s *ReportService) UserSummary(ctx context.Context, userID uint) (*UserSummary, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	badges, err := s.Rewards.BadgeRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	passed, err := s.ReportRepo.PassedQuizCount(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "count passed quizzes")
	}
	streak, err := s.Rewards.GetStreak(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &UserSummary{
		UserID:        user.ID,
		Name:          user.Name,
		Points:        user.Points,
		Level:         user.Level,
		BadgeCount:    int(badges),
		PassedQuizzes: passed,
		Streak:        streak,
	}
	entry, err := s.Leaderboard.GetUserRank(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		summary.Rank = &entry.Rank
	}
	return summary, nil
}

func (s *ReportService) QuizStats(ctx context.Context, quizID uint) (*repository.QuizStats, error) {
	if _, err := s.QuizRepo.FindByID(ctx, quizID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	stats, err := s.ReportRepo.QuizStats(ctx, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "query quiz stats")
	}
	return stats, nil
}

// CourseCompletionRate 课程完成率，没有选课记录时为 0。讲师只能查看自己的课程
func (s *ReportService) CourseCompletionRate(ctx context.Context, actor Actor, courseID uint) (*repository.CourseEngagement, error) {
	rows, err := s.ReportRepo.CourseEngagement(ctx, repository.EngagementFilter{
		CourseID:    courseID,
		ActiveSince: s.now().Add(-engagementWindow),
	})
	if err != nil {
		return nil, errors.Wrap(err, "query course completion")
	}
	if len(rows) == 0 {
		return nil, util.ErrCourseNotFound
	}
	if actor.Role != model.Admin && rows[0].InstructorID != actor.UserID {
		return nil, util.ErrPermissionDenied
	}
	return &rows[0], nil
}

// CourseEngagement 有学生选课的课程的活跃度，管理员看全部，讲师只看自己的课程
func (s *ReportService) CourseEngagement(ctx context.Context, actor Actor) ([]repository.CourseEngagement, error) {
	if !actor.isStaff() {
		return nil, util.ErrPermissionDenied
	}
	filter := repository.EngagementFilter{ActiveSince: s.now().Add(-engagementWindow)}
	if actor.Role != model.Admin {
		filter.InstructorID = actor.UserID
	}
	rows, err := s.ReportRepo.CourseEngagement(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "query course engagement")
	}
	list := make([]repository.CourseEngagement, 0, len(rows))
	for _, r := range rows {
		if r.TotalStudents > 0 {
			list = append(list, r)
		}
	}
	return list, nil
}

// WeakAreas 用户平均分低于 WeakAreaThreshold 的模块
func (s *ReportService) WeakAreas(ctx context.Context, userID uint) ([]repository.WeakArea, error) {
	if _, err := s.UserRepo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	list, err := s.ReportRepo.WeakAreas(ctx, userID, WeakAreaThreshold)
	if err != nil {
		return nil, errors.Wrap(err, "query weak areas")
	}
	if list == nil {
		list = []repository.WeakArea{}
	}
	return list, nil
}

var attemptExportHeaders = []interface{}{
	"Attempt ID", "User ID", "Name", "Email", "Status", "Score", "Max Score", "Percentage", "Passed", "Started At", "Completed At",
}

// ExportQuizAttempts 导出测验全部作答为 xlsx，返回文件内容和文件名
func (s *ReportService) ExportQuizAttempts(ctx context.Context, quizID uint) (*bytes.Buffer, string, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", util.ErrQuizNotFound
	}
	if err != nil {
		return nil, "", err
	}
	rows, err := s.ReportRepo.AttemptRows(ctx, quizID)
	if err != nil {
		return nil, "", errors.Wrap(err, "query attempts")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(exportSheet, "A1", &attemptExportHeaders); err != nil {
		return nil, "", err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		f.SetCellStyle(exportSheet, "A1", "K1", style)
	}
	f.SetColWidth(exportSheet, "A", "K", 16)

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, "", err
		}
		values := []interface{}{
			r.AttemptID, r.UserID, r.UserName, r.Email, r.Status,
			r.Score, r.MaxScore, fmt.Sprintf("%.2f", r.Percentage), r.Passed,
			formatNullTime(r.StartedAt.Valid, r.StartedAt.Time), formatNullTime(r.CompletedAt.Valid, r.CompletedAt.Time),
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", errors.Wrap(err, "write xlsx")
	}
	return buf, fmt.Sprintf("quiz_%d_attempts.xlsx", quiz.ID), nil
}

func formatNullTime(valid bool, t time.Time) string {
	if !valid {
		return ""
	}
	return t.Format(util.TimeFormat)
}
