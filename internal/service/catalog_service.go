package service

import (
	"context"
	"edumate_backend/internal/config"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/internal/util"
	"edumate_backend/pkg/logger"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService 课程、测验题库、徽章与成就的维护
type CatalogService struct {
	DB              *gorm.DB
	CourseRepo      *repository.CourseRepository
	QuizRepo        *repository.QuizRepository
	AttemptRepo     *repository.AttemptRepository
	BadgeRepo       *repository.BadgeRepository
	AchievementRepo *repository.AchievementRepository
	Storage         *StorageService
	QuizConfig      config.QuizConfig
}

func NewCatalogService(
	db *gorm.DB,
	courseRepo *repository.CourseRepository,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	badgeRepo *repository.BadgeRepository,
	achievementRepo *repository.AchievementRepository,
	storage *StorageService,
	quizConfig config.QuizConfig,
) *CatalogService {
	return &CatalogService{
		DB:              db,
		CourseRepo:      courseRepo,
		QuizRepo:        quizRepo,
		AttemptRepo:     attemptRepo,
		BadgeRepo:       badgeRepo,
		AchievementRepo: achievementRepo,
		Storage:         storage,
		QuizConfig:      quizConfig,
	}
}

// Actor 发起操作的用户
type Actor struct {
	UserID uint
	Role   model.UserRole
}

func (a Actor) canManage(course *model.Course) bool {
	return a.Role == model.Admin || course.InstructorID == a.UserID
}

func (a Actor) isStaff() bool {
	return a.Role == model.Admin || a.Role == model.Instructor
}

type CourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	IsPublished bool   `json:"isPublished"`
}

type ModuleRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	SortOrder   int    `json:"sortOrder"`
}

type LessonRequest struct {
	Title     string `json:"title" binding:"required"`
	Content   string `json:"content"`
	SortOrder int    `json:"sortOrder"`
}

type QuizRequest struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	TimeLimit    *int   `json:"timeLimit"`
	PassingScore *int   `json:"passingScore"`
}

type AnswerInput struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionRequest struct {
	Text        string             `json:"text" binding:"required"`
	Type        model.QuestionType `json:"type" binding:"required"`
	Points      int                `json:"points"`
	SortOrder   int                `json:"sortOrder"`
	Explanation string             `json:"explanation"`
	Answers     []AnswerInput      `json:"answers"`
}

type CriterionInput struct {
	ProgressType model.ProgressType `json:"progressType" binding:"required"`
	Threshold    int                `json:"threshold"`
	CourseID     *uint              `json:"courseId"`
	ModuleID     *uint              `json:"moduleId"`
	MinScore     float64            `json:"minScore"`
	Difficulty   string             `json:"difficulty"`
}

type BadgeRequest struct {
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description"`
	Icon           string          `json:"icon"`
	BadgeType      model.BadgeType `json:"badgeType"`
	PointsRequired int             `json:"pointsRequired"`
	PointsReward   int             `json:"pointsReward"`
	Criterion      *CriterionInput `json:"criterion"`
}

type AchievementRequest struct {
	Name         string                `json:"name" binding:"required"`
	Description  string                `json:"description"`
	Icon         string                `json:"icon"`
	Type         model.AchievementType `json:"type" binding:"required"`
	Threshold    int                   `json:"threshold"`
	PointsReward int                   `json:"pointsReward"`
	BadgeID      *uint                 `json:"badgeId"`
}

func (s *CatalogService) CreateCourse(ctx context.Context, actor Actor, req CourseRequest) (*model.Course, error) {
	course := &model.Course{
		Title:        req.Title,
		Description:  req.Description,
		Difficulty:   req.Difficulty,
		IsPublished:  req.IsPublished,
		InstructorID: actor.UserID,
	}
	if err := s.CourseRepo.CreateCourse(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CatalogService) ListCourses(ctx context.Context, publishedOnly bool) ([]model.Course, error) {
	return s.CourseRepo.ListCourses(ctx, publishedOnly)
}

func (s *CatalogService) GetCourse(ctx context.Context, id uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindCourseDetail(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	return course, err
}

func (s *CatalogService) managedCourse(ctx context.Context, actor Actor, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindCourseByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !actor.canManage(course) {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (s *CatalogService) managedModule(ctx context.Context, actor Actor, moduleID uint) (*model.Module, error) {
	module, err := s.CourseRepo.FindModuleByID(ctx, moduleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrModuleNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.managedCourse(ctx, actor, module.CourseID); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *CatalogService) managedQuiz(ctx context.Context, actor Actor, quizID uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.managedCourse(ctx, actor, quiz.CourseID); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *CatalogService) CreateModule(ctx context.Context, actor Actor, courseID uint, req ModuleRequest) (*model.Module, error) {
	if _, err := s.managedCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	module := &model.Module{
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	}
	if err := s.CourseRepo.CreateModule(ctx, module); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *CatalogService) CreateLesson(ctx context.Context, actor Actor, moduleID uint, req LessonRequest) (*model.Lesson, error) {
	module, err := s.managedModule(ctx, actor, moduleID)
	if err != nil {
		return nil, err
	}
	lesson := &model.Lesson{
		ModuleID:  module.ID,
		CourseID:  module.CourseID,
		Title:     req.Title,
		Content:   req.Content,
		SortOrder: req.SortOrder,
	}
	if err := s.CourseRepo.CreateLesson(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *CatalogService) CreateQuiz(ctx context.Context, actor Actor, moduleID uint, req QuizRequest) (*model.Quiz, error) {
	module, err := s.managedModule(ctx, actor, moduleID)
	if err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		CourseID:     module.CourseID,
		ModuleID:     module.ID,
		Title:        req.Title,
		Description:  req.Description,
		TimeLimit:    s.QuizConfig.DefaultTimeLimit,
		PassingScore: s.QuizConfig.DefaultPassingScore,
	}
	if req.TimeLimit != nil {
		quiz.TimeLimit = *req.TimeLimit
	}
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	if quiz.TimeLimit < 0 {
		return nil, fmt.Errorf("%w: time limit must not be negative", util.ErrInvalidQuestion)
	}
	if quiz.PassingScore < 0 || quiz.PassingScore > 100 {
		return nil, fmt.Errorf("%w: passing score must be between 0 and 100", util.ErrInvalidQuestion)
	}

	if err := s.QuizRepo.Create(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// GetQuizWithAnswers 含正确答案，仅供课程管理者查看
func (s *CatalogService) GetQuizWithAnswers(ctx context.Context, actor Actor, quizID uint) (*model.Quiz, error) {
	if _, err := s.managedQuiz(ctx, actor, quizID); err != nil {
		return nil, err
	}
	return s.QuizRepo.FindWithQuestions(ctx, quizID)
}

// ValidateQuestion 单选一个正确项；判断题恰好两个选项且一个正确；简答题至少一个参考答案
func ValidateQuestion(req QuestionRequest) error {
	if !req.Type.Valid() {
		return fmt.Errorf("%w: unknown question type %q", util.ErrInvalidQuestion, req.Type)
	}
	if req.Points < 0 {
		return fmt.Errorf("%w: points must not be negative", util.ErrInvalidQuestion)
	}

	correct := 0
	for _, a := range req.Answers {
		if strings.TrimSpace(a.Text) == "" {
			return fmt.Errorf("%w: answer text must not be empty", util.ErrInvalidQuestion)
		}
		if a.IsCorrect {
			correct++
		}
	}

	switch req.Type {
	case model.MultipleChoice:
		if len(req.Answers) < 2 || correct != 1 {
			return fmt.Errorf("%w: multiple choice needs at least two answers and exactly one correct", util.ErrInvalidQuestion)
		}
	case model.TrueFalse:
		if len(req.Answers) != 2 || correct != 1 {
			return fmt.Errorf("%w: true/false needs exactly two answers and one correct", util.ErrInvalidQuestion)
		}
	case model.ShortAnswer:
		if correct < 1 {
			return fmt.Errorf("%w: short answer needs at least one accepted answer", util.ErrInvalidQuestion)
		}
	}
	return nil
}

// editQuestions 锁定测验行并确认没有未结束作答后修改题目。StartAttempt 对同一行持共享锁
func (s *CatalogService) editQuestions(ctx context.Context, quizID uint, fn func(quizzes *repository.QuizRepository) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quizzes := s.QuizRepo.WithTx(tx)
		if _, err := quizzes.LockByID(ctx, quizID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrQuizNotFound
			}
			return err
		}
		open, err := s.AttemptRepo.WithTx(tx).CountOpenByQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		if open > 0 {
			return util.ErrQuizHasOpenAttempts
		}
		return fn(quizzes)
	})
}

func (s *CatalogService) AddQuestion(ctx context.Context, actor Actor, quizID uint, req QuestionRequest) (*model.Question, error) {
	if err := ValidateQuestion(req); err != nil {
		return nil, err
	}
	if _, err := s.managedQuiz(ctx, actor, quizID); err != nil {
		return nil, err
	}
	q := &model.Question{
		QuizID:      quizID,
		Text:        req.Text,
		Type:        req.Type,
		Points:      req.Points,
		SortOrder:   req.SortOrder,
		Explanation: req.Explanation,
	}
	for _, a := range req.Answers {
		q.Answers = append(q.Answers, model.Answer{Text: strings.TrimSpace(a.Text), IsCorrect: a.IsCorrect})
	}
	err := s.editQuestions(ctx, quizID, func(quizzes *repository.QuizRepository) error {
		return quizzes.CreateQuestion(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *CatalogService) DeleteQuestion(ctx context.Context, actor Actor, questionID uint) error {
	q, err := s.QuizRepo.FindQuestion(ctx, questionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrInvalidQuestionReference
	}
	if err != nil {
		return err
	}
	if _, err := s.managedQuiz(ctx, actor, q.QuizID); err != nil {
		return err
	}
	return s.editQuestions(ctx, q.QuizID, func(quizzes *repository.QuizRepository) error {
		return quizzes.DeleteQuestion(ctx, questionID)
	})
}

func validateCriterion(c *CriterionInput) error {
	if !KnownProgressType(c.ProgressType) {
		return fmt.Errorf("%w: unknown progress type %q", util.ErrInvalidInput, c.ProgressType)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: criterion threshold must be positive", util.ErrInvalidInput)
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("%w: minScore must be between 0 and 100", util.ErrInvalidInput)
	}
	return nil
}

func (s *CatalogService) CreateBadge(ctx context.Context, req BadgeRequest) (*model.Badge, error) {
	if req.PointsRequired < 0 || req.PointsReward < 0 {
		return nil, fmt.Errorf("%w: badge points must not be negative", util.ErrInvalidInput)
	}
	badge := &model.Badge{
		Name:           req.Name,
		Description:    req.Description,
		Icon:           req.Icon,
		BadgeType:      req.BadgeType,
		PointsRequired: req.PointsRequired,
		PointsReward:   req.PointsReward,
	}
	if badge.BadgeType == "" {
		badge.BadgeType = model.BadgeAchievement
	}
	if c := req.Criterion; c != nil {
		if err := validateCriterion(c); err != nil {
			return nil, err
		}
		badge.BadgeType = model.BadgeProgress
		badge.Criterion = &model.BadgeCriterion{
			ProgressType: c.ProgressType,
			Threshold:    c.Threshold,
			CourseID:     c.CourseID,
			ModuleID:     c.ModuleID,
			MinScore:     c.MinScore,
			Difficulty:   c.Difficulty,
		}
	}

	if err := s.BadgeRepo.Create(ctx, badge); err != nil {
		return nil, err
	}
	return badge, nil
}

func (s *CatalogService) CreateAchievement(ctx context.Context, req AchievementRequest) (*model.Achievement, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown achievement type %q", util.ErrInvalidInput, req.Type)
	}
	if req.Threshold < 0 || req.PointsReward < 0 {
		return nil, fmt.Errorf("%w: achievement threshold and reward must not be negative", util.ErrInvalidInput)
	}
	if req.BadgeID != nil {
		if _, err := s.BadgeRepo.FindByID(ctx, *req.BadgeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrBadgeNotFound
			}
			return nil, err
		}
	}

	a := &model.Achievement{
		Name:         req.Name,
		Description:  req.Description,
		Icon:         req.Icon,
		Type:         req.Type,
		Threshold:    req.Threshold,
		PointsReward: req.PointsReward,
		BadgeID:      req.BadgeID,
	}
	if err := s.AchievementRepo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UploadBadgeImage 校验扩展名和文件头后上传，返回访问地址
func (s *CatalogService) UploadBadgeImage(ctx context.Context, badgeID uint, filename string, reader io.Reader, size int64) (string, error) {
	badge, err := s.BadgeRepo.FindByID(ctx, badgeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", util.ErrBadgeNotFound
	}
	if err != nil {
		return "", err
	}
	if size > util.MaxBadgeImage {
		return "", fmt.Errorf("%w: badge image exceeds %d bytes", util.ErrInvalidInput, util.MaxBadgeImage)
	}
	if !util.HasAllowedExtension(filename, util.AllowedImageExtensions) {
		return "", fmt.Errorf("%w: unsupported image extension: %s", util.ErrInvalidInput, filename)
	}
	mimeType, body, err := util.SniffMimeType(reader, []string{util.MimeImage})
	if err != nil {
		return "", err
	}

	url, err := s.Storage.Upload(ctx, ObjectName("badges", filename), body, size, mimeType)
	if err != nil {
		return "", errors.Wrap(err, "upload badge image")
	}
	if err := s.BadgeRepo.UpdateImage(ctx, badge.ID, url); err != nil {
		return "", err
	}
	logger.Ctx(ctx).Info("Badge image uploaded", zap.Uint("badgeId", badge.ID), zap.String("url", url))
	return url, nil
}
