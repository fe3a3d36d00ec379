package service

import (
	"context"
	"edumate_backend/internal/config"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/internal/util"
	"edumate_backend/pkg/logger"
	"edumate_backend/pkg/monitoring"
	"edumate_backend/pkg/tracing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const expireBatchSize = 100

// QuizService 测验作答：开始、记录答案、提交判分、超时过期
type QuizService struct {
	DB          *gorm.DB
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
	Enrollment  *EnrollmentService
	Activity    *ActivityService
	Dispatcher  EventDispatcher
	Notifier    Notifier
	Config      config.QuizConfig
	now         func() time.Time
}

func NewQuizService(
	db *gorm.DB,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	enrollment *EnrollmentService,
	activity *ActivityService,
	dispatcher EventDispatcher,
	notifier Notifier,
	cfg config.QuizConfig,
) *QuizService {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	return &QuizService{
		DB:          db,
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		Enrollment:  enrollment,
		Activity:    activity,
		Dispatcher:  dispatcher,
		Notifier:    notifier,
		Config:      cfg,
		now:         time.Now,
	}
}

func (s *QuizService) grace() time.Duration {
	return time.Duration(s.Config.ExpiryGraceMinutes) * time.Minute
}

// AnswerRequest 记录一道题的作答，选择题填 answerId，简答题填 text
type AnswerRequest struct {
	QuestionID uint   `json:"questionId" binding:"required"`
	AnswerID   *uint  `json:"answerId"`
	Text       string `json:"text"`
}

// AttemptResult 提交后的结果
type AttemptResult struct {
	Attempt *model.QuizAttempt `json:"attempt"`
	Result  ScoreResult        `json:"result"`
}

func (s *QuizService) loadQuiz(ctx context.Context, quizID uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	return quiz, err
}

// StartAttempt 同一用户同一测验最多一个未结束的作答
func (s *QuizService) StartAttempt(ctx context.Context, userID, quizID uint) (*model.QuizAttempt, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Enrollment.RequireEnrollment(ctx, userID, quiz.CourseID); err != nil {
		return nil, err
	}

	now := s.now()
	open, err := s.AttemptRepo.FindOpen(ctx, userID, quizID)
	switch {
	case err == nil:
		if !deadlinePassed(open, now, s.grace()) {
			return nil, util.ErrActiveAttemptExists
		}
		// 已超时但尚未被清理的作答先过期
		if _, err := s.expireAttempt(ctx, open.ID, now); err != nil {
			return nil, err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	key := model.AttemptOpenKey(userID, quizID)
	attempt := &model.QuizAttempt{
		UserID:    userID,
		QuizID:    quizID,
		Status:    model.AttemptCreated,
		StartedAt: now,
		OpenKey:   &key,
	}
	if quiz.TimeLimit > 0 {
		expiresAt := now.Add(time.Duration(quiz.TimeLimit) * time.Minute)
		attempt.ExpiresAt = &expiresAt
	}
	// 共享锁与题目修改互斥，满分按加锁后的题目计算
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quizzes := s.QuizRepo.WithTx(tx)
		if _, err := quizzes.ShareLockByID(ctx, quizID); err != nil {
			return err
		}
		maxScore, err := quizzes.MaxScore(ctx, quizID)
		if err != nil {
			return errors.Wrap(err, "sum question points")
		}
		attempt.MaxScore = maxScore
		return s.AttemptRepo.WithTx(tx).Create(ctx, attempt)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrActiveAttemptExists
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, errors.Wrap(err, "create attempt")
	}

	s.Activity.logQuietly(ctx, userID, model.ActivityQuizAttempt, "quiz", quizID, map[string]interface{}{
		"action":    "start",
		"attemptId": attempt.ID,
	})
	logger.Ctx(ctx).Info("Quiz attempt started", zap.Uint("userId", userID), zap.Uint("quizId", quizID), zap.Uint("attemptId", attempt.ID))
	return attempt, nil
}

// lockOwned 事务内锁定作答并校验归属
func (s *QuizService) lockOwned(ctx context.Context, tx *gorm.DB, userID, attemptID uint) (*model.QuizAttempt, error) {
	a, err := s.AttemptRepo.WithTx(tx).LockByID(ctx, attemptID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return a, nil
}

// RecordAnswer 同一题以最后一次作答为准
func (s *QuizService) RecordAnswer(ctx context.Context, userID, attemptID uint, req AnswerRequest) (*model.AttemptAnswer, error) {
	now := s.now()
	var (
		answer  *model.AttemptAnswer
		expired bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.lockOwned(ctx, tx, userID, attemptID)
		if err != nil {
			return err
		}
		if a.Status.IsTerminal() {
			return transitionAttempt(a, model.AttemptInProgress, now)
		}
		if deadlinePassed(a, now, s.grace()) {
			if err := transitionAttempt(a, model.AttemptExpired, now); err != nil {
				return err
			}
			expired = true
			return s.AttemptRepo.WithTx(tx).Save(ctx, a)
		}

		q, err := s.QuizRepo.WithTx(tx).FindQuestion(ctx, req.QuestionID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && q.QuizID != a.QuizID) {
			return util.ErrInvalidQuestionReference
		}
		if err != nil {
			return err
		}
		if err := validateSelection(q, req); err != nil {
			return err
		}

		answer = &model.AttemptAnswer{AttemptID: a.ID, QuestionID: q.ID}
		if q.Type == model.ShortAnswer {
			answer.TextAnswer = req.Text
		} else {
			answer.AnswerID = req.AnswerID
		}
		if err := s.AttemptRepo.WithTx(tx).UpsertAnswer(ctx, answer); err != nil {
			return errors.Wrap(err, "save answer")
		}

		if a.Status == model.AttemptCreated {
			if err := transitionAttempt(a, model.AttemptInProgress, now); err != nil {
				return err
			}
			return s.AttemptRepo.WithTx(tx).Save(ctx, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.onExpired(userID, attemptID)
		return nil, util.ErrAttemptExpired
	}
	return answer, nil
}

// validateSelection 选择题必须选中本题的选项，简答题不能为空
func validateSelection(q *model.Question, req AnswerRequest) error {
	if q.Type == model.ShortAnswer {
		if normalizeShortAnswer(req.Text) == "" {
			return util.ErrInvalidAnswer
		}
		return nil
	}
	if req.AnswerID == nil {
		return util.ErrInvalidAnswer
	}
	for _, a := range q.Answers {
		if a.ID == *req.AnswerID {
			return nil
		}
	}
	return util.ErrInvalidAnswer
}

// SubmitAttempt 判分并结束作答。重复提交返回 ErrAlreadyCompleted，首次结果不变
func (s *QuizService) SubmitAttempt(ctx context.Context, userID, attemptID uint) (*AttemptResult, error) {
	ctx, span := tracing.StartSpan(ctx, "QuizService.SubmitAttempt")
	defer span.End()

	now := s.now()
	var (
		attempt *model.QuizAttempt
		quiz    *model.Quiz
		result  ScoreResult
		expired bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.lockOwned(ctx, tx, userID, attemptID)
		if err != nil {
			return err
		}
		if a.Status.IsTerminal() {
			return transitionAttempt(a, model.AttemptCompleted, now)
		}
		if deadlinePassed(a, now, s.grace()) {
			if err := transitionAttempt(a, model.AttemptExpired, now); err != nil {
				return err
			}
			expired = true
			return s.AttemptRepo.WithTx(tx).Save(ctx, a)
		}

		quiz, err = s.QuizRepo.WithTx(tx).FindWithQuestions(ctx, a.QuizID)
		if err != nil {
			return errors.Wrap(err, "load quiz")
		}
		answers, err := s.AttemptRepo.WithTx(tx).ListAnswers(ctx, a.ID)
		if err != nil {
			return errors.Wrap(err, "load answers")
		}

		result = ScoreAttempt(quiz.Questions, selectionsFromAnswers(answers), quiz.PassingScore)
		gradeAnswers(answers, result)
		if err := s.AttemptRepo.WithTx(tx).SaveGrading(ctx, answers); err != nil {
			return errors.Wrap(err, "save grading")
		}

		a.Score = result.Score
		a.MaxScore = result.MaxScore
		a.Percentage = result.Percentage
		a.Passed = result.Passed
		if err := transitionAttempt(a, model.AttemptCompleted, now); err != nil {
			return err
		}
		if err := s.AttemptRepo.WithTx(tx).Save(ctx, a); err != nil {
			return errors.Wrap(err, "save attempt")
		}
		a.Answers = answers
		attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.onExpired(userID, attemptID)
		return nil, util.ErrAttemptExpired
	}

	outcome := "failed"
	if attempt.Passed {
		outcome = "passed"
	}
	monitoring.QuizAttemptCounter.WithLabelValues(outcome).Inc()
	logger.Ctx(ctx).Info("Quiz attempt submitted",
		zap.Uint("userId", userID),
		zap.Uint("attemptId", attempt.ID),
		zap.Int("score", attempt.Score),
		zap.Int("maxScore", attempt.MaxScore),
		zap.Bool("passed", attempt.Passed))

	// 以下为提交后的附带处理，失败不影响提交结果
	if attempt.Passed {
		if err := s.Enrollment.MarkQuizCompleted(ctx, userID, quiz, attempt.ID); err != nil {
			logger.Ctx(ctx).Warn("Failed to record quiz completion", zap.Error(err), zap.Uint("attemptId", attempt.ID))
			monitoring.RewardFailureCounter.WithLabelValues("quiz_completion").Inc()
		}
	}
	s.Activity.logQuietly(ctx, userID, model.ActivityQuizAttempt, "quiz", attempt.QuizID, map[string]interface{}{
		"action":     "submit",
		"attemptId":  attempt.ID,
		"percentage": attempt.Percentage,
		"passed":     attempt.Passed,
	})
	s.Dispatcher.Dispatch(ctx, Event{
		Kind:       EventQuizSubmitted,
		UserID:     userID,
		CourseID:   quiz.CourseID,
		ModuleID:   quiz.ModuleID,
		QuizID:     quiz.ID,
		AttemptID:  attempt.ID,
		Title:      quiz.Title,
		Percentage: attempt.Percentage,
		Passed:     attempt.Passed,
		At:         now,
	})

	return &AttemptResult{Attempt: attempt, Result: result}, nil
}

func gradeAnswers(answers []model.AttemptAnswer, result ScoreResult) {
	byQuestion := make(map[uint]QuestionResult, len(result.Questions))
	for _, q := range result.Questions {
		byQuestion[q.QuestionID] = q
	}
	for i := range answers {
		qr, ok := byQuestion[answers[i].QuestionID]
		answers[i].IsCorrect = ok && qr.Correct
		answers[i].PointsEarned = qr.PointsEarned
	}
}

// RegradeAttempt 用当前题库重新判分，只返回结果不修改作答
func (s *QuizService) RegradeAttempt(ctx context.Context, attemptID uint) (*ScoreResult, error) {
	a, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, a.QuizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	result := ScoreAttempt(quiz.Questions, selectionsFromAnswers(a.Answers), quiz.PassingScore)
	return &result, nil
}

// ExpireStaleAttempts 将超过限时加宽限期的未结束作答置为 expired，返回处理条数
func (s *QuizService) ExpireStaleAttempts(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.AttemptRepo.ListOverdue(ctx, now.Add(-s.grace()), expireBatchSize)
	if err != nil {
		return 0, errors.Wrap(err, "list overdue attempts")
	}

	expired := 0
	for _, a := range overdue {
		ok, err := s.expireAttempt(ctx, a.ID, now)
		if err != nil {
			logger.Ctx(ctx).Error("Failed to expire attempt", zap.Error(err), zap.Uint("attemptId", a.ID))
			continue
		}
		if ok {
			expired++
			s.onExpired(a.UserID, a.ID)
		}
	}
	if expired > 0 {
		logger.Ctx(ctx).Info("Expired stale quiz attempts", zap.Int("count", expired))
	}
	return expired, nil
}

// expireAttempt 加锁后复核状态，并发提交先完成时不做处理
func (s *QuizService) expireAttempt(ctx context.Context, attemptID uint, now time.Time) (bool, error) {
	changed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.AttemptRepo.WithTx(tx).LockByID(ctx, attemptID)
		if err != nil {
			return err
		}
		if !a.Status.IsOpen() || !deadlinePassed(a, now, s.grace()) {
			return nil
		}
		if err := transitionAttempt(a, model.AttemptExpired, now); err != nil {
			return err
		}
		changed = true
		return s.AttemptRepo.WithTx(tx).Save(ctx, a)
	})
	return changed, err
}

func (s *QuizService) onExpired(userID, attemptID uint) {
	monitoring.QuizAttemptCounter.WithLabelValues("expired").Inc()
	if s.Notifier != nil {
		s.Notifier.PushToUsers([]uint{userID}, WSMessage{
			Type: NotifyAttemptExpired,
			Data: map[string]interface{}{"attemptId": attemptID},
		})
	}
}

// GetAttempt privileged 为 true 时不校验归属
func (s *QuizService) GetAttempt(ctx context.Context, userID, attemptID uint, privileged bool) (*model.QuizAttempt, error) {
	a, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	if !privileged && a.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return a, nil
}

func (s *QuizService) ListAttempts(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error) {
	return s.AttemptRepo.ListByUserAndQuiz(ctx, userID, quizID)
}

// AnswerOption 作答时展示的选项，不含正确性
type AnswerOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type QuestionView struct {
	ID      uint               `json:"id"`
	Text    string             `json:"text"`
	Type    model.QuestionType `json:"type"`
	Points  int                `json:"points"`
	Options []AnswerOption     `json:"options,omitempty"`
}

type QuizView struct {
	ID           uint           `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	TimeLimit    int            `json:"timeLimit"`
	PassingScore int            `json:"passingScore"`
	MaxScore     int            `json:"maxScore"`
	Questions    []QuestionView `json:"questions"`
}

// GetQuizForTaking 简答题不返回任何选项，避免泄露参考答案
func (s *QuizService) GetQuizForTaking(ctx context.Context, userID, quizID uint) (*QuizView, error) {
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, quizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.Enrollment.RequireEnrollment(ctx, userID, quiz.CourseID); err != nil {
		return nil, err
	}

	view := &QuizView{
		ID:           quiz.ID,
		Title:        quiz.Title,
		Description:  quiz.Description,
		TimeLimit:    quiz.TimeLimit,
		PassingScore: quiz.PassingScore,
		Questions:    make([]QuestionView, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		view.MaxScore += q.Points
		qv := QuestionView{ID: q.ID, Text: q.Text, Type: q.Type, Points: q.Points}
		if q.Type != model.ShortAnswer {
			for _, a := range q.Answers {
				qv.Options = append(qv.Options, AnswerOption{ID: a.ID, Text: a.Text})
			}
		}
		view.Questions = append(view.Questions, qv)
	}
	return view, nil
}
