package service

import (
	"context"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/internal/util"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// EnrollmentService 选课与学习进度
type EnrollmentService struct {
	DB             *gorm.DB
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	QuizRepo       *repository.QuizRepository
	ProgressRepo   *repository.ProgressRepository
	Activity       *ActivityService
	Dispatcher     EventDispatcher
}

func NewEnrollmentService(
	db *gorm.DB,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	quizRepo *repository.QuizRepository,
	progressRepo *repository.ProgressRepository,
	activity *ActivityService,
	dispatcher EventDispatcher,
) *EnrollmentService {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	return &EnrollmentService{
		DB:             db,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		QuizRepo:       quizRepo,
		ProgressRepo:   progressRepo,
		Activity:       activity,
		Dispatcher:     dispatcher,
	}
}

func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	course, err := s.CourseRepo.FindCourseByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if course.InstructorID == userID {
		return nil, util.ErrPermissionDenied
	}

	if _, err := s.EnrollmentRepo.FindByUserAndCourse(ctx, userID, courseID); err == nil {
		return nil, util.ErrAlreadyEnrolled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	e := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		Status:     model.EnrollmentEnrolled,
		EnrolledAt: time.Now(),
	}
	if err := s.EnrollmentRepo.Create(ctx, e); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrAlreadyEnrolled
		}
		return nil, errors.Wrap(err, "create enrollment")
	}

	s.Activity.logQuietly(ctx, userID, model.ActivityCourseView, "course", courseID, map[string]interface{}{"action": "enroll"})
	s.Dispatcher.Dispatch(ctx, Event{Kind: EventEnrolled, UserID: userID, CourseID: courseID, Title: course.Title, At: e.EnrolledAt})
	return e, nil
}

// RequireEnrollment 未选课或已退课返回 ErrNotEnrolled
func (s *EnrollmentService) RequireEnrollment(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	e, err := s.EnrollmentRepo.FindByUserAndCourse(ctx, userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotEnrolled
	}
	if err != nil {
		return nil, err
	}
	if e.Status == model.EnrollmentDropped {
		return nil, util.ErrNotEnrolled
	}
	return e, nil
}

func (s *EnrollmentService) ListEnrollments(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	return s.EnrollmentRepo.ListByUser(ctx, userID)
}

func (s *EnrollmentService) ListModuleProgress(ctx context.Context, userID uint) ([]model.ModuleProgress, error) {
	return s.ProgressRepo.ListModuleProgress(ctx, userID)
}

// progressChange 一次进度重算的结果，事务提交后据此发出事件
type progressChange struct {
	Progress        *model.ModuleProgress
	ModuleTitle     string
	ModuleCompleted bool
	CourseTitle     string
	CourseCompleted bool
}

func (s *EnrollmentService) CompleteLesson(ctx context.Context, userID, lessonID uint) (*model.ModuleProgress, error) {
	lesson, err := s.CourseRepo.FindLessonByID(ctx, lessonID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.RequireEnrollment(ctx, userID, lesson.CourseID); err != nil {
		return nil, err
	}

	var (
		change  *progressChange
		created bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.ProgressRepo.WithTx(tx).CreateLessonCompletion(ctx, &model.LessonCompletion{
			UserID:      userID,
			LessonID:    lessonID,
			ModuleID:    lesson.ModuleID,
			CourseID:    lesson.CourseID,
			CompletedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		change, err = s.recomputeModule(ctx, tx, userID, lesson.ModuleID, lesson.CourseID)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "complete lesson")
	}

	if created {
		s.Activity.logQuietly(ctx, userID, model.ActivityLessonView, "lesson", lessonID, map[string]interface{}{"action": "complete"})
		s.Dispatcher.Dispatch(ctx, Event{Kind: EventLessonCompleted, UserID: userID, CourseID: lesson.CourseID, ModuleID: lesson.ModuleID, Title: lesson.Title})
	}
	s.fireProgressEvents(ctx, userID, change)
	return change.Progress, nil
}

// MarkQuizCompleted 首次通过测验时写入完成记录并重算模块进度
func (s *EnrollmentService) MarkQuizCompleted(ctx context.Context, userID uint, quiz *model.Quiz, attemptID uint) error {
	var change *progressChange
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.ProgressRepo.WithTx(tx).CreateQuizCompletion(ctx, &model.QuizCompletion{
			UserID:      userID,
			QuizID:      quiz.ID,
			ModuleID:    quiz.ModuleID,
			CourseID:    quiz.CourseID,
			AttemptID:   attemptID,
			CompletedAt: time.Now(),
		})
		if err != nil || !created {
			return err
		}
		change, err = s.recomputeModule(ctx, tx, userID, quiz.ModuleID, quiz.CourseID)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "mark quiz completed")
	}
	s.fireProgressEvents(ctx, userID, change)
	return nil
}

func (s *EnrollmentService) fireProgressEvents(ctx context.Context, userID uint, change *progressChange) {
	if change == nil {
		return
	}
	p := change.Progress
	if change.ModuleCompleted {
		s.Dispatcher.Dispatch(ctx, Event{Kind: EventModuleCompleted, UserID: userID, CourseID: p.CourseID, ModuleID: p.ModuleID, Title: change.ModuleTitle})
	}
	if change.CourseCompleted {
		s.Dispatcher.Dispatch(ctx, Event{Kind: EventCourseCompleted, UserID: userID, CourseID: p.CourseID, Title: change.CourseTitle})
	}
}

// ModuleCompletion (已完成课时 + 已通过测验) / (课时 + 测验) * 100，没有内容的模块为 0
func ModuleCompletion(lessons, quizzes, doneLessons, doneQuizzes int64) float64 {
	total := lessons + quizzes
	if total == 0 {
		return 0
	}
	pct := float64(doneLessons+doneQuizzes) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (s *EnrollmentService) recomputeModule(ctx context.Context, tx *gorm.DB, userID, moduleID, courseID uint) (*progressChange, error) {
	courses := s.CourseRepo.WithTx(tx)
	progress := s.ProgressRepo.WithTx(tx)

	module, err := courses.FindModuleByID(ctx, moduleID)
	if err != nil {
		return nil, errors.Wrap(err, "load module")
	}
	lessons, err := courses.CountLessonsByModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	quizzes, err := s.QuizRepo.WithTx(tx).CountByModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	doneLessons, err := progress.CountLessonCompletions(ctx, userID, moduleID)
	if err != nil {
		return nil, err
	}
	doneQuizzes, err := progress.CountQuizCompletions(ctx, userID, moduleID)
	if err != nil {
		return nil, err
	}

	p, err := progress.LockModuleProgress(ctx, userID, moduleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = &model.ModuleProgress{UserID: userID, ModuleID: moduleID, CourseID: courseID}
	} else if err != nil {
		return nil, err
	}

	change := &progressChange{Progress: p, ModuleTitle: module.Title}
	p.CompletionPercentage = ModuleCompletion(lessons, quizzes, doneLessons, doneQuizzes)
	if p.CompletionPercentage >= 100 && p.CompletedAt == nil {
		now := time.Now()
		p.CompletedAt = &now
		change.ModuleCompleted = true
	}
	if err := progress.SaveModuleProgress(ctx, p); err != nil {
		return nil, errors.Wrap(err, "save module progress")
	}

	if !change.ModuleCompleted {
		return change, nil
	}
	change.CourseCompleted, change.CourseTitle, err = s.completeCourseIfDone(ctx, tx, userID, courseID)
	return change, err
}

// completeCourseIfDone 课程全部模块完成时将选课置为 completed，只触发一次
func (s *EnrollmentService) completeCourseIfDone(ctx context.Context, tx *gorm.DB, userID, courseID uint) (bool, string, error) {
	courses := s.CourseRepo.WithTx(tx)
	moduleIDs, err := courses.ListModuleIDsByCourse(ctx, courseID)
	if err != nil || len(moduleIDs) == 0 {
		return false, "", err
	}
	list, err := s.ProgressRepo.WithTx(tx).ListModuleProgressByCourse(ctx, userID, courseID)
	if err != nil {
		return false, "", err
	}
	done := make(map[uint]bool, len(list))
	for _, p := range list {
		if p.CompletionPercentage >= 100 {
			done[p.ModuleID] = true
		}
	}
	for _, id := range moduleIDs {
		if !done[id] {
			return false, "", nil
		}
	}

	e, err := s.EnrollmentRepo.WithTx(tx).LockByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		return false, "", errors.Wrap(err, "lock enrollment")
	}
	if e.Status == model.EnrollmentCompleted {
		return false, "", nil
	}
	now := time.Now()
	e.Status = model.EnrollmentCompleted
	e.CompletedAt = &now
	if err := s.EnrollmentRepo.WithTx(tx).Save(ctx, e); err != nil {
		return false, "", errors.Wrap(err, "complete enrollment")
	}

	course, err := courses.FindCourseByID(ctx, courseID)
	if err != nil {
		return true, "", nil
	}
	return true, course.Title, nil
}
