package service

import (
	"context"
	"edumate_backend/internal/config"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/pkg/database"
	"fmt"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// recordingNotifier 记录推送的消息
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []WSMessage
}

func (n *recordingNotifier) PushToUsers(_ []uint, msg WSMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) count(msgType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.msgs {
		if m.Type == msgType {
			c++
		}
	}
	return c
}

type testEnv struct {
	db       *gorm.DB
	notifier *recordingNotifier

	users       *repository.UserRepository
	points      *repository.PointsRepository
	leaderboard *repository.LeaderboardRepository

	reward     *RewardService
	activity   *ActivityService
	enrollment *EnrollmentService
	quiz       *QuizService
	catalog    *CatalogService
	board      *LeaderboardService
	challenge  *ChallengeService
	report     *ReportService
}

func testQuizConfig() config.QuizConfig {
	return config.QuizConfig{
		DefaultPassingScore:  70,
		DefaultTimeLimit:     0,
		ExpiryGraceMinutes:   2,
		SweepIntervalMinutes: 5,
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

// newTestEnv 按 app 的装配方式连接全部服务，rdb 为 nil 时不使用缓存
func newTestEnv(t *testing.T, rdb *redis.Client) *testEnv {
	t.Helper()
	db := newTestDB(t)
	sx, err := database.NewSQLX(db, database.DriverSQLite)
	require.NoError(t, err)

	env := &testEnv{db: db, notifier: &recordingNotifier{}}
	env.users = repository.NewUserRepository(db)
	env.points = repository.NewPointsRepository(db)
	env.leaderboard = repository.NewLeaderboardRepository(db, sx, rdb, "test:leaderboard")

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	env.reward = NewRewardService(
		db,
		env.users,
		env.points,
		env.leaderboard,
		badgeRepo,
		achievementRepo,
		repository.NewStreakRepository(db),
		enrollmentRepo,
		activityRepo,
		repository.NewMetricsRepository(db),
		env.notifier,
		config.DefaultRewardConfig(),
	)
	env.activity = NewActivityService(activityRepo, env.reward)
	env.enrollment = NewEnrollmentService(db, courseRepo, enrollmentRepo, quizRepo, repository.NewProgressRepository(db), env.activity, env.reward)
	env.quiz = NewQuizService(db, quizRepo, attemptRepo, env.enrollment, env.activity, env.reward, env.notifier, testQuizConfig())
	storage := NewStorageService(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	env.catalog = NewCatalogService(db, courseRepo, quizRepo, attemptRepo, badgeRepo, achievementRepo, storage, testQuizConfig())
	env.board = NewLeaderboardService(db, env.leaderboard, env.users, 10)
	env.challenge = NewChallengeService(db, repository.NewChallengeRepository(db), env.reward)
	env.report = NewReportService(repository.NewReportRepository(sx), quizRepo, env.users, env.reward, env.board)
	return env
}

func (e *testEnv) createUser(t *testing.T, name string, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "x",
		Role:     role,
		Level:    1,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) reloadUser(t *testing.T, id uint) *model.User {
	t.Helper()
	u, err := e.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) ledgerSum(t *testing.T, userID uint) int {
	t.Helper()
	sum, err := e.points.SumByUser(context.Background(), userID)
	require.NoError(t, err)
	return sum
}

// quizFixture 一门课程，一个模块，模块下只有一个测验
type quizFixture struct {
	instructor *model.User
	course     *model.Course
	module     *model.Module
	quiz       *model.Quiz
	choice     *model.Question
	short      *model.Question
}

func (f *quizFixture) correctChoice() *uint {
	for _, a := range f.choice.Answers {
		if a.IsCorrect {
			id := a.ID
			return &id
		}
	}
	return nil
}

func (f *quizFixture) wrongChoice() *uint {
	for _, a := range f.choice.Answers {
		if !a.IsCorrect {
			id := a.ID
			return &id
		}
	}
	return nil
}

// newQuizFixture 两道题各 5 分，及格线 60
func (e *testEnv) newQuizFixture(t *testing.T, timeLimit int) *quizFixture {
	t.Helper()
	ctx := context.Background()
	f := &quizFixture{instructor: e.createUser(t, "instructor-"+uuid.NewString()[:8], model.Instructor)}
	actor := Actor{UserID: f.instructor.ID, Role: model.Instructor}

	var err error
	f.course, err = e.catalog.CreateCourse(ctx, actor, CourseRequest{Title: "Geography", IsPublished: true})
	require.NoError(t, err)
	f.module, err = e.catalog.CreateModule(ctx, actor, f.course.ID, ModuleRequest{Title: "Capitals"})
	require.NoError(t, err)

	passing := 60
	f.quiz, err = e.catalog.CreateQuiz(ctx, actor, f.module.ID, QuizRequest{Title: "Capitals quiz", TimeLimit: &timeLimit, PassingScore: &passing})
	require.NoError(t, err)

	f.choice, err = e.catalog.AddQuestion(ctx, actor, f.quiz.ID, QuestionRequest{
		Text:   "Capital of Italy?",
		Type:   model.MultipleChoice,
		Points: 5,
		Answers: []AnswerInput{
			{Text: "Rome", IsCorrect: true},
			{Text: "Milan"},
		},
	})
	require.NoError(t, err)
	f.short, err = e.catalog.AddQuestion(ctx, actor, f.quiz.ID, QuestionRequest{
		Text:    "Capital of France?",
		Type:    model.ShortAnswer,
		Points:  5,
		Answers: []AnswerInput{{Text: "Paris", IsCorrect: true}},
	})
	require.NoError(t, err)
	return f
}
