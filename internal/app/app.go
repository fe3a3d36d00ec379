package app

import (
	"context"
	"edumate_backend/internal/config"
	"edumate_backend/internal/controller"
	"edumate_backend/internal/repository"
	"edumate_backend/internal/service"
	"edumate_backend/pkg/configwatcher"
	"edumate_backend/pkg/database"
	"edumate_backend/pkg/logger"
	"edumate_backend/pkg/monitoring"
	"edumate_backend/pkg/scheduler"
	"edumate_backend/pkg/security"
	"edumate_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configDir = "configs"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	SQLX            *sqlx.DB
	Redis           *redis.Client
	services        *services
	scheduler       *scheduler.Scheduler
	tracer          *sdktrace.TracerProvider
	stopWatch       context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	enrollment  *repository.EnrollmentRepository
	progress    *repository.ProgressRepository
	quiz        *repository.QuizRepository
	attempt     *repository.AttemptRepository
	points      *repository.PointsRepository
	leaderboard *repository.LeaderboardRepository
	badge       *repository.BadgeRepository
	achievement *repository.AchievementRepository
	streak      *repository.StreakRepository
	activity    *repository.ActivityRepository
	metrics     *repository.MetricsRepository
	challenge   *repository.ChallengeRepository
	report      *repository.ReportRepository
}

type services struct {
	hub         *service.NotificationHub
	storage     *service.StorageService
	reward      *service.RewardService
	activity    *service.ActivityService
	auth        *service.AuthService
	enrollment  *service.EnrollmentService
	quiz        *service.QuizService
	catalog     *service.CatalogService
	leaderboard *service.LeaderboardService
	challenge   *service.ChallengeService
	report      *service.ReportService
}

type controllers struct {
	auth         *controller.AuthController
	course       *controller.CourseController
	quiz         *controller.QuizController
	reward       *controller.RewardController
	leaderboard  *controller.LeaderboardController
	challenge    *controller.ChallengeController
	catalog      *controller.CatalogController
	report       *controller.ReportController
	notification *controller.NotificationController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, sx *sqlx.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
		progress:    repository.NewProgressRepository(db),
		quiz:        repository.NewQuizRepository(db),
		attempt:     repository.NewAttemptRepository(db),
		points:      repository.NewPointsRepository(db),
		leaderboard: repository.NewLeaderboardRepository(db, sx, rdb, cfg.Leaderboard.CacheKey),
		badge:       repository.NewBadgeRepository(db),
		achievement: repository.NewAchievementRepository(db),
		streak:      repository.NewStreakRepository(db),
		activity:    repository.NewActivityRepository(db),
		metrics:     repository.NewMetricsRepository(db),
		challenge:   repository.NewChallengeRepository(db),
		report:      repository.NewReportRepository(sx),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.hub = service.NewNotificationHub(rdb)
	go s.hub.Run()

	s.storage = service.NewStorageService(&cfg.Storage)

	// 奖励引擎同时作为事件分发器，学习事件同步推进积分、徽章与成就
	s.reward = service.NewRewardService(
		db,
		repos.user,
		repos.points,
		repos.leaderboard,
		repos.badge,
		repos.achievement,
		repos.streak,
		repos.enrollment,
		repos.activity,
		repos.metrics,
		s.hub,
		cfg.Rewards,
	)
	s.activity = service.NewActivityService(repos.activity, s.reward)
	s.auth = service.NewAuthService(repos.user, s.activity, cfg)
	s.enrollment = service.NewEnrollmentService(db, repos.course, repos.enrollment, repos.quiz, repos.progress, s.activity, s.reward)
	s.quiz = service.NewQuizService(db, repos.quiz, repos.attempt, s.enrollment, s.activity, s.reward, s.hub, cfg.Quiz)
	s.catalog = service.NewCatalogService(db, repos.course, repos.quiz, repos.attempt, repos.badge, repos.achievement, s.storage, cfg.Quiz)
	s.leaderboard = service.NewLeaderboardService(db, repos.leaderboard, repos.user, cfg.Leaderboard.DefaultLimit)
	s.challenge = service.NewChallengeService(db, repos.challenge, s.reward)
	s.report = service.NewReportService(repos.report, repos.quiz, repos.user, s.reward, s.leaderboard)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth),
		course:       controller.NewCourseController(s.catalog, s.enrollment),
		quiz:         controller.NewQuizController(s.quiz),
		reward:       controller.NewRewardController(s.reward, s.activity),
		leaderboard:  controller.NewLeaderboardController(s.leaderboard),
		challenge:    controller.NewChallengeController(s.challenge),
		catalog:      controller.NewCatalogController(s.catalog),
		report:       controller.NewReportController(s.report),
		notification: controller.NewNotificationController(s.hub),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	// WebSocket 长连接、健康检查与指标抓取不计入限流
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute,
		"/api/ws/", "/health", "/metrics"))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 过期作答清理与排名持久化
func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	a.scheduler = scheduler.New()

	sweep := time.Duration(cfg.Quiz.SweepIntervalMinutes) * time.Minute
	if err := a.scheduler.Every("expire_attempts", sweep, func() error {
		_, err := s.quiz.ExpireStaleAttempts(context.Background())
		return err
	}); err != nil {
		logger.Log.Error("Failed to schedule attempt expiry", zap.Error(err))
	}

	rerank := time.Duration(cfg.Leaderboard.RerankIntervalMinutes) * time.Minute
	if err := a.scheduler.Every("recompute_ranks", rerank, func() error {
		_, err := s.leaderboard.RecomputeRanks(context.Background())
		return err
	}); err != nil {
		logger.Log.Error("Failed to schedule leaderboard rerank", zap.Error(err))
	}

	a.scheduler.Start()
	logger.Log.Info("Background jobs started", zap.Strings("jobs", a.scheduler.Jobs()))
}

// watchConfig 奖励规则热更新，非法配置保留旧值
func (a *App) watchConfig(s *services) {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		if err := s.reward.UpdateSettings(cfg.Rewards); err != nil {
			logger.Log.Warn("Rejected reward settings update", zap.Error(err))
			return
		}
		logger.Log.Info("Reward settings updated")
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatch = cancel
	err := configwatcher.WatchConfig(ctx, filepath.Join(configDir, "config.yaml"), func(cfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(cfg)
		}
	})
	if err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	sx, err := database.NewSQLX(db, cfg.Database.Driver)
	if err != nil {
		logger.Log.Fatal("Failed to initialize sqlx", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		SQLX:   sx,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, sx, rdb, cfg)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services, cfg)
	app.watchConfig(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	// 关闭所有通知连接
	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	logger.Log.Info("Server exiting")
}
