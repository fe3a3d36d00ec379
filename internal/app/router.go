package app

import (
	"edumate_backend/docs"
	"edumate_backend/internal/config"
	"edumate_backend/internal/middleware"
	"edumate_backend/internal/model"
	"edumate_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)

		// 教师维护课程与题库
		a.registerManageRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, repos, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	// 课程与学习进度
	rg.GET("/courses", c.course.ListCourses)
	rg.GET("/courses/:id", c.course.GetCourse)
	rg.POST("/courses/:id/enroll", c.course.Enroll)
	rg.GET("/enrollments", c.course.MyEnrollments)
	rg.POST("/lessons/:id/complete", c.course.CompleteLesson)
	rg.GET("/progress", c.course.MyProgress)

	// 测验作答
	rg.GET("/quizzes/:id", c.quiz.GetQuiz)
	rg.POST("/quizzes/:id/attempts", c.quiz.StartAttempt)
	rg.GET("/quizzes/:id/attempts", c.quiz.ListAttempts)
	attempts := rg.Group("/attempts")
	{
		attempts.GET("/:id", c.quiz.GetAttempt)
		attempts.PUT("/:id/answers", c.quiz.RecordAnswer)
		attempts.POST("/:id/submit", c.quiz.SubmitAttempt)
	}

	// 奖励
	rg.GET("/rewards/summary", c.reward.GetSummary)
	rg.GET("/rewards/points", c.reward.GetPointsHistory)
	rg.GET("/badges", c.reward.ListBadges)
	rg.GET("/badges/mine", c.reward.MyBadges)
	rg.POST("/badges/check", c.reward.CheckBadges)
	rg.GET("/achievements", c.reward.ListAchievements)
	rg.GET("/achievements/mine", c.reward.MyAchievements)
	rg.GET("/achievements/progress", c.reward.AchievementProgress)
	rg.GET("/streak", c.reward.GetStreak)
	rg.POST("/activities", c.reward.RecordActivity)
	rg.GET("/activities", c.reward.RecentActivities)

	rg.GET("/leaderboard", c.leaderboard.GetLeaderboard)
	rg.GET("/leaderboard/me", c.leaderboard.GetMyRank)

	challenges := rg.Group("/challenges")
	{
		challenges.GET("", c.challenge.ListActive)
		challenges.GET("/mine", c.challenge.MyChallenges)
		challenges.POST("/:id/accept", c.challenge.Accept)
	}

	rg.GET("/reports/users/:id", c.report.UserSummary)
	rg.GET("/reports/users/:id/weak-areas", c.report.WeakAreas)

	rg.GET("/ws/notifications", c.notification.Connect)
}

func (a *App) registerManageRoutes(rg *gin.RouterGroup, c *controllers) {
	manage := rg.Group("/manage")
	manage.Use(middleware.RoleMiddleware(model.Instructor, model.Admin))
	{
		manage.POST("/courses", c.catalog.CreateCourse)
		manage.POST("/courses/:id/modules", c.catalog.CreateModule)
		manage.POST("/modules/:id/lessons", c.catalog.CreateLesson)
		manage.POST("/modules/:id/quizzes", c.catalog.CreateQuiz)
		manage.GET("/quizzes/:id", c.catalog.GetQuiz)
		manage.POST("/quizzes/:id/questions", c.catalog.AddQuestion)
		manage.DELETE("/questions/:id", c.catalog.DeleteQuestion)
		manage.PUT("/challenges/:id/users/:userId/progress", c.challenge.UpdateProgress)
	}

	reports := rg.Group("/reports/quizzes")
	reports.Use(middleware.RoleMiddleware(model.Instructor, model.Admin))
	{
		reports.GET("/:id", c.report.QuizStats)
		reports.GET("/:id/export", c.report.ExportQuizAttempts)
	}

	courseReports := rg.Group("/reports")
	courseReports.Use(middleware.RoleMiddleware(model.Instructor, model.Admin))
	{
		courseReports.GET("/engagement", c.report.CourseEngagement)
		courseReports.GET("/courses/:id/completion", c.report.CourseCompletion)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/points", c.reward.AwardPoints)
		admin.POST("/badges", c.catalog.CreateBadge)
		admin.POST("/badges/:id/image", c.catalog.UploadBadgeImage)
		admin.POST("/badges/:id/grant", c.reward.GrantBadge)
		admin.POST("/achievements", c.catalog.CreateAchievement)
		admin.POST("/challenges", c.challenge.CreateChallenge)
		admin.POST("/attempts/:id/regrade", c.quiz.RegradeAttempt)
		admin.POST("/leaderboard/recompute", c.leaderboard.RecomputeRanks)
	}
}
