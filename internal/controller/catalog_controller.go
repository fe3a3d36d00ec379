package controller

import (
	"edumate_backend/internal/service"
	"edumate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// CatalogController 教师和管理员维护课程、测验、徽章与成就
type CatalogController struct {
	CatalogService *service.CatalogService
}

func NewCatalogController(catalogService *service.CatalogService) *CatalogController {
	return &CatalogController{CatalogService: catalogService}
}

func actorFrom(ctx *gin.Context) (service.Actor, bool) {
	claims, ok := currentActor(ctx)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role}, true
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CourseRequest true "课程"
// @Success 201 {object} util.Response{data=model.Course}
// @Router /api/manage/courses [post]
func (c *CatalogController) CreateCourse(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CatalogService.CreateCourse(ctx.Request.Context(), actor, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// CreateModule godoc
// @Summary 创建模块
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.ModuleRequest true "模块"
// @Success 201 {object} util.Response{data=model.Module}
// @Router /api/manage/courses/{id}/modules [post]
func (c *CatalogController) CreateModule(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.ModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.CatalogService.CreateModule(ctx.Request.Context(), actor, courseID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, module)
}

// CreateLesson godoc
// @Summary 创建课时
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Param body body service.LessonRequest true "课时"
// @Success 201 {object} util.Response{data=model.Lesson}
// @Router /api/manage/modules/{id}/lessons [post]
func (c *CatalogController) CreateLesson(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.LessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.CatalogService.CreateLesson(ctx.Request.Context(), actor, moduleID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, lesson)
}

// CreateQuiz godoc
// @Summary 创建测验
// @Description 未填写限时和及格线时使用系统默认值
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Param body body service.QuizRequest true "测验"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Router /api/manage/modules/{id}/quizzes [post]
func (c *CatalogController) CreateQuiz(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.QuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.CatalogService.CreateQuiz(ctx.Request.Context(), actor, moduleID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// GetQuiz godoc
// @Summary 测验详情（含答案）
// @Tags 测验管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/manage/quizzes/{id} [get]
func (c *CatalogController) GetQuiz(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	quiz, err := c.CatalogService.GetQuizWithAnswers(ctx.Request.Context(), actor, quizID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// AddQuestion godoc
// @Summary 添加题目
// @Description 测验有进行中的作答时不允许修改
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body service.QuestionRequest true "题目"
// @Success 201 {object} util.Response{data=model.Question}
// @Failure 409 {object} util.Response "存在进行中的作答"
// @Router /api/manage/quizzes/{id}/questions [post]
func (c *CatalogController) AddQuestion(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.CatalogService.AddQuestion(ctx.Request.Context(), actor, quizID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 测验管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/manage/questions/{id} [delete]
func (c *CatalogController) DeleteQuestion(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	questionID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.CatalogService.DeleteQuestion(ctx.Request.Context(), actor, questionID); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// CreateBadge godoc
// @Summary 创建徽章
// @Tags 奖励管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.BadgeRequest true "徽章"
// @Success 201 {object} util.Response{data=model.Badge}
// @Router /api/admin/badges [post]
func (c *CatalogController) CreateBadge(ctx *gin.Context) {
	var req service.BadgeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	badge, err := c.CatalogService.CreateBadge(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, badge)
}

// UploadBadgeImage godoc
// @Summary 上传徽章图标
// @Tags 奖励管理
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "徽章ID"
// @Param file formData file true "图片"
// @Success 200 {object} util.Response{data=object}
// @Router /api/admin/badges/{id}/image [post]
func (c *CatalogController) UploadBadgeImage(ctx *gin.Context) {
	badgeID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	url, err := c.CatalogService.UploadBadgeImage(ctx.Request.Context(), badgeID, header.Filename, file, header.Size)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}

// CreateAchievement godoc
// @Summary 创建成就
// @Tags 奖励管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.AchievementRequest true "成就"
// @Success 201 {object} util.Response{data=model.Achievement}
// @Router /api/admin/achievements [post]
func (c *CatalogController) CreateAchievement(ctx *gin.Context) {
	var req service.AchievementRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	achievement, err := c.CatalogService.CreateAchievement(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, achievement)
}
