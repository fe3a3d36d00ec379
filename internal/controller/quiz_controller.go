package controller

import (
	"edumate_backend/internal/model"
	"edumate_backend/internal/service"
	"edumate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// GetQuiz godoc
// @Summary 获取测验题目
// @Description 返回作答视图，不包含正确答案
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizView}
// @Failure 403 {object} util.Response "未选课"
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.QuizService.GetQuizForTaking(ctx.Request.Context(), claims.UserID, quizID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// StartAttempt godoc
// @Summary 开始作答
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response{data=model.QuizAttempt}
// @Failure 409 {object} util.Response "已有进行中的作答"
// @Router /api/quizzes/{id}/attempts [post]
func (c *QuizController) StartAttempt(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	attempt, err := c.QuizService.StartAttempt(ctx.Request.Context(), claims.UserID, quizID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// ListAttempts godoc
// @Summary 我的作答记录
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/quizzes/{id}/attempts [get]
func (c *QuizController) ListAttempts(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	attempts, err := c.QuizService.ListAttempts(ctx.Request.Context(), claims.UserID, quizID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// RecordAnswer godoc
// @Summary 记录答案
// @Description 同一题重复提交时覆盖之前的选择
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作答ID"
// @Param body body service.AnswerRequest true "答案"
// @Success 200 {object} util.Response{data=model.AttemptAnswer}
// @Failure 400 {object} util.Response "题目或选项不属于该测验"
// @Failure 409 {object} util.Response "作答已提交"
// @Failure 410 {object} util.Response "作答已过期"
// @Router /api/attempts/{id}/answers [put]
func (c *QuizController) RecordAnswer(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.QuizService.RecordAnswer(ctx.Request.Context(), claims.UserID, attemptID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// SubmitAttempt godoc
// @Summary 提交作答
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 409 {object} util.Response "作答已提交"
// @Failure 410 {object} util.Response "作答已过期"
// @Router /api/attempts/{id}/submit [post]
func (c *QuizController) SubmitAttempt(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.QuizService.SubmitAttempt(ctx.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetAttempt godoc
// @Summary 作答详情
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Router /api/attempts/{id} [get]
func (c *QuizController) GetAttempt(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	attempt, err := c.QuizService.GetAttempt(ctx.Request.Context(), claims.UserID, attemptID, claims.Role == model.Admin)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// RegradeAttempt godoc
// @Summary 按当前题库重新判分
// @Description 只返回新结果，不修改已保存的分数
// @Tags 测验管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response{data=service.ScoreResult}
// @Router /api/admin/attempts/{id}/regrade [post]
func (c *QuizController) RegradeAttempt(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.QuizService.RegradeAttempt(ctx.Request.Context(), attemptID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
